package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newUsersCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}

	var name, email, password string
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote the account that owns the email",
		Long: `create-admin bootstraps the first administrator of a fresh install. When
the email already belongs to an account, that account becomes an
administrator and its password is replaced.

The password may come from HARVEST_ADMIN_PASSWORD instead of the flag.`,
		Example: "  harvestctl users create-admin --name Owner --email owner@farm.example",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("HARVEST_ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or HARVEST_ADMIN_PASSWORD)")
			}
			return withDeps(cmd, open, func(d *Deps) error {
				user, err := d.Users.EnsureAdmin(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin #%d %s ready\n", user.ID, user.Email)
				return nil
			})
		},
	}
	createAdmin.Flags().StringVar(&name, "name", "Administrator", "display name")
	createAdmin.Flags().StringVar(&email, "email", "", "login email")
	createAdmin.Flags().StringVar(&password, "password", "", "login password, at least 8 characters")
	_ = createAdmin.MarkFlagRequired("email")
	cmd.AddCommand(createAdmin)

	return cmd
}
