package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDBCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(d *Deps) error {
				applied, err := d.Migrate(cmd.Context())
				for _, v := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				}
				return nil
			})
		},
	})
	return cmd
}
