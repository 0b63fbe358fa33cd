package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harvest-erp/harvest/internal/invoicing"
)

type monthFlags struct {
	year  int
	month int
}

func (m *monthFlags) bind(cmd *cobra.Command) {
	prev := time.Now().AddDate(0, -1, 0)
	cmd.Flags().IntVar(&m.year, "year", prev.Year(), "invoice year (default: last month's)")
	cmd.Flags().IntVar(&m.month, "month", int(prev.Month()), "invoice month 1-12 (default: last month)")
}

func newInvoicesCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Preview and issue monthly invoices",
	}

	var summarizeMonth monthFlags
	var summarizeCustomer int64
	summarize := &cobra.Command{
		Use:     "summarize",
		Short:   "Print the pending invoice summary of a month as JSON",
		Example: "  harvestctl invoices summarize --year 2024 --month 4",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(d *Deps) error {
				summary, err := d.Invoices.Summarize(cmd.Context(), summarizeMonth.year, summarizeMonth.month, summarizeCustomer)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			})
		},
	}
	summarizeMonth.bind(summarize)
	summarize.Flags().Int64Var(&summarizeCustomer, "customer", 0, "limit to one customer id")
	cmd.AddCommand(summarize)

	var generateMonth monthFlags
	var generateCustomer int64
	var all bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Issue invoices for one customer or every customer with pending deliveries",
		Long: `generate issues the invoice of --customer for the month. With --all it
issues one invoice per customer that has pending deliveries and no invoice
yet; a failure for one customer is reported and the rest still run.`,
		Example: "  harvestctl invoices generate --all --year 2024 --month 4",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (generateCustomer > 0) {
				return errors.New("pass exactly one of --customer or --all")
			}
			return withDeps(cmd, open, func(d *Deps) error {
				targets := []int64{generateCustomer}
				if all {
					summary, err := d.Invoices.Summarize(cmd.Context(), generateMonth.year, generateMonth.month, 0)
					if err != nil {
						return err
					}
					targets = pendingCustomers(summary)
				}
				out := cmd.OutOrStdout()
				var failed int
				for _, customerID := range targets {
					inv, err := d.Invoices.GenerateInvoice(cmd.Context(), invoicing.GenerateRequest{
						CustomerID: customerID,
						Year:       generateMonth.year,
						Month:      generateMonth.month,
					})
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "customer %d: %v\n", customerID, err)
						continue
					}
					fmt.Fprintf(out, "%s\tcustomer %d\ttotal %s\n", inv.Number, customerID, inv.GrandTotal.StringFixed(0))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d invoices failed", failed, len(targets))
				}
				if len(targets) == 0 {
					fmt.Fprintln(out, "nothing to invoice")
				}
				return nil
			})
		},
	}
	generateMonth.bind(generate)
	generate.Flags().Int64Var(&generateCustomer, "customer", 0, "customer id to invoice")
	generate.Flags().BoolVar(&all, "all", false, "invoice every customer with pending deliveries")
	cmd.AddCommand(generate)

	return cmd
}

func pendingCustomers(summary invoicing.Summary) []int64 {
	ids := make([]int64, 0, len(summary.Customers))
	for _, c := range summary.Customers {
		if c.HasInvoice || len(c.DeliveryIDs) == 0 {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}
