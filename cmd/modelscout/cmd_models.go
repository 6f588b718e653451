package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the latest catalog row per model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(configFrom(cmd))
			if err != nil {
				return err
			}
			if err := svc.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			rows, err := svc.Latest(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMODEL\tQUALITY\tPRICE_IN/1M\tTOK/S\tCONTEXT\tSNAPSHOT")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CanonicalModelKey, r.ModelName,
					cell(r.QualityIndex), cell(r.PriceInputPer1M), cell(r.OutputTokensPerS),
					cell(r.ContextWindow), r.SnapshotTS.UTC().Format("2006-01-02T15:04:05Z"))
			}
			return w.Flush()
		},
	}
}

func cell[T int64 | float64](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
