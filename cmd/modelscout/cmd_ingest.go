package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the model catalog once and append it to the warehouse",
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

			ref, err := svc.Ingest(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ref)
			}
			_, err = fmt.Fprintln(out, ref.Path)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full snapshot reference as JSON")
	return cmd
}
