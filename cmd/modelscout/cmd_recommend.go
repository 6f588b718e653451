package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/modelscout/internal/app"
)

func newRecommendCommand() *cobra.Command {
	var (
		topK          int
		maxPrice      float64
		minContext    int64
		allowlist     string
		missingPolicy string
		refresh       bool
		maxAgeHours   float64
	)

	cmd := &cobra.Command{
		Use:   "recommend <task description>",
		Short: "Rank models for a task and print the result as JSON",
		Example: `  modelscout recommend "python debugging, budget $5/1M tokens"
  modelscout recommend --topk 3 --provider-allowlist OpenAI,Google "summarize long pdfs"`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: a task description is required", errUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.Request{
				TaskText:          strings.Join(args, " "),
				ProviderAllowlist: allowlist,
				MissingPolicy:     missingPolicy,
				Refresh:           refresh,
			}
			flags := cmd.Flags()
			if flags.Changed("topk") {
				req.TopK = &topK
			}
			if flags.Changed("max-price-per-1m") {
				req.MaxPricePer1M = &maxPrice
			}
			if flags.Changed("min-context") {
				req.MinContext = &minContext
			}
			if flags.Changed("max-age-hours") {
				req.MaxAgeHours = &maxAgeHours
			}

			svc, err := newService(configFrom(cmd))
			if err != nil {
				return err
			}
			if err := svc.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer svc.Stop()

			resp, err := svc.Recommend(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			if len(resp.Recommendations) == 0 {
				return &NoResultError{Warning: resp.Warning}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&topK, "topk", 0, "Number of models to return")
	f.Float64Var(&maxPrice, "max-price-per-1m", 0, "Maximum input price per 1M tokens")
	f.Int64Var(&minContext, "min-context", 0, "Minimum context window in tokens")
	f.StringVar(&allowlist, "provider-allowlist", "", "Comma-separated providers to keep")
	f.StringVar(&missingPolicy, "missing-policy", "", "How to treat missing metrics: neutral or penalize")
	f.BoolVar(&refresh, "refresh", false, "Ingest before ranking")
	f.Float64Var(&maxAgeHours, "max-age-hours", 0, "Refresh when the latest snapshot is older than this")
	return cmd
}
