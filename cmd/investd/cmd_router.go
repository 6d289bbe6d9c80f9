package main

import (
	"github.com/spf13/cobra"
)

func newRouterCmd() *cobra.Command {
	var (
		horizon string
		asOfRaw string
		k       int
	)

	cmd := &cobra.Command{
		Use:   "router",
		Short: "Print the routed evidence shortlist for one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			asOf, err := parseAsOf(asOfRaw)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			picks, abstain, err := a.engine.ComputeRouter(ctx, horizon, asOf, k)
			if err != nil {
				return err
			}
			if abstain != nil {
				return printJSON(abstain)
			}
			return printJSON(map[string]interface{}{
				"horizon":      horizon,
				"as_of":        asOf,
				"router_picks": picks,
			})
		},
	}

	cmd.Flags().StringVar(&horizon, "horizon", "1w", "Evaluation horizon (1w|2w|1m)")
	cmd.Flags().StringVar(&asOfRaw, "as-of", "", "Evaluation instant, RFC3339 (default now)")
	cmd.Flags().IntVar(&k, "k", 0, "Pick count override (0 keeps the default)")
	return cmd
}
