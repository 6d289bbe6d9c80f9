package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	var (
		horizon string
		asOfRaw string
		full    bool
		k       int
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Compute one regime snapshot and print it as JSON",
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

			outcome, err := a.engine.ComputeSnapshot(ctx, horizon, asOf, snapshot.Options{Full: full, K: k})
			if err != nil {
				return err
			}

			if outcome.Abstained() {
				return printJSON(outcome)
			}
			if persist {
				id, err := a.snaps.Insert(ctx, outcome.Snapshot)
				if err != nil {
					return fmt.Errorf("persist snapshot: %w", err)
				}
				log.Info().Str("snapshot_id", id).Msg("snapshot persisted")
			}
			return printJSON(outcome.Snapshot)
		},
	}

	cmd.Flags().StringVar(&horizon, "horizon", "1w", "Evaluation horizon (1w|2w|1m)")
	cmd.Flags().StringVar(&asOfRaw, "as-of", "", "Evaluation instant, RFC3339 (default now)")
	cmd.Flags().BoolVar(&full, "full", false, "Include every available indicator, not just router picks")
	cmd.Flags().IntVar(&k, "k", 0, "Router pick count override (0 keeps the default)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Write the snapshot to the database")
	return cmd
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", raw, err)
	}
	return asOf.UTC(), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
