package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ze-codes/invest-agent/internal/config"
	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Indicator registry commands",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a registry file without touching the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				path = cfg.RegistryPath
			}

			reg, err := registry.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
				return err
			}

			counts := map[registry.Category]int{}
			buckets := map[string]bool{}
			for _, ind := range reg.Indicators() {
				counts[ind.Category]++
				buckets[ind.BucketID()] = true
			}
			fmt.Printf("OK: %d indicators, %d buckets (core=%d floor=%d supply=%d stress=%d)\n",
				reg.Len(), len(buckets),
				counts[registry.CategoryCore], counts[registry.CategoryFloor],
				counts[registry.CategorySupply], counts[registry.CategoryStress])
			return nil
		},
	}

	cmd.AddCommand(validateCmd)
	return cmd
}
