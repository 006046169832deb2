package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/fulfillment/engine"
	"github.com/xraph/fulfillment/store/backend"
)

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict expired pending orders and old processed-order ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := backend.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
			}
			eng := engine.New(s, engine.WithConfig(cfg), engine.WithLogger(logger))
			defer eng.Stop() //nolint:errcheck // closes the store

			ev, err := eng.EvictExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "evicted %d pending orders, purged %d processed orders\n", ev.Pending, ev.Processed)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = cfg.Redacted()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}
