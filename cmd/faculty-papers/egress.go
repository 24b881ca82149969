// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

var egressCmd = &cobra.Command{
	Use:   "egress",
	Short: "Check that the configured egress supplier can lease routes",
	Long: `Egress leases the requested number of routes from the configured supplier,
prints each one, and releases them. Use it to verify a proxy list before a
long harvest.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("egress-mode") {
			mode, _ := f.GetString("egress-mode")
			cfg.Egress.Mode = types.EgressMode(mode)
		}
		if f.Changed("proxy") {
			cfg.Egress.Proxies, _ = f.GetStringSlice("proxy")
		}
		if f.Changed("proxy-list-url") {
			cfg.Egress.ListURL, _ = f.GetString("proxy-list-url")
		}

		supplier, err := newSupplier(cfg.Egress)
		if err != nil {
			return err
		}

		count, _ := f.GetInt("count")
		for i := 0; i < count; i++ {
			r, err := supplier.Acquire(cmd.Context(), cfg.Egress.AcquireTimeout, cfg.Egress.AcquireWait)
			if err != nil {
				return fmt.Errorf("acquiring route %d: %w", i+1, err)
			}
			defer supplier.Release(r)
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, r)
		}
		return nil
	},
}

func init() {
	egressCmd.Flags().Int("count", 1, "number of routes to lease")
	egressCmd.Flags().String("egress-mode", "", "egress supplier: direct, list, fetch")
	egressCmd.Flags().StringSlice("proxy", nil, "proxy address for list mode (repeatable)")
	egressCmd.Flags().String("proxy-list-url", "", "proxy list endpoint for fetch mode")

	rootCmd.AddCommand(egressCmd)
}
