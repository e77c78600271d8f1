package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Ask the gateway about pending orders whose callback never arrived",
		Long: `Query M-Pesa for pending orders older than --older-than and settle the ones
the gateway reports a final result for.`,
		Example: `  api sweep
  api sweep --older-than 30m --limit 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.sweep.Run(cmd.Context(), olderThan, limit)
			if err != nil {
				return err
			}

			fmt.Printf("checked=%d settled=%d pending=%d unchanged=%d failed=%d\n",
				report.Checked, report.Settled, report.Pending, report.Unchanged, report.Failed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "only consider orders created before now minus this duration")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum orders to query")

	return cmd
}
