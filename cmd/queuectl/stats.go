package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			st, err := a.manager.Stats(ctx, queueName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending_now=%d pending_later=%d reserved=%d dead_letter=%d\n",
				st.PendingNow, st.PendingLater, st.Reserved, st.DeadLetter)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "restrict to this queue (default: all queues)")
	return cmd
}
