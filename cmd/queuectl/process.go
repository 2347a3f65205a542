package main

import (
	"github.com/spf13/cobra"
)

func newProcessCmd(a *app) *cobra.Command {
	var queues []string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Reserve and execute a single eligible job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			return a.manager.Process(ctx, queues)
		},
	}
	cmd.Flags().StringSliceVar(&queues, "queue", nil, "restrict reservation to these queues (repeatable, default: any queue)")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var queues []string
	var size int
	var maxWallSeconds int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Reserve and execute up to --size eligible jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			return a.manager.ProcessBatch(ctx, size, queues, maxWallSeconds)
		},
	}
	cmd.Flags().StringSliceVar(&queues, "queue", nil, "restrict reservation to these queues (repeatable, default: any queue)")
	cmd.Flags().IntVar(&size, "size", 10, "maximum number of jobs to reserve in one call")
	cmd.Flags().IntVar(&maxWallSeconds, "max-wall-seconds", 0, "abort and release unexecuted jobs after this many seconds (0 disables)")
	return cmd
}
