package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFailedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "Inspect and manage dead-letter jobs",
	}
	cmd.AddCommand(
		newFailedListCmd(a),
		newFailedRetryCmd(a),
		newFailedPurgeCmd(a),
	)
	return cmd
}

func newFailedListCmd(a *app) *cobra.Command {
	var queueName string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-letter rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			rows, err := a.manager.GetFailedJobs(ctx, queueName, limit, offset)
			if err != nil {
				return err
			}
			for _, row := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tattempts=%d\tfailed_at=%s\n",
					row.Id, row.Queue, row.Task, row.TotalAttempts, row.FailedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "restrict to this queue (default: all queues)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newFailedRetryCmd(a *app) *cobra.Command {
	var queueName string
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Re-enqueue a dead-letter row, or every row matching --queue with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if all {
				n, err := a.manager.RetryAllFailedJobs(ctx, queueName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "retried %d jobs\n", n)
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("queuectl: retry requires a job id, or --all with --queue")
			}
			newId, err := a.manager.RetryFailedJob(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "retried as %s\n", newId)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "restrict --all to this queue")
	cmd.Flags().BoolVar(&all, "all", false, "retry every dead-letter row matching --queue")
	return cmd
}

func newFailedPurgeCmd(a *app) *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dead-letter rows matching --queue (default: all queues)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			n, err := a.manager.PurgeFailedJobs(ctx, queueName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "restrict to this queue (default: all queues)")
	return cmd
}
