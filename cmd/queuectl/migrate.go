package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaydb/queue/sqlstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or re-assert) the jobs/failed_jobs/job_logs schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if err := sqlstore.InitDB(ctx, a.db); err != nil {
				return fmt.Errorf("queuectl: migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
