package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uptrace/bun"

	queue "github.com/relaydb/queue"
	"github.com/relaydb/queue/clock"
	"github.com/relaydb/queue/config"
	"github.com/relaydb/queue/resolver"
	"github.com/relaydb/queue/sqlstore"
)

// app bundles the wiring every subcommand needs: the resolved Config, the
// live Store, and the QueueManager built on top of it. Built once in
// PersistentPreRunE and torn down in PersistentPostRunE, never reused
// across process invocations — no package-level singleton.
type app struct {
	cfg     *config.Config
	store   queue.Store
	db      *bun.DB
	manager *queue.QueueManager
	log     *slog.Logger

	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Operational CLI for the job queue engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to a config file (yaml/json/toml)")

	root.AddCommand(
		newProcessCmd(a),
		newBatchCmd(a),
		newFailedCmd(a),
		newStatsCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	v := viper.New()
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return &config.ErrInvalid{Key: "config", Reason: fmt.Sprintf("reading %s: %v", a.cfgFile, err)}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(os.Stderr, nil))

	switch cfg.Driver {
	case config.DriverMemory, config.DriverSync:
		return &config.ErrInvalid{Key: "queue.driver", Reason: fmt.Sprintf("queuectl requires a SQL driver, got %q", cfg.Driver)}
	}

	driverCfg := sqlstore.DriverConfig{
		Dialect: sqlstore.Dialect(cfg.Driver),
		DSN:     cfg.DSN,
	}
	if driverCfg.Dialect == sqlstore.DialectSQLite {
		driverCfg.MaxOpenConns = 1
	}
	inner, db, err := sqlstore.DriverFactory(ctx, driverCfg)
	if err != nil {
		return fmt.Errorf("queuectl: open store: %w", err)
	}
	store := queue.NewRetryingStore(inner, 3, 100*time.Millisecond, a.log)
	a.store = store
	a.db = db

	exec := queue.NewJobExecutor(store, resolver.NewRegistry(), clock.System{}, a.log)
	a.manager = queue.NewQueueManager(store, exec, clock.System{}, cfg.Enabled)
	return nil
}

func withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 30*time.Second)
}
