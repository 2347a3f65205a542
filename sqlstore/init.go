package sqlstore

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createJobsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*jobModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createFailedJobsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*deadLetterModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createJobLogsTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*logModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// jobs indexes: (queue, status, priority, available_at) serves Reserve's
// eligibility scan, the (status, *) pairs serve the janitor sweeps and
// stats counts.
func createJobsIndexes(ctx context.Context, db bun.IDB) error {
	indexes := []struct {
		name    string
		columns []string
	}{
		{"idx_jobs_queue_status_priority_available", []string{"queue", "status", "priority", "available_at"}},
		{"idx_jobs_status_available", []string{"status", "available_at"}},
		{"idx_jobs_status_reserved", []string{"status", "reserved_at"}},
		{"idx_jobs_status_created", []string{"status", "created_at"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*jobModel)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// failed_jobs indexes serve the operator listing paths: by queue and by
// task, most recent failures first.
func createFailedJobsIndexes(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateIndex().
		Model((*deadLetterModel)(nil)).
		Index("idx_failed_jobs_queue_failed_at").
		Column("queue", "failed_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateIndex().
		Model((*deadLetterModel)(nil)).
		Index("idx_failed_jobs_task_failed_at").
		Column("task", "failed_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// job_logs indexes serve operator queries by job, by level and by queue;
// (job_id, created_at) doubles as the purge scan path.
func createJobLogsIndexes(ctx context.Context, db bun.IDB) error {
	indexes := []struct {
		name    string
		columns []string
	}{
		{"idx_job_logs_job_created", []string{"job_id", "created_at"}},
		{"idx_job_logs_level_created", []string{"level", "created_at"}},
		{"idx_job_logs_queue_created", []string{"queue", "created_at"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*logModel)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []func(context.Context, bun.IDB) error{
		createJobsTable,
		createFailedJobsTable,
		createJobLogsTable,
		createJobsIndexes,
		createFailedJobsIndexes,
		createJobLogsIndexes,
	}
	for _, step := range steps {
		if err := step(ctx, tx); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}
	return tx.Commit()
}

// InitDB creates the jobs, failed_jobs and job_logs tables and their
// indexes, inside a single transaction. InitDB is
// idempotent and may be called repeatedly; it never drops or alters
// existing objects.
//
// The caller is responsible for providing a properly configured *bun.DB
// for one of the three supported dialects (sqlite, postgres, mysql).
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics on failure, for use in
// application bootstrap paths where a broken schema is unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}
