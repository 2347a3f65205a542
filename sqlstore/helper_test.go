package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/relaydb/queue/sqlstore"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // important for sqlite
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	ctx := context.Background()
	if err := sqlstore.InitDB(ctx, db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	return sqlstore.NewSQLStore(newTestDB(t), sqlstore.DialectSQLite)
}
