package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	queue "github.com/relaydb/queue"
)

// Dialect names one of the three SQL backends supported by the engine.
// All three provide equivalent semantics; differences are confined to
// column types and the reservation primitive.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "pgsql"
	DialectMySQL    Dialect = "mysql"
)

// DriverConfig is everything DriverFactory needs to open a connection,
// with no behavior attached. Keeping it a plain data type separates
// "which database" from the code that turns it into a live connection.
type DriverConfig struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
}

func (c DriverConfig) sqlDriverName() (string, error) {
	switch c.Dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	case DialectMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", c.Dialect)
	}
}

func (c DriverConfig) bunDialect() (schema.Dialect, error) {
	switch c.Dialect {
	case DialectSQLite:
		return sqlitedialect.New(), nil
	case DialectPostgres:
		return pgdialect.New(), nil
	case DialectMySQL:
		return mysqldialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", c.Dialect)
	}
}

// Open connects, wraps the connection as a *bun.DB for the configured
// dialect, and applies MaxOpenConns (sqlite callers should set this to 1;
// its single-writer model makes more connections a liability).
func Open(c DriverConfig) (*bun.DB, error) {
	driverName, err := c.sqlDriverName()
	if err != nil {
		return nil, err
	}
	dialect, err := c.bunDialect()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driverName, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", c.Dialect, err)
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	return bun.NewDB(sqlDB, dialect), nil
}

// DriverFactory takes a DriverConfig, opens the database, runs InitDB,
// and returns a ready-to-use queue.Store. The *bun.DB is returned
// alongside so the caller can manage its lifecycle.
func DriverFactory(ctx context.Context, c DriverConfig) (queue.Store, *bun.DB, error) {
	db, err := Open(c)
	if err != nil {
		return nil, nil, err
	}
	if err := InitDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlstore: init schema: %w", err)
	}
	return NewSQLStore(db, c.Dialect), db, nil
}
