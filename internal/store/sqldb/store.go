// Package sqldb implements the relational mirror on SQLite (default) or Postgres.
// Queries are written once with ? placeholders and rebound per dialect.
package sqldb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/store"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store provides SQL-backed persistence for the library mirror.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database for driver and applies the schema.
// For sqlite dsn is a file path; for postgres it is a connection URL.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; readers share the WAL.
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)

		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
			}
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("relational store opened", "driver", driver)

	return &Store{db: db, driver: driver, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the dialect in use.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q returns query in the store's placeholder dialect.
func (s *Store) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebind(query)
}

// likeOp returns the case-insensitive pattern operator. sqlite LIKE already
// ignores ASCII case.
func (s *Store) likeOp() string {
	if s.driver == DriverPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// rebind rewrites ? placeholders as $1..$n. Queries in this package never
// contain a literal question mark inside a string constant.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Counts reports the number of rows in each relation.
func (s *Store) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM collections),
		(SELECT COUNT(*) FROM items),
		(SELECT COUNT(*) FROM item_collections)`).Scan(&c.Collections, &c.Items, &c.Memberships)
	if err != nil {
		return domain.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// nullIfEmpty maps "" to NULL for optional text columns.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
