package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "modernc.org/sqlite"             // Pure Go SQLite driver ("sqlite")
)

// Dialect selects placeholder style, column types and locking clauses
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// ParseDialect maps a database/sql driver name to its dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, fmt.Errorf("[sqlstore.ParseDialect] unsupported driver %q", driver)
}

// DB is the relational store behind every repository of the portal. Queries are written with '?'
// placeholders and rebound for PostgreSQL.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects with the pgx driver for PostgreSQL or modernc's driver for SQLite
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	driverName := "pgx"
	if dialect == SQLite {
		driverName = "sqlite"
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.Open] open %s: %w", dialect, err)
	}

	switch dialect {
	case Postgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(15 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	case SQLite:
		// SQLite allows one writer; a single connection keeps transactions serialised
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("[sqlstore.Open] %s: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqlstore.Open] ping %s: %w", dialect, err)
	}

	return New(db, dialect), nil
}

// New wraps an existing handle, e.g. one created by sqlmock
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Dialect() Dialect { return d.dialect }

// Ping reports whether the database is reachable
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Accounts() *AccountStore { return &AccountStore{db: d} }

func (d *DB) Sessions() *SessionStore { return &SessionStore{db: d} }

func (d *DB) Audit() *AuditStore { return &AuditStore{db: d} }

func (d *DB) AccessRequests() *AccessRequestStore { return &AccessRequestStore{db: d} }

// rebind rewrites '?' placeholders to $1, $2, ... for PostgreSQL
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, d.rebind(query), args...)
}

// withTx runs fn inside a transaction. The transaction is rolled back on every exit path that does
// not reach Commit.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// forUpdate is the row locking clause, empty for SQLite where the single connection serialises writers
func (d *DB) forUpdate() string {
	if d.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// ts converts a timestamp into the parameter form the dialect stores
func (d *DB) ts(t time.Time) any {
	if d.dialect == SQLite {
		return formatSQLiteTime(t)
	}
	return t.UTC()
}

func (d *DB) nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.ts(*t)
}

// pageLimit turns "no limit" into a bound both dialects accept
func pageLimit(limit int) int {
	if limit <= 0 {
		return 1<<31 - 1
	}
	return limit
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("[sqlstore.Open] create %s: %w", dir, err)
	}
	return nil
}
