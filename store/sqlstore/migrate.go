package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Migrate applies every embedded migration that has not been recorded yet and returns the names of
// the migrations it applied
func (d *DB) Migrate(ctx context.Context) ([]string, error) {
	ts := d.timestampType()
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at %s NOT NULL)`, migrationsTable, ts)
	if _, err := d.db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("[DB.Migrate] create %s: %w", migrationsTable, err)
	}

	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("[DB.Migrate] list migrations: %w", err)
	}
	sort.Strings(names)

	var ran []string
	for _, path := range names {
		name := strings.TrimPrefix(path, "migrations/")
		if applied[name] {
			continue
		}

		body, err := migrationFiles.ReadFile(path)
		if err != nil {
			return ran, fmt.Errorf("[DB.Migrate] read %s: %w", name, err)
		}
		script := strings.ReplaceAll(string(body), "{{timestamp}}", ts)

		err = d.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range splitStatements(script) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := d.exec(ctx, tx, `INSERT INTO `+migrationsTable+` (name, applied_at) VALUES (?, ?)`, name, d.ts(time.Now()))
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("[DB.Migrate] apply %s: %w", name, err)
		}

		log.Info().Str("migration", name).Str("dialect", d.dialect.String()).Msg("applied migration")
		ran = append(ran, name)
	}
	return ran, nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("[DB.Migrate] read %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (d *DB) timestampType() string {
	if d.dialect == SQLite {
		return "TIMESTAMP"
	}
	return "TIMESTAMPTZ"
}

func splitStatements(script string) []string {
	var stmts []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
