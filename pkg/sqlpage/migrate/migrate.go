// Package migrate runs ordered .sql files once against the database at
// startup, tracked by a schema_migrations table. This is deliberately not a
// migration framework: no up/down pairs, no rollback, just ordered files run
// once — the scope the spec's Non-goals leave room for.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
	"github.com/bitechdev/ResolveSpec/pkg/logger"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMP
)`

// Run executes every NN_*.sql file under dir in filename order, skipping
// ones already recorded in schema_migrations. A changed file (same name,
// different checksum) is logged as a warning rather than reapplied — running
// migrations twice is a no-op by design, not an error-correction mechanism.
func Run(ctx context.Context, conn dbmanager.Connection, dir string) error {
	db, err := conn.Native()
	if err != nil {
		return fmt.Errorf("migrate: native handle: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	applied, err := appliedChecksums(ctx, db)
	if err != nil {
		return err
	}

	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		checksum := hex.EncodeToString(sum[:])

		if prev, ok := applied[name]; ok {
			if prev != checksum {
				logger.Warn("migration file %s changed after being applied", name)
			}
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate: begin tx for %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: run %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL(conn.Type()), name, checksum, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate: record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: commit %s: %w", name, err)
		}
		logger.Info("applied migration %s", name)
	}
	return nil
}

func insertSQL(dbType dbmanager.DatabaseType) string {
	if dbType == dbmanager.DatabaseTypePostgreSQL {
		return "INSERT INTO schema_migrations (filename, checksum, applied_at) VALUES ($1, $2, $3)"
	}
	return "INSERT INTO schema_migrations (filename, checksum, applied_at) VALUES (?, ?, ?)"
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func appliedChecksums(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, err
		}
		out[name] = checksum
	}
	return out, rows.Err()
}
