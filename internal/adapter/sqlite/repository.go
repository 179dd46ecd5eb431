// Package sqlite persists the zone collection in a SQLite database, one row
// per zone with the zone stored as a JSON payload.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS zones (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Repository stores zones in SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases intact.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Load returns all stored zones ordered by id.
func (r *Repository) Load(ctx context.Context) ([]domain.Zone, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	var out []domain.Zone
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		var z domain.Zone
		if err := json.Unmarshal([]byte(payload), &z); err != nil {
			return nil, fmt.Errorf("decode zone: %w", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w", err)
	}
	return out, nil
}

// Save replaces the table contents with zones in one transaction.
func (r *Repository) Save(ctx context.Context, zones []domain.Zone) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM zones`); err != nil {
		return fmt.Errorf("clear zones: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO zones(id, name, payload, updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, z := range zones {
		payload, merr := json.Marshal(z)
		if merr != nil {
			err = fmt.Errorf("encode zone %d: %w", z.ID, merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, z.ID, z.Name, string(payload), z.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert zone %d: %w", z.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}
