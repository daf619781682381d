package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atsushimemet/fridge-predictor/internal/table"
)

// ImportTable replaces every stored bucket with the contents of raw in a
// single transaction. source is recorded in the import history. Labels are
// parsed first so a malformed table never reaches the database.
func (db *DB) ImportTable(ctx context.Context, source string, raw table.Raw) (int, error) {
	if _, err := table.Parse(raw); err != nil {
		return 0, fmt.Errorf("import table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM category_buckets"); err != nil {
		return 0, fmt.Errorf("clear buckets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO category_buckets (category, label, probability, updated_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	rows := 0
	for category, labels := range raw {
		for label, p := range labels {
			if _, err := stmt.ExecContext(ctx, category, label, p, now); err != nil {
				return 0, fmt.Errorf("insert %s/%s: %w", category, label, err)
			}
			rows++
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO imports (source, categories, row_count, imported_at)
		VALUES (?, ?, ?, ?)
	`, source, len(raw), rows, now); err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return rows, nil
}

// LoadRaw reads every stored bucket.
func (db *DB) LoadRaw(ctx context.Context) (table.Raw, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT category, label, probability FROM category_buckets ORDER BY category, label
	`)
	if err != nil {
		return nil, fmt.Errorf("load buckets: %w", err)
	}
	defer rows.Close()

	raw := make(table.Raw)
	for rows.Next() {
		var category, label string
		var p float64
		if err := rows.Scan(&category, &label, &p); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if raw[category] == nil {
			raw[category] = make(map[string]float64)
		}
		raw[category][label] = p
	}
	return raw, rows.Err()
}

// Load implements table.Source. An empty database yields table.ErrNotFound
// so the loader reports it the same way as a missing JSON file.
func (db *DB) Load(ctx context.Context) (table.Table, error) {
	raw, err := db.LoadRaw(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no buckets in %s", table.ErrNotFound, db.Path)
	}
	return table.Parse(raw)
}

// CountCategories returns the number of distinct categories stored.
func (db *DB) CountCategories(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT category) FROM category_buckets").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// Import is one entry of the import history.
type Import struct {
	ID         int64
	Source     string
	Categories int
	Rows       int
	ImportedAt int64
}

// LastImport returns the most recent import, or nil if none.
func (db *DB) LastImport(ctx context.Context) (*Import, error) {
	var im Import
	err := db.QueryRowContext(ctx, `
		SELECT id, source, categories, row_count, imported_at
		FROM imports ORDER BY imported_at DESC, id DESC LIMIT 1
	`).Scan(&im.ID, &im.Source, &im.Categories, &im.Rows, &im.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last import: %w", err)
	}
	return &im, nil
}
