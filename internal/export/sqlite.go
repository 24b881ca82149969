// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// SQLite writes rows into a papers table, replacing the table's contents.
type SQLite struct {
	Path string
}

// Write implements Exporter.
func (s *SQLite) Write(ctx context.Context, rows []types.OutputRow) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	db, err := sql.Open("sqlite3", s.Path+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DROP TABLE IF EXISTS papers`,
		`CREATE TABLE papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT NOT NULL,
			abstract TEXT NOT NULL,
			title TEXT NOT NULL,
			date TEXT,
			fallback_date INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX idx_papers_subject ON papers(subject)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (subject, abstract, title, date, fallback_date) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer ins.Close()

	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.Subject, r.Abstract, r.Title, r.Date.String(), r.Date.Fallback); err != nil {
			return fmt.Errorf("inserting %q: %w", r.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
