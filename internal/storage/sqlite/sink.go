// Package sqlite persists processing runs into a SQLite database.
//
// Layout:
//   - runs: one line per process invocation, keyed by the run uuid.
//   - source_files: one line per input file, keyed by its content
//     fingerprint. Reprocessing the same content replaces the line and points
//     it at the latest run.
//   - efd_rows: the exported item rows of a run, with the output columns
//     stored as a JSON object.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		files      INTEGER NOT NULL,
		"rows"     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS source_files (
		fingerprint TEXT PRIMARY KEY,
		path        TEXT NOT NULL,
		variant     TEXT NOT NULL,
		encoding    TEXT NOT NULL,
		dt_ini      TEXT,
		dt_fin      TEXT,
		run_id      TEXT NOT NULL REFERENCES runs(id)
	)`,
	`CREATE TABLE IF NOT EXISTS efd_rows (
		run_id TEXT NOT NULL REFERENCES runs(id),
		linha  INTEGER NOT NULL,
		file   TEXT NOT NULL,
		line   INTEGER,
		reg    TEXT,
		data   TEXT NOT NULL,
		PRIMARY KEY (run_id, linha)
	)`,
}

// Run identifies one process invocation.
type Run struct {
	ID        string
	StartedAt time.Time
}

// File is a successfully processed input file.
type File struct {
	Fingerprint string
	Path        string
	Variant     types.Variant
	Encoding    string
	DTIni       string
	DTFin       string
}

// Sink writes runs into a SQLite database.
type Sink struct {
	db *sql.DB
}

// Open opens the database at dsn, checks the connection and creates the
// schema when missing.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Sink{db: db}, nil
}

// Close closes the database.
func (s *Sink) Close() error { return s.db.Close() }

// SaveRun stores the run, its files and its rows in a single transaction.
// Rows are keyed by their "Linhas" number, which must be unique in the run.
func (s *Sink) SaveRun(ctx context.Context, run Run, files []File, rows []types.Row) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, files, "rows") VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), len(files), len(rows),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO source_files (fingerprint, path, variant, encoding, dt_ini, dt_fin, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fileStmt.Close()
	for _, f := range files {
		if _, err = fileStmt.ExecContext(ctx,
			f.Fingerprint, f.Path, f.Variant.String(), f.Encoding, f.DTIni, f.DTFin, run.ID,
		); err != nil {
			return fmt.Errorf("insert source file %s: %w", f.Path, err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO efd_rows (run_id, linha, file, line, reg, data) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	for _, row := range rows {
		linha, convErr := strconv.Atoi(row[catalog.ColLinhas])
		if convErr != nil {
			return fmt.Errorf("row without a valid %q: %w", catalog.ColLinhas, convErr)
		}
		data, jsonErr := json.Marshal(exported(row))
		if jsonErr != nil {
			return jsonErr
		}
		if _, err = rowStmt.ExecContext(ctx,
			run.ID, linha, row[catalog.ColArquivo], nullInt(row[catalog.ColLinhaEFD]), row["REG"], string(data),
		); err != nil {
			return fmt.Errorf("insert row %d: %w", linha, err)
		}
	}

	return tx.Commit()
}

// exported keeps the output columns of row.
func exported(row types.Row) map[string]string {
	out := make(map[string]string, len(catalog.Columns))
	for _, col := range catalog.Columns {
		out[col] = row[col]
	}
	return out
}

func nullInt(s string) sql.NullInt64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
