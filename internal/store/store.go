package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fennecml/fennec/internal/runtime"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a SQLite-backed runtime.Sink recording effect firings.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at the given path
// (":memory:" works for tests). Applies pragmas and schema
// automatically; idempotent.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record implements runtime.Sink.
func (j *Journal) Record(rec runtime.Record) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO effect_firings (seq, effect, context, program, callback, args, ir_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.Effect, rec.Context, rec.Program, rec.Callback, string(args), rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to record effect firing: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Effect  string
	Context string
}

// List returns recorded firings in firing order, optionally filtered.
func (j *Journal) List(f Filter) ([]runtime.Record, error) {
	query := `SELECT seq, effect, context, program, callback, args, ir_version
	          FROM effect_firings WHERE 1=1`
	var binds []any
	if f.Effect != "" {
		query += " AND effect = ?"
		binds = append(binds, f.Effect)
	}
	if f.Context != "" {
		query += " AND context = ?"
		binds = append(binds, f.Context)
	}
	query += " ORDER BY id"

	rows, err := j.db.Query(query, binds...)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	defer rows.Close()

	var out []runtime.Record
	for rows.Next() {
		var rec runtime.Record
		var args string
		if err := rows.Scan(&rec.Seq, &rec.Effect, &rec.Context, &rec.Program, &rec.Callback, &args, &rec.IRVersion); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
			return nil, fmt.Errorf("failed to decode args: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
