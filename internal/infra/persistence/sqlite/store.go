// Package sqlite stores section records in an embedded SQLite database using
// the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"vsmecore/pkg/domain"
)

var _ domain.PersistentBackend = (*Store)(nil)

const defaultPath = "vsmecore.db"

const schema = `CREATE TABLE IF NOT EXISTS section_records (
	collection TEXT NOT NULL,
	report_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	fields     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, report_id)
)`

const (
	selectRecord = `SELECT id, fields, created_at, updated_at FROM section_records WHERE collection = ? AND report_id = ?`
	upsertRecord = `INSERT INTO section_records(collection, report_id, id, fields, created_at, updated_at) VALUES(?,?,?,?,?,?)
ON CONFLICT(collection, report_id) DO UPDATE SET fields=excluded.fields, updated_at=excluded.updated_at`
)

// Store is a SQLite-backed domain.PersistentBackend.
type Store struct {
	db    *sql.DB
	path  string
	newID func() string
}

// NewStore opens (creating if needed) the database file at path and ensures
// the record table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite admits a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create section_records table: %w", err)
	}
	return &Store{db: db, path: path, newID: uuid.NewString}, nil
}

// FetchOne returns the record for (collection, reportID) or domain.ErrNotFound.
func (s *Store) FetchOne(ctx context.Context, collection, reportID string) (domain.Record, error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	return fetch(ctx, s.db, collection, reportID)
}

// Upsert writes fields atomically and returns the stored record.
func (s *Store) Upsert(ctx context.Context, collection, reportID string, fields domain.Fields, updatedAt time.Time) (rec domain.Record, retErr error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode fields: %w", err)
	}
	ts := updatedAt.UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, upsertRecord, collection, reportID, s.newID(), string(payload), ts, ts); err != nil {
		return domain.Record{}, fmt.Errorf("upsert %s/%s: %w", collection, reportID, err)
	}
	rec, err = fetch(ctx, tx, collection, reportID)
	if err != nil {
		return domain.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func fetch(ctx context.Context, q queryer, collection, reportID string) (domain.Record, error) {
	var (
		id, payload, created, updated string
	)
	err := q.QueryRowContext(ctx, selectRecord, collection, reportID).Scan(&id, &payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("%s/%s: %w", collection, reportID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("select %s/%s: %w", collection, reportID, err)
	}
	rec := domain.Record{ID: id, Collection: collection, ReportID: reportID}
	if err := json.Unmarshal([]byte(payload), &rec.Fields); err != nil {
		return domain.Record{}, fmt.Errorf("decode %s/%s: %w", collection, reportID, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return domain.Record{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
