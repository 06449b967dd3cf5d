// Package postgres stores section records in PostgreSQL through the pgx
// database/sql driver. Field payloads are kept as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"vsmecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentBackend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/vsmecore?sslmode=disable"
)

const (
	ddl = `CREATE TABLE IF NOT EXISTS section_records (
	collection TEXT NOT NULL,
	report_id TEXT NOT NULL,
	id TEXT NOT NULL,
	fields JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, report_id)
)`
	selectRecord = `SELECT id, fields, created_at, updated_at FROM section_records WHERE collection = $1 AND report_id = $2`
	upsertRecord = `INSERT INTO section_records(collection, report_id, id, fields, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT(collection, report_id) DO UPDATE SET fields=EXCLUDED.fields, updated_at=EXCLUDED.updated_at`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed domain.PersistentBackend.
type Store struct {
	db    *sql.DB
	newID func() string
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// pings the server and ensures the record table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure section_records table: %w", err)
	}
	return &Store{db: db, newID: uuid.NewString}, nil
}

// FetchOne returns the record for (collection, reportID) or domain.ErrNotFound.
func (s *Store) FetchOne(ctx context.Context, collection, reportID string) (domain.Record, error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	rows, err := s.db.QueryContext(ctx, selectRecord, collection, reportID)
	if err != nil {
		return domain.Record{}, fmt.Errorf("select %s/%s: %w", collection, reportID, err)
	}
	return scanOne(rows, collection, reportID)
}

// Upsert writes fields inside a transaction and returns the stored record.
func (s *Store) Upsert(ctx context.Context, collection, reportID string, fields domain.Fields, updatedAt time.Time) (domain.Record, error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode fields: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Record{}, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	at := updatedAt.UTC()
	if _, err := tx.ExecContext(ctx, upsertRecord, collection, reportID, s.newID(), string(payload), at, at); err != nil {
		return domain.Record{}, fmt.Errorf("upsert %s/%s: %w", collection, reportID, err)
	}
	rows, err := tx.QueryContext(ctx, selectRecord, collection, reportID)
	if err != nil {
		return domain.Record{}, fmt.Errorf("select %s/%s: %w", collection, reportID, err)
	}
	rec, err := scanOne(rows, collection, reportID)
	if err != nil {
		return domain.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Record{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return rec, nil
}

func scanOne(rows *sql.Rows, collection, reportID string) (domain.Record, error) {
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Record{}, fmt.Errorf("iterate %s/%s: %w", collection, reportID, err)
		}
		return domain.Record{}, fmt.Errorf("%s/%s: %w", collection, reportID, domain.ErrNotFound)
	}
	rec := domain.Record{Collection: collection, ReportID: reportID}
	var payload []byte
	if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.Record{}, fmt.Errorf("scan %s/%s: %w", collection, reportID, err)
	}
	if len(payload) == 0 {
		return domain.Record{}, errors.New("empty fields payload")
	}
	if err := json.Unmarshal(payload, &rec.Fields); err != nil {
		return domain.Record{}, fmt.Errorf("decode %s/%s: %w", collection, reportID, err)
	}
	return rec, rows.Err()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
