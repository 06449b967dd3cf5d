// Package memory provides a process-local section record backend used by tests
// and the memory storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vsmecore/pkg/domain"
)

var _ domain.PersistentBackend = (*Store)(nil)

type recordKey struct {
	collection string
	reportID   string
}

// Store keeps one record per (collection, report) pair in a map.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]domain.Record
	newID   func() string
}

// NewStore constructs an empty in-memory backend.
func NewStore() *Store {
	return &Store{
		records: make(map[recordKey]domain.Record),
		newID:   uuid.NewString,
	}
}

// FetchOne returns a copy of the record or domain.ErrNotFound.
func (s *Store) FetchOne(ctx context.Context, collection, reportID string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	s.mu.RLock()
	rec, ok := s.records[recordKey{collection, reportID}]
	s.mu.RUnlock()
	if !ok {
		return domain.Record{}, fmt.Errorf("%s/%s: %w", collection, reportID, domain.ErrNotFound)
	}
	rec.Fields = rec.Fields.Clone()
	return rec, nil
}

// Upsert creates the record on first write and replaces its fields afterwards.
// The id and creation time survive updates.
func (s *Store) Upsert(ctx context.Context, collection, reportID string, fields domain.Fields, updatedAt time.Time) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	key := recordKey{collection, reportID}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		rec = domain.Record{ID: s.newID(), Collection: collection, ReportID: reportID, CreatedAt: updatedAt}
	}
	rec.Fields = fields.Clone()
	rec.UpdatedAt = updatedAt
	s.records[key] = rec
	out := rec
	out.Fields = rec.Fields.Clone()
	return out, nil
}

// Records returns every stored record for a report ordered by collection.
func (s *Store) Records(reportID string) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for k, rec := range s.records {
		if k.reportID != reportID {
			continue
		}
		rec.Fields = rec.Fields.Clone()
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
