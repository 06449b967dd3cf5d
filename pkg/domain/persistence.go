package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned by FetchOne when no record exists for the key.
var ErrNotFound = errors.New("section record not found")

// ErrInvalidKey is returned when a collection name or report id cannot address a record.
var ErrInvalidKey = errors.New("invalid section key")

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Record is a persisted section. Fields use the backend naming convention and
// never contain reserved keys.
type Record struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	ReportID   string    `json:"report_id"`
	Fields     Fields    `json:"fields"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Backend is the persistence collaborator consumed by section stores. A record
// is addressed by the (collection, reportID) pair and at most one exists per pair.
type Backend interface {
	FetchOne(ctx context.Context, collection, reportID string) (Record, error)
	Upsert(ctx context.Context, collection, reportID string, fields Fields, updatedAt time.Time) (Record, error)
}

// PersistentBackend is a Backend holding resources that must be released.
type PersistentBackend interface {
	Backend
	Close() error
}

// ValidateKey checks that the pair can address a record.
func ValidateKey(collection, reportID string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("%w: collection %q", ErrInvalidKey, collection)
	}
	if reportID == "" {
		return fmt.Errorf("%w: empty report id", ErrInvalidKey)
	}
	return nil
}
