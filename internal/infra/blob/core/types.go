// Package core defines the object store abstraction used to archive report
// submissions.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

var (
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blobstore: object already exists")
	// ErrNotFound is returned when no object is stored under a key.
	ErrNotFound = errors.New("blobstore: object not found")
	// ErrInvalidKey is returned for empty or escaping keys.
	ErrInvalidKey = errors.New("blobstore: invalid key")
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // User metadata (small, flat key-value)
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key" yaml:"key"`
	Size         int64             `json:"size_bytes" yaml:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified" yaml:"last_modified"`
}

// Store is a create-only object store. Archived submissions are never
// overwritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// CloneMetadata copies user metadata so stores never alias caller maps.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
