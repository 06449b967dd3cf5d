// Package storage selects the section record backend and the submission
// archive store from configuration.
package storage

import (
	"context"
	"fmt"

	"vsmecore/internal/config"
	"vsmecore/internal/infra/blob/core"
	blobfs "vsmecore/internal/infra/blob/fs"
	blobmemory "vsmecore/internal/infra/blob/memory"
	blobs3 "vsmecore/internal/infra/blob/s3"
	"vsmecore/internal/infra/persistence/memory"
	"vsmecore/internal/infra/persistence/mysql"
	"vsmecore/internal/infra/persistence/postgres"
	"vsmecore/internal/infra/persistence/sqlite"
	"vsmecore/pkg/domain"
)

// OpenBackend opens the record backend named by cfg.Driver.
//
//	memory   process-local map (tests / ephemeral)
//	sqlite   embedded file at cfg.SQLitePath (default)
//	postgres server at cfg.PostgresDSN
//	mysql    server at cfg.MySQLDSN, through GORM
func OpenBackend(ctx context.Context, cfg config.Storage) (domain.PersistentBackend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverSQLite, "":
		return backend(sqlite.NewStore(cfg.SQLitePath))
	case config.DriverPostgres:
		return backend(postgres.NewStore(ctx, cfg.PostgresDSN))
	case config.DriverMySQL:
		return backend(mysql.NewStore(cfg.MySQLDSN))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// backend keeps a failed constructor from leaking a typed nil interface.
func backend[T domain.PersistentBackend](store T, err error) (domain.PersistentBackend, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

func archive[T core.Store](store T, err error) (core.Store, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenArchive opens the submission archive named by cfg.Driver.
func OpenArchive(ctx context.Context, cfg config.Archive) (core.Store, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverFilesystem, "":
		return archive(blobfs.New(cfg.FSRoot))
	case core.DriverS3:
		return archive(blobs3.New(ctx, blobs3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		}))
	case core.DriverMemory:
		return blobmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
