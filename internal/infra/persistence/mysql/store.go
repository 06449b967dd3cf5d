// Package mysql stores section records through GORM. Production deployments
// use the MySQL dialector; any gorm.Dialector is accepted so the same code runs
// against SQLite in tests.
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"vsmecore/pkg/domain"
)

var _ domain.PersistentBackend = (*Store)(nil)

// sectionRecord is the GORM model behind the section_records table.
type sectionRecord struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ReportID   string    `gorm:"primaryKey;size:128;column:report_id"`
	ID         string    `gorm:"column:id;size:36;not null"`
	Fields     string    `gorm:"column:fields;type:json;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;precision:6;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;precision:6;not null"`
}

func (sectionRecord) TableName() string { return "section_records" }

// Store is a GORM-backed domain.PersistentBackend.
type Store struct {
	db    *gorm.DB
	newID func() string
}

// NewStore connects to MySQL using dsn. The DSN must set parseTime=true.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn required")
	}
	return Open(mysql.Open(dsn))
}

// Open connects through dialector and migrates the record table.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&sectionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate section_records: %w", err)
	}
	return &Store{db: db, newID: uuid.NewString}, nil
}

// FetchOne returns the record for (collection, reportID) or domain.ErrNotFound.
func (s *Store) FetchOne(ctx context.Context, collection, reportID string) (domain.Record, error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	return fetch(s.db.WithContext(ctx), collection, reportID)
}

// Upsert writes fields with an ON CONFLICT (ON DUPLICATE KEY for MySQL) clause
// and returns the stored record.
func (s *Store) Upsert(ctx context.Context, collection, reportID string, fields domain.Fields, updatedAt time.Time) (domain.Record, error) {
	if err := domain.ValidateKey(collection, reportID); err != nil {
		return domain.Record{}, err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode fields: %w", err)
	}
	at := updatedAt.UTC()
	row := &sectionRecord{
		Collection: collection,
		ReportID:   reportID,
		ID:         s.newID(),
		Fields:     string(payload),
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	var rec domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "report_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", collection, reportID, err)
		}
		rec, err = fetch(tx, collection, reportID)
		return err
	})
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func fetch(db *gorm.DB, collection, reportID string) (domain.Record, error) {
	var row sectionRecord
	err := db.Where("collection = ? AND report_id = ?", collection, reportID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Record{}, fmt.Errorf("%s/%s: %w", collection, reportID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("select %s/%s: %w", collection, reportID, err)
	}
	rec := domain.Record{
		ID:         row.ID,
		Collection: row.Collection,
		ReportID:   row.ReportID,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Fields), &rec.Fields); err != nil {
		return domain.Record{}, fmt.Errorf("decode %s/%s: %w", collection, reportID, err)
	}
	return rec, nil
}

// DB exposes the GORM handle for integration testing hooks.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
