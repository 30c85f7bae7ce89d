// Package gormstore persists ledger snapshots, config overrides and audit
// events in SQLite via Gorm. It implements the storage collaborator behind
// which a remote blob store could later be swapped.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"laddr/internal/ledger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("gormstore: not found")

type snapshotModel struct {
	Key       string `gorm:"primaryKey;size:128"`
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (snapshotModel) TableName() string { return "ledger_snapshots" }

type overrideModel struct {
	Key       string `gorm:"primaryKey;size:128"`
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (overrideModel) TableName() string { return "config_overrides" }

type eventModel struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"size:32;index"`
	Symbol    string `gorm:"size:32;index"`
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (eventModel) TableName() string { return "events" }

// EventRecord is the read-side shape of an audit event.
type EventRecord struct {
	ID        uint
	Kind      string
	Symbol    string
	Payload   string
	CreatedAt time.Time
}

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gormstore: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&snapshotModel{}, &overrideModel{}, &eventModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot upserts the ledger snapshot under key (one key per symbol).
func (s *Store) SaveSnapshot(ctx context.Context, key string, snap ledger.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	row := snapshotModel{Key: key, Payload: string(payload), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) LoadSnapshot(ctx context.Context, key string) (ledger.Snapshot, error) {
	var row snapshotModel
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return ledger.Snapshot{}, err
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal([]byte(row.Payload), &snap); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("gormstore: corrupt snapshot %s: %w", key, err)
	}
	return snap, nil
}

// LoadOverrides returns a partial config document to merge over the local
// one. A missing key is not an error; it just means no overrides.
func (s *Store) LoadOverrides(ctx context.Context, key string) (map[string]any, error) {
	var row overrideModel
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(row.Payload), &out); err != nil {
		return nil, fmt.Errorf("gormstore: corrupt overrides %s: %w", key, err)
	}
	return out, nil
}

// SaveOverrides exists for operational tooling; the bot itself only reads.
func (s *Store) SaveOverrides(ctx context.Context, key string, overrides map[string]any) error {
	payload, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	row := overrideModel{Key: key, Payload: string(payload), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
}

// AppendEvent records an audit event (fills, gate denials, corrections).
func (s *Store) AppendEvent(ctx context.Context, kind, symbol string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := eventModel{Kind: kind, Symbol: symbol, Payload: string(body), CreatedAt: time.Now()}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []eventModel
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, EventRecord(r))
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
