// Package ledger keeps a SQLite history of attachment download attempts.
// The directory cache decides what is downloaded; the ledger only records
// what happened so runs can be audited afterwards.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Download statuses.
const (
	StatusComplete      = "complete"
	StatusNoAttachments = "no_attachments"
	StatusFailed        = "failed"
)

// Download is one attempt to download and extract a ticket's attachments.
type Download struct {
	ID          uint      `gorm:"primaryKey"`
	TicketKey   string    `gorm:"index;size:64"`
	Status      string    `gorm:"index;size:16"`
	Stage       string    `gorm:"size:16"` // download, extraction; set on failure
	Attachments int
	Bytes       int64
	LastError   string    `gorm:"type:text"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  time.Time
}

// Duration returns how long the attempt took.
func (d Download) Duration() time.Duration {
	return d.FinishedAt.Sub(d.StartedAt)
}

// Ledger stores Download records.
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Download{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger %s: %w", path, err)
	}
	return &Ledger{db: db}, nil
}

// RecordDownload stores one download attempt.
func (l *Ledger) RecordDownload(ctx context.Context, entry Download) error {
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record download of %s: %w", entry.TicketKey, err)
	}
	return nil
}

// ForTicket returns the attempts for one ticket, oldest first.
func (l *Ledger) ForTicket(ctx context.Context, key string) ([]Download, error) {
	var entries []Download
	err := l.db.WithContext(ctx).
		Where("ticket_key = ?", key).
		Order("started_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for %s: %w", key, err)
	}
	return entries, nil
}

// Recent returns up to limit attempts, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Download, error) {
	var entries []Download
	err := l.db.WithContext(ctx).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
