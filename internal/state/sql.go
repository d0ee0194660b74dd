/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SQLStore keeps the status as a single row managed by gorm.
type SQLStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewSQLStore creates a database-backed status store. The playback_status
// table must already be migrated.
func NewSQLStore(db *gorm.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

// Load returns the status row, creating the idle row on first use.
func (s *SQLStore) Load(ctx context.Context) (models.PlaybackStatus, error) {
	var status models.PlaybackStatus
	err := s.db.WithContext(ctx).Where("id = ?", models.PlaybackStatusRowID).First(&status).Error
	if err == nil {
		return normalize(status), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PlaybackStatus{}, fmt.Errorf("query playback status: %w", err)
	}

	status = models.IdleStatus()
	status.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(&status).Error; err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("create playback status: %w", err)
	}
	s.logger.Info().Msg("created idle playback status row")
	return status, nil
}

// Save upserts the status row.
func (s *SQLStore) Save(ctx context.Context, status models.PlaybackStatus) error {
	status = normalize(status)
	status.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&status).Error; err != nil {
		return fmt.Errorf("save playback status: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
