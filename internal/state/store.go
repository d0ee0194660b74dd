/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state persists the playback position of the broadcast engine so an
// interrupted session can resume after a restart.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/sessioncast/internal/config"
	"github.com/friendsincode/sessioncast/internal/db"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrCorruptStatus indicates the persisted record could not be decoded.
var ErrCorruptStatus = errors.New("corrupt playback status")

// Store is the durable playback status record.
type Store interface {
	// Load returns the persisted status, or the idle status when nothing has
	// been written yet.
	Load(ctx context.Context) (models.PlaybackStatus, error)
	// Save durably replaces the persisted status.
	Save(ctx context.Context, status models.PlaybackStatus) error
	Close() error
}

// Open builds the store selected by cfg.StatusBackend.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "state").Str("backend", string(cfg.StatusBackend)).Logger()

	switch cfg.StatusBackend {
	case config.StatusFile, "":
		return NewFileStore(cfg.StatusFile, logger), nil
	case config.StatusSQL:
		database, err := db.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(database); err != nil {
			_ = db.Close(database)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return NewSQLStore(database, logger), nil
	case config.StatusRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, cfg.RedisKey, logger), nil
	default:
		return nil, fmt.Errorf("unsupported status backend %q", cfg.StatusBackend)
	}
}

// normalize fills the fixed row id and keeps the idle label consistent.
func normalize(status models.PlaybackStatus) models.PlaybackStatus {
	status.ID = models.PlaybackStatusRowID
	if status.SessionID == models.IdleSessionID && status.SessionName == "" {
		status.SessionName = models.IdleSessionName
	}
	return status
}
