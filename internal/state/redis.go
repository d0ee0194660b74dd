/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"context"
	"fmt"
	"strconv"

	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	fieldSessionName   = "session_name"
	fieldSessionNumber = "session_number"
	fieldPlayback      = "playback_number"
)

// RedisStore keeps the status in a Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed status store under key.
func NewRedisStore(client *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, key: key, logger: logger}
}

// Load reads the hash. A missing key yields the idle status.
func (s *RedisStore) Load(ctx context.Context) (models.PlaybackStatus, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("read playback status: %w", err)
	}
	if len(fields) == 0 {
		s.logger.Info().Str("key", s.key).Msg("no playback status in redis, starting idle")
		return models.IdleStatus(), nil
	}

	sessionID, err := strconv.Atoi(fields[fieldSessionNumber])
	if err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("%w: %s=%q", ErrCorruptStatus, fieldSessionNumber, fields[fieldSessionNumber])
	}
	position, err := strconv.Atoi(fields[fieldPlayback])
	if err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("%w: %s=%q", ErrCorruptStatus, fieldPlayback, fields[fieldPlayback])
	}

	return normalize(models.PlaybackStatus{
		SessionName: fields[fieldSessionName],
		SessionID:   sessionID,
		Position:    position,
	}), nil
}

// Save writes all three fields in one HSET.
func (s *RedisStore) Save(ctx context.Context, status models.PlaybackStatus) error {
	status = normalize(status)
	err := s.client.HSet(ctx, s.key,
		fieldSessionName, status.SessionName,
		fieldSessionNumber, status.SessionID,
		fieldPlayback, status.Position,
	).Err()
	if err != nil {
		return fmt.Errorf("save playback status: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
