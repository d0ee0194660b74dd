/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// FileStore keeps the status as a small JSON document on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed status store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the status file. A missing file yields the idle status.
func (s *FileStore) Load(_ context.Context) (models.PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info().Str("path", s.path).Msg("no status file, starting idle")
		return models.IdleStatus(), nil
	}
	if err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("read status file: %w", err)
	}

	var status models.PlaybackStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return models.PlaybackStatus{}, fmt.Errorf("%w: %s: %v", ErrCorruptStatus, s.path, err)
	}
	return normalize(status), nil
}

// Save atomically replaces the status file, fsyncing before the rename.
func (s *FileStore) Save(_ context.Context, status models.PlaybackStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(normalize(status))
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending status file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending status file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }
