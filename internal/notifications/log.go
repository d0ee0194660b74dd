/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notifications

import (
	"context"

	"github.com/rs/zerolog"
)

// Log is a Notifier that only logs announcements. Used in test mode and
// when no bot credentials are configured.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log-only notifier.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notifier").Logger()}
}

func (l *Log) Send(_ context.Context, destinationID, text string) error {
	l.logger.Info().Str("destination_id", destinationID).Str("text", text).Msg("announcement")
	return nil
}

func (l *Log) SendByName(_ context.Context, name, text string) error {
	l.logger.Info().Str("destination", name).Str("text", text).Msg("announcement")
	return nil
}
