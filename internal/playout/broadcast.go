/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs a session broadcast: announce, persist, play, repeat.
package playout

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/friendsincode/sessioncast/internal/notifications"
	"github.com/friendsincode/sessioncast/internal/player"
	"github.com/friendsincode/sessioncast/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Catalog resolves a session into its playable items.
type Catalog interface {
	ListItems(ctx context.Context, sessionID int) ([]models.SessionItem, error)
}

// StatusWriter persists the playback position.
type StatusWriter interface {
	Save(ctx context.Context, status models.PlaybackStatus) error
}

// exitReporter is implemented by players that expose the exit error of the
// last item.
type exitReporter interface {
	Err() error
}

// Config tunes the broadcaster.
type Config struct {
	BroadcastChannelID string
	TestMode           bool
	FillerMedia        string // Empty disables the filler
	PollInterval       time.Duration
	SettleDelay        time.Duration
}

// Broadcaster plays sessions one item at a time and records progress in the
// status store before every item. It is not safe for concurrent RunSession
// calls; the scheduler guarantees a single caller.
type Broadcaster struct {
	catalog  Catalog
	notifier notifications.Notifier
	player   player.Player
	store    StatusWriter
	bus      *events.Bus
	cfg      Config
	logger   zerolog.Logger
}

// NewBroadcaster creates a broadcaster. bus may be nil.
func NewBroadcaster(catalog Catalog, notifier notifications.Notifier, p player.Player, store StatusWriter, bus *events.Bus, cfg Config, logger zerolog.Logger) *Broadcaster {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Broadcaster{
		catalog:  catalog,
		notifier: notifier,
		player:   p,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With().Str("component", "playout").Logger(),
	}
}

// RunSession broadcasts a session starting at resume, the play order of the
// first item to play. resume 0 starts fresh and sends the session
// announcement. On return the store is idle, except when ctx is cancelled
// mid-session: the store then keeps the position of the interrupted item.
func (b *Broadcaster) RunSession(ctx context.Context, sessionID int, sessionName string, resume int) error {
	runID := uuid.NewString()
	logger := b.logger.With().
		Str("run_id", runID).
		Int("session", sessionID).
		Str("session_name", sessionName).
		Logger()

	ctx, span := telemetry.StartSessionSpan(ctx, "playout.run_session", sessionID, sessionName, resume)
	defer span.End()

	started := time.Now()
	mode := "fresh"
	if resume > 0 {
		mode = "resume"
	}
	logger.Info().Int("resume", resume).Str("mode", mode).Msg("starting session")

	items, err := b.catalog.ListItems(ctx, sessionID)
	if err != nil && ctx.Err() != nil {
		logger.Info().Int("resume", resume).Msg("session cancelled before start, keeping position")
		return ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("list items for session %d: %w", sessionID, err)
		telemetry.RecordError(span, err)
		b.saveIdle(ctx, logger)
		return err
	}
	models.SortByPlayOrder(items)

	telemetry.SessionsStartedTotal.WithLabelValues(mode).Inc()
	telemetry.CurrentSession.Set(float64(sessionID))
	b.publish(events.EventSessionStart, events.Payload{
		"run_id":       runID,
		"session_id":   sessionID,
		"session_name": sessionName,
		"resume":       resume,
		"items":        len(items),
	})

	status := models.PlaybackStatus{
		ID:          models.PlaybackStatusRowID,
		SessionID:   sessionID,
		SessionName: sessionName,
		Position:    resume,
	}

	if status.Position == 0 && len(items) > 0 {
		b.announceSession(ctx, sessionName, items, logger)
		status.Position = items[0].PlayOrder
		b.save(ctx, status, logger)
	}

	channel := notifications.ChannelName(sessionName, sessionID, b.cfg.TestMode)
	played, failed := 0, 0
	for _, item := range items {
		if item.PlayOrder < status.Position {
			continue
		}
		if err := ctx.Err(); err != nil {
			logger.Warn().Int("position", status.Position).Msg("session interrupted, position kept for resume")
			return err
		}

		itemLogger := logger.With().Int("play_order", item.PlayOrder).Str("media", item.Media).Logger()
		if item.IsPaper() {
			b.announcePaper(ctx, channel, item.Presentation, itemLogger)
		}

		status.Position = item.PlayOrder
		b.save(ctx, status, itemLogger)
		telemetry.CurrentPosition.Set(float64(item.PlayOrder))
		b.publish(events.EventItemStart, events.Payload{
			"run_id":     runID,
			"session_id": sessionID,
			"play_order": item.PlayOrder,
			"media":      item.Media,
		})

		itemLogger.Info().Msg("playing item")
		if err := b.play(ctx, item.Media); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				itemLogger.Warn().Msg("session interrupted while playing, position kept for resume")
				return ctxErr
			}
			failed++
			telemetry.ItemFailuresTotal.Inc()
			itemLogger.Error().Err(err).Msg("item failed, continuing with next")
			b.publish(events.EventItemFailed, events.Payload{
				"run_id":     runID,
				"session_id": sessionID,
				"play_order": item.PlayOrder,
				"error":      err.Error(),
			})
			continue
		}
		played++
		telemetry.ItemsPlayedTotal.Inc()
	}

	b.saveIdle(ctx, logger)
	telemetry.SessionDuration.Observe(time.Since(started).Seconds())
	b.publish(events.EventSessionEnd, events.Payload{
		"run_id":     runID,
		"session_id": sessionID,
		"played":     played,
		"failed":     failed,
	})
	logger.Info().Int("played", played).Int("failed", failed).Dur("elapsed", time.Since(started)).Msg("session finished")

	b.PlayFiller(ctx)
	return nil
}

// PlayFiller starts the filler video and returns without waiting. The next
// session item replaces it. Errors are logged.
func (b *Broadcaster) PlayFiller(ctx context.Context) {
	if b.cfg.FillerMedia == "" {
		return
	}
	if err := b.player.Play(ctx, b.cfg.FillerMedia); err != nil && ctx.Err() == nil {
		b.logger.Warn().Err(err).Str("media", b.cfg.FillerMedia).Msg("filler failed")
		return
	}
	b.logger.Debug().Str("media", b.cfg.FillerMedia).Msg("filler started")
}

// play starts media and blocks until the player reports it has stopped.
func (b *Broadcaster) play(ctx context.Context, media string) error {
	if err := b.player.Play(ctx, media); err != nil {
		return err
	}
	if err := sleepCtx(ctx, b.cfg.SettleDelay); err != nil {
		return err
	}
	for b.player.IsPlaying() {
		if err := sleepCtx(ctx, b.cfg.PollInterval); err != nil {
			return err
		}
	}
	if r, ok := b.player.(exitReporter); ok {
		if err := r.Err(); err != nil {
			return fmt.Errorf("play %s: %w", media, err)
		}
	}
	return nil
}

func (b *Broadcaster) announceSession(ctx context.Context, sessionName string, items []models.SessionItem, logger zerolog.Logger) {
	msg := notifications.SessionMessage(sessionName, items)
	if err := b.notifier.Send(ctx, b.cfg.BroadcastChannelID, msg); err != nil {
		telemetry.AnnouncementFailuresTotal.WithLabelValues("session").Inc()
		logger.Warn().Err(err).Str("channel_id", b.cfg.BroadcastChannelID).Msg("session announcement failed")
		return
	}
	logger.Debug().Str("channel_id", b.cfg.BroadcastChannelID).Msg("session announced")
}

func (b *Broadcaster) announcePaper(ctx context.Context, channel string, p *models.PaperPresentation, logger zerolog.Logger) {
	if err := b.notifier.SendByName(ctx, channel, notifications.PaperMessage(p)); err != nil {
		telemetry.AnnouncementFailuresTotal.WithLabelValues("paper").Inc()
		logger.Warn().Err(err).Str("channel", channel).Str("title", p.Title).Msg("paper announcement failed")
		return
	}
	logger.Debug().Str("channel", channel).Str("title", p.Title).Msg("paper announced")
}

func (b *Broadcaster) save(ctx context.Context, status models.PlaybackStatus, logger zerolog.Logger) {
	if err := b.store.Save(ctx, status); err != nil {
		logger.Error().Err(err).Int("position", status.Position).Msg("persist playback status failed")
	}
}

// saveIdle is written with a fresh context so a cancelled run still records
// idle after a completed list or failed fetch.
func (b *Broadcaster) saveIdle(ctx context.Context, logger zerolog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	b.save(saveCtx, models.IdleStatus(), logger)
	telemetry.CurrentSession.Set(0)
	telemetry.CurrentPosition.Set(0)
}

func (b *Broadcaster) publish(eventType events.EventType, payload events.Payload) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(eventType, payload)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
