/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine wires the broadcast engine: status store, catalog,
// notifier, player, broadcaster and scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/sessioncast/internal/catalog"
	"github.com/friendsincode/sessioncast/internal/config"
	"github.com/friendsincode/sessioncast/internal/eventbus"
	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/friendsincode/sessioncast/internal/logbuffer"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/friendsincode/sessioncast/internal/notifications"
	"github.com/friendsincode/sessioncast/internal/player"
	"github.com/friendsincode/sessioncast/internal/playout"
	"github.com/friendsincode/sessioncast/internal/scheduler"
	"github.com/friendsincode/sessioncast/internal/server"
	"github.com/friendsincode/sessioncast/internal/state"
	"github.com/friendsincode/sessioncast/internal/telemetry"
	"github.com/friendsincode/sessioncast/internal/version"
)

// Options overrides collaborators. Nil fields are built from the config.
type Options struct {
	Store    state.Store
	Notifier notifications.Notifier
	Player   player.Player
	Logs     *logbuffer.Buffer // Served on /logs when set
	Exit     func(code int)
}

// Engine owns the calendar, the status store and the collaborators the
// broadcast loop uses. There is no package level state.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	store       state.Store
	catalog     *catalog.Reader
	notifier    notifications.Notifier
	player      player.Player
	bus         *events.Bus
	broadcaster *playout.Broadcaster
	handler     *scheduler.Handler
	bridge      *eventbus.NATSBridge
	server      *server.Server
	tracer      *telemetry.TracerProvider

	closers []func() error
}

// New builds an engine from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, logger: logger.With().Str("component", "engine").Logger(), bus: events.NewBus()}

	tracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "sessioncast",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	e.tracer = tracer
	e.deferClose(func() error { return tracer.Shutdown(context.Background()) })

	e.store = opts.Store
	if e.store == nil {
		if e.store, err = state.Open(ctx, cfg, logger); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("open status store: %w", err)
		}
		e.deferClose(e.store.Close)
	}

	authorCycles, _, err := catalog.LoadCycleMaps(cfg.CyclesFile)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.catalog = catalog.NewReader(catalog.Files{
		Playlist: cfg.PlaylistFile,
		Papers:   cfg.PapersFile,
		Authors:  cfg.AuthorsFile,
	}, cfg.MediaDir, authorCycles, logger)

	e.notifier = opts.Notifier
	if e.notifier == nil {
		if e.notifier, err = e.buildNotifier(); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	e.player = opts.Player
	if e.player == nil {
		proc := player.NewProcess(cfg.PlayerBin, cfg.PlayerArgs, logger)
		e.player = proc
		e.deferClose(proc.Stop)
	}

	if cfg.NATSURL != "" {
		bridge, err := eventbus.NewNATSBridge(eventbus.DefaultNATSConfig(cfg.NATSURL), e.bus, logger)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.bridge = bridge
		e.deferClose(bridge.Close)
	}

	e.broadcaster = playout.NewBroadcaster(e.catalog, e.notifier, e.player, e.store, e.bus, playout.Config{
		BroadcastChannelID: cfg.BroadcastChannelID,
		TestMode:           cfg.TestMode,
		FillerMedia:        cfg.FillerMedia,
		PollInterval:       cfg.PollInterval,
		SettleDelay:        cfg.SettleDelay,
	}, logger)

	e.handler = scheduler.NewHandler(e.broadcaster, e.store, e.bus, scheduler.Config{
		MisfireGrace: cfg.MisfireGrace,
		ResumeDelay:  cfg.ResumeDelay,
		Exit:         opts.Exit,
	}, logger)

	if cfg.MetricsBind != "" {
		e.server = server.New(cfg.MetricsBind, e, logger)
		if opts.Logs != nil {
			e.server.WithLogs(opts.Logs)
		}
	}
	return e, nil
}

func (e *Engine) buildNotifier() (notifications.Notifier, error) {
	switch e.cfg.Notifier {
	case config.NotifierLog:
		return notifications.NewLog(e.logger), nil
	case config.NotifierDiscord:
		if e.cfg.BotToken == "" {
			return nil, config.ErrMissingBotToken
		}
		d, err := notifications.NewDiscord(e.cfg.BotToken, e.cfg.GuildID, e.logger)
		if err != nil {
			return nil, err
		}
		if err := d.Open(); err != nil {
			return nil, err
		}
		e.deferClose(d.Close)
		return d, nil
	}
	return nil, fmt.Errorf("unsupported notifier %q", e.cfg.Notifier)
}

// Prepare resumes an interrupted session and installs the timetable, in
// that order.
func (e *Engine) Prepare(ctx context.Context) (scheduler.ScheduleReport, error) {
	if _, _, err := e.handler.Recover(ctx); err != nil {
		return scheduler.ScheduleReport{}, fmt.Errorf("recover playback status: %w", err)
	}

	slots, err := e.readTimetable()
	if err != nil {
		return scheduler.ScheduleReport{}, err
	}
	return e.handler.ScheduleTimetable(slots), nil
}

// Run prepares the calendar and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.Prepare(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.handler.Run(gctx) })
	if e.bridge != nil {
		g.Go(func() error { return e.bridge.Run(gctx) })
	}
	if e.server != nil {
		g.Go(func() error { return e.server.Run(gctx) })
	}
	if e.cfg.WatchTimetable {
		g.Go(func() error {
			return scheduler.WatchTimetable(gctx, e.cfg.SessionsFile, scheduler.DefaultDebounce, e.reloadTimetable, e.logger)
		})
	}

	e.broadcaster.PlayFiller(gctx)
	e.logger.Info().Msg("engine running")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) readTimetable() ([]models.SessionSlot, error) {
	slots, rowErrs, err := catalog.ReadTimetable(e.cfg.SessionsFile)
	if err != nil {
		return nil, err
	}
	for _, rowErr := range rowErrs {
		telemetry.TriggersSkippedTotal.WithLabelValues("invalid_row").Inc()
		e.logger.Warn().Err(rowErr.Err).Int("line", rowErr.Line).Str("file", e.cfg.SessionsFile).Msg("skipping timetable row")
	}
	return slots, nil
}

func (e *Engine) reloadTimetable() {
	slots, err := e.readTimetable()
	if err != nil {
		e.logger.Error().Err(err).Msg("timetable reload failed, keeping current triggers")
		return
	}
	e.handler.Reload(slots)
}

// Health implements server.HealthSource.
func (e *Engine) Health(ctx context.Context) (server.Health, error) {
	status, err := e.store.Load(ctx)
	if err != nil {
		return server.Health{}, err
	}
	h := server.Health{
		Status:          "ok",
		SessionNumber:   status.SessionID,
		SessionName:     status.SessionName,
		PlaybackNumber:  status.Position,
		PendingTriggers: len(e.handler.Calendar().Pending()),
	}
	if running, ok := e.handler.Calendar().Running(); ok {
		h.RunningTrigger = running.Key.String()
	}
	return h, nil
}

// Bus returns the broadcast event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Handler returns the scheduling handler.
func (e *Engine) Handler() *scheduler.Handler { return e.handler }

// Store returns the status store.
func (e *Engine) Store() state.Store { return e.store }

// deferClose registers fn to run on Close.
func (e *Engine) deferClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
