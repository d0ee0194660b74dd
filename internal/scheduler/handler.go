/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler fires session broadcasts from the timetable and keeps
// interrupted sessions resumable.
package scheduler

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/friendsincode/sessioncast/internal/telemetry"
	"github.com/rs/zerolog"
)

// Runner broadcasts a session from a resume position.
type Runner interface {
	RunSession(ctx context.Context, sessionID int, sessionName string, resume int) error
}

// StatusReader reads the persisted playback position.
type StatusReader interface {
	Load(ctx context.Context) (models.PlaybackStatus, error)
}

// Config tunes the handler.
type Config struct {
	MisfireGrace time.Duration
	ResumeDelay  time.Duration // delay of the startup resume trigger
	Now          func() time.Time
	Exit         func(code int) // called on calendar faults, defaults to os.Exit
}

// Handler owns the calendar: it installs timetable triggers, resumes
// interrupted sessions at startup and turns missed triggers into catch-ups.
type Handler struct {
	cal    *Calendar
	runner Runner
	store  StatusReader
	bus    *events.Bus
	cfg    Config
	logger zerolog.Logger
}

// NewHandler creates a handler and its calendar. bus may be nil.
func NewHandler(runner Runner, store StatusReader, bus *events.Bus, cfg Config, logger zerolog.Logger) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	h := &Handler{
		runner: runner,
		store:  store,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	h.cal = NewCalendar(h.execute, CalendarOptions{MisfireGrace: cfg.MisfireGrace, Now: cfg.Now}, logger)
	h.cal.AddListener(h.onEvent)
	return h
}

// Calendar exposes the underlying calendar.
func (h *Handler) Calendar() *Calendar { return h.cal }

// Schedule registers a trigger. Past fire times fail with ErrFireTimeInPast.
func (h *Handler) Schedule(sessionID int, sessionName string, fireAt time.Time, resume int) (Trigger, error) {
	return h.cal.Add(TriggerKey{SessionID: sessionID, SessionName: sessionName, FireAt: fireAt}, resume)
}

// Recover schedules a resume of the session recorded in the store when it
// was interrupted. It must run before the timetable is installed.
func (h *Handler) Recover(ctx context.Context) (Trigger, bool, error) {
	status, err := h.store.Load(ctx)
	if err != nil {
		return Trigger{}, false, err
	}
	if !status.Interrupted() {
		h.logger.Info().Msg("no interrupted session to resume")
		return Trigger{}, false, nil
	}

	t, _, err := h.cal.AddImmediate(status.SessionID, status.SessionName, status.Position, h.cfg.ResumeDelay)
	if err != nil {
		return Trigger{}, false, err
	}
	h.logger.Warn().
		Int("session", status.SessionID).
		Str("session_name", status.SessionName).
		Int("position", status.Position).
		Time("fire_at", t.Key.FireAt).
		Msg("resuming interrupted session")
	return t, true, nil
}

// Planned is one timetable fire time and whether it would be scheduled.
type Planned struct {
	Key  TriggerKey
	Week int
	Past bool
}

// Plan expands timetable slots into their week 1 and week 2 fire times.
func Plan(slots []models.SessionSlot, now time.Time) []Planned {
	planned := make([]Planned, 0, 2*len(slots))
	for _, slot := range slots {
		for i, at := range slot.FireTimes() {
			planned = append(planned, Planned{
				Key:  TriggerKey{SessionID: slot.SessionID, SessionName: slot.SessionName, FireAt: at},
				Week: i + 1,
				Past: !at.After(now),
			})
		}
	}
	return planned
}

// ScheduleReport counts the outcome of installing a timetable.
type ScheduleReport struct {
	Scheduled int
	Past      int
	Duplicate int
	Removed   int
}

// ScheduleTimetable installs every future fire time of slots. Past fire
// times are skipped with a warning.
func (h *Handler) ScheduleTimetable(slots []models.SessionSlot) ScheduleReport {
	var report ScheduleReport
	for _, p := range Plan(slots, h.cfg.Now()) {
		h.add(p, &report)
	}
	h.logger.Info().
		Int("scheduled", report.Scheduled).
		Int("past", report.Past).
		Int("duplicate", report.Duplicate).
		Msg("timetable scheduled")
	return report
}

// Reload reconciles pending timetable triggers with slots: triggers whose
// row is gone are removed and new future fire times are added. Catch-up and
// running triggers are left alone.
func (h *Handler) Reload(slots []models.SessionSlot) ScheduleReport {
	var report ScheduleReport
	plan := Plan(slots, h.cfg.Now())

	wanted := make(map[TriggerKey]struct{}, len(plan))
	for _, p := range plan {
		wanted[p.Key.normalized()] = struct{}{}
	}
	for _, t := range h.cal.Pending() {
		if t.Immediate {
			continue
		}
		if _, ok := wanted[t.Key]; !ok && h.cal.Remove(t.Key) {
			report.Removed++
			h.logger.Info().Str("trigger", t.Key.String()).Msg("trigger removed by timetable reload")
		}
	}

	for _, p := range plan {
		if p.Past {
			report.Past++
			continue
		}
		if existing, ok := h.cal.Lookup(p.Key); ok && existing.State != StatePaused {
			continue
		}
		h.add(p, &report)
	}
	h.logger.Info().
		Int("scheduled", report.Scheduled).
		Int("removed", report.Removed).
		Int("past", report.Past).
		Msg("timetable reloaded")
	return report
}

func (h *Handler) add(p Planned, report *ScheduleReport) {
	logger := h.logger.With().Int("session", p.Key.SessionID).Int("week", p.Week).Time("fire_at", p.Key.FireAt).Logger()
	if p.Past {
		report.Past++
		telemetry.TriggersSkippedTotal.WithLabelValues("past").Inc()
		logger.Warn().Msg("fire time already passed, not scheduling")
		return
	}

	_, err := h.cal.Add(p.Key, 0)
	switch {
	case err == nil:
		report.Scheduled++
	case errors.Is(err, ErrFireTimeInPast):
		report.Past++
		telemetry.TriggersSkippedTotal.WithLabelValues("past").Inc()
		logger.Warn().Msg("fire time passed while scheduling, not scheduling")
	case errors.Is(err, ErrDuplicateTrigger):
		report.Duplicate++
		telemetry.TriggersSkippedTotal.WithLabelValues("duplicate").Inc()
		logger.Warn().Msg("duplicate timetable entry")
	default:
		telemetry.TriggersSkippedTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("schedule trigger failed")
	}
}

// Run dispatches triggers until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	return h.cal.Run(ctx)
}

func (h *Handler) execute(ctx context.Context, t Trigger) error {
	telemetry.TriggersFiredTotal.Inc()
	return h.runner.RunSession(ctx, t.Key.SessionID, t.Key.SessionName, t.Resume)
}

func (h *Handler) onEvent(ev Event) {
	switch ev.Kind {
	case EventMissed:
		h.handleMissed(ev)
	case EventFault:
		h.logger.Error().Err(ev.Err).Str("trigger", ev.Trigger.Key.String()).Msg("calendar fault, exiting")
		h.cfg.Exit(1)
	case EventFailed:
		if !errors.Is(ev.Err, context.Canceled) {
			h.logger.Error().Err(ev.Err).Str("trigger", ev.Trigger.Key.String()).Msg("session run failed")
		}
	case EventExecuted:
		h.logger.Debug().Str("trigger", ev.Trigger.Key.String()).Msg("session run completed")
	}
}

// handleMissed pauses the stale running trigger and queues a catch-up for
// the missed session. The catch-up resumes from the stored position when the
// store records that same session.
func (h *Handler) handleMissed(ev Event) {
	missed := ev.Trigger.Key
	logger := h.logger.With().Str("trigger", missed.String()).Logger()

	if ev.Running != nil {
		h.cal.Pause(ev.Running.Key)
		logger = logger.With().Str("running", ev.Running.Key.String()).Logger()
	}

	resume := 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := h.store.Load(ctx)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("read playback status for missed trigger, starting from the beginning")
	case status.SessionID == missed.SessionID && status.Interrupted():
		resume = status.Position
	}

	t, added, err := h.cal.AddImmediate(missed.SessionID, missed.SessionName, resume, 0)
	if err != nil {
		if !errors.Is(err, ErrCalendarStopped) {
			logger.Error().Err(err).Msg("schedule catch-up failed")
		}
		return
	}

	if h.bus != nil {
		payload := events.Payload{
			"session_id":   missed.SessionID,
			"session_name": missed.SessionName,
			"fire_at":      missed.FireAt,
			"resume":       t.Resume,
		}
		if ev.Running != nil {
			payload["running_session_id"] = ev.Running.Key.SessionID
		}
		h.bus.Publish(events.EventTriggerMissed, payload)
	}

	if !added {
		logger.Info().Str("catch_up", t.Key.String()).Msg("missed trigger merged into pending catch-up")
		return
	}
	logger.Warn().Int("resume", t.Resume).Msg("missed trigger rescheduled as catch-up")
}
