/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/sessioncast/internal/telemetry"
	"github.com/rs/zerolog"
)

var (
	// ErrFireTimeInPast is returned when a trigger is added after its fire time.
	ErrFireTimeInPast = errors.New("fire time already passed")
	// ErrDuplicateTrigger is returned when a pending or running trigger has the same key.
	ErrDuplicateTrigger = errors.New("duplicate trigger")
	// ErrCalendarStopped is returned once the calendar has shut down.
	ErrCalendarStopped = errors.New("calendar stopped")
)

// TriggerKey identifies a trigger.
type TriggerKey struct {
	SessionID   int
	SessionName string
	FireAt      time.Time
}

// normalized strips the monotonic reading and zone so equal instants
// compare equal as map keys.
func (k TriggerKey) normalized() TriggerKey {
	k.FireAt = k.FireAt.UTC().Round(0)
	return k
}

func (k TriggerKey) String() string {
	return fmt.Sprintf("%d/%s@%s", k.SessionID, k.SessionName, k.FireAt.UTC().Format(time.RFC3339))
}

// TriggerState is the lifecycle state of a trigger.
type TriggerState int

const (
	StatePending TriggerState = iota
	StateRunning
	StateCompleted
	StateMissed
	StatePaused
)

func (s TriggerState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateMissed:
		return "missed"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Trigger is a snapshot of one calendar entry.
type Trigger struct {
	Key       TriggerKey
	Resume    int
	Immediate bool // catch-up trigger, fires ahead of timetable triggers
	State     TriggerState
}

// Job runs a fired trigger. At most one Job runs at a time.
type Job func(ctx context.Context, t Trigger) error

// EventKind classifies calendar events.
type EventKind int

const (
	// EventExecuted reports a job that returned nil.
	EventExecuted EventKind = iota
	// EventFailed reports a job that returned an error.
	EventFailed
	// EventMissed reports a trigger that came due while another job was
	// running, or later than the misfire grace.
	EventMissed
	// EventFault reports an internal calendar fault. The calendar state can
	// no longer be trusted.
	EventFault
)

// Event is delivered to listeners outside the calendar lock.
type Event struct {
	Kind    EventKind
	Trigger Trigger
	Running *Trigger // the job in flight when Kind is EventMissed
	Err     error
}

// Listener receives calendar events.
type Listener func(Event)

// CalendarOptions configures a Calendar.
type CalendarOptions struct {
	// MisfireGrace is how late a timetable trigger may start when the worker
	// is free.
	MisfireGrace time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

type entry struct {
	trigger Trigger
	seq     uint64
	pause   bool // paused while running
}

// Calendar holds future triggers and hands each due trigger to a single
// worker. Catch-up triggers are served first in insertion order; timetable
// triggers follow in fire time order.
type Calendar struct {
	job    Job
	grace  time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	entries   map[TriggerKey]*entry
	pending   []*entry
	running   *entry
	seq       uint64
	listeners []Listener
	started   bool
	stopped   bool

	wake chan struct{}
	work chan *entry
}

// NewCalendar creates a calendar that runs job for every fired trigger.
func NewCalendar(job Job, opts CalendarOptions, logger zerolog.Logger) *Calendar {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Calendar{
		job:     job,
		grace:   opts.MisfireGrace,
		now:     opts.Now,
		logger:  logger.With().Str("component", "calendar").Logger(),
		entries: make(map[TriggerKey]*entry),
		wake:    make(chan struct{}, 1),
		work:    make(chan *entry, 1),
	}
}

// AddListener registers l for all events.
func (c *Calendar) AddListener(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Add registers a timetable trigger. A fire time that is not in the future
// fails with ErrFireTimeInPast.
func (c *Calendar) Add(key TriggerKey, resume int) (Trigger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return Trigger{}, ErrCalendarStopped
	}
	key = key.normalized()
	if !key.FireAt.After(c.now()) {
		return Trigger{}, fmt.Errorf("%w: %s", ErrFireTimeInPast, key)
	}
	return c.insertLocked(Trigger{Key: key, Resume: resume})
}

// AddImmediate registers a catch-up trigger for a session firing after
// delay. When a catch-up for the same session is already pending, that
// trigger is returned and added is false.
func (c *Calendar) AddImmediate(sessionID int, sessionName string, resume int, delay time.Duration) (t Trigger, added bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return Trigger{}, false, ErrCalendarStopped
	}
	for _, e := range c.pending {
		if e.trigger.Immediate && e.trigger.Key.SessionID == sessionID {
			return e.trigger, false, nil
		}
	}

	key := TriggerKey{SessionID: sessionID, SessionName: sessionName, FireAt: c.now().Add(delay)}.normalized()
	t, err = c.insertLocked(Trigger{Key: key, Resume: resume, Immediate: true})
	return t, err == nil, err
}

func (c *Calendar) insertLocked(t Trigger) (Trigger, error) {
	if e, ok := c.entries[t.Key]; ok && (e.trigger.State == StatePending || e.trigger.State == StateRunning) {
		return Trigger{}, fmt.Errorf("%w: %s", ErrDuplicateTrigger, t.Key)
	}

	c.seq++
	t.State = StatePending
	e := &entry{trigger: t, seq: c.seq}
	c.entries[t.Key] = e
	c.pending = append(c.pending, e)
	c.sortLocked()

	telemetry.TriggersScheduledTotal.Inc()
	telemetry.TriggersPending.Set(float64(len(c.pending)))
	c.logger.Debug().
		Str("trigger", t.Key.String()).
		Int("resume", t.Resume).
		Bool("immediate", t.Immediate).
		Msg("trigger added")

	c.signal()
	return t, nil
}

// Remove drops a pending trigger. It reports whether one was removed.
func (c *Calendar) Remove(key TriggerKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key = key.normalized()

	e, ok := c.entries[key]
	if !ok || e.trigger.State != StatePending {
		return false
	}
	c.unqueueLocked(e)
	delete(c.entries, key)
	c.signal()
	return true
}

// Pause stops a trigger from firing. A pending trigger leaves the queue; a
// running trigger finishes its current job and ends paused rather than
// completed.
func (c *Calendar) Pause(key TriggerKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key = key.normalized()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	switch e.trigger.State {
	case StatePending:
		c.unqueueLocked(e)
		e.trigger.State = StatePaused
		c.signal()
		return true
	case StateRunning:
		e.pause = true
		return true
	}
	return false
}

// Lookup returns the trigger for key.
func (c *Calendar) Lookup(key TriggerKey) (Trigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key = key.normalized()
	e, ok := c.entries[key]
	if !ok {
		return Trigger{}, false
	}
	return e.trigger, true
}

// Running returns the trigger whose job is in flight.
func (c *Calendar) Running() (Trigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running == nil {
		return Trigger{}, false
	}
	return c.running.trigger, true
}

// Pending returns pending triggers in firing priority order.
func (c *Calendar) Pending() []Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Trigger, 0, len(c.pending))
	for _, e := range c.pending {
		out = append(out, e.trigger)
	}
	return out
}

// Run dispatches triggers until ctx is cancelled. It returns after the
// in-flight job, if any, has returned. A dispatcher panic is reported as an
// EventFault and ends Run with that error.
func (c *Calendar) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("calendar already running")
	}
	c.started = true
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.worker(ctx)
	}()

	c.logger.Info().Msg("calendar started")
	defer func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.work)
		wg.Wait()
		c.logger.Info().Msg("calendar stopped")
	}()

	for {
		events, wait, fault := c.safeDispatch()
		c.emit(events)
		if fault != nil {
			return fault
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-c.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// safeDispatch runs dispatch, converting a panic into a fault event.
func (c *Calendar) safeDispatch() (events []Event, wait time.Duration, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("dispatcher panicked: %v", r)
			events = append(events, Event{Kind: EventFault, Err: fault})
			wait = -1
		}
	}()
	events, wait = c.dispatch()
	return events, wait, nil
}

// dispatch starts or misses every due trigger and returns the time until the
// next one is due, or -1 when nothing is waiting on the clock.
func (c *Calendar) dispatch() ([]Event, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []Event
	for len(c.pending) > 0 {
		now := c.now()
		e := c.pending[0]
		if wait := e.trigger.Key.FireAt.Sub(now); wait > 0 {
			return events, wait
		}

		if e.trigger.Immediate {
			if c.running != nil {
				// Catch-ups wait for the worker.
				return events, -1
			}
			c.startLocked(e)
			continue
		}

		switch {
		case c.running != nil:
			running := c.running.trigger
			events = append(events, c.missLocked(e, &running))
		case now.Sub(e.trigger.Key.FireAt) > c.grace:
			events = append(events, c.missLocked(e, nil))
		default:
			c.startLocked(e)
		}
	}
	return events, -1
}

func (c *Calendar) startLocked(e *entry) {
	c.unqueueLocked(e)
	e.trigger.State = StateRunning
	c.running = e
	c.work <- e
}

func (c *Calendar) missLocked(e *entry, running *Trigger) Event {
	c.unqueueLocked(e)
	e.trigger.State = StateMissed
	telemetry.TriggersMissedTotal.Inc()
	c.logger.Warn().
		Str("trigger", e.trigger.Key.String()).
		Bool("busy", running != nil).
		Msg("trigger missed")
	return Event{Kind: EventMissed, Trigger: e.trigger, Running: running}
}

func (c *Calendar) worker(ctx context.Context) {
	for e := range c.work {
		if ctx.Err() != nil {
			// Handed over just before shutdown; the store keeps its position.
			c.mu.Lock()
			if c.running == e {
				c.running = nil
			}
			e.trigger.State = StatePaused
			c.mu.Unlock()
			c.logger.Info().Str("trigger", e.trigger.Key.String()).Msg("calendar stopping, trigger not started")
			continue
		}
		err, fault := c.execute(ctx, e.trigger)

		c.mu.Lock()
		var events []Event
		if c.running != e {
			events = append(events, Event{Kind: EventFault, Trigger: e.trigger,
				Err: fmt.Errorf("finished trigger %s is not the running trigger", e.trigger.Key)})
		}
		c.running = nil
		switch {
		case e.pause:
			e.trigger.State = StatePaused
		default:
			e.trigger.State = StateCompleted
		}
		t := e.trigger
		c.signal()
		c.mu.Unlock()

		switch {
		case fault != nil:
			events = append(events, Event{Kind: EventFault, Trigger: t, Err: fault})
		case err != nil:
			events = append(events, Event{Kind: EventFailed, Trigger: t, Err: err})
		default:
			events = append(events, Event{Kind: EventExecuted, Trigger: t})
		}
		c.emit(events)
	}
}

// execute runs the job, converting a panic into a fault.
func (c *Calendar) execute(ctx context.Context, t Trigger) (err error, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("job for %s panicked: %v", t.Key, r)
		}
	}()
	c.logger.Info().Str("trigger", t.Key.String()).Int("resume", t.Resume).Msg("trigger fired")
	return c.job(ctx, t), nil
}

func (c *Calendar) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

func (c *Calendar) unqueueLocked(e *entry) {
	for i, p := range c.pending {
		if p == e {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	telemetry.TriggersPending.Set(float64(len(c.pending)))
}

// sortLocked orders catch-ups first by insertion, then timetable triggers
// by fire time.
func (c *Calendar) sortLocked() {
	sort.SliceStable(c.pending, func(i, j int) bool {
		a, b := c.pending[i], c.pending[j]
		if a.trigger.Immediate != b.trigger.Immediate {
			return a.trigger.Immediate
		}
		if a.trigger.Immediate {
			return a.seq < b.seq
		}
		if !a.trigger.Key.FireAt.Equal(b.trigger.Key.FireAt) {
			return a.trigger.Key.FireAt.Before(b.trigger.Key.FireAt)
		}
		return a.seq < b.seq
	})
}

func (c *Calendar) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
