/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduling
	TriggersScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessioncast_triggers_scheduled_total",
		Help: "Session triggers registered on the calendar.",
	})
	TriggersSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessioncast_triggers_skipped_total",
		Help: "Timetable triggers not scheduled, by reason.",
	}, []string{"reason"})
	TriggersFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessioncast_triggers_fired_total",
		Help: "Session triggers that started a broadcast.",
	})
	TriggersMissedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessioncast_triggers_missed_total",
		Help: "Session triggers that came due while another broadcast was running.",
	})
	TriggersPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncast_triggers_pending",
		Help: "Triggers waiting on the calendar.",
	})

	// Playout
	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessioncast_sessions_started_total",
		Help: "Session broadcasts started, by mode (fresh or resume).",
	}, []string{"mode"})
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sessioncast_session_duration_seconds",
		Help:    "Wall time spent broadcasting a session.",
		Buckets: []float64{60, 300, 900, 1800, 3600, 5400, 7200},
	})
	ItemsPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessioncast_items_played_total",
		Help: "Session videos played to completion.",
	})
	ItemFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessioncast_item_failures_total",
		Help: "Session videos that failed to play.",
	})
	AnnouncementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessioncast_announcement_failures_total",
		Help: "Announcements that could not be delivered, by kind.",
	}, []string{"kind"})
	CurrentSession = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncast_current_session",
		Help: "Session number being broadcast (0 when idle).",
	})
	CurrentPosition = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessioncast_current_position",
		Help: "Play order of the video being broadcast (0 when idle).",
	})

	// Status store
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sessioncast_db_query_duration_seconds",
		Help:    "Duration of status store database operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessioncast_db_errors_total",
		Help: "Failed status store database operations.",
	}, []string{"operation"})

	// Metrics listener
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessioncast_http_requests_total",
		Help: "Requests served by the metrics listener.",
	}, []string{"method", "endpoint", "status"})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
