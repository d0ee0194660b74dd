/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingBotToken is returned when the Discord notifier is needed but no
// token is configured.
var ErrMissingBotToken = errors.New("SESSIONCAST_BOT_TOKEN or TOKEN must be provided")

// StatusBackend selects where the playback position is persisted.
type StatusBackend string

const (
	StatusFile  StatusBackend = "file"
	StatusSQL   StatusBackend = "sql"
	StatusRedis StatusBackend = "redis"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// NotifierKind selects the announcement transport.
type NotifierKind string

const (
	NotifierDiscord NotifierKind = "discord"
	NotifierLog     NotifierKind = "log"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	TestMode    bool

	// Catalog sources
	SchedulingDir  string
	PlaylistFile   string
	PapersFile     string
	AuthorsFile    string
	SessionsFile   string
	CyclesFile     string // Optional YAML override of the cycle mapping
	MediaDir       string
	FillerMedia    string // Empty disables the filler video
	WatchTimetable bool

	// Playback state
	StatusBackend StatusBackend
	StatusFile    string
	DBBackend     DatabaseBackend
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	// Announcements
	Notifier           NotifierKind
	BotToken           string
	BroadcastChannelID string
	GuildID            string

	// Player
	PlayerBin    string
	PlayerArgs   []string
	PollInterval time.Duration
	SettleDelay  time.Duration

	// Scheduling
	MisfireGrace time.Duration
	ResumeDelay  time.Duration

	// Events and observability
	NATSURL           string
	MetricsBind       string
	LogBufferSize     int
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads an optional .env file and environment variables, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	schedulingDir := getEnvAny([]string{"SESSIONCAST_SCHEDULING_DIR"}, "scheduling")
	mediaDir := getEnvAny([]string{"SESSIONCAST_MEDIA_DIR"}, "videos")

	cfg := &Config{
		Environment: getEnvAny([]string{"SESSIONCAST_ENV"}, "development"),
		TestMode:    getEnvBoolAny([]string{"SESSIONCAST_TEST_MODE"}, false),

		SchedulingDir:  schedulingDir,
		PlaylistFile:   getEnvAny([]string{"SESSIONCAST_PLAYLIST_FILE"}, filepath.Join(schedulingDir, "playlist.csv")),
		PapersFile:     getEnvAny([]string{"SESSIONCAST_PAPERS_FILE"}, filepath.Join(schedulingDir, "papers.csv")),
		AuthorsFile:    getEnvAny([]string{"SESSIONCAST_AUTHORS_FILE"}, filepath.Join(schedulingDir, "authors.csv")),
		SessionsFile:   getEnvAny([]string{"SESSIONCAST_SESSIONS_FILE"}, filepath.Join(schedulingDir, "sessions.csv")),
		CyclesFile:     getEnvAny([]string{"SESSIONCAST_CYCLES_FILE"}, ""),
		MediaDir:       mediaDir,
		FillerMedia:    getEnvAny([]string{"SESSIONCAST_FILLER_MEDIA"}, filepath.Join(mediaDir, "cscw_filler.mp4")),
		WatchTimetable: getEnvBoolAny([]string{"SESSIONCAST_WATCH_TIMETABLE"}, false),

		StatusBackend: StatusBackend(getEnvAny([]string{"SESSIONCAST_STATUS_BACKEND"}, string(StatusFile))),
		StatusFile:    getEnvAny([]string{"SESSIONCAST_STATUS_FILE"}, "status.json"),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"SESSIONCAST_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:         getEnvAny([]string{"SESSIONCAST_DB_DSN"}, ""),
		RedisAddr:     getEnvAny([]string{"SESSIONCAST_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"SESSIONCAST_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"SESSIONCAST_REDIS_DB"}, 0),
		RedisKey:      getEnvAny([]string{"SESSIONCAST_REDIS_KEY"}, "sessioncast:playback_status"),

		Notifier:           NotifierKind(getEnvAny([]string{"SESSIONCAST_NOTIFIER"}, string(NotifierDiscord))),
		BotToken:           getEnvAny([]string{"SESSIONCAST_BOT_TOKEN", "TOKEN"}, ""),
		BroadcastChannelID: getEnvAny([]string{"SESSIONCAST_TV_CHANNEL_ID", "TV_CHANNEL_ID"}, ""),
		GuildID:            getEnvAny([]string{"SESSIONCAST_GUILD_ID", "GUILD_ID"}, ""),

		PlayerBin:    getEnvAny([]string{"SESSIONCAST_PLAYER_BIN"}, "cvlc"),
		PlayerArgs:   getEnvListAny([]string{"SESSIONCAST_PLAYER_ARGS"}, []string{"--fullscreen", "--play-and-exit", "--mouse-hide-timeout=0"}),
		PollInterval: getEnvDurationAny([]string{"SESSIONCAST_POLL_INTERVAL"}, 500*time.Millisecond),
		SettleDelay:  getEnvDurationAny([]string{"SESSIONCAST_SETTLE_DELAY"}, time.Second),

		MisfireGrace: getEnvDurationAny([]string{"SESSIONCAST_MISFIRE_GRACE"}, 10*time.Second),
		ResumeDelay:  getEnvDurationAny([]string{"SESSIONCAST_RESUME_DELAY"}, 5*time.Second),

		NATSURL:           getEnvAny([]string{"SESSIONCAST_NATS_URL"}, ""),
		MetricsBind:       getEnvAny([]string{"SESSIONCAST_METRICS_BIND"}, "127.0.0.1:9000"),
		LogBufferSize:     getEnvIntAny([]string{"SESSIONCAST_LOG_BUFFER_SIZE"}, 2000),
		TracingEnabled:    getEnvBoolAny([]string{"SESSIONCAST_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SESSIONCAST_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SESSIONCAST_TRACING_SAMPLE_RATE"}, 1.0),
	}

	switch cfg.StatusBackend {
	case StatusFile, StatusRedis:
	case StatusSQL:
		if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
		}
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("SESSIONCAST_DB_DSN must be provided for the sql status backend")
		}
	default:
		return nil, fmt.Errorf("unsupported status backend %q", cfg.StatusBackend)
	}

	switch cfg.Notifier {
	case NotifierLog:
	case NotifierDiscord:
		// Test runs without credentials only log announcements. Outside test
		// mode the token is checked when the notifier is built.
		if cfg.BotToken == "" && cfg.TestMode {
			cfg.Notifier = NotifierLog
		}
	default:
		return nil, fmt.Errorf("unsupported notifier %q", cfg.Notifier)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("SESSIONCAST_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go duration strings ("750ms") or whole seconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}

// getEnvListAny splits a whitespace separated value.
func getEnvListAny(keys []string, def []string) []string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return strings.Fields(v)
		}
	}
	return def
}
