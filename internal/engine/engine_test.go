package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/sessioncast/internal/config"
	"github.com/friendsincode/sessioncast/internal/events"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/friendsincode/sessioncast/internal/notifications"
	"github.com/friendsincode/sessioncast/internal/player"
)

const stamp = "2006-01-02 15:04:05"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, status *models.PlaybackStatus) *config.Config {
	t.Helper()
	dir := t.TempDir()

	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	cfg := &config.Config{
		Environment:   "test",
		TestMode:      true,
		PlaylistFile:  writeFile(t, dir, "playlist.csv", "session_number,file_name,play_order,is_paper,paper_id,cycle,presenter\n8,a.mp4,1,False,,,\n8,b.mp4,2,False,,,\n8,c.mp4,3,False,,,\n"),
		PapersFile:    writeFile(t, dir, "papers.csv", "cycle,paper_id,title,talk_number,presenter,session_number\n"),
		AuthorsFile:   writeFile(t, dir, "authors.csv", "cycle,id,author_1\n"),
		SessionsFile:  writeFile(t, dir, "sessions.csv", "session_number,session_name,w1_time_utc,w2_time_utc\n"+"7,Future,"+future.Format(stamp)+","+future.Add(time.Hour).Format(stamp)+"\n"+"8,Past,"+past.Format(stamp)+","+past.Add(-time.Hour).Format(stamp)+"\n"+"9,Broken,never,never\n"),
		MediaDir:      dir,
		StatusBackend: config.StatusFile,
		StatusFile:    filepath.Join(dir, "status.json"),
		Notifier:      config.NotifierLog,
		PollInterval:  10 * time.Millisecond,
		MisfireGrace:  10 * time.Second,
	}
	if status != nil {
		data, err := json.Marshal(status)
		if err != nil {
			t.Fatalf("marshal status: %v", err)
		}
		writeFile(t, dir, "status.json", string(data))
	}
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := New(context.Background(), cfg, Options{
		Notifier: notifications.NewLog(zerolog.Nop()),
		Player:   player.Nop{},
		Exit:     func(code int) { t.Errorf("unexpected exit %d", code) },
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_PrepareResumesBeforeTimetable(t *testing.T) {
	cfg := testConfig(t, &models.PlaybackStatus{SessionID: 8, SessionName: "Past", Position: 2})
	e := newEngine(t, cfg)

	report, err := e.Prepare(context.Background())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if report.Scheduled != 2 || report.Past != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	pending := e.Handler().Calendar().Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending triggers, got %d", len(pending))
	}
	first := pending[0]
	if !first.Immediate || first.Key.SessionID != 8 || first.Resume != 2 {
		t.Fatalf("expected resume of session 8 at 2 first, got %+v", first)
	}
	for _, p := range pending[1:] {
		if p.Key.SessionID != 7 {
			t.Fatalf("unexpected timetable trigger %+v", p)
		}
	}
}

func TestEngine_PrepareIdleOnlySchedulesTimetable(t *testing.T) {
	e := newEngine(t, testConfig(t, nil))

	if _, err := e.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, p := range e.Handler().Calendar().Pending() {
		if p.Immediate {
			t.Fatalf("unexpected catch-up trigger %+v", p)
		}
	}
}

func TestEngine_RunResumesInterruptedSession(t *testing.T) {
	cfg := testConfig(t, &models.PlaybackStatus{SessionID: 8, SessionName: "Past", Position: 2})
	e := newEngine(t, cfg)

	ended := e.Bus().Subscribe(events.EventSessionEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case payload := <-ended:
		if payload["session_id"] != 8 {
			t.Fatalf("unexpected session end payload: %v", payload)
		}
		if payload["played"] != 2 {
			t.Fatalf("expected items 2 and 3 to play, got %v", payload["played"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resumed session never finished")
	}

	status, err := e.Store().Load(context.Background())
	if err != nil {
		t.Fatalf("load status: %v", err)
	}
	if !status.IsIdle() {
		t.Fatalf("expected idle after resume, got %+v", status)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestEngine_HealthReportsStatusAndCalendar(t *testing.T) {
	e := newEngine(t, testConfig(t, &models.PlaybackStatus{SessionID: 8, SessionName: "Past", Position: 2}))
	if _, err := e.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	h, err := e.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.SessionNumber != 8 || h.PlaybackNumber != 2 || h.SessionName != "Past" {
		t.Fatalf("unexpected health status: %+v", h)
	}
	if h.PendingTriggers != 3 || h.RunningTrigger != "" {
		t.Fatalf("unexpected calendar health: %+v", h)
	}
}

func TestEngine_NewRejectsBadCycleFile(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.CyclesFile = writeFile(t, t.TempDir(), "cycles.yaml", "authors: [not, a, map]\n")

	if _, err := New(context.Background(), cfg, Options{Player: player.Nop{}}, zerolog.Nop()); err == nil {
		t.Fatal("expected invalid cycle file to fail")
	}
}

func TestEngine_DiscordWithoutTokenFails(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Notifier = config.NotifierDiscord
	cfg.BotToken = ""

	_, err := New(context.Background(), cfg, Options{Player: player.Nop{}}, zerolog.Nop())
	if !errors.Is(err, config.ErrMissingBotToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
