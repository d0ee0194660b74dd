package player

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitStopped(t *testing.T, p Player) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.IsPlaying() {
		if time.Now().After(deadline) {
			t.Fatal("player did not stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCommandArgs(t *testing.T) {
	p := NewProcess("cvlc", []string{"--fullscreen", "--input={media}"}, zerolog.Nop())
	got := strings.Join(p.commandArgs("/v/a.mp4"), " ")
	if got != "--fullscreen --input=/v/a.mp4" {
		t.Fatalf("placeholder args: %q", got)
	}

	p = NewProcess("cvlc", []string{"--play-and-exit"}, zerolog.Nop())
	got = strings.Join(p.commandArgs("/v/a.mp4"), " ")
	if got != "--play-and-exit /v/a.mp4" {
		t.Fatalf("appended args: %q", got)
	}
}

func TestProcessPlaysToCompletion(t *testing.T) {
	media := mediaFile(t)
	p := NewProcess("sh", []string{"-c", "sleep 0.2", "player"}, zerolog.Nop())

	if err := p.Play(context.Background(), media); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !p.IsPlaying() {
		t.Fatal("expected player to be playing")
	}

	waitStopped(t, p)
	if err := p.Err(); err != nil {
		t.Fatalf("unexpected exit error: %v", err)
	}

	if err := p.Play(context.Background(), media); err != nil {
		t.Fatalf("replay after finish: %v", err)
	}
	waitStopped(t, p)
}

func TestProcessReportsExitError(t *testing.T) {
	p := NewProcess("sh", []string{"-c", "exit 3", "player"}, zerolog.Nop())
	if err := p.Play(context.Background(), mediaFile(t)); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitStopped(t, p)
	if p.Err() == nil {
		t.Fatal("expected exit error")
	}
}

func TestProcessMissingMediaFails(t *testing.T) {
	p := NewProcess("sh", []string{"-c", "exit 0"}, zerolog.Nop())
	if err := p.Play(context.Background(), filepath.Join(t.TempDir(), "absent.mp4")); err == nil {
		t.Fatal("expected missing media to fail")
	}
	if p.IsPlaying() {
		t.Fatal("nothing should be playing")
	}
}

func TestProcessPlayReplacesCurrentItem(t *testing.T) {
	dir := t.TempDir()
	slow := filepath.Join(dir, "slow.mp4")
	fast := filepath.Join(dir, "fast.mp4")
	for _, f := range []string{slow, fast} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	script := `case "$1" in *slow*) exec sleep 30;; esac`
	p := NewProcess("sh", []string{"-c", script, "player"}, zerolog.Nop())
	if err := p.Play(context.Background(), slow); err != nil {
		t.Fatalf("play slow: %v", err)
	}
	if !p.IsPlaying() {
		t.Fatal("slow item should be playing")
	}

	started := time.Now()
	if err := p.Play(context.Background(), fast); err != nil {
		t.Fatalf("play replacement: %v", err)
	}
	if time.Since(started) > 10*time.Second {
		t.Fatal("replacement waited for the previous item")
	}
	waitStopped(t, p)
	if err := p.Err(); err != nil {
		t.Fatalf("replacement exit error: %v", err)
	}
}

func TestProcessStop(t *testing.T) {
	p := NewProcess("sh", []string{"-c", "exec sleep 30", "player"}, zerolog.Nop())
	if err := p.Play(context.Background(), mediaFile(t)); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsPlaying() {
		t.Fatal("expected stopped player")
	}
}

func TestNop(t *testing.T) {
	var p Player = Nop{}
	if err := p.Play(context.Background(), "x"); err != nil || p.IsPlaying() {
		t.Fatal("nop player must never play")
	}
}
