package logbuffer

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuffer_WrapsAtCapacity(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		b.Add(LogEntry{Message: msg})
	}

	all := b.All()
	if len(all) != 3 || b.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, want := range []string{"c", "d", "e"} {
		if all[i].Message != want {
			t.Fatalf("entry %d: got %q, want %q", i, all[i].Message, want)
		}
	}
}

func TestWriter_CapturesZerologFields(t *testing.T) {
	b := New(10)
	var copyOut bytes.Buffer
	logger := zerolog.New(NewWriter(b, &copyOut)).With().Timestamp().Logger()

	logger.Info().Str("component", "playout").Int("session", 7).Msg("session started")
	logger.Warn().Str("component", "scheduler").Int("session", 8).Msg("trigger missed")
	logger.Info().Str("component", "playout").Int("session", 8).Msg("session started")

	if copyOut.Len() == 0 {
		t.Fatal("expected fallback writer to receive output")
	}

	entries := b.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Component != "playout" || entries[0].Level != "info" || entries[0].Message != "session started" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if _, ok := entries[0].Fields["component"]; ok {
		t.Fatal("component should not be duplicated in fields")
	}

	got := b.Query(Query{SessionID: 8})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for session 8, got %d", len(got))
	}
	got = b.Query(Query{Level: "warn"})
	if len(got) != 1 || got[0].Message != "trigger missed" {
		t.Fatalf("level filter: %+v", got)
	}
	got = b.Query(Query{Component: "playout", Limit: 1, NewestFirst: true})
	if len(got) != 1 || sessionField(got[0].Fields) != 8 {
		t.Fatalf("limit should keep the newest entry: %+v", got)
	}
	got = b.Query(Query{Search: "MISSED"})
	if len(got) != 1 {
		t.Fatalf("search should ignore case: %+v", got)
	}
}

func TestWriter_IgnoresNonJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)
	n, err := w.Write([]byte("plain text\n"))
	if err != nil || n != len("plain text\n") {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected nothing captured, got %d", b.Len())
	}
}
