package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/friendsincode/sessioncast/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(&models.PlaybackStatus{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewSQLStore(database, zerolog.Nop())
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, "sessioncast:test", zerolog.Nop())
}

func TestStores_RoundTripAndIdleDefault(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "status.json"), zerolog.Nop())
		},
		"sql":   func(t *testing.T) Store { return newSQLStore(t) },
		"redis": func(t *testing.T) Store { return newRedisStore(t) },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("initial load: %v", err)
			}
			if !got.IsIdle() || got.SessionName != models.IdleSessionName {
				t.Fatalf("expected idle default, got %+v", got)
			}

			want := models.PlaybackStatus{SessionName: "Session-7", SessionID: 7, Position: 2}
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.SessionID != 7 || got.SessionName != "Session-7" || got.Position != 2 {
				t.Fatalf("round trip mismatch: %+v", got)
			}

			if err := store.Save(ctx, models.IdleStatus()); err != nil {
				t.Fatalf("save idle: %v", err)
			}
			got, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("load idle: %v", err)
			}
			if !got.IsIdle() {
				t.Fatalf("expected idle after reset, got %+v", got)
			}
		})
	}
}

func TestFileStore_WritesStatusJSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := store.Save(context.Background(), models.PlaybackStatus{SessionName: "Keynote", SessionID: 3, Position: 4}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := `{"session_name":"Keynote","session_number":3,"playback_number":4}`
	if string(data) != want {
		t.Fatalf("status layout:\n got %s\nwant %s", data, want)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewFileStore(path, zerolog.Nop()).Load(context.Background())
	if !errors.Is(err, ErrCorruptStatus) {
		t.Fatalf("expected ErrCorruptStatus, got %v", err)
	}
}

func TestRedisStore_CorruptField(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	if err := store.client.HSet(ctx, store.key, fieldSessionNumber, "seven", fieldPlayback, "1").Err(); err != nil {
		t.Fatalf("hset: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrCorruptStatus) {
		t.Fatalf("expected ErrCorruptStatus, got %v", err)
	}
}
