package db

import (
	"testing"

	"github.com/friendsincode/sessioncast/internal/config"
	"github.com/friendsincode/sessioncast/internal/models"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{DBBackend: config.DatabaseSQLite, DBDSN: "file:dbtest?mode=memory&cache=shared"}

	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !database.Migrator().HasTable(&models.PlaybackStatus{}) {
		t.Fatal("expected playback_status table")
	}
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{DBBackend: "oracle", DBDSN: "x"}
	if _, err := Connect(cfg); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}
