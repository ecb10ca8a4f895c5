package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codecollab/backend/internal/db"
)

func setupTestService(t *testing.T, config Config) (*Service, *db.Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "collab-retention-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	service := New(database, config)

	cleanup := func() {
		database.Close()
		os.RemoveAll(tmpDir)
	}

	return service, database, cleanup
}

func TestPruneTrimsPerRoom(t *testing.T) {
	config := DefaultConfig()
	config.KeepPerRoom = 3

	service, database, cleanup := setupTestService(t, config)
	defer cleanup()

	for i := 0; i < 10; i++ {
		database.RecordJoin("room-a", "Alice")
	}
	database.RecordJoin("room-b", "Bob")

	service.PruneNow()

	events, err := database.RecentActivity("room-a", 100)
	if err != nil {
		t.Fatalf("Failed to read activity: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Expected 3 events after prune, got %d", len(events))
	}

	events, _ = database.RecentActivity("room-b", 100)
	if len(events) != 1 {
		t.Errorf("Expected room-b untouched, got %d events", len(events))
	}
}

func TestPruneRemovesExpired(t *testing.T) {
	config := DefaultConfig()
	config.MaxAge = -time.Second // everything is already expired

	service, database, cleanup := setupTestService(t, config)
	defer cleanup()

	database.RecordJoin("room-a", "Alice")
	database.RecordJoin("room-a", "Bob")

	service.PruneNow()

	events, err := database.RecentActivity("room-a", 100)
	if err != nil {
		t.Fatalf("Failed to read activity: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected all events pruned, got %d", len(events))
	}
}

func TestStartStop(t *testing.T) {
	service, database, cleanup := setupTestService(t, DefaultConfig())
	defer cleanup()

	database.RecordJoin("room-a", "Alice")

	service.Start()
	service.Stop()

	// The initial pass ran with default limits; nothing should be lost.
	events, _ := database.RecentActivity("room-a", 100)
	if len(events) != 1 {
		t.Errorf("Expected 1 event to survive, got %d", len(events))
	}
}
