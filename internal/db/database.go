package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Database records diagnostic room activity: rooms opening and closing,
// members joining and leaving. It never stores buffer contents; live room
// state exists only in memory and a drained room always restarts empty,
// regardless of what the log remembers.
type Database struct {
	db *sql.DB
}

// Activity event kinds.
const (
	EventRoomOpened = "room_opened"
	EventRoomClosed = "room_closed"
	EventJoined     = "member_joined"
	EventLeft       = "member_left"
)

// ActivityEvent is one audit row.
type ActivityEvent struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	Kind      string    `json:"kind"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_room_activity_room_id ON room_activity(room_id, id DESC);
	CREATE INDEX IF NOT EXISTS idx_room_activity_created_at ON room_activity(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) record(roomID, kind, username string) error {
	_, err := d.db.Exec(
		"INSERT INTO room_activity (room_id, kind, username) VALUES (?, ?, ?)",
		roomID, kind, username,
	)
	return err
}

func (d *Database) RecordRoomOpened(roomID string) error {
	return d.record(roomID, EventRoomOpened, "")
}

func (d *Database) RecordRoomClosed(roomID string) error {
	return d.record(roomID, EventRoomClosed, "")
}

func (d *Database) RecordJoin(roomID, username string) error {
	return d.record(roomID, EventJoined, username)
}

func (d *Database) RecordLeave(roomID, username string) error {
	return d.record(roomID, EventLeft, username)
}

// RecentActivity returns the newest events for a room, newest first.
func (d *Database) RecentActivity(roomID string, limit int) ([]ActivityEvent, error) {
	rows, err := d.db.Query(`
		SELECT id, room_id, kind, username, created_at
		FROM room_activity
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ActivityEvent
	for rows.Next() {
		var e ActivityEvent
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Kind, &e.Username, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RoomIDs returns every room that has at least one logged event.
func (d *Database) RoomIDs() ([]string, error) {
	rows, err := d.db.Query("SELECT DISTINCT room_id FROM room_activity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteActivityBefore removes events older than cutoff and returns how
// many rows went away.
func (d *Database) DeleteActivityBefore(cutoff time.Time) (int64, error) {
	result, err := d.db.Exec(
		"DELETE FROM room_activity WHERE created_at < ?",
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TrimRoomActivity keeps only the most recent keepCount events for a room.
func (d *Database) TrimRoomActivity(roomID string, keepCount int) error {
	_, err := d.db.Exec(`
		DELETE FROM room_activity
		WHERE room_id = ? AND id NOT IN (
			SELECT id FROM room_activity
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
	`, roomID, roomID, keepCount)
	return err
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := d.db.QueryRow("SELECT COUNT(DISTINCT room_id) FROM room_activity").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var eventCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM room_activity").Scan(&eventCount); err != nil {
		return nil, err
	}
	stats["event_count"] = eventCount

	var joinCount int
	if err := d.db.QueryRow(
		"SELECT COUNT(*) FROM room_activity WHERE kind = ?", EventJoined,
	).Scan(&joinCount); err != nil {
		return nil, err
	}
	stats["join_count"] = joinCount

	return stats, nil
}
