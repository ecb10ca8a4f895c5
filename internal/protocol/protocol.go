package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Message is the single tagged variant exchanged over a room connection.
// Only the fields relevant to a given type are populated.
type Message struct {
	Type     string   `json:"type"`
	Room     string   `json:"room,omitempty"`
	Username string   `json:"username,omitempty"`
	Code     string   `json:"code,omitempty"`
	Language string   `json:"language,omitempty"`
	Users    []string `json:"users,omitempty"`
	Version  int64    `json:"version,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Client to server message types.
const (
	TypeJoin     = "join"     // {room, username}
	TypeEdit     = "edit"     // {room, code}
	TypeLanguage = "language" // {room, language}; also the server broadcast
	TypeLeave    = "leave"
)

// Server to client message types.
const (
	TypeMembers = "members" // {users}, full membership snapshot
	TypeJoined  = "joined"  // {username}
	TypeLeft    = "left"    // {username}
	TypeCode    = "code"    // {code, version}
	TypeSync    = "sync"    // hint: re-fetch full state if out of date
	TypeError   = "error"   // {error}
)

// Decode parses a client frame. Frames with a missing or unknown type are
// rejected so the broker's dispatch stays exhaustive.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	switch msg.Type {
	case TypeJoin, TypeEdit, TypeLanguage, TypeLeave:
		return msg, nil
	case "":
		return Message{}, fmt.Errorf("message has no type")
	default:
		return Message{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// Encode serializes a message for the wire.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// VersionGate tracks the newest code version seen per room so a consumer
// can detect updates the transport delivered out of order. The server
// itself never reorders (one loop serializes each room), but independent
// per-connection delivery can; stale arrivals should be dropped, not
// applied.
type VersionGate struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewVersionGate() *VersionGate {
	return &VersionGate{last: make(map[string]int64)}
}

// Admit reports whether an update carrying version should be applied for
// the room, recording it as the newest seen when it should.
func (g *VersionGate) Admit(room string, version int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if version <= g.last[room] {
		return false
	}
	g.last[room] = version
	return true
}

// Forget drops tracking state for a room, e.g. after leaving it. A room
// drained of members restarts at version zero, so stale tracking would
// wrongly reject updates from its next life.
func (g *VersionGate) Forget(room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, room)
}
