package ws

import (
	"log"
	"sync"
	"time"

	"github.com/codecollab/backend/internal/db"
	"github.com/codecollab/backend/internal/protocol"
	"github.com/codecollab/backend/internal/room"
)

// event is one decoded client intent waiting for the hub loop.
type event struct {
	client *Client
	msg    protocol.Message
}

// Hub is the synchronization broker. Every room mutation and broadcast in
// the process happens on its single Run loop, so no two events for the
// same room are ever applied concurrently and recipients in a room see
// broadcasts in the order the originating events were processed.
type Hub struct {
	registry *room.Registry
	database *db.Database // optional; nil disables activity logging

	// Registered clients, and clients by room for fan-out.
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *event

	mu sync.RWMutex
}

func NewHub(database *db.Database) *Hub {
	return &Hub{
		registry:   room.NewRegistry(),
		database:   database,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *event, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleJoin(client)

		case client := <-h.unregister:
			h.handleLeave(client)

		case ev := <-h.inbound:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) handleJoin(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	if _, ok := h.rooms[c.roomID]; !ok {
		h.rooms[c.roomID] = make(map[*Client]bool)
	}
	h.rooms[c.roomID][c] = true
	h.mu.Unlock()

	r := h.registry.GetOrCreate(c.roomID)
	r.AddMember(c.id, c.username)

	// Catch the joiner up on current state before any presence traffic.
	code, language, version := r.Snapshot()
	h.sendTo(c, protocol.Message{Type: protocol.TypeCode, Code: code, Version: version})
	h.sendTo(c, protocol.Message{Type: protocol.TypeLanguage, Language: language})

	users := r.Members()
	h.broadcastRoom(c.roomID, nil, protocol.Message{Type: protocol.TypeMembers, Users: users})
	h.broadcastRoom(c.roomID, c, protocol.Message{Type: protocol.TypeJoined, Username: c.username})

	if h.database != nil {
		if len(users) == 1 {
			h.logActivity(h.database.RecordRoomOpened(c.roomID))
		}
		h.logActivity(h.database.RecordJoin(c.roomID, c.username))
	}

	log.Printf("%s joined room %s (members: %d)", c.username, c.roomID, len(users))
}

func (h *Hub) handleLeave(c *Client) {
	h.mu.Lock()
	registered := h.clients[c]
	if registered {
		delete(h.clients, c)
		if peers, ok := h.rooms[c.roomID]; ok {
			delete(peers, c)
			if len(peers) == 0 {
				delete(h.rooms, c.roomID)
			}
		}
	}
	h.mu.Unlock()

	h.closeSend(c)

	if !registered {
		// Join was rejected, or the client was already dropped for
		// stalling; nothing to unwind.
		return
	}

	r, ok := h.registry.Get(c.roomID)
	if !ok {
		return
	}

	username, remaining := r.RemoveMember(c.id)
	if remaining == 0 {
		h.registry.Remove(c.roomID)
		log.Printf("Room %s closed (empty)", c.roomID)
		if h.database != nil {
			h.logActivity(h.database.RecordLeave(c.roomID, username))
			h.logActivity(h.database.RecordRoomClosed(c.roomID))
		}
		return
	}

	h.broadcastRoom(c.roomID, nil, protocol.Message{Type: protocol.TypeLeft, Username: username})
	h.broadcastRoom(c.roomID, nil, protocol.Message{Type: protocol.TypeMembers, Users: r.Members()})

	if h.database != nil {
		h.logActivity(h.database.RecordLeave(c.roomID, username))
	}

	log.Printf("%s left room %s after %s (remaining: %d)",
		username, c.roomID, time.Since(c.connectedAt).Round(time.Second), remaining)
}

func (h *Hub) handleEvent(ev *event) {
	c := ev.client

	h.mu.RLock()
	registered := h.clients[c]
	h.mu.RUnlock()

	// A straggler from a connection that already left; the room may even be
	// gone. Drop it silently rather than resurrecting state.
	if !registered {
		return
	}

	r, ok := h.registry.Get(c.roomID)
	if !ok {
		return
	}

	switch ev.msg.Type {
	case protocol.TypeEdit:
		version := r.ApplyEdit(ev.msg.Code)
		h.broadcastRoom(c.roomID, c, protocol.Message{
			Type:    protocol.TypeCode,
			Code:    ev.msg.Code,
			Version: version,
		})
		// Coherency hint: peers that missed updates should re-fetch.
		h.broadcastRoom(c.roomID, c, protocol.Message{Type: protocol.TypeSync})

	case protocol.TypeLanguage:
		r.ApplyLanguage(ev.msg.Language)
		h.broadcastRoom(c.roomID, c, protocol.Message{
			Type:     protocol.TypeLanguage,
			Language: ev.msg.Language,
		})
	}
}

// broadcastRoom fans a message out to every client in the room except
// exclude. Sends are independent and never block: a client whose send
// buffer is full is dropped so it cannot delay delivery to the others, and
// the state mutation that triggered the broadcast stands either way.
func (h *Hub) broadcastRoom(roomID string, exclude *Client, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("Failed to encode %s broadcast: %v", msg.Type, err)
		return
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != exclude {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if c.closed {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("Dropping stalled client %s in room %s", c.id, roomID)
			h.handleLeave(c)
		}
	}
}

// sendTo delivers a message to a single client with the same fail-open
// semantics as a broadcast.
func (h *Hub) sendTo(c *Client, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", msg.Type, err)
		return
	}

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Dropping stalled client %s in room %s", c.id, c.roomID)
		h.handleLeave(c)
	}
}

// closeSend runs on the hub loop only; closed stops a second close when a
// dropped client's read pump later unregisters it.
func (h *Hub) closeSend(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) logActivity(err error) {
	if err != nil {
		log.Printf("Failed to record activity: %v", err)
	}
}

// GetRoomCount returns the number of rooms with at least one member.
func (h *Hub) GetRoomCount() int {
	return h.registry.Count()
}

// GetClientCount returns the number of joined sessions.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetActiveRooms returns member counts keyed by room ID.
func (h *Hub) GetActiveRooms() map[string]int {
	return h.registry.ActiveRooms()
}

// RoomMembers returns the member list for an active room in join order.
func (h *Hub) RoomMembers(roomID string) ([]string, bool) {
	r, ok := h.registry.Get(roomID)
	if !ok {
		return nil, false
	}
	return r.Members(), true
}
