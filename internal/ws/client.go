package ws

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codecollab/backend/internal/protocol"
	"github.com/codecollab/backend/internal/ratelimit"
	"github.com/codecollab/backend/internal/roomid"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1024 * 1024
	messagesPerSecond = 100
	messageBurst      = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one user's live binding to a room: the websocket connection
// plus the (room, username) pair fixed by its join frame. roomID and
// username are set once, before the client is handed to the hub, and never
// change for the life of the session.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	roomID      string
	username    string
	connectedAt time.Time
	rateLimiter *ratelimit.Limiter

	// closed is owned by the hub loop; it guards against closing send twice
	// when a client is dropped for stalling and later unregisters.
	closed bool
}

// ServeWs upgrades the connection and starts the session pumps. The client
// is not registered with the hub until its join frame passes validation.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 512),
		id:          fmt.Sprintf("%s-%d", conn.RemoteAddr().String(), time.Now().UnixNano()),
		connectedAt: time.Now(),
		rateLimiter: ratelimit.NewLimiter(messagesPerSecond, messageBurst),
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	joined := false
	rateLimitWarnings := 0

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				log.Printf("Rate limit exceeded for client %s in room %s (warning #%d)",
					c.id, c.roomID, rateLimitWarnings)
			}
			if rateLimitWarnings > 1000 {
				log.Printf("Disconnecting client %s for excessive rate limit violations", c.id)
				return
			}
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("Invalid message from client %s: %v", c.id, err)
			continue
		}

		if !joined {
			if reason, ok := c.bindJoin(msg); !ok {
				c.reject(reason)
				return
			}
			c.hub.register <- c
			joined = true
			continue
		}

		switch msg.Type {
		case protocol.TypeLeave:
			// Explicit leave: same path as a transport close.
			return
		case protocol.TypeJoin:
			// The room binding is immutable for the session.
			c.reject("already joined")
			return
		default:
			c.hub.inbound <- &event{client: c, msg: msg}
		}
	}
}

// bindJoin validates the first frame and fixes the session's room and
// username. The room ID rule here is the same one the join form applies.
func (c *Client) bindJoin(msg protocol.Message) (string, bool) {
	if msg.Type != protocol.TypeJoin {
		return "join required", false
	}
	if !roomid.Valid(msg.Room) {
		return "invalid room id", false
	}
	username := strings.TrimSpace(msg.Username)
	if username == "" {
		return "username required", false
	}

	c.roomID = msg.Room
	c.username = username
	return "", true
}

// reject closes the connection with a policy violation so the failure is
// surfaced to this client only. WriteControl is safe alongside the write
// pump's pings.
func (c *Client) reject(reason string) {
	deadline := time.Now().Add(writeWait)
	frame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
		log.Printf("Failed to send close frame to client %s: %v", c.id, err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
