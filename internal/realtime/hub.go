package realtime

import (
	"log/slog"
	"sync"
)

// Role of a connection inside a room.
type Role string

const (
	RoleEducator    Role = "educator"
	RoleParticipant Role = "participant"
)

// DefaultSendBuffer is the per-connection queue length before a client counts as slow.
const DefaultSendBuffer = 64

// Client is one connection's membership handle. Frames queued on it are delivered in order
// by the transport's writer, which drains Outbound until it is closed.
type Client struct {
	send chan []byte

	// guarded by Hub.mu
	room   string
	closed bool

	mu            sync.Mutex
	role          Role
	participantID string
	name          string
}

// Outbound is closed when the hub drops the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// SetIdentity records who is behind the connection.
func (c *Client) SetIdentity(role Role, participantID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
	c.participantID = participantID
	c.name = name
}

// Identity returns the role and participant identity recorded by SetIdentity.
func (c *Client) Identity() (Role, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role, c.participantID, c.name
}

// Hub groups clients into rooms keyed by session code. A room exists while it has members.
// Every enqueue happens under one lock, so each client sees frames in hub emission order.
type Hub struct {
	mu         sync.Mutex
	rooms      map[string]map[*Client]struct{}
	bufferSize int
	log        *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		bufferSize: DefaultSendBuffer,
		log:        logger,
	}
}

// NewClient creates a client that is not yet in any room.
func (h *Hub) NewClient() *Client {
	return &Client{send: make(chan []byte, h.bufferSize)}
}

// Join moves c into the room of code and returns the room size.
func (h *Hub) Join(c *Client, code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return len(h.rooms[code])
	}
	if c.room != "" && c.room != code {
		h.leaveLocked(c)
	}
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[code] = room
		roomsGauge.Inc()
	}
	if _, member := room[c]; !member {
		room[c] = struct{}{}
		connectionsGauge.Inc()
	}
	c.room = code
	return len(room)
}

// Leave removes c from its room. It returns the room c was in and the size left behind.
func (h *Hub) Leave(c *Client) (string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	code := c.room
	h.leaveLocked(c)
	return code, len(h.rooms[code])
}

// Close removes c from its room and closes its outbound queue. It is safe to call more than once.
func (h *Hub) Close(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(c)
}

// Room returns the code of the room c is in, or "".
func (h *Hub) Room(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.room
}

// RoomSize reports how many clients are in the room of code.
func (h *Hub) RoomSize(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[code])
}

// Rooms reports how many rooms exist.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Send queues a private frame for c.
func (h *Hub) Send(c *Client, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(c, event, frame)
	return nil
}

// Broadcast queues a frame for every client in the room of code.
func (h *Hub) Broadcast(code, event string, payload any) error {
	return h.BroadcastExcept(code, nil, event, payload)
}

// BroadcastExcept queues a frame for every client in the room of code but except.
func (h *Hub) BroadcastExcept(code string, except *Client, event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[code] {
		if c == except {
			continue
		}
		h.enqueueLocked(c, event, frame)
	}
	return nil
}

// enqueueLocked never blocks: a client whose queue is full is dropped.
func (h *Hub) enqueueLocked(c *Client, event string, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
		messagesSent.WithLabelValues(event).Inc()
	default:
		h.log.Warn("dropping slow client", "session_code", c.room, "event", event)
		droppedClients.Inc()
		h.closeLocked(c)
	}
}

func (h *Hub) closeLocked(c *Client) {
	if c.closed {
		return
	}
	h.leaveLocked(c)
	c.closed = true
	close(c.send)
}

func (h *Hub) leaveLocked(c *Client) {
	if c.room == "" {
		return
	}
	room, ok := h.rooms[c.room]
	if !ok {
		c.room = ""
		return
	}
	if _, ok := room[c]; ok {
		delete(room, c)
		connectionsGauge.Dec()
	}
	if len(room) == 0 {
		delete(h.rooms, c.room)
		roomsGauge.Dec()
	}
	c.room = ""
}
