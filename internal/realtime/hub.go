package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// connSendBuffer bounds the per-connection outbound queue. A slow consumer
// drops events rather than blocking publishers; delivery is at-most-once.
const connSendBuffer = 32

// Connection is one registered subscriber with a buffered outbound queue.
type Connection struct {
	ID     string
	UserID string
	send   chan Envelope
}

// Events returns the outbound event stream for this connection. The channel
// is closed when the connection is unregistered or the hub shuts down.
func (c *Connection) Events() <-chan Envelope {
	return c.send
}

// Hub is the connection registry and fan-out publisher. It owns no domain
// state; it only relays events derived from committed store mutations.
// Room membership is process-local and rebuilt on every connection.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[string]*Connection
	rooms  map[string]map[string]*Connection
	closed bool

	onCountChange func(int)
	onPublish     func(event string)
	dropped       atomic.Uint64
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*Connection),
		rooms:  make(map[string]map[string]*Connection),
	}
}

// OnConnectedCountChange registers a callback invoked with the connection
// count after every register/unregister. Used for the metrics gauge.
func (h *Hub) OnConnectedCountChange(fn func(int)) {
	h.mu.Lock()
	h.onCountChange = fn
	h.mu.Unlock()
}

// OnPublish registers a callback invoked with the event name on every
// publish. Used for the event counter.
func (h *Hub) OnPublish(fn func(event string)) {
	h.mu.Lock()
	h.onPublish = fn
	h.mu.Unlock()
}

// Register creates a connection with an ephemeral client id.
func (h *Hub) Register() *Connection {
	conn := &Connection{
		ID:   uuid.NewString(),
		send: make(chan Envelope, connSendBuffer),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(conn.send)
		return conn
	}
	h.conns[conn.ID] = conn
	count := len(h.conns)
	fn := h.onCountChange
	h.mu.Unlock()

	if fn != nil {
		fn(count)
	}
	return conn
}

// Unregister removes the connection, wipes its room memberships and closes
// its event stream, then broadcasts the updated online count.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	conn, ok := h.conns[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, clientID)
	for room, members := range h.rooms {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(conn.send)
	count := len(h.conns)
	fn := h.onCountChange
	h.mu.Unlock()

	if fn != nil {
		fn(count)
	}
	h.Publish(EventStatsUpdate, onlineCount{DonorsOnline: count})
}

// Authenticate associates the connection with a user and joins the personal
// room, then broadcasts the updated online count.
func (h *Hub) Authenticate(clientID, userID string) {
	h.mu.Lock()
	conn, ok := h.conns[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	conn.UserID = userID
	h.joinLocked(clientID, RoomUser(userID))
	count := len(h.conns)
	h.mu.Unlock()

	h.Publish(EventStatsUpdate, onlineCount{DonorsOnline: count})
}

// UserOf returns the authenticated user id of a connection, empty when the
// connection is unknown or anonymous.
func (h *Hub) UserOf(clientID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn, ok := h.conns[clientID]; ok {
		return conn.UserID
	}
	return ""
}

// Join adds the connection to a logical room.
func (h *Hub) Join(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[clientID]; !ok {
		return
	}
	h.joinLocked(clientID, room)
}

func (h *Hub) joinLocked(clientID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Connection)
		h.rooms[room] = members
	}
	members[clientID] = h.conns[clientID]
}

// Publish emits the event to every connection. Sends never block: a full
// buffer drops the event for that subscriber.
func (h *Hub) Publish(event string, payload any) {
	env := Envelope{Event: event, Data: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if h.onPublish != nil {
		h.onPublish(event)
	}
	for _, conn := range h.conns {
		h.deliverLocked(conn, env)
	}
}

// PublishRoom emits the event only to room members.
func (h *Hub) PublishRoom(room, event string, payload any) {
	env := Envelope{Event: event, Data: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if h.onPublish != nil {
		h.onPublish(event)
	}
	for _, conn := range h.rooms[room] {
		h.deliverLocked(conn, env)
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(clientID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn, ok := h.conns[clientID]; ok {
		h.deliverLocked(conn, Envelope{Event: event, Data: payload})
	}
}

func (h *Hub) deliverLocked(conn *Connection, env Envelope) {
	select {
	case conn.send <- env:
	default:
		h.dropped.Add(1)
		h.logger.Debug("dropped event for slow subscriber",
			slog.String("client_id", conn.ID),
			slog.String("event", env.Event))
	}
}

// ConnectedCount returns the number of registered connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// RoomSize returns the number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close detaches every connection. Further publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, conn := range h.conns {
		close(conn.send)
		delete(h.conns, id)
	}
	h.rooms = make(map[string]map[string]*Connection)
}

type onlineCount struct {
	DonorsOnline int `json:"donorsOnline"`
}
