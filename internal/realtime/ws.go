package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// StatsProvider supplies the snapshot answered to stats:request frames.
type StatsProvider interface {
	Snapshot(ctx context.Context) Stats
}

// WSHandler upgrades HTTP requests and bridges websocket connections to the
// hub.
type WSHandler struct {
	logger   *slog.Logger
	hub      *Hub
	stats    StatsProvider
	upgrader websocket.Upgrader
}

// NewWSHandler constructs WSHandler.
func NewWSHandler(logger *slog.Logger, hub *Hub, stats StatsProvider) *WSHandler {
	return &WSHandler{
		logger: logger,
		hub:    hub,
		stats:  stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The realtime feed is public; cross-origin browser clients are
			// expected. Auth happens per-frame, not at upgrade time.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}
	conn := h.hub.Register()
	h.logger.Info("client connected", slog.String("client_id", conn.ID))

	go h.writePump(ws, conn)
	h.readPump(r.Context(), ws, conn)
}

// inboundFrame mirrors Envelope with the payload left raw for per-event
// decoding.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn.ID)
		_ = ws.Close()
		h.logger.Info("client disconnected", slog.String("client_id", conn.ID))
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", slog.String("client_id", conn.ID), slog.Any("error", err))
			}
			return
		}
		h.handleFrame(ctx, conn, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, conn *Connection, frame inboundFrame) {
	switch frame.Event {
	case EventAuthenticate:
		if userID := decodeScalar(frame.Data); userID != "" {
			h.hub.Authenticate(conn.ID, userID)
		}
	case EventSubscribeType:
		if bloodType := decodeScalar(frame.Data); bloodType != "" {
			h.hub.Join(conn.ID, RoomBloodType(bloodType))
			h.logger.Debug("client subscribed",
				slog.String("client_id", conn.ID),
				slog.String("blood_type", bloodType))
		}
	case EventStatsRequest:
		if h.stats != nil {
			h.hub.Send(conn.ID, EventStatsUpdate, h.stats.Snapshot(ctx))
		}
	case EventMessageSend:
		var msg struct {
			RecipientID json.RawMessage `json:"recipientId"`
			Message     string          `json:"message"`
		}
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return
		}
		recipient := decodeScalar(msg.RecipientID)
		if recipient == "" || msg.Message == "" {
			return
		}
		h.hub.PublishRoom(RoomUser(recipient), EventMessageReceived, DirectMessage{
			SenderID:  h.hub.UserOf(conn.ID),
			Message:   msg.Message,
			Timestamp: time.Now().UTC(),
		})
	default:
		h.logger.Debug("unknown client event",
			slog.String("client_id", conn.ID),
			slog.String("event", frame.Event))
	}
}

func (h *WSHandler) writePump(ws *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case env, ok := <-conn.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// decodeScalar accepts both a JSON string and a JSON number, since clients
// send user ids either way.
func decodeScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
