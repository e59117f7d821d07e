// Package realtime fans state-change events out to connected clients.
package realtime

import "time"

// Server-to-client event names. Values match the wire protocol the web and
// mobile clients already speak.
const (
	EventInventoryUpdated = "inventory:updated"
	EventNotification     = "notification"
	EventStatsUpdate      = "stats:update"
	EventRequestCreated   = "request:created"
	EventRequestUpdated   = "request:updated"
	EventRequestDeleted   = "request:deleted"
	EventBankCreated      = "bank:created"
	EventMessageReceived  = "message:received"
)

// Client-to-server event names.
const (
	EventAuthenticate  = "authenticate"
	EventSubscribeType = "subscribe:bloodType"
	EventStatsRequest  = "stats:request"
	EventMessageSend   = "message:send"
)

// Notification kinds.
const (
	NotificationLowStock      = "low_stock"
	NotificationUrgentRequest = "urgent_request"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InventoryUpdated carries the full authoritative inventory snapshot of one
// bank after a mutation committed. Inventory is kept opaque here so the hub
// stays independent of the inventory package.
type InventoryUpdated struct {
	BankID    int64 `json:"bankId"`
	Inventory any   `json:"inventory"`
	Bank      any   `json:"bank,omitempty"`
}

// Notification is a transient alert pushed to clients.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	BankID  int64  `json:"bankId,omitempty"`
	Request any    `json:"request,omitempty"`
}

// Stats is the periodic liveness snapshot broadcast to every client.
type Stats struct {
	DonorsOnline   int       `json:"donorsOnline"`
	RequestsActive int       `json:"requestsActive"`
	LivesSaved     int64     `json:"livesSaved"`
	Timestamp      time.Time `json:"timestamp"`
}

// DirectMessage is a chat message relayed to the recipient's personal room.
type DirectMessage struct {
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomUser returns the personal room name for a user id.
func RoomUser(userID string) string { return "user:" + userID }

// RoomBloodType returns the interest room name for a blood type.
func RoomBloodType(bloodType string) string { return "bloodType:" + bloodType }
