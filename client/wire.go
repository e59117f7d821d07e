// Package client is the realtime adapter SDK for LifeLink consumers. It keeps
// its own copies of the wire types so importers do not pull server internals.
package client

import (
	"encoding/json"
	"time"
)

// Event names mirrored from the server wire protocol.
const (
	eventInventoryUpdated = "inventory:updated"
	eventNotification     = "notification"
	eventStatsUpdate      = "stats:update"
	eventAuthenticate     = "authenticate"
	eventSubscribeType    = "subscribe:bloodType"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InventoryRecord is one blood-type stock level at a bank.
type InventoryRecord struct {
	BankID      int64     `json:"bank_id,omitempty"`
	BloodType   string    `json:"blood_type"`
	Units       int       `json:"units"`
	LastUpdated time.Time `json:"last_updated"`
}

type inventoryUpdate struct {
	BankID    int64             `json:"bankId"`
	Inventory []InventoryRecord `json:"inventory"`
}

type inventoryResponse struct {
	Inventory []InventoryRecord `json:"inventory"`
}

// Notification is a transient alert pushed by the server.
type Notification struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	BankID  int64           `json:"bankId,omitempty"`
	Request json.RawMessage `json:"request,omitempty"`
}

// Stats is the periodic aggregate snapshot.
type Stats struct {
	DonorsOnline   int       `json:"donorsOnline"`
	RequestsActive int       `json:"requestsActive"`
	LivesSaved     int64     `json:"livesSaved"`
	Timestamp      time.Time `json:"timestamp"`
}
