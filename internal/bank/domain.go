// Package bank manages the blood-bank registry. Each bank owns one
// inventory row per canonical blood type, seeded at creation time and
// mutated only through the inventory update engine.
package bank

import (
	"fmt"
	"time"

	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// BloodBank is a physical blood-bank location.
type BloodBank struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Phone     string    `json:"phone,omitempty"`
	Hours     string    `json:"hours,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WithInventory pairs a bank with its current inventory snapshot.
type WithInventory struct {
	BloodBank
	Inventory []inventory.Record `json:"inventory"`
}

// CreateInput describes a new bank.
type CreateInput struct {
	Name     string
	Location string
	Phone    string
	Hours    string
	ActorID  int64
}

var (
	// ErrNotFound indicates an unknown bank id.
	ErrNotFound = fmt.Errorf("%w: blood bank not found", httpx.ErrNotFound)
	// ErrMissingFields indicates name or location was omitted.
	ErrMissingFields = fmt.Errorf("%w: name and location are required", httpx.ErrValidation)
)
