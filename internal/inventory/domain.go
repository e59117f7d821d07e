package inventory

import (
	"fmt"
	"time"

	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Action enumerates supported inventory delta kinds.
type Action string

const (
	// ActionSet replaces the unit count.
	ActionSet Action = "set"
	// ActionAdd increments the unit count.
	ActionAdd Action = "add"
	// ActionSubtract decrements the unit count, clamped at zero.
	ActionSubtract Action = "subtract"
)

// BloodTypes lists the 8 canonical ABO/Rh codes in display order.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodType reports whether code is one of the canonical blood types.
func ValidBloodType(code string) bool {
	for _, t := range BloodTypes {
		if t == code {
			return true
		}
	}
	return false
}

// Record is one persisted (bank, blood type) unit count.
type Record struct {
	BankID      int64     `json:"bank_id,omitempty"`
	BloodType   string    `json:"blood_type"`
	Units       int       `json:"units"`
	LastUpdated time.Time `json:"last_updated"`
}

// DeltaInput describes a requested change to a unit count.
type DeltaInput struct {
	BankID    int64
	BloodType string
	Action    Action
	Amount    int
	ActorID   int64
}

// Domain errors wrap the httpx sentinels so handlers map them without
// knowing this package's error set.
var (
	ErrBankNotFound     = fmt.Errorf("%w: blood bank not found", httpx.ErrNotFound)
	ErrInvalidBloodType = fmt.Errorf("%w: blood type must be one of the 8 canonical codes", httpx.ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be a non-negative integer", httpx.ErrValidation)
	ErrInvalidAction    = fmt.Errorf("%w: action must be set, add or subtract", httpx.ErrValidation)
)
