// Package request manages blood requests and their realtime broadcasting.
package request

import (
	"fmt"
	"time"

	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Urgency levels for a blood request.
const (
	UrgencyNormal   = "normal"
	UrgencyUrgent   = "urgent"
	UrgencyCritical = "critical"
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

// BloodRequest is a patient's need for blood broadcast to donors.
type BloodRequest struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	PatientName   string    `json:"patient_name"`
	BloodType     string    `json:"blood_type"`
	UnitsNeeded   int       `json:"units_needed"`
	Hospital      string    `json:"hospital"`
	Location      string    `json:"location,omitempty"`
	Urgency       string    `json:"urgency"`
	UrgencyNote   string    `json:"urgency_note,omitempty"`
	Status        string    `json:"status"`
	RequesterName string    `json:"requester_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateInput describes a new request.
type CreateInput struct {
	UserID      int64
	PatientName string
	BloodType   string
	UnitsNeeded int
	Hospital    string
	Location    string
	Urgency     string
	UrgencyNote string
}

// UpdateInput patches status and/or units of an existing request.
type UpdateInput struct {
	RequestID   int64
	Status      string
	UnitsNeeded int
	ActorID     int64
	ActorRole   string
}

// Filter narrows request listings.
type Filter struct {
	BloodType string
	Status    string
	Urgency   string
}

var (
	// ErrNotFound indicates an unknown request id.
	ErrNotFound = fmt.Errorf("%w: blood request not found", httpx.ErrNotFound)
	// ErrNotOwner indicates the caller may not modify the request.
	ErrNotOwner = fmt.Errorf("%w: only the requester or an admin may modify this request", httpx.ErrForbidden)
	// ErrMissingFields indicates required creation fields were omitted.
	ErrMissingFields = fmt.Errorf("%w: patient name, blood type and hospital are required", httpx.ErrValidation)
	// ErrInvalidBloodType mirrors the inventory validation for request bodies.
	ErrInvalidBloodType = fmt.Errorf("%w: blood type must be one of the 8 canonical codes", httpx.ErrValidation)
)
