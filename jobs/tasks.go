// Package jobs defines the background alert queue built on Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueAlerts is the queue name for notification delivery jobs.
	QueueAlerts = "alerts"
	// TaskTypeLowStockAlert delivers a low-stock digest to bank staff.
	TaskTypeLowStockAlert = "alert:low_stock"
	// TaskTypeUrgentRequestAlert notifies matching donors about an urgent request.
	TaskTypeUrgentRequestAlert = "alert:urgent_request"
)

// LowStockPayload describes a low-stock alert.
type LowStockPayload struct {
	BankID     int64     `json:"bank_id"`
	BloodTypes []string  `json:"blood_types"`
	Message    string    `json:"message"`
	RaisedAt   time.Time `json:"raised_at"`
}

// UrgentRequestPayload describes an urgent blood request alert.
type UrgentRequestPayload struct {
	RequestID   int64  `json:"request_id"`
	BloodType   string `json:"blood_type"`
	Hospital    string `json:"hospital"`
	Urgency     string `json:"urgency"`
	PatientName string `json:"patient_name"`
}

// NewLowStockTask constructs an Asynq task for a low-stock alert.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockAlert, data), nil
}

// NewUrgentRequestTask constructs an Asynq task for an urgent request alert.
func NewUrgentRequestTask(payload UrgentRequestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeUrgentRequestAlert, data), nil
}

// HandleLowStockAlertTask processes TaskTypeLowStockAlert tasks.
// Placeholder delivery: logs the alert until SMTP wiring lands.
func HandleLowStockAlertTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("deliver low stock alert",
			slog.Int64("bank_id", payload.BankID),
			slog.Any("blood_types", payload.BloodTypes),
			slog.String("message", payload.Message))
		return nil
	}
}

// HandleUrgentRequestAlertTask processes TaskTypeUrgentRequestAlert tasks.
func HandleUrgentRequestAlertTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload UrgentRequestPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("deliver urgent request alert",
			slog.Int64("request_id", payload.RequestID),
			slog.String("blood_type", payload.BloodType),
			slog.String("hospital", payload.Hospital))
		return nil
	}
}
