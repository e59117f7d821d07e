package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifelink/lifelink/internal/audit"
	"github.com/lifelink/lifelink/internal/realtime"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	ApplyDelta(ctx context.Context, bankID int64, bloodType string, action Action, amount int) (Record, error)
	ListByBank(ctx context.Context, bankID int64) ([]Record, error)
}

// BankDirectory reports whether a bank id references a known bank.
type BankDirectory interface {
	Exists(ctx context.Context, bankID int64) (bool, error)
}

// Publisher fans events out to connected clients. Publishing is
// fire-and-forget: delivery failures never reach the caller.
type Publisher interface {
	Publish(event string, payload any)
}

// AlertPort queues out-of-band alert delivery (email digests etc).
type AlertPort interface {
	LowStock(ctx context.Context, bankID int64, bloodTypes []string, message string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service is the inventory update engine: it applies deltas atomically,
// evaluates the low-stock policy and broadcasts the resulting state.
type Service struct {
	repo      RepositoryPort
	banks     BankDirectory
	publisher Publisher
	alerts    AlertPort
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds Service. Publisher, alerts and audit may be nil in tests.
func NewService(logger *slog.Logger, repo RepositoryPort, banks BankDirectory, publisher Publisher, alerts AlertPort, auditor AuditPort) *Service {
	return &Service{
		repo:      repo,
		banks:     banks,
		publisher: publisher,
		alerts:    alerts,
		audit:     auditor,
		logger:    logger,
	}
}

// ApplyDelta applies one set/add/subtract delta to a (bank, blood type)
// unit count and returns the full updated inventory for the bank. The
// read-modify-write happens inside a single store statement, so concurrent
// deltas on the same key are serialised by the store and never lost.
func (s *Service) ApplyDelta(ctx context.Context, input DeltaInput) ([]Record, error) {
	switch input.Action {
	case ActionSet, ActionAdd, ActionSubtract:
	default:
		return nil, ErrInvalidAction
	}
	if !ValidBloodType(input.BloodType) {
		return nil, ErrInvalidBloodType
	}
	if input.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	exists, err := s.banks.Exists(ctx, input.BankID)
	if err != nil {
		return nil, fmt.Errorf("inventory: check bank: %w", err)
	}
	if !exists {
		return nil, ErrBankNotFound
	}

	changed, err := s.repo.ApplyDelta(ctx, input.BankID, input.BloodType, input.Action, input.Amount)
	if err != nil {
		return nil, fmt.Errorf("inventory: apply delta: %w", err)
	}

	list, err := s.repo.ListByBank(ctx, input.BankID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list after delta: %w", err)
	}

	s.broadcast(ctx, input, changed, list)
	s.record(ctx, input, changed)

	return list, nil
}

// List returns the full inventory for one bank.
func (s *Service) List(ctx context.Context, bankID int64) ([]Record, error) {
	exists, err := s.banks.Exists(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("inventory: check bank: %w", err)
	}
	if !exists {
		return nil, ErrBankNotFound
	}
	return s.repo.ListByBank(ctx, bankID)
}

// broadcast emits inventory:updated and, when the changed record dropped
// below the threshold, a single batched low-stock notification. Only
// records touched by this call are alerted on; types already low from
// earlier updates do not re-fire.
func (s *Service) broadcast(ctx context.Context, input DeltaInput, changed Record, list []Record) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.EventInventoryUpdated, realtime.InventoryUpdated{
		BankID:    input.BankID,
		Inventory: list,
	})

	low := LowStock([]Record{changed})
	if len(low) == 0 {
		return
	}
	message := LowStockMessage(low)
	s.publisher.Publish(realtime.EventNotification, realtime.Notification{
		Type:    realtime.NotificationLowStock,
		Message: message,
		BankID:  input.BankID,
	})
	if s.alerts != nil {
		types := make([]string, 0, len(low))
		for _, rec := range low {
			types = append(types, rec.BloodType)
		}
		if err := s.alerts.LowStock(ctx, input.BankID, types, message); err != nil {
			s.logger.Warn("enqueue low stock alert", slog.Int64("bank_id", input.BankID), slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, input DeltaInput, changed Record) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, audit.Entry{
		ActorID:  input.ActorID,
		Action:   fmt.Sprintf("inventory:%s", input.Action),
		Entity:   "blood_inventory",
		EntityID: fmt.Sprintf("%d:%s", input.BankID, input.BloodType),
		Meta: map[string]any{
			"bank_id":    input.BankID,
			"blood_type": input.BloodType,
			"amount":     input.Amount,
			"units":      changed.Units,
		},
	})
	if err != nil {
		s.logger.Warn("record inventory audit", slog.Any("error", err))
	}
}
