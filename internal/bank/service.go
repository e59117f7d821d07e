package bank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifelink/lifelink/internal/audit"
	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/realtime"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, input CreateInput) (BloodBank, error)
	GetByID(ctx context.Context, id int64) (BloodBank, error)
	Search(ctx context.Context, search string) ([]WithInventory, error)
}

// InventoryPort seeds and reads per-bank inventory.
type InventoryPort interface {
	SeedBank(ctx context.Context, bankID int64) error
	ListByBank(ctx context.Context, bankID int64) ([]inventory.Record, error)
}

// Publisher fans events out to connected clients.
type Publisher interface {
	Publish(event string, payload any)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service coordinates blood-bank registry operations.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	publisher Publisher
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, inv InventoryPort, publisher Publisher, auditor AuditPort) *Service {
	return &Service{repo: repo, inventory: inv, publisher: publisher, audit: auditor, logger: logger}
}

// Create registers a bank and seeds its 8 zero-unit inventory rows, then
// announces it to connected clients. Seeding is retry-safe; if it fails the
// lazy upsert in the update engine heals missing rows on first delta.
func (s *Service) Create(ctx context.Context, input CreateInput) (BloodBank, error) {
	if input.Name == "" || input.Location == "" {
		return BloodBank{}, ErrMissingFields
	}
	bank, err := s.repo.Insert(ctx, input)
	if err != nil {
		return BloodBank{}, fmt.Errorf("bank: insert: %w", err)
	}
	if err := s.inventory.SeedBank(ctx, bank.ID); err != nil {
		s.logger.Warn("seed bank inventory", slog.Int64("bank_id", bank.ID), slog.Any("error", err))
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventBankCreated, bank)
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, audit.Entry{
			ActorID:  input.ActorID,
			Action:   "bank:create",
			Entity:   "blood_banks",
			EntityID: fmt.Sprintf("%d", bank.ID),
			Meta:     map[string]any{"name": bank.Name, "location": bank.Location},
		})
		if err != nil {
			s.logger.Warn("record bank audit", slog.Any("error", err))
		}
	}
	return bank, nil
}

// Get returns one bank with its inventory.
func (s *Service) Get(ctx context.Context, id int64) (WithInventory, error) {
	bank, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return WithInventory{}, err
	}
	records, err := s.inventory.ListByBank(ctx, id)
	if err != nil {
		return WithInventory{}, fmt.Errorf("bank: list inventory: %w", err)
	}
	return WithInventory{BloodBank: bank, Inventory: records}, nil
}

// List returns all banks with inventory, optionally filtered.
func (s *Service) List(ctx context.Context, search string) ([]WithInventory, error) {
	return s.repo.Search(ctx, search)
}
