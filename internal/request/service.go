package request

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/realtime"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, input CreateInput) (BloodRequest, error)
	GetByID(ctx context.Context, id int64) (BloodRequest, error)
	List(ctx context.Context, filter Filter) ([]BloodRequest, error)
	Update(ctx context.Context, id int64, status string, unitsNeeded int) (BloodRequest, error)
	Delete(ctx context.Context, id int64) error
}

// Publisher fans events out to connected clients, globally and per room.
type Publisher interface {
	Publish(event string, payload any)
	PublishRoom(room, event string, payload any)
}

// AlertPort queues out-of-band urgent-request alert delivery.
type AlertPort interface {
	UrgentRequest(ctx context.Context, req BloodRequest) error
}

// LivesRecorder bumps the fulfilled-request counter behind the stats feed.
type LivesRecorder interface {
	RecordLifeSaved(ctx context.Context)
}

// Service coordinates blood-request operations.
type Service struct {
	repo      RepositoryPort
	publisher Publisher
	alerts    AlertPort
	lives     LivesRecorder
	logger    *slog.Logger
}

// NewService builds Service. Publisher, alerts and lives may be nil in tests.
func NewService(logger *slog.Logger, repo RepositoryPort, publisher Publisher, alerts AlertPort, lives LivesRecorder) *Service {
	return &Service{repo: repo, publisher: publisher, alerts: alerts, lives: lives, logger: logger}
}

// Create stores a request, announces it to all clients and to the matching
// blood-type room, and raises a notification for urgent or critical needs.
func (s *Service) Create(ctx context.Context, input CreateInput) (BloodRequest, error) {
	if input.PatientName == "" || input.BloodType == "" || input.Hospital == "" {
		return BloodRequest{}, ErrMissingFields
	}
	if !inventory.ValidBloodType(input.BloodType) {
		return BloodRequest{}, ErrInvalidBloodType
	}
	if input.UnitsNeeded <= 0 {
		input.UnitsNeeded = 1
	}
	if input.Urgency == "" {
		input.Urgency = UrgencyNormal
	}

	req, err := s.repo.Insert(ctx, input)
	if err != nil {
		return BloodRequest{}, fmt.Errorf("request: insert: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(realtime.EventRequestCreated, req)
		s.publisher.PublishRoom(realtime.RoomBloodType(req.BloodType), realtime.EventRequestCreated, req)
		if req.Urgency == UrgencyUrgent || req.Urgency == UrgencyCritical {
			s.publisher.Publish(realtime.EventNotification, realtime.Notification{
				Type:    realtime.NotificationUrgentRequest,
				Message: fmt.Sprintf("Urgent %s blood needed at %s", req.BloodType, req.Hospital),
				Request: req,
			})
			if s.alerts != nil {
				if err := s.alerts.UrgentRequest(ctx, req); err != nil {
					s.logger.Warn("enqueue urgent request alert", slog.Int64("request_id", req.ID), slog.Any("error", err))
				}
			}
		}
	}
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (BloodRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns filtered requests.
func (s *Service) List(ctx context.Context, filter Filter) ([]BloodRequest, error) {
	return s.repo.List(ctx, filter)
}

// Update patches a request. Only the requester or an admin may update.
func (s *Service) Update(ctx context.Context, input UpdateInput) (BloodRequest, error) {
	existing, err := s.repo.GetByID(ctx, input.RequestID)
	if err != nil {
		return BloodRequest{}, err
	}
	if existing.UserID != input.ActorID && input.ActorRole != identity.RoleAdmin {
		return BloodRequest{}, ErrNotOwner
	}
	updated, err := s.repo.Update(ctx, input.RequestID, input.Status, input.UnitsNeeded)
	if err != nil {
		return BloodRequest{}, fmt.Errorf("request: update: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventRequestUpdated, updated)
	}
	if s.lives != nil && updated.Status == StatusFulfilled && existing.Status != StatusFulfilled {
		s.lives.RecordLifeSaved(ctx)
	}
	return updated, nil
}

// Delete removes a request. Only the requester or an admin may delete.
func (s *Service) Delete(ctx context.Context, requestID, actorID int64, actorRole string) error {
	existing, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if existing.UserID != actorID && actorRole != identity.RoleAdmin {
		return ErrNotOwner
	}
	if err := s.repo.Delete(ctx, requestID); err != nil {
		return fmt.Errorf("request: delete: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventRequestDeleted, map[string]int64{"id": requestID})
	}
	return nil
}
