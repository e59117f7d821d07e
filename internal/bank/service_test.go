package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lifelink/lifelink/internal/inventory"
	"github.com/lifelink/lifelink/internal/realtime"
)

type memoryBankRepo struct {
	banks  map[int64]BloodBank
	nextID int64
}

func newMemoryBankRepo() *memoryBankRepo {
	return &memoryBankRepo{banks: make(map[int64]BloodBank)}
}

func (r *memoryBankRepo) Insert(ctx context.Context, input CreateInput) (BloodBank, error) {
	r.nextID++
	bank := BloodBank{ID: r.nextID, Name: input.Name, Location: input.Location, Phone: input.Phone, Hours: input.Hours}
	r.banks[bank.ID] = bank
	return bank, nil
}

func (r *memoryBankRepo) GetByID(ctx context.Context, id int64) (BloodBank, error) {
	bank, ok := r.banks[id]
	if !ok {
		return BloodBank{}, ErrNotFound
	}
	return bank, nil
}

func (r *memoryBankRepo) Search(ctx context.Context, search string) ([]WithInventory, error) {
	var out []WithInventory
	for _, bank := range r.banks {
		out = append(out, WithInventory{BloodBank: bank})
	}
	return out, nil
}

type fakeInventory struct {
	seeded  []int64
	seedErr error
}

func (f *fakeInventory) SeedBank(ctx context.Context, bankID int64) error {
	if f.seedErr != nil {
		return f.seedErr
	}
	f.seeded = append(f.seeded, bankID)
	return nil
}

func (f *fakeInventory) ListByBank(ctx context.Context, bankID int64) ([]inventory.Record, error) {
	var out []inventory.Record
	for _, s := range f.seeded {
		if s == bankID {
			for _, bt := range inventory.BloodTypes {
				out = append(out, inventory.Record{BankID: bankID, BloodType: bt})
			}
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []realtime.Envelope
}

func (p *fakePublisher) Publish(event string, payload any) {
	p.events = append(p.events, realtime.Envelope{Event: event, Data: payload})
}

func newBankService(repo *memoryBankRepo, inv *fakeInventory, pub *fakePublisher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var p Publisher
	if pub != nil {
		p = pub
	}
	return NewService(logger, repo, inv, p, nil)
}

func TestCreateSeedsInventoryAndPublishes(t *testing.T) {
	repo := newMemoryBankRepo()
	inv := &fakeInventory{}
	pub := &fakePublisher{}
	svc := newBankService(repo, inv, pub)

	bank, err := svc.Create(context.Background(), CreateInput{Name: "Central", Location: "Downtown"})
	require.NoError(t, err)
	require.Equal(t, []int64{bank.ID}, inv.seeded)

	require.Len(t, pub.events, 1)
	require.Equal(t, realtime.EventBankCreated, pub.events[0].Event)

	got, err := svc.Get(context.Background(), bank.ID)
	require.NoError(t, err)
	require.Len(t, got.Inventory, len(inventory.BloodTypes))
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc := newBankService(newMemoryBankRepo(), &fakeInventory{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "", Location: "x"})
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Create(context.Background(), CreateInput{Name: "x", Location: ""})
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestCreateSurvivesSeedFailure(t *testing.T) {
	repo := newMemoryBankRepo()
	inv := &fakeInventory{seedErr: errors.New("store down")}
	svc := newBankService(repo, inv, nil)

	// Seeding failure is tolerated: the update engine upserts missing rows
	// lazily on the first delta.
	bank, err := svc.Create(context.Background(), CreateInput{Name: "North", Location: "Uptown"})
	require.NoError(t, err)
	require.NotZero(t, bank.ID)
}

func TestGetUnknownBank(t *testing.T) {
	svc := newBankService(newMemoryBankRepo(), &fakeInventory{}, nil)
	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
