package inventory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lifelink/lifelink/internal/realtime"
)

// memoryRepo serialises every delta behind one mutex, mirroring the
// single-statement upsert in the real store.
type memoryRepo struct {
	mu      sync.Mutex
	records map[int64]map[string]Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[int64]map[string]Record)}
}

func (r *memoryRepo) ApplyDelta(ctx context.Context, bankID int64, bloodType string, action Action, amount int) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bank := r.records[bankID]
	if bank == nil {
		bank = make(map[string]Record)
		r.records[bankID] = bank
	}
	rec, ok := bank[bloodType]
	if !ok {
		rec = Record{BankID: bankID, BloodType: bloodType}
	}
	switch action {
	case ActionSet:
		rec.Units = amount
	case ActionAdd:
		rec.Units += amount
	case ActionSubtract:
		rec.Units -= amount
		if rec.Units < 0 {
			rec.Units = 0
		}
	}
	rec.LastUpdated = time.Now().UTC()
	bank[bloodType] = rec
	return rec, nil
}

func (r *memoryRepo) ListByBank(ctx context.Context, bankID int64) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, bt := range BloodTypes {
		if rec, ok := r.records[bankID][bt]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type staticBanks struct {
	known map[int64]bool
}

func (b staticBanks) Exists(ctx context.Context, bankID int64) (bool, error) {
	return b.known[bankID], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []realtime.Envelope
}

func (p *capturePublisher) Publish(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, realtime.Envelope{Event: event, Data: payload})
}

func (p *capturePublisher) byEvent(event string) []realtime.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Envelope
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type captureAlerts struct {
	mu    sync.Mutex
	calls []string
}

func (a *captureAlerts) LowStock(ctx context.Context, bankID int64, bloodTypes []string, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, message)
	return nil
}

func newTestService(repo *memoryRepo, pub *capturePublisher, alerts *captureAlerts) *Service {
	var p Publisher
	if pub != nil {
		p = pub
	}
	var a AlertPort
	if alerts != nil {
		a = alerts
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, staticBanks{known: map[int64]bool{1: true}}, p, a, nil)
}

func TestApplyDeltaActions(t *testing.T) {
	cases := []struct {
		name   string
		seed   int
		action Action
		amount int
		want   int
	}{
		{name: "set replaces", seed: 3, action: ActionSet, amount: 10, want: 10},
		{name: "set to zero", seed: 7, action: ActionSet, amount: 0, want: 0},
		{name: "add increments", seed: 3, action: ActionAdd, amount: 4, want: 7},
		{name: "subtract decrements", seed: 9, action: ActionSubtract, amount: 4, want: 5},
		{name: "subtract clamps at zero", seed: 2, action: ActionSubtract, amount: 10, want: 0},
		{name: "subtract from empty stays zero", seed: -1, action: ActionSubtract, amount: 3, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			if tc.seed >= 0 {
				_, err := repo.ApplyDelta(context.Background(), 1, "A+", ActionSet, tc.seed)
				require.NoError(t, err)
			}
			svc := newTestService(repo, nil, nil)

			list, err := svc.ApplyDelta(context.Background(), DeltaInput{
				BankID: 1, BloodType: "A+", Action: tc.action, Amount: tc.amount,
			})
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, tc.want, list[0].Units)
		})
	}
}

func TestApplyDeltaValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "C+", Action: ActionSet, Amount: 1})
	require.ErrorIs(t, err, ErrInvalidBloodType)

	_, err = svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "A+", Action: ActionSet, Amount: -1})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "A+", Action: Action("increment"), Amount: 1})
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = svc.ApplyDelta(ctx, DeltaInput{BankID: 99, BloodType: "A+", Action: ActionSet, Amount: 1})
	require.ErrorIs(t, err, ErrBankNotFound)
}

func TestApplyDeltaSetIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "O-", Action: ActionSet, Amount: 12})
		require.NoError(t, err)
		require.Equal(t, 12, list[0].Units)
	}
}

func TestConcurrentAddsAreNeverLost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, nil)
	ctx := context.Background()

	const n = 64
	var group errgroup.Group
	for i := 0; i < n; i++ {
		group.Go(func() error {
			_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "B+", Action: ActionAdd, Amount: 1})
			return err
		})
	}
	require.NoError(t, group.Wait())

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, n, list[0].Units)
}

func TestConcurrentSubtractsNeverGoNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "AB-", Action: ActionSet, Amount: 10})
	require.NoError(t, err)

	var group errgroup.Group
	for i := 0; i < 30; i++ {
		group.Go(func() error {
			_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "AB-", Action: ActionSubtract, Amount: 1})
			return err
		})
	}
	require.NoError(t, group.Wait())

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 0, list[0].Units)
}

func TestApplyDeltaBroadcastsFullInventory(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturePublisher{}
	svc := newTestService(repo, pub, nil)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "A+", Action: ActionSet, Amount: 20})
	require.NoError(t, err)
	_, err = svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "O+", Action: ActionSet, Amount: 8})
	require.NoError(t, err)

	updates := pub.byEvent(realtime.EventInventoryUpdated)
	require.Len(t, updates, 2)

	last, ok := updates[1].Data.(realtime.InventoryUpdated)
	require.True(t, ok)
	require.EqualValues(t, 1, last.BankID)
	records, ok := last.Inventory.([]Record)
	require.True(t, ok)
	require.Len(t, records, 2)
}

func TestLowStockNotificationOnlyForChangedRecord(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturePublisher{}
	alerts := &captureAlerts{}
	svc := newTestService(repo, pub, alerts)
	ctx := context.Background()

	// A- is already low before this call. Setting O+ low must not re-alert A-.
	_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "A-", Action: ActionSet, Amount: 2})
	require.NoError(t, err)
	_, err = svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "O+", Action: ActionSet, Amount: 3})
	require.NoError(t, err)

	notifications := pub.byEvent(realtime.EventNotification)
	require.Len(t, notifications, 2)

	second, ok := notifications[1].Data.(realtime.Notification)
	require.True(t, ok)
	require.Equal(t, realtime.NotificationLowStock, second.Type)
	require.Equal(t, "Low blood stock alert: O+", second.Message)

	require.Equal(t, []string{
		"Low blood stock alert: A-",
		"Low blood stock alert: O+",
	}, alerts.calls)
}

func TestNoNotificationAtOrAboveThreshold(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturePublisher{}
	svc := newTestService(repo, pub, nil)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, DeltaInput{BankID: 1, BloodType: "B-", Action: ActionSet, Amount: LowStockThreshold})
	require.NoError(t, err)

	require.Empty(t, pub.byEvent(realtime.EventNotification))
}
