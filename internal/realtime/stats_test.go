package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	n     int
	calls int
}

func (c *fakeCounter) CountActive(ctx context.Context) (int, error) {
	c.calls++
	return c.n, nil
}

func newTestStats(t *testing.T) (*StatsSource, *Hub, *fakeCounter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := testHub()
	t.Cleanup(hub.Close)

	counter := &fakeCounter{n: 7}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStatsSource(logger, hub, counter, client, 0), hub, counter
}

func TestSnapshotSeedsLivesSaved(t *testing.T) {
	stats, hub, _ := newTestStats(t)

	hub.Register()
	snap := stats.Snapshot(context.Background())

	require.Equal(t, 1, snap.DonorsOnline)
	require.Equal(t, 7, snap.RequestsActive)
	require.EqualValues(t, 1243, snap.LivesSaved)
	require.False(t, snap.Timestamp.IsZero())
}

func TestRecordLifeSavedIncrements(t *testing.T) {
	stats, _, _ := newTestStats(t)
	ctx := context.Background()

	require.EqualValues(t, 1243, stats.Snapshot(ctx).LivesSaved)
	stats.RecordLifeSaved(ctx)
	stats.RecordLifeSaved(ctx)
	require.EqualValues(t, 1245, stats.Snapshot(ctx).LivesSaved)
}

func TestRunTicksOnConfiguredInterval(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := testHub()
	t.Cleanup(hub.Close)
	conn := hub.Register()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := NewStatsSource(logger, hub, &fakeCounter{n: 2}, client, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = stats.Run(ctx)
	}()

	select {
	case env := <-conn.Events():
		require.Equal(t, EventStatsUpdate, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat never ticked")
	}

	cancel()
	<-done
}

func TestActiveRequestsCached(t *testing.T) {
	stats, _, counter := newTestStats(t)
	ctx := context.Background()

	require.Equal(t, 7, stats.Snapshot(ctx).RequestsActive)
	require.Equal(t, 1, counter.calls)

	// Served from the cache until the TTL lapses.
	counter.n = 99
	require.Equal(t, 7, stats.Snapshot(ctx).RequestsActive)
	require.Equal(t, 1, counter.calls)
}
