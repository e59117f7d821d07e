package client

import (
	"context"
	"time"
)

// Baseline for simulated stats before any server snapshot arrives.
var demoSeed = Stats{
	DonorsOnline:   127,
	RequestsActive: 23,
	LivesSaved:     1243,
}

// demoLoop emits simulated stats while the socket is not connected so a UI
// stays lively during outages. Simulated values are derived from a copy of
// the last server snapshot and never written back to it.
func (c *Client) demoLoop(ctx context.Context) {
	if c.cfg.OnStats == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.DemoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() == StateConnected {
				continue
			}
			c.cfg.OnStats(c.nextDemoStats(), true)
		}
	}
}

func (c *Client) nextDemoStats() Stats {
	c.mu.Lock()
	base := c.lastStats
	if !c.haveStats {
		base = demoSeed
	}
	donors := base.DonorsOnline + c.rng.Intn(7) - 3
	if donors < 0 {
		donors = 0
	}
	requests := base.RequestsActive + c.rng.Intn(3) - 1
	if requests < 0 {
		requests = 0
	}
	lives := base.LivesSaved
	if c.rng.Intn(10) == 0 {
		lives++
	}
	c.mu.Unlock()
	return Stats{
		DonorsOnline:   donors,
		RequestsActive: requests,
		LivesSaved:     lives,
		Timestamp:      time.Now().UTC(),
	}
}
