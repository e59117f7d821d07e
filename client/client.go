package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle phase of the adapter.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Config configures the adapter.
type Config struct {
	// WSURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	WSURL string
	// APIBase is the HTTP API base, e.g. http://localhost:8080. Used to
	// re-fetch the authoritative inventory snapshot after every (re)connect.
	APIBase string

	// UserID joins the personal notification room after connecting. Zero
	// skips authentication.
	UserID int64
	// BankID is the bank whose inventory the adapter tracks. Zero disables
	// inventory tracking.
	BankID int64
	// BloodTypes are interest subscriptions re-sent on every connect.
	BloodTypes []string

	Logger     *slog.Logger
	HTTPClient *http.Client

	// OnInventory receives the full replacement snapshot: on re-fetch and on
	// every inventory:updated push for the watched bank.
	OnInventory func(records []InventoryRecord)
	// OnNotification receives transient alerts. These never touch the
	// inventory snapshot.
	OnNotification func(n Notification)
	// OnStats receives aggregate snapshots. demo is true for locally
	// simulated values emitted while the socket is down.
	OnStats func(s Stats, demo bool)
	// OnStateChange observes lifecycle transitions.
	OnStateChange func(s State)

	// MinBackoff and MaxBackoff bound the reconnect delay. Defaults 1s/30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// DemoInterval is the simulated stats cadence while disconnected.
	// Default 5s, matching the server heartbeat.
	DemoInterval time.Duration
}

// Client maintains a resilient connection to the realtime feed.
type Client struct {
	cfg   Config
	state atomic.Int32

	mu        sync.Mutex
	inventory []InventoryRecord
	lastStats Stats
	haveStats bool

	rng *rand.Rand
}

// New constructs a Client. Run must be called to start it.
func New(cfg Config) (*Client, error) {
	if cfg.WSURL == "" {
		return nil, errors.New("client: websocket url is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.DemoInterval <= 0 {
		cfg.DemoInterval = 5 * time.Second
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Snapshot returns a copy of the last known inventory for the watched bank.
func (c *Client) Snapshot() []InventoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]InventoryRecord, len(c.inventory))
	copy(out, c.inventory)
	return out
}

// Run connects and keeps the connection alive until ctx is cancelled,
// reconnecting with capped exponential backoff. It blocks.
func (c *Client) Run(ctx context.Context) error {
	go c.demoLoop(ctx)

	backoff := c.cfg.MinBackoff
	first := true
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		if first {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSURL, nil)
		if err != nil {
			c.cfg.Logger.Warn("dial realtime feed", slog.Any("error", err))
			if !sleep(ctx, c.jitter(backoff)) {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			first = false
			continue
		}

		if err := c.onConnected(ctx, ws); err != nil {
			c.cfg.Logger.Warn("realtime handshake", slog.Any("error", err))
			_ = ws.Close()
			if !sleep(ctx, c.jitter(backoff)) {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			first = false
			continue
		}

		c.setState(StateConnected)
		backoff = c.cfg.MinBackoff

		err = c.readLoop(ctx, ws)
		_ = ws.Close()
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		c.cfg.Logger.Warn("realtime feed dropped", slog.Any("error", err))
		first = false
	}
}

// onConnected replays identity and interests, then re-fetches the snapshot
// so missed pushes cannot leave the local copy stale.
func (c *Client) onConnected(ctx context.Context, ws *websocket.Conn) error {
	if c.cfg.UserID != 0 {
		if err := ws.WriteJSON(outboundEnvelope{Event: eventAuthenticate, Data: c.cfg.UserID}); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	for _, bt := range c.cfg.BloodTypes {
		if err := ws.WriteJSON(outboundEnvelope{Event: eventSubscribeType, Data: bt}); err != nil {
			return fmt.Errorf("subscribe %s: %w", bt, err)
		}
	}
	if c.cfg.BankID != 0 && c.cfg.APIBase != "" {
		records, err := c.fetchInventory(ctx)
		if err != nil {
			return err
		}
		c.replaceInventory(records)
	}
	return nil
}

func (c *Client) fetchInventory(ctx context.Context) ([]InventoryRecord, error) {
	url := fmt.Sprintf("%s/inventory/%d", c.cfg.APIBase, c.cfg.BankID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch inventory: status %d", resp.StatusCode)
	}
	var body inventoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return body.Inventory, nil
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var frame envelope
		if err := ws.ReadJSON(&frame); err != nil {
			return err
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame envelope) {
	switch frame.Event {
	case eventInventoryUpdated:
		var update inventoryUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			c.cfg.Logger.Warn("decode inventory update", slog.Any("error", err))
			return
		}
		if c.cfg.BankID == 0 || update.BankID != c.cfg.BankID {
			return
		}
		c.replaceInventory(update.Inventory)
	case eventNotification:
		if c.cfg.OnNotification == nil {
			return
		}
		var n Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.cfg.Logger.Warn("decode notification", slog.Any("error", err))
			return
		}
		c.cfg.OnNotification(n)
	case eventStatsUpdate:
		var s Stats
		if err := json.Unmarshal(frame.Data, &s); err != nil {
			c.cfg.Logger.Warn("decode stats", slog.Any("error", err))
			return
		}
		c.mu.Lock()
		c.lastStats = s
		c.haveStats = true
		c.mu.Unlock()
		if c.cfg.OnStats != nil {
			c.cfg.OnStats(s, false)
		}
	}
}

// replaceInventory swaps the whole snapshot. Pushes carry the authoritative
// server state, so merging is never attempted.
func (c *Client) replaceInventory(records []InventoryRecord) {
	c.mu.Lock()
	c.inventory = records
	c.mu.Unlock()
	if c.cfg.OnInventory != nil {
		c.cfg.OnInventory(records)
	}
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

func (c *Client) jitter(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return d/2 + time.Duration(c.rng.Int63n(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
