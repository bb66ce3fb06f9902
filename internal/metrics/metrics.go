// Package metrics provides lightweight, lock-free counters and gauges
// for the listener registry.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks registry activity for the lifetime of the daemon.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	listenersCreated atomic.Int64
	listenersRemoved atomic.Int64
	listenersRunning atomic.Int64
	startsTotal      atomic.Int64
	bindFailures     atomic.Int64
	storeErrors      atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Listener lifecycle ───────────────────────────────────────────────

// ListenerCreated counts a registered listener.
func (c *Collector) ListenerCreated() {
	if c == nil {
		return
	}
	c.listenersCreated.Add(1)
}

// ListenerRemoved counts a removed listener.
func (c *Collector) ListenerRemoved() {
	if c == nil {
		return
	}
	c.listenersRemoved.Add(1)
}

// ListenerStarted counts a successful start and bumps the running gauge.
func (c *Collector) ListenerStarted() {
	if c == nil {
		return
	}
	c.startsTotal.Add(1)
	c.listenersRunning.Add(1)
}

// ListenerStopped decrements the running gauge.
func (c *Collector) ListenerStopped() {
	if c == nil {
		return
	}
	c.listenersRunning.Add(-1)
}

// Running returns the number of listeners currently bound.
func (c *Collector) Running() int64 {
	if c == nil {
		return 0
	}
	return c.listenersRunning.Load()
}

// Created returns the lifetime count of created listeners.
func (c *Collector) Created() int64 {
	if c == nil {
		return 0
	}
	return c.listenersCreated.Load()
}

// Starts returns the lifetime count of successful starts.
func (c *Collector) Starts() int64 {
	if c == nil {
		return 0
	}
	return c.startsTotal.Load()
}

// ── Failures ─────────────────────────────────────────────────────────

// BindFailed counts a transport bind failure and stores the message.
func (c *Collector) BindFailed(msg string) {
	if c == nil {
		return
	}
	c.bindFailures.Add(1)
	c.recordError(msg)
}

// BindFailures returns the total number of bind failures.
func (c *Collector) BindFailures() int64 {
	if c == nil {
		return 0
	}
	return c.bindFailures.Load()
}

// StoreFailed counts a persistence failure and stores the message.
func (c *Collector) StoreFailed(msg string) {
	if c == nil {
		return
	}
	c.storeErrors.Add(1)
	c.recordError(msg)
}

// StoreErrors returns the total number of persistence failures.
func (c *Collector) StoreErrors() int64 {
	if c == nil {
		return 0
	}
	return c.storeErrors.Load()
}

func (c *Collector) recordError(msg string) {
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ListenersCreated int64  `json:"listeners_created"`
	ListenersRemoved int64  `json:"listeners_removed"`
	ListenersRunning int64  `json:"listeners_running"`
	StartsTotal      int64  `json:"starts_total"`
	BindFailures     int64  `json:"bind_failures"`
	StoreErrors      int64  `json:"store_errors"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		ListenersCreated: c.listenersCreated.Load(),
		ListenersRemoved: c.listenersRemoved.Load(),
		ListenersRunning: c.listenersRunning.Load(),
		StartsTotal:      c.startsTotal.Load(),
		BindFailures:     c.bindFailures.Load(),
		StoreErrors:      c.storeErrors.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
