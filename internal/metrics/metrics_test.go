package metrics

import (
	"encoding/json"
	"testing"
)

func TestCollector_Lifecycle(t *testing.T) {
	c := New()

	c.ListenerCreated()
	c.ListenerCreated()
	c.ListenerStarted()
	c.ListenerStarted()
	if c.Running() != 2 {
		t.Errorf("running = %d, want 2", c.Running())
	}

	c.ListenerStopped()
	if c.Running() != 1 {
		t.Errorf("running = %d, want 1", c.Running())
	}
	if c.Starts() != 2 {
		t.Errorf("starts should remain 2, got %d", c.Starts())
	}
	if c.Created() != 2 {
		t.Errorf("created = %d, want 2", c.Created())
	}
}

func TestCollector_Failures(t *testing.T) {
	c := New()

	c.BindFailed("address in use")
	c.StoreFailed("disk full")
	c.BindFailed("permission denied")

	if c.BindFailures() != 2 {
		t.Errorf("bind failures = %d, want 2", c.BindFailures())
	}
	if c.StoreErrors() != 1 {
		t.Errorf("store errors = %d, want 1", c.StoreErrors())
	}
	if msg := c.Snapshot().LastErrorMessage; msg != "permission denied" {
		t.Errorf("last error = %q", msg)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ListenerCreated()
	c.ListenerStarted()
	c.ListenerRemoved()

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ListenersRunning != 1 {
		t.Errorf("JSON running = %d", snap.ListenersRunning)
	}
	if snap.ListenersRemoved != 1 {
		t.Errorf("JSON removed = %d", snap.ListenersRemoved)
	}
	if snap.LastError != "" {
		t.Errorf("unexpected last error %q", snap.LastError)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ListenerCreated()
	c.ListenerRemoved()
	c.ListenerStarted()
	c.ListenerStopped()
	c.BindFailed("x")
	c.StoreFailed("y")

	if c.Running() != 0 || c.Created() != 0 || c.BindFailures() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.Snapshot().StartsTotal != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}
