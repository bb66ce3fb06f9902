package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var errDisk = errors.New("disk I/O error")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *clock) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(cfg)
	b.now = c.now
	return b, c
}

func fail() error { return errDisk }
func ok() error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		b.Execute(fail) //nolint:errcheck
	}
	if b.State() != StateClosed {
		t.Fatalf("opened early: %s", b.State())
	}
	b.Execute(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", b.State())
	}
	if b.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", b.Failures())
	}
}

func TestBreaker_RejectsWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	b.Execute(fail) //nolint:errcheck

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("fn should not run while open")
	}
}

func TestBreaker_Recovery(t *testing.T) {
	b, c := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Minute, Probes: 2})
	b.Execute(fail) //nolint:errcheck

	c.advance(time.Minute)
	if err := b.Execute(ok); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half-open after first probe, got %s", b.State())
	}
	if err := b.Execute(ok); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after 2 probes, got %s", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, c := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Minute})
	b.Execute(fail) //nolint:errcheck

	c.advance(2 * time.Minute)
	b.Execute(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}

	// The cooldown restarts from the failed probe.
	c.advance(30 * time.Second)
	if err := b.Execute(ok); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen inside new cooldown, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 3})
	b.Execute(fail) //nolint:errcheck
	b.Execute(fail) //nolint:errcheck
	b.Execute(ok)   //nolint:errcheck

	if b.Failures() != 0 || b.State() != StateClosed {
		t.Errorf("failures=%d state=%s", b.Failures(), b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	b.Execute(fail) //nolint:errcheck
	b.Reset()
	if b.State() != StateClosed || b.Failures() != 0 {
		t.Errorf("after reset: state=%s failures=%d", b.State(), b.Failures())
	}
}

func TestBreaker_StateChange(t *testing.T) {
	var transitions []string
	b, c := newTestBreaker(BreakerConfig{
		Threshold: 1,
		Cooldown:  time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s>%s", from, to))
		},
	})

	b.Execute(fail) //nolint:errcheck
	c.advance(time.Second)
	b.Execute(ok) //nolint:errcheck

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	if b.threshold != 3 || b.cooldown != 30*time.Second || b.probes != 1 {
		t.Errorf("defaults = %d/%v/%d", b.threshold, b.cooldown, b.probes)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
