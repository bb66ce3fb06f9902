package store

import (
	"context"

	"hcd/internal/retry"
	"hcd/util"
)

// Backend is a listener record store.
type Backend interface {
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, name string) error
	Load(ctx context.Context) ([]Record, error)
	Close() error
}

// Guarded puts a breaker in front of a backend's writes.  Once the
// backend fails repeatedly, writes fail fast with retry.ErrOpen until
// the cooldown passes, so a dead disk does not add its timeout to every
// registry mutation.  Load is never short-circuited.
type Guarded struct {
	Backend
	breaker *retry.Breaker
}

// Guard wraps b.  State changes are logged to logger.
func Guard(b Backend, cfg retry.BreakerConfig, logger *util.Logger) *Guarded {
	if logger != nil {
		cfg.OnStateChange = func(from, to retry.State) {
			switch to {
			case retry.StateOpen:
				logger.Warn("writes suspended after repeated failures")
			case retry.StateClosed:
				logger.Info("writes resumed")
			default:
				logger.Verbose("breaker %s -> %s", from, to)
			}
		}
	}
	return &Guarded{Backend: b, breaker: retry.NewBreaker(cfg)}
}

// Save writes rec through the breaker.
func (g *Guarded) Save(ctx context.Context, rec Record) error {
	return g.breaker.Execute(func() error { return g.Backend.Save(ctx, rec) })
}

// Delete removes a record through the breaker.  ErrNotFound does not
// count as a backend failure.
func (g *Guarded) Delete(ctx context.Context, name string) error {
	var notFound bool
	err := g.breaker.Execute(func() error {
		err := g.Backend.Delete(ctx, name)
		if err == ErrNotFound {
			notFound = true
			return nil
		}
		return err
	})
	if notFound {
		return ErrNotFound
	}
	return err
}

// State reports the breaker state.
func (g *Guarded) State() retry.State { return g.breaker.State() }
