package listener

import (
	"context"
	"fmt"

	ncerr "hcd/internal/errors"
	"hcd/internal/transport"
)

// Restore re-creates every listener persisted in the store and starts
// the ones that were running when the daemon went down.  Failed
// listeners come back Stopped.  A record that cannot be restored is
// logged and skipped; the joined errors are returned once every record
// has been tried.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	recs, err := r.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}

	var (
		errs     []error
		restored int
	)
	for _, rec := range recs {
		if _, err := r.create(ctx, rec.Name, rec.Protocol, rec.Config, rec.CreatedAt, false); err != nil {
			r.logger.Error("restore listener %s: %v", rec.Name, err)
			errs = append(errs, err)
			continue
		}
		restored++

		state, _ := ParseState(rec.State)
		if state != StateRunning {
			continue
		}
		if err := r.Start(ctx, rec.Name); err != nil {
			// Start already logged and persisted the failure.
			errs = append(errs, err)
		}
	}

	r.logger.Verbose("restored %d of %d listeners", restored, len(recs))
	return restored, ncerr.Join(errs...)
}

// Shutdown closes every running listener's transport without recording
// the stop, so the next Restore brings them back up.  Starts still
// binding close their handle instead of committing, and later Starts
// fail with ErrShutdown.
func (r *Registry) Shutdown() error {
	type running struct {
		name   string
		handle transport.Handle
	}

	r.mu.Lock()
	r.closed = true
	var open []running
	for _, inst := range r.listeners {
		if inst.state != StateRunning {
			continue
		}
		open = append(open, running{inst.name, inst.handle})
		inst.state = StateStopped
		inst.handle = nil
		inst.addr = ""
		r.metrics.ListenerStopped()
	}
	r.mu.Unlock()

	var errs []error
	for _, o := range open {
		if err := o.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", o.name, err))
		}
	}
	if len(open) > 0 {
		r.logger.Verbose("closed %d running listeners", len(open))
	}
	return ncerr.Join(errs...)
}
