package cmd

import (
	"context"
	"fmt"

	"hcd/config"
	"hcd/internal/action"
	"hcd/internal/dispatch"
	ncerr "hcd/internal/errors"
	"hcd/internal/listener"
	"hcd/internal/retry"
	"hcd/util"
)

// applyProfile creates and starts the listeners prof declares and
// registers its menu actions.  Listeners already restored from the
// store keep their stored config.  Every item is attempted; the errors
// are joined.
func applyProfile(ctx context.Context, d *dispatch.Daemon, prof *config.Profile, secrets secretFunc, logger *util.Logger) error {
	var errs []error

	for _, ls := range prof.Listeners {
		if err := applyListener(ctx, d, ls, secrets, logger); err != nil {
			errs = append(errs, err)
		}
	}

	// Re-applying replaces the previous set.
	if n := d.UnregisterOwnerMenuActions(config.ProfileOwner); n > 0 {
		logger.Verbose("dropped %d previous profile actions", n)
	}
	for _, as := range prof.Actions {
		opts := []action.Option{action.WithOwner(config.ProfileOwner)}
		if as.Icon != "" {
			opts = append(opts, action.WithIcon(as.Icon))
		}
		if as.Protocol == "" {
			d.RegisterGlobalMenuAction(as.Name, as.Command, opts...)
			continue
		}
		if _, err := d.RegisterProtocolMenuAction(as.Protocol, as.Name, as.Command, opts...); err != nil {
			errs = append(errs, fmt.Errorf("action %q: %w", as.Name, err))
		}
	}

	return ncerr.Join(errs...)
}

func applyListener(ctx context.Context, d *dispatch.Daemon, ls config.ListenerSpec, secrets secretFunc, logger *util.Logger) error {
	values, err := resolveSecrets(d, ls, secrets)
	if err != nil {
		return err
	}

	_, err = d.CreateListener(ctx, ls.Name, ls.Protocol, values)
	switch {
	case ncerr.Is(err, ncerr.ErrDuplicateListener):
		logger.Verbose("listener %s already exists, keeping its stored config", ls.Name)
	case err != nil:
		return err
	}

	if !ls.Start {
		return nil
	}
	info, err := d.ListenerInfo(ls.Name)
	if err != nil {
		return err
	}
	if info.State == listener.StateRunning {
		return nil
	}

	return retry.StartBackoff().Do(ctx, func(attempt int) error {
		if attempt > 1 {
			logger.Verbose("listener %s: start attempt %d", ls.Name, attempt)
		}
		err := d.StartListener(ctx, ls.Name)
		if err != nil && !startRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

// startRetryable reports whether another Start may succeed after err.
// A failed bind leaves the listener Failed, so repeating it only yields
// ErrListenerFailed.
func startRetryable(err error) bool {
	return ncerr.IsRetryable(err) && !ncerr.Is(err, ncerr.ErrBindFailed)
}

// resolveSecrets replaces secret fields set to config.PromptValue with
// a value read through secrets.
func resolveSecrets(d *dispatch.Daemon, ls config.ListenerSpec, secrets secretFunc) (map[string]any, error) {
	schema, err := d.GetProtocolSchema(ls.Protocol)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(ls.Config))
	for k, v := range ls.Config {
		out[k] = v
		if s, ok := v.(string); !ok || s != config.PromptValue || !schema[k].Secret {
			continue
		}
		if secrets == nil {
			return nil, fmt.Errorf("listener %s: %s must be set", ls.Name, k)
		}
		val, err := secrets(fmt.Sprintf("%s for listener %s", k, ls.Name))
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}
