package dispatch

import (
	"context"
	"fmt"

	"hcd/config"
	"hcd/internal/action"
	"hcd/internal/catalog"
	ncerr "hcd/internal/errors"
	"hcd/internal/listener"
	"hcd/internal/metrics"
	"hcd/internal/retry"
	"hcd/internal/session"
	"hcd/internal/store"
	"hcd/util"
)

// Daemon is a Facade wired to the services behind it.
type Daemon struct {
	*Facade
	Metrics  *metrics.Collector
	Sessions *session.Tracker

	registry *listener.Registry
	store    store.Backend
	logger   *util.Logger
}

// Build assembles a daemon from cfg: a catalog holding the built-in
// protocols plus the ones prof declares, the listener store, and the
// registries.  prof may be nil.  Nothing is restored or started.
func Build(ctx context.Context, cfg *config.Config, prof *config.Profile, logger *util.Logger) (*Daemon, error) {
	cat := catalog.New()
	if err := catalog.RegisterBuiltins(cat); err != nil {
		return nil, err
	}
	if prof != nil {
		for _, desc := range prof.Descriptors() {
			if err := cat.Register(desc); err != nil {
				return nil, fmt.Errorf("profile: %w", err)
			}
		}
	}

	backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	guarded := store.Guard(backend, retry.BreakerConfig{}, logger.Named("store"))

	m := metrics.New()
	tracker := session.NewTracker(logger.Named("session"), config.DefaultSessionIdle)
	reg := listener.New(listener.Options{
		Catalog:     cat,
		Store:       guarded,
		Metrics:     m,
		Logger:      logger.Named("listener"),
		BindTimeout: cfg.BindTimeout,
		Handler:     tracker.Handle,
	})

	return &Daemon{
		Facade:   New(cat, reg, action.NewRegistry(cat)),
		Metrics:  m,
		Sessions: tracker,
		registry: reg,
		store:    guarded,
		logger:   logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	if cfg.InMemory() {
		return store.NewMemory(), nil
	}
	db, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open listener store: %w", err)
	}
	return db, nil
}

// Restore re-creates the persisted listeners and restarts the ones
// that were running.
func (d *Daemon) Restore(ctx context.Context) (int, error) {
	return d.registry.Restore(ctx)
}

// Close stops every running listener and closes the store.  Listener
// state is left as persisted, so the next Restore resumes it.
func (d *Daemon) Close() error {
	errShutdown := d.registry.Shutdown()
	errStore := d.store.Close()
	if errStore != nil {
		errStore = fmt.Errorf("close listener store: %w", errStore)
	}
	return ncerr.Join(errShutdown, errStore)
}
