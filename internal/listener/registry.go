// Package listener owns the listener instances of the teamserver.
//
// A listener is a named, configured instance of a protocol from the
// catalog.  The registry validates configs against the protocol schema,
// drives the Stopped/Running/Failed state machine and persists every
// change to an optional Store so listeners survive a restart.
//
// Starting a listener binds a network socket through the protocol's
// transport, which may block.  The registry never holds its lock across
// that call: Start marks the instance in flight, binds unlocked, and
// commits the result only if the instance did not change meanwhile.
package listener

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hcd/internal/catalog"
	ncerr "hcd/internal/errors"
	"hcd/internal/metrics"
	"hcd/internal/store"
	"hcd/internal/transport"
	"hcd/util"
)

// Store persists listener records.  *store.SQLite and *store.Memory
// implement it.
type Store interface {
	Save(ctx context.Context, rec store.Record) error
	Delete(ctx context.Context, name string) error
	Load(ctx context.Context) ([]store.Record, error)
}

// Options configures a Registry.  Only Catalog is required.
type Options struct {
	Catalog     *catalog.Catalog
	Store       Store
	Metrics     *metrics.Collector
	Logger      *util.Logger
	BindTimeout time.Duration         // 0 waits as long as the bind context allows
	Handler     transport.ConnHandler // nil logs and closes accepted connections
}

// Info is a snapshot of one listener.
type Info struct {
	Name      string         `json:"name"`
	Protocol  string         `json:"protocol"`
	Config    map[string]any `json:"config"`
	State     State          `json:"state"`
	Addr      string         `json:"addr,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type instance struct {
	name      string
	protocol  string
	config    map[string]any
	state     State
	handle    transport.Handle
	addr      string
	lastErr   string
	createdAt time.Time

	// version changes on every config edit; starting is set while a
	// Start is binding without the lock.
	version  uint64
	starting bool
}

func (in *instance) info() Info {
	return Info{
		Name:      in.name,
		Protocol:  in.protocol,
		Config:    copyValues(in.config),
		State:     in.state,
		Addr:      in.addr,
		LastError: in.lastErr,
		CreatedAt: in.createdAt,
	}
}

// Redacted stands in for secret config values in snapshots.
const Redacted = "********"

// snapshot returns inst's Info with the values of secret schema fields
// replaced by Redacted.  Callers hold r.mu.
func (r *Registry) snapshot(inst *instance) Info {
	info := inst.info()
	schema, err := r.catalog.Schema(inst.protocol)
	if err != nil {
		return info
	}
	for k, v := range info.Config {
		if s, ok := v.(string); ok && s != "" && schema[k].Secret {
			info.Config[k] = Redacted
		}
	}
	return info
}

// Registry is the set of listener instances, keyed by unique name.
type Registry struct {
	catalog     *catalog.Catalog
	store       Store
	metrics     *metrics.Collector
	logger      *util.Logger
	bindTimeout time.Duration
	handler     transport.ConnHandler

	mu        sync.RWMutex
	listeners map[string]*instance
	closed    bool // set by Shutdown; no Start commits afterwards
}

// New returns an empty registry backed by opts.Catalog.
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Registry{
		catalog:     opts.Catalog,
		store:       opts.Store,
		metrics:     opts.Metrics,
		logger:      logger,
		bindTimeout: opts.BindTimeout,
		handler:     opts.Handler,
		listeners:   make(map[string]*instance),
	}
}

// ── Registration ─────────────────────────────────────────────────────

// Create registers a new listener in state Stopped.  It fails with
// ErrDuplicateListener, ErrUnknownProtocol or an InvalidConfigError and
// leaves the registry untouched on failure.
func (r *Registry) Create(ctx context.Context, name, protocol string, values map[string]any) (Info, error) {
	return r.create(ctx, name, protocol, values, time.Now(), true)
}

func (r *Registry) create(ctx context.Context, name, protocol string, values map[string]any, created time.Time, persist bool) (Info, error) {
	if !catalog.ValidName(name) {
		return Info{}, ncerr.Fail("create listener", name, ncerr.ErrInvalidName)
	}
	if r.has(name) {
		return Info{}, ncerr.Fail("create listener", name, ncerr.ErrDuplicateListener)
	}

	config, err := r.catalog.Validate(protocol, values)
	if err != nil {
		return Info{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another Create may have won while we validated.
	if _, ok := r.listeners[name]; ok {
		return Info{}, ncerr.Fail("create listener", name, ncerr.ErrDuplicateListener)
	}

	inst := &instance{
		name:      name,
		protocol:  protocol,
		config:    config,
		state:     StateStopped,
		createdAt: created,
	}
	r.listeners[name] = inst
	r.metrics.ListenerCreated()
	if persist {
		r.persist(ctx, inst)
	}

	r.logger.Info("listener %s created (%s)", name, protocol)
	return r.snapshot(inst), nil
}

// Edit replaces the config of a listener that is not running.  A Start
// in flight on the same listener will fail with
// ErrConcurrentModification.
func (r *Registry) Edit(ctx context.Context, name string, values map[string]any) (Info, error) {
	r.mu.RLock()
	inst, ok := r.listeners[name]
	var protocol string
	if ok {
		protocol = inst.protocol
	}
	r.mu.RUnlock()
	if !ok {
		return Info{}, ncerr.Fail("edit listener", name, ncerr.ErrUnknownListener)
	}

	config, err := r.catalog.Validate(protocol, values)
	if err != nil {
		return Info{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.listeners[name]; !ok || cur != inst {
		return Info{}, ncerr.Fail("edit listener", name, ncerr.ErrConcurrentModification)
	}
	if inst.state == StateRunning {
		return Info{}, ncerr.Fail("edit listener", name, ncerr.ErrListenerBusy)
	}

	inst.config = config
	inst.version++
	r.persist(ctx, inst)

	r.logger.Verbose("listener %s config updated", name)
	return r.snapshot(inst), nil
}

// Remove deletes a listener.  Running listeners, and listeners with a
// Start in flight, fail with ErrListenerBusy.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.listeners[name]
	if !ok {
		return ncerr.Fail("remove listener", name, ncerr.ErrUnknownListener)
	}
	if inst.state == StateRunning || inst.starting {
		return ncerr.Fail("remove listener", name, ncerr.ErrListenerBusy)
	}

	delete(r.listeners, name)
	r.metrics.ListenerRemoved()
	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil && !ncerr.Is(err, store.ErrNotFound) {
			r.storeFailed(name, err)
		}
	}

	r.logger.Info("listener %s removed", name)
	return nil
}

// ── Lifecycle ────────────────────────────────────────────────────────

// Start binds the listener's transport.  It fails with
// ErrAlreadyRunning when the listener runs or another Start is in
// flight, ErrListenerFailed when the last start failed (Stop first),
// ErrShutdown once Shutdown has run, and a *BindError when the
// transport cannot bind in time; the listener is then Failed.
func (r *Registry) Start(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.listeners[name]
	if !ok {
		r.mu.Unlock()
		return ncerr.Fail("start listener", name, ncerr.ErrUnknownListener)
	}
	switch {
	case r.closed:
		r.mu.Unlock()
		return ncerr.Fail("start listener", name, ncerr.ErrShutdown)
	case inst.state == StateRunning || inst.starting:
		r.mu.Unlock()
		return ncerr.Fail("start listener", name, ncerr.ErrAlreadyRunning)
	case inst.state == StateFailed:
		r.mu.Unlock()
		return ncerr.Fail("start listener", name, ncerr.ErrListenerFailed)
	}

	desc, err := r.catalog.Get(inst.protocol)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	inst.starting = true
	version := inst.version
	spec := transport.Spec{
		Listener: name,
		Protocol: inst.protocol,
		Config:   copyValues(inst.config),
		Handler:  r.handler,
		Logger:   r.logger,
	}
	r.mu.Unlock()

	r.logger.Debug("listener %s: binding %s transport", name, desc.Name)
	h, bindErr := r.bind(ctx, desc.Binder, spec)

	r.mu.Lock()
	inst.starting = false

	if r.closed {
		r.mu.Unlock()
		if h != nil {
			h.Close() //nolint:errcheck
		}
		return ncerr.Fail("start listener", name, ncerr.ErrShutdown)
	}
	if cur, ok := r.listeners[name]; !ok || cur != inst || inst.version != version || inst.state != StateStopped {
		r.mu.Unlock()
		if h != nil {
			h.Close() //nolint:errcheck
		}
		return ncerr.Fail("start listener", name, ncerr.ErrConcurrentModification)
	}

	if bindErr != nil {
		inst.state = StateFailed
		inst.lastErr = bindErr.Error()
		r.persist(ctx, inst)
		r.mu.Unlock()

		r.metrics.BindFailed(bindErr.Error())
		r.logger.Error("listener %s failed to start: %v", name, bindErr)
		return &ncerr.BindError{Listener: name, Protocol: inst.protocol, Err: bindErr}
	}

	inst.state = StateRunning
	inst.handle = h
	inst.addr = h.Addr()
	inst.lastErr = ""
	r.persist(ctx, inst)
	r.mu.Unlock()

	r.metrics.ListenerStarted()
	r.logger.Info("listener %s started on %s", name, h.Addr())
	return nil
}

// errNoTransport is the bind error for protocols registered without a
// binder.
var errNoTransport = ncerr.New("protocol has no transport")

// bind calls the binder with the bind timeout applied.  The binder runs
// in its own goroutine so one that ignores its context still cannot
// hold up the caller past the deadline; a handle it returns late is
// closed.
func (r *Registry) bind(ctx context.Context, b transport.Binder, spec transport.Spec) (transport.Handle, error) {
	if b == nil {
		return nil, errNoTransport
	}
	if r.bindTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.bindTimeout)
		defer cancel()
	}

	type result struct {
		h   transport.Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := b.Bind(ctx, spec)
		done <- result{h, err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.h == nil {
			return nil, fmt.Errorf("transport returned no handle")
		}
		return res.h, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.h != nil {
				res.h.Close() //nolint:errcheck
			}
		}()
		return nil, fmt.Errorf("bind: %w", ctx.Err())
	}
}

// Stop closes a running listener's transport.  Stopping a Failed
// listener resets it to Stopped; stopping a Stopped one is a no-op.  A
// listener with a Start in flight fails with ErrListenerBusy.
func (r *Registry) Stop(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.listeners[name]
	if !ok {
		r.mu.Unlock()
		return ncerr.Fail("stop listener", name, ncerr.ErrUnknownListener)
	}
	if inst.starting {
		r.mu.Unlock()
		return ncerr.Fail("stop listener", name, ncerr.ErrListenerBusy)
	}

	switch inst.state {
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateFailed:
		inst.state = StateStopped
		inst.lastErr = ""
		r.persist(ctx, inst)
		r.mu.Unlock()
		r.logger.Verbose("listener %s reset", name)
		return nil
	}

	h := inst.handle
	inst.handle = nil
	inst.addr = ""
	inst.state = StateStopped
	r.persist(ctx, inst)
	r.mu.Unlock()

	r.metrics.ListenerStopped()
	if err := h.Close(); err != nil {
		r.logger.Warn("listener %s: closing transport: %v", name, err)
	}
	r.logger.Info("listener %s stopped", name)
	return nil
}

// Restart stops and starts a listener.
func (r *Registry) Restart(ctx context.Context, name string) error {
	if err := r.Stop(ctx, name); err != nil {
		return err
	}
	return r.Start(ctx, name)
}

// ── Queries ──────────────────────────────────────────────────────────

// QueryProtocolType returns the protocol a listener is bound to.
func (r *Registry) QueryProtocolType(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.listeners[name]
	if !ok {
		return "", ncerr.Fail("query listener", name, ncerr.ErrUnknownListener)
	}
	return inst.protocol, nil
}

// QueryConfigData returns the configuration schema of a protocol, used
// by callers to render listener forms.
func (r *Registry) QueryConfigData(protocol string) (catalog.Schema, error) {
	return r.catalog.Schema(protocol)
}

// Get returns a snapshot of the named listener.
func (r *Registry) Get(name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.listeners[name]
	if !ok {
		return Info{}, ncerr.Fail("query listener", name, ncerr.ErrUnknownListener)
	}
	return r.snapshot(inst), nil
}

// ListAll returns the listener names in sorted order.
func (r *Registry) ListAll() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.listeners))
	for name := range r.listeners {
		out = append(out, name)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// List returns a snapshot of every listener, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.listeners))
	for _, inst := range r.listeners {
		out = append(out, r.snapshot(inst))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

func (r *Registry) has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listeners[name]
	return ok
}

// ── Persistence ──────────────────────────────────────────────────────

// persist writes inst to the store.  Failures are logged and counted;
// the in-memory registry stays authoritative.  Callers hold r.mu.
func (r *Registry) persist(ctx context.Context, inst *instance) {
	if r.store == nil {
		return
	}
	err := r.store.Save(ctx, store.Record{
		Name:      inst.name,
		Protocol:  inst.protocol,
		State:     inst.state.String(),
		Config:    inst.config,
		CreatedAt: inst.createdAt,
	})
	if err != nil {
		r.storeFailed(inst.name, err)
	}
}

func (r *Registry) storeFailed(name string, err error) {
	r.metrics.StoreFailed(err.Error())
	r.logger.Warn("listener %s: persisting: %v", name, err)
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
