// Package dispatch is the public surface of the teamserver core.  UI
// clients and scripts enumerate protocols and listeners, drive listener
// lifecycles and register menu actions through a Facade, which maps
// each call onto the catalog, the listener registry or the action
// registry.  Errors from the stores are returned unchanged.
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"hcd/internal/action"
	"hcd/internal/catalog"
	"hcd/internal/listener"
)

// Facade composes the three stores.
type Facade struct {
	protocols *catalog.Catalog
	listeners *listener.Registry
	actions   *action.Registry
}

// New returns a facade over existing stores.
func New(protocols *catalog.Catalog, listeners *listener.Registry, actions *action.Registry) *Facade {
	return &Facade{protocols: protocols, listeners: listeners, actions: actions}
}

// ── Protocols ────────────────────────────────────────────────────────

// ListProtocols returns the registered protocol names, sorted.
func (f *Facade) ListProtocols() []string { return f.protocols.Names() }

// GetProtocolSchema returns the config schema listeners of protocol are
// created with.
func (f *Facade) GetProtocolSchema(protocol string) (catalog.Schema, error) {
	return f.listeners.QueryConfigData(protocol)
}

// ── Listeners ────────────────────────────────────────────────────────

// ListListeners returns the listener names, sorted.
func (f *Facade) ListListeners() []string { return f.listeners.ListAll() }

// Listeners returns a snapshot of every listener, sorted by name.
func (f *Facade) Listeners() []listener.Info { return f.listeners.List() }

// ListenerInfo returns a snapshot of one listener.
func (f *Facade) ListenerInfo(name string) (listener.Info, error) {
	return f.listeners.Get(name)
}

// GetListenerProtocolType returns the protocol a listener was created
// with.
func (f *Facade) GetListenerProtocolType(name string) (string, error) {
	return f.listeners.QueryProtocolType(name)
}

// CreateListener registers a stopped listener.  A nil config is the
// empty config: schema defaults apply.
func (f *Facade) CreateListener(ctx context.Context, name, protocol string, config map[string]any) (listener.Info, error) {
	return f.listeners.Create(ctx, name, protocol, config)
}

// EditListener replaces the config of a listener that is not running.
func (f *Facade) EditListener(ctx context.Context, name string, config map[string]any) (listener.Info, error) {
	return f.listeners.Edit(ctx, name, config)
}

// StartListener binds the listener's transport.
func (f *Facade) StartListener(ctx context.Context, name string) error {
	return f.listeners.Start(ctx, name)
}

// StopListener closes the listener's transport.
func (f *Facade) StopListener(ctx context.Context, name string) error {
	return f.listeners.Stop(ctx, name)
}

// RestartListener stops and starts the listener.
func (f *Facade) RestartListener(ctx context.Context, name string) error {
	return f.listeners.Restart(ctx, name)
}

// RemoveListener deletes a listener that is not running.
func (f *Facade) RemoveListener(ctx context.Context, name string) error {
	return f.listeners.Remove(ctx, name)
}

// ── Menu actions ─────────────────────────────────────────────────────
//
// Arguments are ordered (protocolType, displayName, callback) for every
// registration call; the icon and owner are options and default to "".

// RegisterProtocolMenuAction adds an entry to the menu of every
// listener of protocolType.
func (f *Facade) RegisterProtocolMenuAction(protocolType, displayName string, cb action.Callback, opts ...action.Option) (action.Action, error) {
	return f.actions.RegisterForProtocol(protocolType, displayName, cb, opts...)
}

// RegisterGlobalMenuAction adds an entry to the global menu.
func (f *Facade) RegisterGlobalMenuAction(displayName string, cb action.Callback, opts ...action.Option) action.Action {
	return f.actions.RegisterGlobal(displayName, cb, opts...)
}

// ProtocolMenuActions returns the entries bound to protocolType.
func (f *Facade) ProtocolMenuActions(protocolType string) []action.Action {
	return f.actions.ActionsFor(protocolType)
}

// ListenerMenuActions returns the entries shown for one listener: the
// ones bound to its protocol.
func (f *Facade) ListenerMenuActions(name string) ([]action.Action, error) {
	protocol, err := f.listeners.QueryProtocolType(name)
	if err != nil {
		return nil, err
	}
	return f.actions.ActionsFor(protocol), nil
}

// GlobalMenuActions returns the global entries.
func (f *Facade) GlobalMenuActions() []action.Action {
	return f.actions.GlobalActions()
}

// UnregisterMenuAction removes the entry registered under id.
func (f *Facade) UnregisterMenuAction(id uuid.UUID) error {
	return f.actions.Unregister(id)
}

// UnregisterOwnerMenuActions drops every entry registered by owner and
// returns how many there were.
func (f *Facade) UnregisterOwnerMenuActions(owner string) int {
	return f.actions.UnregisterOwner(owner)
}
