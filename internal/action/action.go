// Package action stores menu actions registered by scripts and plugins.
//
// An action is bound either to one protocol, in which case it appears on
// the menu of every listener of that protocol, or globally.  The
// registry is a pure store: callbacks are kept by identity and handed
// back to callers, never invoked here.
package action

import (
	"sync"

	"github.com/google/uuid"

	ncerr "hcd/internal/errors"
)

// Global is the scope of actions not bound to a protocol.
const Global = "global"

// Callback is an opaque invocable reference supplied by the caller.
type Callback any

// Action is one registered menu entry.
type Action struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Icon        string    `json:"icon,omitempty"`
	Scope       string    `json:"scope"`
	Owner       string    `json:"owner,omitempty"`
	Callback    Callback  `json:"-"`
}

// Option sets an optional field of an action at registration.
type Option func(*Action)

// WithIcon sets the icon path shown next to the entry.
func WithIcon(path string) Option {
	return func(a *Action) { a.Icon = path }
}

// WithOwner records the script or plugin that owns the action, so
// UnregisterOwner can drop all of them at teardown.
func WithOwner(owner string) Option {
	return func(a *Action) { a.Owner = owner }
}

// Protocols is the part of the protocol catalog the registry needs.
type Protocols interface {
	Has(name string) bool
}

// Registry holds actions per scope in insertion order.
type Registry struct {
	protocols Protocols

	mu     sync.RWMutex
	scoped map[string][]Action
	global []Action
}

// NewRegistry returns an empty registry validating scopes against p.
func NewRegistry(p Protocols) *Registry {
	return &Registry{
		protocols: p,
		scoped:    make(map[string][]Action),
	}
}

func newAction(scope, displayName string, cb Callback, opts []Option) Action {
	a := Action{
		ID:          uuid.New(),
		DisplayName: displayName,
		Scope:       scope,
		Callback:    cb,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// RegisterForProtocol appends an action to the menu of protocol.  It
// fails with ErrUnknownProtocol when the protocol is not in the
// catalog.  Duplicate display names are kept; the ID tells them apart.
func (r *Registry) RegisterForProtocol(protocol, displayName string, cb Callback, opts ...Option) (Action, error) {
	if !r.protocols.Has(protocol) {
		return Action{}, ncerr.Fail("register action", protocol, ncerr.ErrUnknownProtocol)
	}
	a := newAction(protocol, displayName, cb, opts)

	r.mu.Lock()
	r.scoped[protocol] = append(r.scoped[protocol], a)
	r.mu.Unlock()
	return a, nil
}

// RegisterGlobal appends an action to the global menu.
func (r *Registry) RegisterGlobal(displayName string, cb Callback, opts ...Option) Action {
	a := newAction(Global, displayName, cb, opts)

	r.mu.Lock()
	r.global = append(r.global, a)
	r.mu.Unlock()
	return a
}

// ActionsFor returns the actions bound to protocol in registration
// order.  Global actions are not included.
func (r *Registry) ActionsFor(protocol string) []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Action(nil), r.scoped[protocol]...)
}

// GlobalActions returns the global actions in registration order.
func (r *Registry) GlobalActions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Action(nil), r.global...)
}

// Unregister removes the action with the given ID.
func (r *Registry) Unregister(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := indexOf(r.global, id); i >= 0 {
		r.global = remove(r.global, i)
		return nil
	}
	for scope, list := range r.scoped {
		if i := indexOf(list, id); i >= 0 {
			r.scoped[scope] = remove(list, i)
			if len(r.scoped[scope]) == 0 {
				delete(r.scoped, scope)
			}
			return nil
		}
	}
	return ncerr.Fail("unregister action", id.String(), ncerr.ErrUnknownAction)
}

// UnregisterOwner removes every action registered with owner and
// returns how many were removed.  An empty owner matches nothing.
func (r *Registry) UnregisterOwner(owner string) int {
	if owner == "" {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	keep := func(list []Action) []Action {
		out := list[:0]
		for _, a := range list {
			if a.Owner == owner {
				n++
				continue
			}
			out = append(out, a)
		}
		return out
	}

	r.global = keep(r.global)
	for scope, list := range r.scoped {
		if rest := keep(list); len(rest) > 0 {
			r.scoped[scope] = rest
		} else {
			delete(r.scoped, scope)
		}
	}
	return n
}

// Len returns the number of registered actions across all scopes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.global)
	for _, list := range r.scoped {
		n += len(list)
	}
	return n
}

func indexOf(list []Action, id uuid.UUID) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// remove drops element i, copying so slices handed out earlier keep
// their contents.
func remove(list []Action, i int) []Action {
	out := make([]Action, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
