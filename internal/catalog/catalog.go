// Package catalog holds the protocol descriptors known to the
// teamserver.  A descriptor names a protocol, declares the schema its
// listeners are configured with, and carries the transport that binds
// them.  Descriptors are immutable once registered.
package catalog

import (
	"regexp"
	"sort"
	"sync"

	ncerr "hcd/internal/errors"
	"hcd/internal/transport"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidName reports whether name is usable as a protocol or listener
// name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Descriptor describes one protocol.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
	// Binder binds listeners of this protocol.  A descriptor without
	// one can hold listeners but cannot start them.
	Binder transport.Binder
}

// Catalog is a concurrency-safe set of descriptors keyed by name.
type Catalog struct {
	mu        sync.RWMutex
	protocols map[string]Descriptor
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{protocols: make(map[string]Descriptor)}
}

// Register adds desc.  It fails with ErrDuplicateProtocol when the name
// is taken and with an InvalidConfigError when the schema is malformed.
func (c *Catalog) Register(desc Descriptor) error {
	if !ValidName(desc.Name) {
		return ncerr.Fail("register protocol", desc.Name, ncerr.ErrInvalidName)
	}
	if bad := desc.Schema.check(); len(bad) > 0 {
		return &ncerr.InvalidConfigError{Protocol: desc.Name, Fields: bad}
	}
	desc.Schema = desc.Schema.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.protocols[desc.Name]; ok {
		return ncerr.Fail("register protocol", desc.Name, ncerr.ErrDuplicateProtocol)
	}
	c.protocols[desc.Name] = desc
	return nil
}

// Get returns a copy of the named descriptor.
func (c *Catalog) Get(name string) (Descriptor, error) {
	c.mu.RLock()
	desc, ok := c.protocols[name]
	c.mu.RUnlock()

	if !ok {
		return Descriptor{}, unknown(name)
	}
	desc.Schema = desc.Schema.Clone()
	return desc, nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.protocols[name]
	return ok
}

// Names returns the registered protocol names in lexicographic order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.protocols))
	for name := range c.protocols {
		out = append(out, name)
	}
	c.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Schema returns a copy of the named protocol's schema.
func (c *Catalog) Schema(name string) (Schema, error) {
	desc, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return desc.Schema, nil
}

// Validate checks values against the named protocol's schema and
// returns the normalized values.
func (c *Catalog) Validate(name string, values map[string]any) (map[string]any, error) {
	c.mu.RLock()
	desc, ok := c.protocols[name]
	c.mu.RUnlock()

	if !ok {
		return nil, unknown(name)
	}
	out, bad := desc.Schema.Validate(values)
	if len(bad) > 0 {
		return nil, &ncerr.InvalidConfigError{Protocol: name, Fields: bad}
	}
	return out, nil
}

func unknown(name string) error {
	return ncerr.Fail("lookup protocol", name, ncerr.ErrUnknownProtocol)
}
