package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"hcd/internal/catalog"
)

// Profile declares what the daemon sets up at startup.
//
//	protocols:
//	  - name: https-beacon
//	    transport: http
//	listeners:
//	  - name: web1
//	    protocol: https-beacon
//	    start: true
//	    config: {port: 8443, secure: true}
//	actions:
//	  - name: Edit Config
//	    protocol: https-beacon
//	    command: edit-config.py
//
// Values of the form ${VAR} are expanded from the environment before
// parsing.
type Profile struct {
	Protocols []ProtocolSpec `yaml:"protocols"`
	Listeners []ListenerSpec `yaml:"listeners"`
	Actions   []ActionSpec   `yaml:"actions"`
}

// ProtocolSpec registers a protocol backed by a built-in transport.
// Schema defaults to the transport's own schema.
type ProtocolSpec struct {
	Name        string         `yaml:"name"`
	Transport   string         `yaml:"transport"`
	Description string         `yaml:"description,omitempty"`
	Schema      catalog.Schema `yaml:"schema,omitempty"`
}

// ListenerSpec creates a listener, and starts it when Start is set.
type ListenerSpec struct {
	Name     string         `yaml:"name"`
	Protocol string         `yaml:"protocol"`
	Start    bool           `yaml:"start,omitempty"`
	Config   map[string]any `yaml:"config,omitempty"`
}

// ActionSpec registers a menu action.  An empty Protocol registers it
// globally.  Command is stored as the action's callback.
type ActionSpec struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol,omitempty"`
	Icon     string `yaml:"icon,omitempty"`
	Command  string `yaml:"command"`
}

// LoadProfile reads and validates the profile at path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates a profile document.  Unknown keys
// are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names, references and transports.  Listener configs
// are checked against their schemas when the listeners are created.
func (p *Profile) Validate() error {
	var errs []error
	declared := make(map[string]bool)

	for i, ps := range p.Protocols {
		switch {
		case !catalog.ValidName(ps.Name):
			errs = append(errs, fmt.Errorf("protocols[%d]: invalid name %q", i, ps.Name))
		case declared[ps.Name]:
			errs = append(errs, fmt.Errorf("protocols[%d]: duplicate protocol %q", i, ps.Name))
		case isBuiltin(ps.Name):
			errs = append(errs, fmt.Errorf("protocols[%d]: %q is a built-in protocol", i, ps.Name))
		}
		declared[ps.Name] = true

		if _, ok := catalog.Binder(ps.Transport); !ok {
			errs = append(errs, fmt.Errorf("protocols[%d]: unknown transport %q (have %v)",
				i, ps.Transport, catalog.TransportKinds()))
		}
	}

	known := func(name string) bool { return declared[name] || isBuiltin(name) }

	seen := make(map[string]bool)
	for i, ls := range p.Listeners {
		switch {
		case !catalog.ValidName(ls.Name):
			errs = append(errs, fmt.Errorf("listeners[%d]: invalid name %q", i, ls.Name))
		case seen[ls.Name]:
			errs = append(errs, fmt.Errorf("listeners[%d]: duplicate listener %q", i, ls.Name))
		}
		seen[ls.Name] = true

		if !known(ls.Protocol) {
			errs = append(errs, fmt.Errorf("listeners[%d]: unknown protocol %q", i, ls.Protocol))
		}
	}

	for i, as := range p.Actions {
		if as.Name == "" {
			errs = append(errs, fmt.Errorf("actions[%d]: name is required", i))
		}
		if as.Protocol != "" && !known(as.Protocol) {
			errs = append(errs, fmt.Errorf("actions[%d]: unknown protocol %q", i, as.Protocol))
		}
	}

	return errors.Join(errs...)
}

func isBuiltin(name string) bool {
	_, ok := catalog.BuiltinSchema(name)
	return ok
}

// Descriptors returns the catalog descriptors for the declared
// protocols, in declaration order.
func (p *Profile) Descriptors() []catalog.Descriptor {
	out := make([]catalog.Descriptor, 0, len(p.Protocols))
	for _, ps := range p.Protocols {
		b, _ := catalog.Binder(ps.Transport)
		schema := ps.Schema
		if schema == nil {
			schema, _ = catalog.BuiltinSchema(ps.Transport)
		}
		desc := ps.Description
		if desc == "" {
			desc = ps.Transport + " listener"
		}
		out = append(out, catalog.Descriptor{
			Name:        ps.Name,
			Description: desc,
			Schema:      schema,
			Binder:      b,
		})
	}
	return out
}
