package catalog

import (
	"sort"

	"hcd/internal/transport"
)

// binders maps transport kinds to their implementations.  Profiles
// refer to these by name when declaring protocols.
var binders = map[string]transport.Binder{ //nolint:gochecknoglobals
	"tcp":  transport.TCPBinder{},
	"udp":  transport.UDPBinder{},
	"http": transport.HTTPBinder{},
	"ssh":  transport.SSHBinder{},
	"quic": transport.QUICBinder{},
}

// Binder returns the built-in transport with the given kind.
func Binder(kind string) (transport.Binder, bool) {
	b, ok := binders[kind]
	return b, ok
}

// TransportKinds lists the built-in transport kinds in sorted order.
func TransportKinds() []string {
	out := make([]string, 0, len(binders))
	for k := range binders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func addrFields() Schema {
	return Schema{
		"host": {Type: TypeString, Default: "0.0.0.0", Description: "bind address"},
		"port": {Type: TypeInt, Required: true, Description: "bind port"},
	}
}

func tlsFields(s Schema) Schema {
	s["cert"] = Field{Type: TypeString, Description: "PEM certificate path (self-signed when empty)"}
	s["key"] = Field{Type: TypeString, Description: "PEM private key path"}
	return s
}

// BuiltinSchema returns the schema a built-in transport understands.
func BuiltinSchema(kind string) (Schema, bool) {
	s := addrFields()
	switch kind {
	case "tcp", "udp":
	case "http":
		tlsFields(s)
		s["secure"] = Field{Type: TypeBool, Default: false, Description: "serve HTTPS"}
		s["uris"] = Field{Type: TypeString, Default: "/", Description: "comma-separated accepted paths"}
		s["user_agent"] = Field{Type: TypeString, Description: "required User-Agent (any when empty)"}
	case "ssh":
		s["host_key"] = Field{Type: TypeString, Description: "host private key path (ephemeral when empty)"}
		s["password"] = Field{Type: TypeString, Secret: true, Description: "client password (no auth when empty)"}
	case "quic":
		tlsFields(s)
		s["alpn"] = Field{Type: TypeString, Default: "hcd-quic/1", Description: "ALPN protocol id"}
	default:
		return nil, false
	}
	return s, true
}

// Builtins returns a descriptor for every built-in transport, named
// after the transport kind.
func Builtins() []Descriptor {
	var out []Descriptor
	for _, kind := range TransportKinds() {
		schema, _ := BuiltinSchema(kind)
		out = append(out, Descriptor{
			Name:        kind,
			Description: "built-in " + kind + " listener",
			Schema:      schema,
			Binder:      binders[kind],
		})
	}
	return out
}

// RegisterBuiltins registers every built-in descriptor.
func RegisterBuiltins(c *Catalog) error {
	for _, desc := range Builtins() {
		if err := c.Register(desc); err != nil {
			return err
		}
	}
	return nil
}
