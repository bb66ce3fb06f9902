// Package transport provides the network side of a listener.  A
// Binder knows how to bind one kind of socket (TCP, UDP, HTTP, SSH,
// QUIC) from a validated config map and returns a Handle that owns the
// bound socket until it is closed.
//
// Transports only bind and accept.  What happens over an accepted
// connection is the ConnHandler's job, which keeps agent protocol
// handling out of this package.
package transport

import (
	"context"
	"fmt"
	"net"

	"hcd/util"
)

// Binder binds a listener's socket.  Bind must return once the socket
// is bound (or binding failed); accepting runs in the background until
// the returned Handle is closed.
type Binder interface {
	Bind(ctx context.Context, spec Spec) (Handle, error)
}

// Handle is a bound, accepting listener socket.
type Handle interface {
	// Addr is the address the socket actually bound to.
	Addr() string
	// Close stops accepting and releases the socket.  It waits for the
	// accept loop to exit.
	Close() error
}

// ConnHandler receives every accepted stream connection.  It owns conn
// and must close it.
type ConnHandler func(ctx context.Context, listener string, conn net.Conn)

// Spec is everything a Binder needs for one listener.
type Spec struct {
	Listener string
	Protocol string
	Config   map[string]any
	Handler  ConnHandler
	Logger   *util.Logger
}

// String returns the string config value for key, or def.
func (s Spec) String(key, def string) string {
	if v, ok := s.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns the int config value for key, or def.
func (s Spec) Int(key string, def int) int {
	if v, ok := s.Config[key].(int); ok {
		return v
	}
	return def
}

// Bool returns the bool config value for key, or def.
func (s Spec) Bool(key string, def bool) bool {
	if v, ok := s.Config[key].(bool); ok {
		return v
	}
	return def
}

// Address joins the "host" and "port" config values.
func (s Spec) Address() (string, error) {
	port := s.Int("port", -1)
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("port %d out of range 0-65535", port)
	}
	return util.FormatAddr(s.String("host", "0.0.0.0"), port), nil
}

func (s Spec) handle(ctx context.Context, conn net.Conn) {
	if s.Handler != nil {
		s.Handler(ctx, s.Listener, conn)
		return
	}
	LogAndClose(ctx, s.Listener, conn, s.Logger)
}

// LogAndClose is the default ConnHandler: it records the peer and
// closes the connection.
func LogAndClose(_ context.Context, listener string, conn net.Conn, logger *util.Logger) {
	if logger != nil {
		logger.Verbose("%s: connection from %s", listener, conn.RemoteAddr())
	}
	conn.Close()
}

// Func adapts a plain function to a Binder.
type Func func(ctx context.Context, spec Spec) (Handle, error)

// Bind calls f.
func (f Func) Bind(ctx context.Context, spec Spec) (Handle, error) { return f(ctx, spec) }
