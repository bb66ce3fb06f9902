// Package errors provides the error kinds shared by the hcd registries.
//
// Every registry operation fails with one of the sentinel kinds below,
// either directly or wrapped in a structured type that carries the
// offending listener, protocol or field list.  Callers test the kind
// with [Is] and pull the details out with [As].
package errors

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrDuplicateProtocol      = errors.New("protocol already registered")
	ErrUnknownProtocol        = errors.New("unknown protocol")
	ErrDuplicateListener      = errors.New("listener already exists")
	ErrUnknownListener        = errors.New("unknown listener")
	ErrInvalidConfig          = errors.New("invalid listener config")
	ErrAlreadyRunning         = errors.New("listener already running")
	ErrListenerBusy           = errors.New("listener is running")
	ErrListenerFailed         = errors.New("listener is in failed state")
	ErrBindFailed             = errors.New("transport bind failed")
	ErrConcurrentModification = errors.New("listener changed during operation")
	ErrUnknownAction          = errors.New("unknown menu action")
	ErrInvalidName            = errors.New("invalid name")
	ErrShutdown               = errors.New("listener registry shut down")
)

// ── Structured error types ───────────────────────────────────────────

// OpError attaches the operation and the listener, protocol or action
// name to a sentinel kind.
type OpError struct {
	Op   string // "create listener", "register protocol", ...
	Name string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// FieldError describes a single offending config field.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string { return f.Field + ": " + f.Reason }

// InvalidConfigError lists every field that failed schema validation.
// It matches [ErrInvalidConfig] under [Is].
type InvalidConfigError struct {
	Protocol string
	Fields   []FieldError
}

func (e *InvalidConfigError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%v for protocol %q: %s",
		ErrInvalidConfig, e.Protocol, strings.Join(parts, "; "))
}

func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// FieldNames returns the offending field names in sorted order.
func (e *InvalidConfigError) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Field)
	}
	sort.Strings(out)
	return out
}

// BindError is returned when a transport could not bind or timed out
// while binding.  It matches [ErrBindFailed] and unwraps to the
// transport's own error.
type BindError struct {
	Listener string
	Protocol string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind listener %q (%s): %v", e.Listener, e.Protocol, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBindFailed }

// NetworkError represents a failure in a transport network operation.
type NetworkError struct {
	Op        string // "listen", "accept", "handshake"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether a later attempt might succeed
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid daemon configuration value.
type ConfigError struct {
	Field   string      // flag name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Fail wraps kind with the operation and subject name.
func Fail(op, name string, kind error) *OpError {
	return &OpError{Op: op, Name: name, Err: kind}
}

// Wrap creates a NetworkError, detecting retryability from the
// underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether a later attempt at err might succeed.
// The registries never retry on their own; this is a hint for callers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentModification) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
