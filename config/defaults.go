package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, profile parsing, and environment variable loading.

const (
	// DefaultDBPath is where listener state is persisted.
	DefaultDBPath = "~/.hcd/listeners.db"

	// MemoryDB selects the in-process store instead of sqlite.
	MemoryDB = ":memory:"

	// DefaultBindTimeout bounds one listener transport bind.
	DefaultBindTimeout = 10 * time.Second

	// MaxBindTimeout is the largest bind timeout Validate accepts.
	MaxBindTimeout = 5 * time.Minute

	// DefaultVerbosity prints info, warnings and errors.
	DefaultVerbosity = 1

	// DefaultGracePeriod is how long shutdown waits for listeners to
	// close before the daemon exits anyway.
	DefaultGracePeriod = 5 * time.Second

	// DefaultSessionIdle drops accepted connections that stay silent
	// this long.
	DefaultSessionIdle = 5 * time.Minute

	// ProfileOwner owns the menu actions declared in a profile.
	ProfileOwner = "profile"

	// PromptValue in a profile secret field asks for the value on the
	// terminal at startup.
	PromptValue = "-"
)
