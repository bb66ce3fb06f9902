// Package config defines the runtime configuration of the hcd daemon and
// the YAML profile that declares its protocols, listeners and menu
// actions.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	ncerr "hcd/internal/errors"
)

// Config holds every tuneable of one daemon run.
type Config struct {
	// ── Inputs ───────────────────────────────────────────────────────
	ProfilePath string // YAML profile applied at startup (optional)
	DBPath      string // sqlite database; MemoryDB keeps state in process

	// ── Listener lifecycle ───────────────────────────────────────────
	BindTimeout time.Duration // per-start transport bind deadline
	NoRestore   bool          // skip restoring persisted listeners

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		DBPath:      DefaultDBPath,
		BindTimeout: DefaultBindTimeout,
		Verbose:     DefaultVerbosity,
	}
}

// InMemory reports whether the configuration selects the in-process
// store.
func (c *Config) InMemory() bool {
	return c.DBPath == "" || c.DBPath == MemoryDB
}

// BindFlags registers the daemon flags on fs, using the current values
// of c as flag defaults so that flags override env and defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ProfilePath, "profile", c.ProfilePath, "YAML profile with protocols, listeners and actions")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "sqlite database for listener state (\""+MemoryDB+"\" for none)")
	fs.DurationVar(&c.BindTimeout, "bind-timeout", c.BindTimeout, "Deadline for a listener transport to bind")
	fs.BoolVar(&c.NoRestore, "no-restore", c.NoRestore, "Do not restore persisted listeners")

	// CountVarP zeroes its target; each -v counts up from the env level.
	base := c.Verbose
	fs.CountVarP(&c.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	c.Verbose = base
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.BindTimeout <= 0 {
		return &ncerr.ConfigError{
			Field:   "bind-timeout",
			Value:   c.BindTimeout,
			Message: "must be positive",
			Hint:    fmt.Sprintf("the default is %v", DefaultBindTimeout),
		}
	}
	if c.BindTimeout > MaxBindTimeout {
		return &ncerr.ConfigError{
			Field:   "bind-timeout",
			Value:   c.BindTimeout,
			Message: fmt.Sprintf("exceeds %v", MaxBindTimeout),
			Hint:    "a bind that takes this long is almost certainly stuck",
		}
	}

	if c.ProfilePath != "" {
		fi, err := os.Stat(c.ProfilePath)
		switch {
		case err != nil:
			return &ncerr.ConfigError{
				Field:   "profile",
				Value:   c.ProfilePath,
				Message: "cannot read profile",
				Hint:    "check the path, or unset HCD_PROFILE",
			}
		case fi.IsDir():
			return &ncerr.ConfigError{
				Field:   "profile",
				Value:   c.ProfilePath,
				Message: "is a directory",
			}
		}
	}

	if !c.InMemory() && strings.HasSuffix(c.DBPath, "/") {
		return &ncerr.ConfigError{
			Field:   "db",
			Value:   c.DBPath,
			Message: "must name a file, not a directory",
			Hint:    "for example " + DefaultDBPath,
		}
	}
	return nil
}
