package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
)

// ── Validate ─────────────────────────────────────────────────────────

func TestValidate_Default(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages naming the flag.
func TestValidate_ErrorMessages(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub []string
	}{
		{
			name:    "zero bind timeout",
			mutate:  func(c *Config) { c.BindTimeout = 0 },
			wantSub: []string{"--bind-timeout", "hint:"},
		},
		{
			name:    "huge bind timeout",
			mutate:  func(c *Config) { c.BindTimeout = time.Hour },
			wantSub: []string{"--bind-timeout", "exceeds"},
		},
		{
			name:    "missing profile",
			mutate:  func(c *Config) { c.ProfilePath = filepath.Join(dir, "nope.yaml") },
			wantSub: []string{"--profile", "HCD_PROFILE"},
		},
		{
			name:    "profile is dir",
			mutate:  func(c *Config) { c.ProfilePath = dir },
			wantSub: []string{"is a directory"},
		},
		{
			name:    "db is dir",
			mutate:  func(c *Config) { c.DBPath = "/var/lib/hcd/" },
			wantSub: []string{"--db", "must name a file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			for _, sub := range tt.wantSub {
				if !strings.Contains(err.Error(), sub) {
					t.Errorf("error %q should contain %q", err.Error(), sub)
				}
			}
		})
	}
}

func TestInMemory(t *testing.T) {
	tests := []struct {
		db   string
		want bool
	}{
		{"", true},
		{MemoryDB, true},
		{DefaultDBPath, false},
		{"sqlite:///tmp/x.db", false},
	}
	for _, tt := range tests {
		cfg := &Config{DBPath: tt.db}
		if got := cfg.InMemory(); got != tt.want {
			t.Errorf("InMemory(%q) = %v, want %v", tt.db, got, tt.want)
		}
	}
}

// ── Precedence ───────────────────────────────────────────────────────

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HCD_PROFILE", "/etc/hcd/profile.yaml")
	t.Setenv("HCD_DB", MemoryDB)
	t.Setenv("HCD_BIND_TIMEOUT", "1500ms")
	t.Setenv("HCD_NO_RESTORE", "yes")
	t.Setenv("HCD_VERBOSE", "3")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.ProfilePath != "/etc/hcd/profile.yaml" {
		t.Errorf("ProfilePath = %q", cfg.ProfilePath)
	}
	if !cfg.InMemory() {
		t.Errorf("DBPath = %q, want memory", cfg.DBPath)
	}
	if cfg.BindTimeout != 1500*time.Millisecond {
		t.Errorf("BindTimeout = %v", cfg.BindTimeout)
	}
	if !cfg.NoRestore {
		t.Error("NoRestore should be true")
	}
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d", cfg.Verbose)
	}
}

func TestLoadFromEnv_Ignored(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"HCD_BIND_TIMEOUT", "soon"},
		{"HCD_BIND_TIMEOUT", "-5"},
		{"HCD_VERBOSE", "loud"},
		{"HCD_NO_RESTORE", "nah"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Default()
			LoadFromEnv(cfg)
			if *cfg != *Default() {
				t.Errorf("config changed: %+v", cfg)
			}
		})
	}
}

func TestLoadFromEnv_BareSeconds(t *testing.T) {
	t.Setenv("HCD_BIND_TIMEOUT", "30")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.BindTimeout != 30*time.Second {
		t.Errorf("BindTimeout = %v, want 30s", cfg.BindTimeout)
	}
}

func TestBindFlags_OverrideEnv(t *testing.T) {
	t.Setenv("HCD_DB", "/env/listeners.db")
	t.Setenv("HCD_BIND_TIMEOUT", "20s")

	cfg := Default()
	LoadFromEnv(cfg)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--db", "/flag/listeners.db", "-vv"}); err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/flag/listeners.db" {
		t.Errorf("DBPath = %q, flag should win", cfg.DBPath)
	}
	if cfg.BindTimeout != 20*time.Second {
		t.Errorf("BindTimeout = %v, env should survive", cfg.BindTimeout)
	}
	if cfg.Verbose != DefaultVerbosity+2 {
		t.Errorf("Verbose = %d", cfg.Verbose)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
