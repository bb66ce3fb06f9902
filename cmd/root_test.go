package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hcd/config"
	"hcd/internal/catalog"
)

// run executes the command tree with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HCD_DB", config.MemoryDB)

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestExecute_Version verifies the version subcommand and flag.
func TestExecute_Version(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "hcd "+version) {
		t.Errorf("output %q missing version", out)
	}

	if _, err := run(t, "--version"); err != nil {
		t.Fatalf("--version: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, "serve") {
				t.Errorf("help should list subcommands, got %q", out)
			}
		})
	}
}

// TestExecute_InvalidFlags verifies unknown flags and commands fail.
func TestExecute_InvalidFlags(t *testing.T) {
	for _, args := range [][]string{{"--nonexistent-flag"}, {"serve", "extra-arg"}, {"bogus"}} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

// ── protocols ────────────────────────────────────────────────────────

func TestProtocols_Table(t *testing.T) {
	out, err := run(t, "protocols")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"PROTOCOL", "ssh", "quic", "password", "secret", "required"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProtocols_JSONWithProfile(t *testing.T) {
	path := writeProfile(t, "protocols:\n  - {name: beacon, transport: http}\n")
	out, err := run(t, "protocols", "--json", "--profile", path)
	if err != nil {
		t.Fatal(err)
	}

	var schemas map[string]catalog.Schema
	if err := json.Unmarshal([]byte(out), &schemas); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	beacon, ok := schemas["beacon"]
	if !ok {
		t.Fatalf("profile protocol missing: %v", schemas)
	}
	if beacon["port"].Type != catalog.TypeInt || !beacon["port"].Required {
		t.Errorf("beacon port = %+v", beacon["port"])
	}
}

// ── check ────────────────────────────────────────────────────────────

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		wantErr bool
		wantOut string
	}{
		{
			name: "valid",
			profile: `
listeners:
  - {name: web1, protocol: http, config: {port: 8080}}
  - {name: jump, protocol: ssh, config: {port: 2222, password: "-"}}
actions:
  - {name: Edit Config, protocol: http, command: edit.py}
`,
			wantOut: "profile ok: 0 protocols, 2 listeners, 1 actions",
		},
		{
			name:    "bad port",
			profile: "listeners:\n  - {name: L3, protocol: http, config: {port: eighty}}\n",
			wantErr: true,
			wantOut: "FAIL listener L3",
		},
		{
			name:    "unknown field",
			profile: "listeners:\n  - {name: L4, protocol: tcp, config: {port: 1, tls: true}}\n",
			wantErr: true,
			wantOut: "FAIL listener L4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "check", "--profile", writeProfile(t, tt.profile))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output %q missing %q", out, tt.wantOut)
			}
		})
	}
}

func TestCheck_RequiresProfile(t *testing.T) {
	t.Setenv("HCD_PROFILE", "")
	_, err := run(t, "check")
	if err == nil || !strings.Contains(err.Error(), "--profile") {
		t.Fatalf("expected --profile error, got %v", err)
	}
}

// ── serve ────────────────────────────────────────────────────────────

const serveProfile = `
listeners:
  - name: raw
    protocol: tcp
    start: true
    config: {host: 127.0.0.1, port: 0}
  - name: jump
    protocol: ssh
    start: true
    config: {host: 127.0.0.1, port: 0, password: "-"}
  - name: cold
    protocol: udp
    config: {host: 127.0.0.1, port: 0}
actions:
  - {name: Interact, protocol: tcp, command: interact.py}
  - {name: Delete, command: delete.py}
`

func TestServe_AppliesProfile(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = config.MemoryDB
	cfg.Verbose = 2
	cfg.ProfilePath = writeProfile(t, serveProfile)

	var prompts []string
	secrets := func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "hunter2", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	if err := runServe(ctx, cfg, secrets, &stdout, &stderr); err != nil {
		t.Fatalf("serve: %v\n%s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"raw", "jump", "cold", "Running", "Stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("listener table missing %q:\n%s", want, out)
		}
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], "password for listener jump") {
		t.Errorf("prompts = %q", prompts)
	}
	if !strings.Contains(stderr.String(), `"listeners_running"`) {
		t.Errorf("verbose shutdown should print metrics:\n%s", stderr.String())
	}
}

func TestServe_RestoresFromDB(t *testing.T) {
	db := filepath.Join(t.TempDir(), "listeners.db")
	profile := writeProfile(t, "listeners:\n  - {name: raw, protocol: tcp, start: true, config: {host: 127.0.0.1, port: 0}}\n")

	serve := func(profilePath string) string {
		cfg := config.Default()
		cfg.DBPath = db
		cfg.ProfilePath = profilePath

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		var stdout, stderr bytes.Buffer
		if err := runServe(ctx, cfg, nil, &stdout, &stderr); err != nil {
			t.Fatalf("serve: %v\n%s", err, stderr.String())
		}
		return stdout.String()
	}

	serve(profile)

	// Second run without a profile: the listener comes back running.
	out := serve("")
	if !strings.Contains(out, "raw") || !strings.Contains(out, "Running") {
		t.Errorf("listener not restored:\n%s", out)
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BindTimeout = -time.Second
	var stdout, stderr bytes.Buffer
	if err := runServe(context.Background(), cfg, nil, &stdout, &stderr); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestServe_BindFailureNotRetried(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	cfg := config.Default()
	cfg.DBPath = config.MemoryDB
	cfg.Verbose = 2
	cfg.ProfilePath = writeProfile(t, fmt.Sprintf(
		"listeners:\n  - {name: taken, protocol: tcp, start: true, config: {host: 127.0.0.1, port: %d}}\n", port))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	if err := runServe(ctx, cfg, nil, &stdout, &stderr); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.Contains(stdout.String(), "Failed") {
		t.Errorf("listener should be Failed:\n%s", stdout.String())
	}
	if strings.Contains(stderr.String(), "start attempt") {
		t.Errorf("bind failure was retried:\n%s", stderr.String())
	}
}
