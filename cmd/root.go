// Package cmd wires up the hcd command tree.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hcd/config"
)

// version is overridable at link time:
//
//	go build -ldflags "-X hcd/cmd.version=2.0.0"
var version = "0.1.0" //nolint:gochecknoglobals

// Execute builds the command tree and runs it with args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd constructs the root command.  Daemon flags are persistent
// so every subcommand sees the same configuration; env vars are applied
// first so flags override them.
func NewRootCmd() *cobra.Command {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	root := &cobra.Command{
		Use:           "hcd",
		Short:         "hcd - teamserver listener core",
		Long:          "hcd manages named C2 listeners over pluggable protocols and the menu actions scripts attach to them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(cfg, terminalSecret))
	root.AddCommand(newProtocolsCmd(cfg))
	root.AddCommand(newCheckCmd(cfg))
	root.AddCommand(newVersionCmd())

	root.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Help() }
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hcd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hcd %s\n", version)
		},
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// secretFunc reads a secret value for prompt.
type secretFunc func(prompt string) (string, error)

// terminalSecret reads a secret from the controlling terminal without
// echo.  It refuses when stdin is not a terminal.
func terminalSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s: stdin is not a terminal; set the value in the profile or via ${VAR}", prompt)
	}
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", prompt, err)
	}
	return string(pass), nil
}

func loadProfile(cfg *config.Config) (*config.Profile, error) {
	if cfg.ProfilePath == "" {
		return nil, nil
	}
	return config.LoadProfile(cfg.ProfilePath)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
