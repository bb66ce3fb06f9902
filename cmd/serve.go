package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"hcd/config"
	"hcd/internal/dispatch"
	"hcd/internal/listener"
	"hcd/util"
)

func newServeCmd(cfg *config.Config, secrets secretFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Restore persisted listeners, apply the profile and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg, secrets, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, secrets secretFunc, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	prof, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	d, err := dispatch.Build(ctx, cfg, prof, logger)
	if err != nil {
		return err
	}
	defer closeDaemon(d, logger, stderr)

	// ── bring listeners up ───────────────────────────────────────
	if !cfg.NoRestore {
		n, err := d.Restore(ctx)
		if err != nil {
			logger.Warn("restore: %v", err)
		}
		if n > 0 {
			logger.Info("restored %d listeners", n)
		}
	}
	if prof != nil {
		if err := applyProfile(ctx, d, prof, secrets, logger.Named("profile")); err != nil {
			logger.Error("profile: %v", err)
		}
	}

	printListeners(stdout, d.Listeners())

	var running int
	for _, info := range d.Listeners() {
		if info.State == listener.StateRunning {
			running++
		}
	}
	logger.Info("ready: %d listeners, %d running", len(d.ListListeners()), running)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// closeDaemon shuts the daemon down, giving up after the grace period.
func closeDaemon(d *dispatch.Daemon, logger *util.Logger, stderr io.Writer) {
	done := make(chan error, 1)
	go func() { done <- d.Close() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown: %v", err)
		}
	case <-time.After(config.DefaultGracePeriod):
		logger.Error("shutdown: listeners still closing after %v", config.DefaultGracePeriod)
	}

	if logger.Enabled(util.LogVerbose) {
		fmt.Fprintln(stderr, d.Metrics.JSON())
	}
}

func printListeners(w io.Writer, infos []listener.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "no listeners")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "NAME\tPROTOCOL\tSTATE\tADDRESS")
	for _, info := range infos {
		addr := info.Addr
		if addr == "" {
			addr = "-"
		}
		state := info.State.String()
		if info.LastError != "" {
			state += " (" + info.LastError + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Protocol, state, addr)
	}
	tw.Flush() //nolint:errcheck
}
