package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hcd/config"
	ncerr "hcd/internal/errors"
)

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a profile without binding anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func runCheck(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.ProfilePath == "" {
		return &ncerr.ConfigError{
			Field:   "profile",
			Message: "is required",
			Hint:    "hcd check --profile profile.yaml",
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	prof, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	d, err := inspectDaemon(ctx, cfg, prof)
	if err != nil {
		return err
	}
	defer d.Close()

	// Secrets are not read; any string passes their schema check.
	placeholder := func(string) (string, error) { return "", nil }

	var errs []error
	for _, ls := range prof.Listeners {
		values, err := resolveSecrets(d, ls, placeholder)
		if err == nil {
			_, err = d.CreateListener(ctx, ls.Name, ls.Protocol, values)
		}
		if err != nil {
			fmt.Fprintf(w, "FAIL listener %s: %v\n", ls.Name, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "ok   listener %s (%s)\n", ls.Name, ls.Protocol)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d listeners invalid: %w", len(errs), len(prof.Listeners), ncerr.Join(errs...))
	}
	fmt.Fprintf(w, "profile ok: %d protocols, %d listeners, %d actions\n",
		len(prof.Protocols), len(prof.Listeners), len(prof.Actions))
	return nil
}
