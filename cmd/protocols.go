package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hcd/config"
	"hcd/internal/catalog"
	"hcd/internal/dispatch"
	"hcd/util"
)

func newProtocolsCmd(cfg *config.Config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List the protocols listeners can be created with, and their config fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProtocols(cmd.Context(), cfg, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print schemas as JSON")
	return cmd
}

func runProtocols(ctx context.Context, cfg *config.Config, asJSON bool, w io.Writer) error {
	prof, err := loadProfile(cfg)
	if err != nil {
		return err
	}
	d, err := inspectDaemon(ctx, cfg, prof)
	if err != nil {
		return err
	}
	defer d.Close()

	if asJSON {
		out := make(map[string]catalog.Schema)
		for _, name := range d.ListProtocols() {
			out[name], _ = d.GetProtocolSchema(name)
		}
		return writeJSON(w, out)
	}

	tw := table(w)
	fmt.Fprintln(tw, "PROTOCOL\tFIELD\tTYPE\tDEFAULT\tNOTES")
	for _, name := range d.ListProtocols() {
		schema, _ := d.GetProtocolSchema(name)
		for i, field := range schema.Fields() {
			f := schema[field]
			proto := ""
			if i == 0 {
				proto = name
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", proto, field, f.Type, fieldDefault(f), fieldNotes(f))
		}
	}
	return tw.Flush()
}

// inspectDaemon builds a daemon for read-only commands: in-memory
// store, nothing restored, quiet logging.
func inspectDaemon(ctx context.Context, cfg *config.Config, prof *config.Profile) (*dispatch.Daemon, error) {
	c := *cfg
	c.DBPath = config.MemoryDB
	return dispatch.Build(ctx, &c, prof, util.NewLogger(0))
}

func fieldDefault(f catalog.Field) string {
	if f.Default == nil {
		return "-"
	}
	return fmt.Sprint(f.Default)
}

func fieldNotes(f catalog.Field) string {
	var notes []string
	if f.Required {
		notes = append(notes, "required")
	}
	if f.Secret {
		notes = append(notes, "secret")
	}
	if len(f.Choices) > 0 {
		notes = append(notes, "one of "+strings.Join(f.Choices, "|"))
	}
	if f.Description != "" {
		notes = append(notes, f.Description)
	}
	return strings.Join(notes, "; ")
}
