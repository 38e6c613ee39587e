// Command edxml-stats reads one or more EDXML documents and prints
// summary counts: total and per-event-type event counts, the declared
// object-type data types, relation predicates, and source URLs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/cmd/internal/cliconfig"
	"github.com/dtakken/edxml-sdk/hashengine"
	"github.com/dtakken/edxml-sdk/schema"
	"github.com/dtakken/edxml-sdk/schemaemit"
	"github.com/dtakken/edxml-sdk/stream"
	"github.com/spf13/cobra"
)

// statsConfig is the shape of the optional --config YAML side-file: a
// checked-in default file list, used when -f is omitted.
type statsConfig struct {
	Files []string `yaml:"files"`
}

func newRootCmd() *cobra.Command {
	var (
		files      []string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "edxml-stats",
		Short: "Print summary statistics for one or more EDXML documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" && !cmd.Flags().Changed("file") {
				var cfg statsConfig
				if err := cliconfig.Load(configPath, &cfg); err != nil {
					return err
				}
				if len(cfg.Files) > 0 {
					files = cfg.Files
				}
			}

			if len(files) == 0 {
				return fmt.Errorf("edxml-stats: at least one -f is required")
			}

			counters := &edxml.Counters{}
			reg := schema.New(counters, nil)
			handler := newStatsHandler()
			processor := stream.NewProcessor(reg, discardWriter{}, handler, hashengine.V2, stream.DefaultLimits(), schemaemit.EmitDefinitions)

			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				err = processor.Run(context.Background(), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			printStats(cmd.OutOrStdout(), handler)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "input file (repeatable)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "optional YAML file supplying a default file list")
	return cmd
}

func printStats(out io.Writer, h *statsHandler) {
	fmt.Fprintf(out, "total events: %d\n", h.totalEvents)

	fmt.Fprintln(out, "events per type:")
	for _, name := range sortedKeys(h.perEventType) {
		fmt.Fprintf(out, "  %s: %d\n", name, h.perEventType[name])
	}

	fmt.Fprintln(out, "object type data types:")
	for _, name := range sortedKeys(h.objectTypeTypes) {
		fmt.Fprintf(out, "  %s: %s\n", name, h.objectTypeTypes[name])
	}

	fmt.Fprintln(out, "relation predicates:")
	for _, p := range sortedKeys(h.relationPreds) {
		fmt.Fprintf(out, "  %s\n", p)
	}

	fmt.Fprintln(out, "source urls:")
	for _, u := range sortedKeys(h.sourceURLs) {
		fmt.Fprintf(out, "  %s\n", u)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
