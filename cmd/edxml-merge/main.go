// Command edxml-merge reads an EDXML document, merges events sharing a
// sticky hash, and writes the result to stdout. It is a thin front-end
// over edxml/stream: argument parsing and file selection are explicitly
// out of scope for the core library.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dtakken/edxml-sdk"
	"github.com/dtakken/edxml-sdk/cmd/internal/cliconfig"
	"github.com/dtakken/edxml-sdk/hashengine"
	"github.com/dtakken/edxml-sdk/schema"
	"github.com/dtakken/edxml-sdk/schemaemit"
	"github.com/dtakken/edxml-sdk/stream"
	"github.com/spf13/cobra"
)

// mergeConfig is the shape of the optional --config YAML side-file:
// flags explicitly set on the command line still take precedence.
type mergeConfig struct {
	BufferSize     int     `yaml:"buffer_size"`
	LatencySeconds float64 `yaml:"latency_seconds"`
}

func newRootCmd() *cobra.Command {
	var (
		file       string
		bufferSize int
		latency    float64
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "edxml-merge",
		Short: "Merge EDXML events sharing a sticky hash and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				var cfg mergeConfig
				if err := cliconfig.Load(configPath, &cfg); err != nil {
					return err
				}
				if !cmd.Flags().Changed("buffer-size") && cfg.BufferSize > 0 {
					bufferSize = cfg.BufferSize
				}
				if !cmd.Flags().Changed("latency") && cfg.LatencySeconds > 0 {
					latency = cfg.LatencySeconds
				}
			}

			input := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}

			counters := &edxml.Counters{}
			reg := schema.New(counters, nil)
			writer := stream.NewXMLWriter(cmd.OutOrStdout())

			var handler stream.Handler
			if bufferSize <= 1 {
				handler = stream.NewPassThroughHandler(writer, hashengine.V2, nil)
			} else {
				handler = stream.NewBufferedHandler(writer, hashengine.V2, bufferSize,
					time.Duration(latency*float64(time.Second)), nil)
			}

			processor := stream.NewProcessor(reg, writer, handler, hashengine.V2, stream.DefaultLimits(), schemaemit.EmitDefinitions)
			return processor.Run(context.Background(), input)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (default: stdin)")
	cmd.Flags().IntVarP(&bufferSize, "buffer-size", "b", 1, "event buffer size per group (1 = pass-through)")
	cmd.Flags().Float64VarP(&latency, "latency", "l", 0, "maximum buffering latency in seconds (0 = unbounded)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "optional YAML file supplying buffer-size/latency defaults")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
