package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"relic/internal/version"
)

var (
	versionFormat  string
	versionRuntime bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionRuntime, "runtime", false, "include the embedded runtime's fixed parameters")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build identity and runtime parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Collect()
		switch strings.ToLower(versionFormat) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout(), info, versionRuntime)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func renderVersionPretty(out io.Writer, info version.Info, withRuntime bool) {
	fmt.Fprintf(out, "relic %s (%s)\n", version.Pretty(info.Version), info.GoVersion)
	if info.GitCommit != "" {
		fmt.Fprintf(out, "commit: %s\n", info.GitCommit)
	}
	if info.BuildDate != "" {
		fmt.Fprintf(out, "built:  %s\n", info.BuildDate)
	}
	if withRuntime {
		fmt.Fprintf(out, "thread table: %d slots\n", info.MaxThreads)
		fmt.Fprintf(out, "event table:  %d slots\n", info.EventSlots)
		fmt.Fprintf(out, "time base:    %d Hz\n", info.TimebaseHz)
	}
}
