package main

import (
	"os"

	"github.com/spf13/cobra"

	"relic/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "relic",
	Short: "Legacy console operating system runtime",
	Long:  `Relic reimplements the threading, messaging, timing and heap contracts of a legacy console operating system on modern concurrency primitives`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		return applyColorMode(mode)
	},
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().String("trace", "", "trace output path (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().String("trace-format", "", "trace stream format (text|ndjson|msgpack)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 0, "trace ring capacity")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
