package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"relic/internal/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Decode a recorded trace file",
	Long:  `Decode a trace file written by a traced run and print it as text. The input format is detected from the flag, not the file`,
	Args:  cobra.ExactArgs(1),
	RunE:  traceDecode,
}

func init() {
	traceCmd.Flags().String("format", "ndjson", "input format (ndjson|msgpack)")
	traceCmd.Flags().Int("tail", 0, "print only the last N events")
}

func traceDecode(cmd *cobra.Command, args []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if format == trace.FormatText {
		return fmt.Errorf("text traces are already readable; pass ndjson or msgpack")
	}
	tail, err := cmd.Flags().GetInt("tail")
	if err != nil {
		return fmt.Errorf("failed to get tail flag: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := trace.ReadAll(f, format)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if tail > 0 && len(events) > tail {
		events = events[len(events)-tail:]
	}

	headerStyle := lipgloss.NewStyle().Bold(true)
	fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(fmt.Sprintf("%s: %d events", args[0], len(events))))
	for i := range events {
		cmd.OutOrStdout().Write(trace.FormatEvent(&events[i], trace.FormatText))
	}
	return nil
}
