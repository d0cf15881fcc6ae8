package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relic/internal/config"
	"relic/internal/trace"
)

// setupTracing builds the tracer from the config file, with trace flags
// overriding individual fields. It returns the tracer and a cleanup
// function that flushes and closes it.
func setupTracing(cmd *cobra.Command, cfg config.Config) (trace.Tracer, func(), error) {
	root := cmd.Root()

	if s, err := root.PersistentFlags().GetString("trace"); err == nil && s != "" {
		cfg.Trace.Path = s
		if cfg.Trace.Mode == "ring" {
			cfg.Trace.Mode = "both"
		}
	}
	if s, err := root.PersistentFlags().GetString("trace-level"); err == nil && s != "" {
		cfg.Trace.Level = s
	}
	if s, err := root.PersistentFlags().GetString("trace-mode"); err == nil && s != "" {
		cfg.Trace.Mode = s
	}
	if s, err := root.PersistentFlags().GetString("trace-format"); err == nil && s != "" {
		cfg.Trace.Format = s
	}
	if n, err := root.PersistentFlags().GetInt("trace-ring-size"); err == nil && n > 0 {
		cfg.Trace.RingSize = n
	}
	// An output path implies the caller wants events.
	if cfg.Trace.Path != "" && cfg.Trace.Level == "off" {
		cfg.Trace.Level = "phase"
	}

	tc, err := cfg.TracerConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("trace configuration: %w", err)
	}
	tracer, err := trace.New(tc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}
