package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"relic/internal/config"
	"relic/internal/kernel"
	"relic/internal/timebase"
	"relic/internal/ui"
	"relic/internal/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the runtime and execute the demo workload",
	Long:  `Boot a kernel per relic.toml and run the demo workload: a frame timer feeding the retrace event, heap-backed frame payloads, and peripheral-completion feeders`,
	Args:  cobra.NoArgs,
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().String("ui", "auto", "live monitor (auto|on|off)")
	runCmd.Flags().Int("frames", 0, "override [workload].frames")
	runCmd.Flags().Int("frame-ms", 0, "override [workload].frame_ms")
	runCmd.Flags().Duration("timeout", 2*time.Minute, "abort the run after this long")
}

func runExecution(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if n, err := cmd.Flags().GetInt("frames"); err == nil && n > 0 {
		cfg.Workload.Frames = n
	}
	if n, err := cmd.Flags().GetInt("frame-ms"); err == nil && n > 0 {
		cfg.Workload.FrameMS = n
	}

	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := parseTriState("ui", uiValue)
	if err != nil {
		return err
	}

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}

	tracer, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := buildSource(cfg.Timebase)
	if err != nil {
		return err
	}
	k, err := kernel.New(kernel.Options{Source: src, Tracer: tracer})
	if err != nil {
		return err
	}
	defer k.Shutdown()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var stats workload.Stats
	if mode.resolve(os.Stdout) {
		stats, err = runWorkloadWithUI(ctx, k, cfg.Workload)
	} else {
		stats, err = workload.Run(ctx, k, cfg.Workload, nil)
	}
	if err != nil {
		return err
	}

	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	if !quiet {
		printRunSummary(cfg.Workload, stats)
	}
	return nil
}

func buildSource(tb config.TimebaseConfig) (timebase.Source, error) {
	if tb.Virtual {
		return timebase.NewVirtualSource(tb.Hz)
	}
	return timebase.NewRealSource(tb.Hz)
}

type workloadOutcome struct {
	stats workload.Stats
	err   error
}

func runWorkloadWithUI(ctx context.Context, k *kernel.Kernel, cfg config.WorkloadConfig) (workload.Stats, error) {
	events := make(chan ui.FrameEvent, 256)
	outcomeCh := make(chan workloadOutcome, 1)

	go func() {
		stats, err := workload.Run(ctx, k, cfg, func(done, total int) {
			select {
			case events <- ui.FrameEvent{Done: done, Total: total}:
			default:
			}
		})
		outcomeCh <- workloadOutcome{stats: stats, err: err}
		close(events)
	}()

	model := ui.NewMonitor(cfg.Name, k, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.stats, uiErr
	}
	return outcome.stats, outcome.err
}

func printRunSummary(cfg config.WorkloadConfig, stats workload.Stats) {
	label := color.New(color.FgCyan).SprintFunc()
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()

	fmt.Printf("%s %s\n", ok("run complete:"), cfg.Name)
	fmt.Printf("  %s %d/%d\n", label("frames:"), stats.Frames, cfg.Frames)
	fmt.Printf("  %s %d\n", label("peripheral completions:"), stats.Peripherals)
	fmt.Printf("  %s %d bytes (leak %d)\n", label("heap peak:"), stats.AllocPeak, stats.HeapLeak)
	fmt.Printf("  %s %v\n", label("elapsed:"), stats.Elapsed.Round(time.Millisecond))
}
