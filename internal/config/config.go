// Package config loads runtime configuration from relic.toml, discovered
// upward from the working directory. Every field is optional; the zero
// config runs with defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"relic/internal/timebase"
	"relic/internal/trace"
)

// Config is the decoded relic.toml.
type Config struct {
	Timebase TimebaseConfig `toml:"timebase"`
	Trace    TraceConfig    `toml:"trace"`
	Workload WorkloadConfig `toml:"workload"`
}

// TimebaseConfig selects the counter rate and clock backing.
type TimebaseConfig struct {
	Hz      uint64 `toml:"hz"`
	Virtual bool   `toml:"virtual"`
}

// TraceConfig configures the runtime tracer.
type TraceConfig struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Format   string `toml:"format"`
	Path     string `toml:"path"`
	RingSize int    `toml:"ring_size"`
}

// WorkloadConfig tunes the demo workload.
type WorkloadConfig struct {
	Frames    int    `toml:"frames"`
	FrameMS   int    `toml:"frame_ms"`
	HeapKB    int    `toml:"heap_kb"`
	Feeders   int    `toml:"feeders"`
	QueueSize int    `toml:"queue_size"`
	Name      string `toml:"name"`
}

// Default returns the configuration used when no relic.toml exists.
func Default() Config {
	return Config{
		Timebase: TimebaseConfig{Hz: timebase.DefaultHz},
		Trace:    TraceConfig{Level: "off", Mode: "ring", Format: "text", RingSize: 4096},
		Workload: WorkloadConfig{
			Frames:    120,
			FrameMS:   16,
			HeapKB:    64,
			Feeders:   2,
			QueueSize: 8,
			Name:      "demo",
		},
	}
}

// FrameInterval returns the configured frame period.
func (w WorkloadConfig) FrameInterval() time.Duration {
	return time.Duration(w.FrameMS) * time.Millisecond
}

// Find walks from startDir toward the filesystem root looking for
// relic.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "relic.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load discovers and decodes relic.toml. Absent file yields Default.
func Load(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile decodes and validates one config file. Fields the file leaves
// out keep their defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := validate(path, cfg, meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(path string, cfg Config, meta toml.MetaData) error {
	if meta.IsDefined("timebase", "hz") && cfg.Timebase.Hz == 0 {
		return fmt.Errorf("%s: [timebase].hz must be positive", path)
	}
	if meta.IsDefined("trace", "level") {
		if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
			return fmt.Errorf("%s: [trace].level: %w", path, err)
		}
	}
	if meta.IsDefined("trace", "mode") {
		if _, err := trace.ParseMode(cfg.Trace.Mode); err != nil {
			return fmt.Errorf("%s: [trace].mode: %w", path, err)
		}
	}
	if meta.IsDefined("trace", "format") {
		if _, err := trace.ParseFormat(cfg.Trace.Format); err != nil {
			return fmt.Errorf("%s: [trace].format: %w", path, err)
		}
	}
	if meta.IsDefined("trace", "ring_size") && cfg.Trace.RingSize <= 0 {
		return fmt.Errorf("%s: [trace].ring_size must be positive", path)
	}
	if meta.IsDefined("workload", "frames") && cfg.Workload.Frames <= 0 {
		return fmt.Errorf("%s: [workload].frames must be positive", path)
	}
	if meta.IsDefined("workload", "frame_ms") && cfg.Workload.FrameMS <= 0 {
		return fmt.Errorf("%s: [workload].frame_ms must be positive", path)
	}
	if meta.IsDefined("workload", "heap_kb") && cfg.Workload.HeapKB <= 0 {
		return fmt.Errorf("%s: [workload].heap_kb must be positive", path)
	}
	if meta.IsDefined("workload", "feeders") && cfg.Workload.Feeders < 0 {
		return fmt.Errorf("%s: [workload].feeders must not be negative", path)
	}
	if meta.IsDefined("workload", "queue_size") && cfg.Workload.QueueSize <= 0 {
		return fmt.Errorf("%s: [workload].queue_size must be positive", path)
	}
	if meta.IsDefined("workload", "name") && strings.TrimSpace(cfg.Workload.Name) == "" {
		return fmt.Errorf("%s: [workload].name must not be blank", path)
	}
	return nil
}

// TracerConfig converts the trace section to a tracer configuration.
func (c Config) TracerConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Path,
		RingSize:   c.Trace.RingSize,
	}, nil
}
