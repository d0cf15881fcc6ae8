package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"relic/internal/kernel"
	"relic/internal/timebase"
)

func TestCollectRuntimeFacts(t *testing.T) {
	info := Collect()
	if info.Version == "" {
		t.Error("Version should have a default value")
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if info.MaxThreads != kernel.MaxThreads {
		t.Errorf("MaxThreads = %d, want %d", info.MaxThreads, kernel.MaxThreads)
	}
	if info.EventSlots != kernel.NumEvents {
		t.Errorf("EventSlots = %d, want %d", info.EventSlots, kernel.NumEvents)
	}
	if info.TimebaseHz != timebase.DefaultHz {
		t.Errorf("TimebaseHz = %d, want %d", info.TimebaseHz, timebase.DefaultHz)
	}
}

func TestCollectHonorsLdflags(t *testing.T) {
	origVersion := Version
	origGitCommit := GitCommit
	origBuildDate := BuildDate
	defer func() {
		Version = origVersion
		GitCommit = origGitCommit
		BuildDate = origBuildDate
	}()

	// Override values (simulating build-time ldflags).
	Version = "1.2.3"
	GitCommit = " abc123def456 "
	BuildDate = "2026-01-15T10:30:00Z"

	info := Collect()
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", info.Version, "1.2.3")
	}
	if info.GitCommit != "abc123def456" {
		t.Errorf("GitCommit = %q, want trimmed %q", info.GitCommit, "abc123def456")
	}
	if info.BuildDate != "2026-01-15T10:30:00Z" {
		t.Errorf("BuildDate = %q", info.BuildDate)
	}
}

func TestPretty(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	if got := Pretty("1.2.3-dev"); got != "1.2.3-dev" {
		t.Errorf("Pretty(1.2.3-dev) = %q", got)
	}
	if got := Pretty("1.2.3"); got != "1.2.3" {
		t.Errorf("Pretty(1.2.3) = %q", got)
	}
	if got := Pretty("weird"); got != "weird" {
		t.Errorf("non-semver input mangled: %q", got)
	}
}
