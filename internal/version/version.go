// Package version records the build identity of the relic binary and the
// compile-time parameters of the runtime it embeds.
package version

import (
	"runtime"
	"strings"

	"github.com/fatih/color"

	"relic/internal/kernel"
	"relic/internal/timebase"
)

// Overridable at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Info bundles what the version command reports: the binary's own
// identity plus the fixed parameters of the embedded runtime.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	GoVersion  string `json:"go_version"`
	MaxThreads int    `json:"max_threads"`
	EventSlots int    `json:"event_slots"`
	TimebaseHz uint64 `json:"timebase_hz"`
}

// Collect gathers the build facts of the running binary.
func Collect() Info {
	return Info{
		Version:    strings.TrimSpace(Version),
		GitCommit:  strings.TrimSpace(GitCommit),
		BuildDate:  strings.TrimSpace(BuildDate),
		GoVersion:  runtime.Version(),
		MaxThreads: kernel.MaxThreads,
		EventSlots: kernel.NumEvents,
		TimebaseHz: timebase.DefaultHz,
	}
}

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Pretty renders a semantic version with the major, minor and patch
// fields individually colored. Coloring is decided at render time, after
// the --color flag has been applied. Strings that do not look like
// semver pass through untouched.
func Pretty(v string) string {
	base, suffix, _ := strings.Cut(v, "-")
	parts := strings.SplitN(base, ".", 3)
	if len(parts) != 3 {
		return v
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
