// Package version reports the build of the vegehub-cfg and vegehub-bridge
// binaries. The values show up in `vegehub-cfg version`, in the bridge's
// startup log line and in the User-Agent the hub client sends.
//
// Release builds stamp both values:
//
//	go build -ldflags="-X github.com/vegetronix/vegehub/internal/version.Version=v0.4.0 \
//	                   -X github.com/vegetronix/vegehub/internal/version.Commit=3f9c2e1" \
//	    ./cmd/vegehub-cfg ./cmd/vegehub-bridge
//
// Unstamped builds fall back to the VCS data Go embeds, then to "dev".
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// Version is the release tag, or dev-YYYYMMDD for local builds
	Version = ""
	// Commit is the short git revision, suffixed -dirty for modified trees
	Commit = ""
)

const shortRevision = 7

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fill(info.Settings)
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fill sets whichever of Version and Commit ldflags left empty from the
// vcs.* build settings
func fill(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && rev != "" {
		Commit = rev[:min(len(rev), shortRevision)]
		if vcs["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}

	// Build info carries no tags, so the commit date stands in
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version with its commit, as printed by `version` subcommands
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies tool in requests sent to hubs, e.g. "vegehub/v0.4.0"
func UserAgent(tool string) string {
	return tool + "/" + Version
}
