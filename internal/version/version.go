// Package version provides build version information.
package version

import (
	"runtime/debug"
	"sync"
)

// Injected at build time via -ldflags. Binaries built with go install fall
// back to the module and VCS data embedded by the toolchain.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type info struct {
	version, commit, date string
}

var resolved = sync.OnceValue(func() info {
	i := info{version: version, commit: commit, date: date}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}

	return fromBuildInfo(i, bi)
})

// fromBuildInfo fills the fields still at their defaults
func fromBuildInfo(i info, bi *debug.BuildInfo) info {
	if i.version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.commit == "none" && s.Value != "" {
				i.commit = s.Value
				if len(i.commit) > 12 {
					i.commit = i.commit[:12]
				}
			}
		case "vcs.time":
			if i.date == "unknown" && s.Value != "" {
				i.date = s.Value
			}
		}
	}

	return i
}

// GetVersion returns the full version string
func GetVersion() string {
	return resolved().version
}

// GetCommit returns the git commit hash.
func GetCommit() string {
	return resolved().commit
}

// GetDate returns the build date.
func GetDate() string {
	return resolved().date
}

// GetFullVersion returns version with commit and date info
func GetFullVersion() string {
	i := resolved()
	return i.version + " (commit: " + i.commit + ", built: " + i.date + ")"
}
