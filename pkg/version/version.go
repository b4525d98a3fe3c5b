// Package version carries build information for the aether binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/Sumatoshi-tech/aether/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	settingRevision = "vcs.revision"
	settingTime     = "vcs.time"
	settingModified = "vcs.modified"
	shortCommitLen  = 12
)

// InitBinaryVersion fills fields left at their defaults from the module build
// info embedded by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	var dirty bool

	for _, setting := range info.Settings {
		switch setting.Key {
		case settingRevision:
			if Commit == "none" {
				Commit = setting.Value[:min(len(setting.Value), shortCommitLen)]
			}
		case settingTime:
			if Date == "unknown" {
				Date = setting.Value
			}
		case settingModified:
			dirty = setting.Value == "true"
		}
	}

	if dirty && Commit != "none" {
		Commit += "-dirty"
	}
}

// String formats the version line printed by "aether version".
func String() string {
	return fmt.Sprintf("aether %s (commit: %s, built: %s)", Version, Commit, Date)
}
