package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	Version, Commit, Date = "dev", "none", "unknown"

	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: settingRevision, Value: "0123456789abcdef0123"},
			{Key: settingTime, Value: "2026-01-02T03:04:05Z"},
			{Key: settingModified, Value: "true"},
		},
	})

	assert.Equal(t, "v0.3.1", Version)
	assert.Equal(t, "0123456789ab-dirty", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Equal(t, "aether v0.3.1 (commit: 0123456789ab-dirty, built: 2026-01-02T03:04:05Z)", String())
}

func TestApply_KeepsLinkerValues(t *testing.T) {
	Version, Commit, Date = "v1.0.0", "abc", "today"

	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: settingRevision, Value: "ffff"}},
	})

	assert.Equal(t, "v1.0.0", Version)
	assert.Equal(t, "abc", Commit)
	assert.Equal(t, "today", Date)
}
