package version

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetUsesLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version, GitCommit, BuildTime = "v1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z"
	info := Get()

	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.Commit)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime.UTC())
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"no commit", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "v1.0.0", Commit: "abcdef0123"}, "v1.0.0 (abcdef0)"},
		{"dirty", Info{Version: "dev", Commit: "abcdef0123", Dirty: true}, "dev (abcdef0-dirty)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestDetailed(t *testing.T) {
	info := Info{Version: "v1.0.0", Commit: "abc", GoVersion: "go1.24.4", Platform: "linux/amd64"}
	out := info.Detailed()

	assert.True(t, strings.HasPrefix(out, "Version: v1.0.0\n"))
	assert.Contains(t, out, "Commit: abc")
	assert.Contains(t, out, "Platform: linux/amd64")
	assert.NotContains(t, out, "Built:")
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("unknown").IsZero())
	assert.False(t, parseTime("2026-01-02 03:04:05").IsZero())
}
