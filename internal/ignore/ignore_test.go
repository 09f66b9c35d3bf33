package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnores(t *testing.T) {
	m := New("*.log", "build/", "/secret.md", "docs/private/")

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"", true, false},
		{"/", true, false},
		{".git", true, true},
		{".git/config", false, true},
		{"app.log", false, true},
		{"logs/app.log", false, true},
		{"build", true, true},
		{"build", false, false},
		{"build/out.md", false, true},
		{"secret.md", false, true},
		{"/secret.md", false, true},
		{"docs/secret.md", false, false},
		{"docs/private", true, true},
		{"docs/private/a.md", false, true},
		{"README.md", false, false},
		{"docs", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Ignores(tt.rel, tt.isDir))
		})
	}
}

func TestNilMatcherIgnoresNothing(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Ignores("anything", false))
	assert.False(t, (&Matcher{}).Ignores("anything", true))
}

func TestLoadAndReload(t *testing.T) {
	root := t.TempDir()

	m, err := Load(root)
	require.NoError(t, err)
	assert.True(t, m.Ignores(".git", true))
	assert.False(t, m.Ignores("dist", true))

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("# build output\r\ndist/\r\n*.tmp\n"), 0o644))
	assert.False(t, m.Ignores("dist", true))

	require.NoError(t, m.Reload())
	assert.True(t, m.Ignores("dist", true))
	assert.True(t, m.Ignores("notes.tmp", false))
	assert.False(t, m.Ignores("notes.md", false))
}
