package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoLabels(t *testing.T) {
	tests := []struct {
		name   string
		info   Info
		branch string
		short  string
	}{
		{"empty", Info{}, "no-git", ""},
		{"full", Info{Branch: "main", Commit: "0123456789abcdef"}, "main", "0123456"},
		{"short hash", Info{Branch: "dev", Commit: "abc"}, "dev", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.branch, tt.info.BranchLabel())
			assert.Equal(t, tt.short, tt.info.ShortCommit())
		})
	}
}

func TestLookupOutsideRepository(t *testing.T) {
	assert.Equal(t, Info{}, Lookup(context.Background(), t.TempDir()))
}

func TestLookupGitFileIsNotARepository(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(root+"/.git", []byte("gitdir: elsewhere"), 0o644))

	assert.Equal(t, Info{}, Lookup(context.Background(), root))
}

func TestLookupReadsBranchAndCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()

	git := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+root,
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "-q")
	git("checkout", "-q", "-b", "feature")
	git("commit", "-q", "--allow-empty", "-m", "init")

	info := Lookup(context.Background(), root)
	assert.Equal(t, "feature", info.Branch)
	assert.Len(t, info.Commit, 40)
	assert.Len(t, info.ShortCommit(), 7)
}
