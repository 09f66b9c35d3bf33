// Package gitinfo reads the current branch and commit of a repository
// through the git binary.
package gitinfo

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const shortCommitLen = 7

// Info is the checked-out branch and commit. Fields are empty when the root
// is not a git repository or git is unavailable.
type Info struct {
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
}

// ShortCommit returns the abbreviated commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > shortCommitLen {
		return i.Commit[:shortCommitLen]
	}
	return i.Commit
}

// BranchLabel returns the branch name, or "no-git" outside a repository.
func (i Info) BranchLabel() string {
	if i.Branch == "" {
		return "no-git"
	}
	return i.Branch
}

// Lookup runs `git rev-parse` in root. Failures are not errors; they leave
// the corresponding field empty.
func Lookup(ctx context.Context, root string) Info {
	st, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !st.IsDir() {
		return Info{}
	}
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return Info{}
	}

	var info Info
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info.Branch = run(ctx, gitPath, root, "rev-parse", "--abbrev-ref", "HEAD")
		return nil
	})
	g.Go(func() error {
		info.Commit = run(ctx, gitPath, root, "rev-parse", "HEAD")
		return nil
	})
	_ = g.Wait()

	return info
}

func run(ctx context.Context, gitPath, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, gitPath, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}

	return strings.TrimSpace(out.String())
}
