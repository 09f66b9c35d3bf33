// Package validation keeps every filesystem access inside the repository root
// and validates URLs handed to external programs.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h4x3rotab/repoview/internal/errors"
)

// EntryKind classifies what a resolved path points at.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "dir"
	KindOther     EntryKind = "other"
)

// ResolvedPath is a request that passed both containment checks.
// Only Sandbox.Resolve constructs one.
type ResolvedPath struct {
	// RelativePath is the cleaned request, slash separated, relative to the root
	RelativePath string
	// CanonicalPath is the absolute path with symlinks resolved
	CanonicalPath string
	Kind          EntryKind
	Size          int64
}

// Sandbox resolves repository-relative paths against a fixed canonical root.
type Sandbox struct {
	root string
}

// NewSandbox canonicalizes root (absolute, symlinks resolved) and returns a
// resolver bound to it.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for %s: %w", root, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving repository root %s: %w", root, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat repository root %s: %w", real, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s is not a directory", real)
	}

	return &Sandbox{root: real}, nil
}

// Root returns the canonical repository root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a request path onto the filesystem. It fails with an
// errors.CodeEscape security error when the path leaves the root, either
// lexically or after symlink resolution, and with errors.CodeMissing when
// nothing exists there.
func (s *Sandbox) Resolve(requested string) (ResolvedPath, error) {
	stripped := strings.TrimLeft(filepath.ToSlash(requested), "/")
	joined := filepath.Join(s.root, filepath.FromSlash(stripped))

	// Lexical check first; rejects ../ traversal without touching the disk.
	if !IsWithinRoot(s.root, joined) {
		return ResolvedPath{}, errors.NewSecurityError(errors.CodeEscape, "path escapes repository root").WithPath(requested)
	}

	if _, err := os.Lstat(joined); err != nil {
		return ResolvedPath{}, errors.NewNotFoundError(errors.CodeMissing, "path does not exist", err).WithPath(requested)
	}

	real, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// Dangling symlink
		return ResolvedPath{}, errors.NewNotFoundError(errors.CodeMissing, "path does not exist", err).WithPath(requested)
	}
	if !IsWithinRoot(s.root, real) {
		return ResolvedPath{}, errors.NewSecurityError(errors.CodeEscape, "path resolves outside repository root").WithPath(requested)
	}

	info, err := os.Stat(real)
	if err != nil {
		return ResolvedPath{}, errors.NewNotFoundError(errors.CodeMissing, "path does not exist", err).WithPath(requested)
	}

	rel, err := filepath.Rel(s.root, joined)
	if err != nil {
		return ResolvedPath{}, errors.NewSecurityError(errors.CodeEscape, "path escapes repository root").WithPath(requested)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}

	kind := KindOther
	switch {
	case info.IsDir():
		kind = KindDirectory
	case info.Mode().IsRegular():
		kind = KindFile
	}

	return ResolvedPath{
		RelativePath:  rel,
		CanonicalPath: real,
		Kind:          kind,
		Size:          info.Size(),
	}, nil
}

// IsWithinRoot reports whether candidate equals root or lies below it.
// Both paths must already be absolute and clean.
func IsWithinRoot(root, candidate string) bool {
	if candidate == root {
		return true
	}
	withSep := root
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}

	return strings.HasPrefix(candidate, withSep)
}
