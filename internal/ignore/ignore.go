// Package ignore answers whether a repository path is excluded by the
// root .gitignore. The .git directory is always excluded.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
)

// baseline rules apply even without a .gitignore.
var baseline = []string{".git/"}

// Matcher is a reloadable gitignore predicate. The zero value ignores nothing.
type Matcher struct {
	root string

	mu sync.RWMutex
	gi *gitignore.GitIgnore
}

// New builds a Matcher from literal gitignore lines plus the baseline rules.
func New(lines ...string) *Matcher {
	return &Matcher{gi: gitignore.CompileIgnoreLines(append(append([]string{}, baseline...), lines...)...)}
}

// Load reads <root>/.gitignore. A missing file yields the baseline rules; an
// unreadable one yields the baseline rules and the read error.
func Load(root string) (*Matcher, error) {
	m := &Matcher{root: root}
	err := m.Reload()

	return m, err
}

// Reload re-reads the .gitignore of the root passed to Load.
func (m *Matcher) Reload() error {
	lines := append([]string{}, baseline...)
	var readErr error

	if m.root != "" {
		content, err := os.ReadFile(filepath.Join(m.root, ".gitignore"))
		switch {
		case err == nil:
			lines = append(lines, strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")...)
		case !os.IsNotExist(err):
			readErr = fmt.Errorf("reading .gitignore: %w", err)
		}
	}

	compiled := gitignore.CompileIgnoreLines(lines...)
	m.mu.Lock()
	m.gi = compiled
	m.mu.Unlock()

	return readErr
}

// Ignores reports whether rel (slash separated, relative to the root) is
// excluded. The root itself is never ignored. Directories are also matched
// with a trailing slash so "dir/" patterns apply to them.
func (m *Matcher) Ignores(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	p := strings.TrimLeft(filepath.ToSlash(rel), "/")
	if p == "" {
		return false
	}

	m.mu.RLock()
	gi := m.gi
	m.mu.RUnlock()
	if gi == nil {
		return false
	}

	if gi.MatchesPath(p) {
		return true
	}
	if isDir {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		return gi.MatchesPath(p)
	}

	return false
}
