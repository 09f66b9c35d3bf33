package scanner

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFunc reports whether a slash-separated repository path is excluded.
type IgnoreFunc func(rel string, isDir bool) bool

// skippedNames are never descended into, regardless of ignore rules.
var skippedNames = map[string]bool{
	".git":         true,
	"node_modules": true,
}

var markdownExtensions = map[string]bool{
	"md":       true,
	"markdown": true,
	"mdown":    true,
	"mkd":      true,
	"mkdn":     true,
}

// IsMarkdownFile reports whether rel names a document the scanner renders:
// a README (with any extension) or a file with a markdown extension.
func IsMarkdownFile(rel string) bool {
	base := strings.ToLower(path.Base(rel))
	if base == "readme" || strings.HasPrefix(base, "readme.") {
		return true
	}

	return HasMarkdownExtension(base)
}

// HasMarkdownExtension reports whether rel ends in a markdown extension,
// case-insensitively.
func HasMarkdownExtension(rel string) bool {
	return markdownExtensions[strings.ToLower(strings.TrimPrefix(path.Ext(rel), "."))]
}

// listMarkdownFiles walks root depth-first and returns up to maxFiles
// document paths, sorted. Only a failure to read the root itself is an
// error; unreadable subdirectories are skipped.
func listMarkdownFiles(root string, maxFiles int, isIgnored IgnoreFunc) ([]string, error) {
	type dir struct {
		abs string
		rel string
	}

	var results []string
	stack := []dir{{abs: root}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(current.abs)
		if err != nil {
			if current.rel == "" {
				return nil, err
			}
			continue
		}

		for _, e := range entries {
			name := e.Name()
			if skippedNames[name] {
				continue
			}
			rel := name
			if current.rel != "" {
				rel = current.rel + "/" + name
			}
			if isIgnored != nil && isIgnored(rel, e.IsDir()) {
				continue
			}

			switch {
			case e.IsDir():
				stack = append(stack, dir{abs: filepath.Join(current.abs, name), rel: rel})
			case e.Type().IsRegular():
				if IsMarkdownFile(rel) {
					results = append(results, rel)
				}
				if maxFiles > 0 && len(results) >= maxFiles {
					sort.Strings(results)
					return results, nil
				}
			}
		}
	}

	sort.Strings(results)

	return results, nil
}
