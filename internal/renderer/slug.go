package renderer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"
)

// slugger generates GitHub-style heading IDs. One slugger serves one
// document; duplicates get "-1", "-2" suffixes.
type slugger struct {
	used   map[string]bool
	counts map[string]int
}

func newSlugger() *slugger {
	return &slugger{used: make(map[string]bool), counts: make(map[string]int)}
}

// Slug lowercases text, drops punctuation other than "-" and "_", and
// turns spaces into "-".
func Slug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			b.WriteRune(r)
		}
	}

	return b.String()
}

func (s *slugger) Generate(value []byte, kind ast.NodeKind) []byte {
	base := Slug(string(value))
	if base == "" {
		if kind == ast.KindHeading {
			base = "heading"
		} else {
			base = "id"
		}
	}

	id := base
	for s.used[id] {
		s.counts[base]++
		id = base + "-" + strconv.Itoa(s.counts[base])
	}
	s.used[id] = true

	return []byte(id)
}

func (s *slugger) Put(value []byte) {
	s.used[string(value)] = true
}
