package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExternal(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":   true,
		"HTTP://EXAMPLE.COM/x":  true,
		"//cdn.example.com/a":   true,
		"mailto:me@example.com": true,
		"tel:+123":              true,
		"ftp://host/file":       true,
		"docs/guide.md":         false,
		"/blob/README.md":       false,
		"#section":              false,
		"data:image/png;base64": false,
	}

	for ref, want := range tests {
		assert.Equal(t, want, IsExternal(ref), ref)
	}
}

func TestRewriteLink(t *testing.T) {
	tests := []struct {
		name    string
		href    string
		baseDir string
		want    string
	}{
		{"fragment only", "#install", "docs", "#install"},
		{"external", "https://example.com/a.md", "docs", "https://example.com/a.md"},
		{"mailto", "mailto:me@example.com", "docs", "mailto:me@example.com"},
		{"canonical blob", "/blob/README.md", "docs", "/blob/README.md"},
		{"canonical static", "/static/app.css", "", "/static/app.css"},
		{"events path", "/events", "", "/events"},
		{"relative file", "guide.md", "docs", "/blob/docs/guide.md"},
		{"parent file", "../missing.md", "docs", "/blob/missing.md"},
		{"trailing slash is a tree", "api/", "docs", "/tree/docs/api/"},
		{"nested tree keeps slash", "sub/", "a/b", "/tree/a/b/sub/"},
		{"tree with query", "sub/?x=1#top", "a", "/tree/a/sub/?x=1#top"},
		{"slash clamped to root", "../../", "docs", "/tree/"},
		{"root is a tree", "..", "docs", "/tree/"},
		{"rooted link", "/CONTRIBUTING.md", "docs", "/blob/CONTRIBUTING.md"},
		{"clamped traversal", "../../../x.md", "a/b", "/blob/x.md"},
		{"query and fragment kept", "guide.md?plain=1#setup", "docs", "/blob/docs/guide.md?plain=1#setup"},
		{"encoded output", "my notes.md", "", "/blob/my%20notes.md"},
		{"query only", "?tab=1", "docs", "?tab=1"},
		{"other scheme", "javascript:alert(1)", "docs", "javascript:alert(1)"},
		{"surrounding whitespace", "  guide.md ", "docs", "/blob/docs/guide.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteLink(tt.href, tt.baseDir))
		})
	}
}

func TestRewriteImage(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		baseDir string
		want    string
	}{
		{"relative", "pic.png", "docs", "/raw/docs/pic.png"},
		{"parent", "../img/logo.svg", "docs", "/raw/img/logo.svg"},
		{"rooted", "/assets/a.png", "docs", "/raw/assets/a.png"},
		{"external", "https://example.com/a.png", "docs", "https://example.com/a.png"},
		{"data uri", "data:image/png;base64,AAAA", "docs", "data:image/png;base64,AAAA"},
		{"already raw", "/raw/a.png", "docs", "/raw/a.png"},
		{"blob is not canonical for images", "/blob/a.png", "", "/raw/blob/a.png"},
		{"query kept", "pic.png?v=2", "", "/raw/pic.png?v=2"},
		{"trailing slash still raw", "img/", "", "/raw/img"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteImage(tt.src, tt.baseDir))
		})
	}
}
