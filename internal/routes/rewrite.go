package routes

import (
	"regexp"
	"strings"
)

var externalRef = regexp.MustCompile(`(?i)^(?:[a-z]+:)?//`)

// IsExternal reports whether ref points off the repository: an absolute
// scheme://, a protocol-relative //, mailto: or tel:.
func IsExternal(ref string) bool {
	return externalRef.MatchString(ref) || strings.HasPrefix(ref, "mailto:") || strings.HasPrefix(ref, "tel:")
}

// otherScheme matches any "scheme:" reference. Such references are left for
// the sanitizer to accept or strip.
var otherScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

var (
	canonicalLinkPrefix  = regexp.MustCompile(`^/(?:blob|tree|raw|static)(?:/|$)`)
	canonicalImagePrefix = regexp.MustCompile(`^/(?:raw|static)(?:/|$)`)
)

// reference is a link split into path, query (with "?") and fragment (without "#").
type reference struct {
	path     string
	query    string
	fragment string
}

func splitReference(ref string) reference {
	var r reference
	before := ref
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		before, r.fragment = ref[:i], ref[i+1:]
	}
	r.path = before
	if i := strings.IndexByte(before, '?'); i >= 0 {
		r.path, r.query = before[:i], before[i:]
	}

	return r
}

func (r reference) with(newPath string) string {
	out := newPath + r.query
	if r.fragment != "" {
		out += "#" + r.fragment
	}

	return out
}

// RewriteLink maps a markdown hyperlink onto the viewer's routes. Fragment-only,
// external and already-canonical links are returned unchanged. Everything else
// is clamped against baseDir and becomes a /tree/ link when it ends in "/" or
// lands on the root, a /blob/ link otherwise. A trailing "/" is kept.
func RewriteLink(href, baseDir string) string {
	if href == "" || strings.HasPrefix(href, "#") || IsExternal(href) {
		return href
	}

	trimmed := strings.TrimSpace(href)
	if otherScheme.MatchString(trimmed) {
		return href
	}

	ref := splitReference(trimmed)
	if canonicalLinkPrefix.MatchString(ref.path) || ref.path == EventsPath {
		return href
	}

	raw := strings.TrimSpace(ref.path)
	if raw == "" {
		return href
	}

	target := NormalizeAndClamp(baseDir, raw)
	dirLink := strings.HasSuffix(raw, "/")
	if !dirLink && target != "" {
		return ref.with(URLFor(KindBlob, target))
	}

	out := URLFor(KindTree, target)
	if dirLink && target != "" {
		out += "/"
	}

	return ref.with(out)
}

// RewriteImage maps an image source onto /raw/. External, data: and other
// scheme sources and sources already under /raw or /static are returned unchanged.
func RewriteImage(src, baseDir string) string {
	trimmed := strings.TrimSpace(src)
	if src == "" || IsExternal(src) || otherScheme.MatchString(trimmed) {
		return src
	}

	ref := splitReference(trimmed)
	if canonicalImagePrefix.MatchString(ref.path) || ref.path == "" {
		return src
	}

	return ref.with(URLFor(KindRaw, NormalizeAndClamp(baseDir, ref.path)))
}
