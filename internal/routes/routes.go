// Package routes maps repository-relative paths to the viewer's URL space
// (/tree, /blob, /raw) and back. Everything here is pure string work; no
// function touches the filesystem.
package routes

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	rverrors "github.com/h4x3rotab/repoview/internal/errors"
)

// Kind is the URL route a repository path is addressed through.
type Kind string

const (
	// KindTree addresses a directory listing.
	KindTree Kind = "tree"
	// KindBlob addresses a rendered file view.
	KindBlob Kind = "blob"
	// KindRaw addresses exact file bytes.
	KindRaw Kind = "raw"
)

// Prefix returns the URL prefix for the kind, including the trailing slash.
func (k Kind) Prefix() string {
	return "/" + string(k) + "/"
}

// Well-known non-content paths served next to the content routes.
const (
	EventsPath          = "/events"
	StaticPrefix        = "/static/"
	BrokenLinksPath     = "/broken-links"
	BrokenLinksJSONPath = "/broken-links.json"
)

var knownKinds = []Kind{KindBlob, KindTree, KindRaw}

// EncodePath percent-encodes each slash-separated segment independently, so a
// literal "/" can never be produced from inside a segment.
func EncodePath(rel string) string {
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}

// DecodePath reverses EncodePath. Leading slashes and empty segments are
// dropped. Segments that are not valid percent-encoded UTF-8 fail with
// errors.CodeBadEncoding.
func DecodePath(encoded string) (string, error) {
	var decoded []string
	for _, s := range strings.Split(strings.TrimLeft(encoded, "/"), "/") {
		if s == "" {
			continue
		}
		d, err := url.PathUnescape(s)
		if err != nil || !utf8.ValidString(d) {
			return "", rverrors.NewValidationError(rverrors.CodeBadEncoding, "path segment is not valid percent-encoding")
		}
		decoded = append(decoded, d)
	}

	return strings.Join(decoded, "/"), nil
}

// URLFor builds the route URL for rel under the given kind.
func URLFor(kind Kind, rel string) string {
	return kind.Prefix() + EncodePath(rel)
}

// ToRoute maps a repository path to its default view: directories to
// KindTree, files to KindBlob.
func ToRoute(rel string, isDir bool) (Kind, string) {
	kind := KindBlob
	if isDir {
		kind = KindTree
	}

	return kind, URLFor(kind, rel)
}

// FromURL strips a known route prefix from an escaped URL path and decodes the
// remainder. Unknown prefixes fail with errors.CodeUnknownRoute; undecodable
// segments fail with errors.CodeBadEncoding (the kind is still returned).
func FromURL(urlPath string) (Kind, string, error) {
	for _, kind := range knownKinds {
		prefix := kind.Prefix()
		if !strings.HasPrefix(urlPath, prefix) {
			continue
		}
		rel, err := DecodePath(urlPath[len(prefix):])
		if err != nil {
			return kind, "", err
		}
		return kind, rel, nil
	}

	return "", "", rverrors.NewValidationError(rverrors.CodeUnknownRoute, "URL does not address a repository route")
}

// NormalizeAndClamp resolves candidate against basePath with POSIX join
// semantics and clamps any traversal above the root back to the root.
// Rooted candidates ("/x") resolve from the root instead of basePath.
func NormalizeAndClamp(basePath, candidate string) string {
	if strings.HasPrefix(candidate, "/") {
		return clamp(candidate)
	}

	return clamp(path.Join(basePath, candidate))
}

func clamp(p string) string {
	normalized := path.Clean(strings.TrimLeft(p, "/"))
	if normalized == "." {
		return ""
	}
	for normalized == ".." || strings.HasPrefix(normalized, "../") {
		if normalized == ".." {
			normalized = ""
		} else {
			normalized = normalized[3:]
		}
	}

	return normalized
}

var localBase = &url.URL{Scheme: "http", Host: "local", Path: "/"}

// ParseURLPath extracts the escaped, dot-segment-resolved path of a link the
// way a browser would when resolving it against the viewer's origin.
func ParseURLPath(raw string) (string, error) {
	ref := raw
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}

	u, err := url.Parse(ref)
	if err != nil {
		// Keep malformed escapes so decoding can report them as bad_encoding.
		var escErr url.EscapeError
		if errors.As(err, &escErr) && !strings.Contains(ref, ":") {
			if !strings.HasPrefix(ref, "/") {
				ref = "/" + ref
			}
			return ref, nil
		}
		return "", rverrors.NewValidationError(rverrors.CodeInvalidURL, "link is not a valid URL")
	}

	resolved := localBase.ResolveReference(u)
	if resolved.Opaque != "" {
		return resolved.Opaque, nil
	}

	return resolved.EscapedPath(), nil
}
