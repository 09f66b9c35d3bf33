package scanner

import (
	"errors"
	"html"
	"regexp"
	"strings"

	rverrors "github.com/h4x3rotab/repoview/internal/errors"
	"github.com/h4x3rotab/repoview/internal/routes"
	"github.com/h4x3rotab/repoview/internal/validation"
)

// attrURL matches quoted href/src attribute values. Sanitized output always
// quotes attributes, so no DOM parse is needed.
var attrURL = regexp.MustCompile(`(?i)\b(?:href|src)=(["'])([^"']+)["']`)

// extractURLs returns the non-fragment href/src values in document order.
func extractURLs(rendered string) []string {
	var urls []string
	for _, m := range attrURL.FindAllStringSubmatch(rendered, -1) {
		if m[1] != m[0][len(m[0])-1:] {
			continue
		}
		raw := strings.TrimSpace(html.UnescapeString(m[2]))
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		urls = append(urls, raw)
	}

	return urls
}

func isExternalURL(raw string) bool {
	return routes.IsExternal(raw) || strings.HasPrefix(raw, "data:")
}

func isServiceRoute(urlPath string) bool {
	switch {
	case urlPath == routes.EventsPath,
		strings.HasPrefix(urlPath, routes.StaticPrefix),
		urlPath == routes.BrokenLinksPath,
		urlPath == routes.BrokenLinksJSONPath:
		return true
	}

	return false
}

// checker validates the links of one document.
type checker struct {
	sandbox   *validation.Sandbox
	isIgnored IgnoreFunc
}

// check classifies one non-external URL found in source. It returns the
// broken entry and true when the link does not resolve.
func (c *checker) check(source, raw string) (BrokenLinkEntry, bool) {
	urlPath, err := routes.ParseURLPath(raw)
	if err != nil {
		return brokenEntry(source, raw, "", ReasonInvalidURL, ""), true
	}
	if isServiceRoute(urlPath) {
		return BrokenLinkEntry{}, false
	}

	kind, target, err := routes.FromURL(urlPath)
	if err != nil {
		if rverrors.Code(err) == rverrors.CodeBadEncoding {
			return brokenEntry(source, raw, kind, ReasonBadEncoding, ""), true
		}
		return brokenEntry(source, raw, "", ReasonUnknownRoute, ""), true
	}

	if c.isIgnored != nil && c.isIgnored(target, kind == routes.KindTree) {
		return BrokenLinkEntry{}, false
	}

	resolved, err := c.sandbox.Resolve(target)
	if err != nil {
		reason := ReasonMissing
		var re *rverrors.RepoError
		if errors.As(err, &re) && re.Code == rverrors.CodeEscape {
			reason = ReasonEscape
		}
		return brokenEntry(source, raw, kind, reason, target), true
	}

	switch {
	case kind == routes.KindRaw && resolved.Kind != validation.KindFile:
		return brokenEntry(source, raw, kind, ReasonNotAFile, target), true
	case kind == routes.KindTree && resolved.Kind != validation.KindDirectory:
		return brokenEntry(source, raw, kind, ReasonNotADirectory, target), true
	}

	return BrokenLinkEntry{}, false
}
