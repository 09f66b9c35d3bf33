package renderer

import (
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	checkboxType = regexp.MustCompile(`(?i)^checkbox$`)
	alignValue   = regexp.MustCompile(`(?i)^(?:left|right|center)$`)
	cellStyle    = regexp.MustCompile(`(?i)^text-align:\s*(?:left|right|center);?$`)
	loadingValue = regexp.MustCompile(`^(?:lazy|eager)$`)
)

// newPolicy builds the allow-list applied to every rendered document.
// Anything not listed is stripped.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "blockquote", "pre", "code", "span", "div", "section",
		"em", "strong", "del", "s", "b", "i", "kbd", "mark", "sup", "sub", "small",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"details", "summary", "picture", "source",
	)

	p.AllowAttrs("class", "id", "title", "role", "aria-label", "aria-hidden", "dir", "lang").Globally()

	p.AllowAttrs("href", "name", "target", "rel", "tabindex").OnElements("a")
	p.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	p.AllowAttrs("loading").Matching(loadingValue).OnElements("img")
	p.AllowAttrs("srcset", "media", "type").OnElements("source")
	p.AllowAttrs("type").Matching(checkboxType).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowAttrs("open").OnElements("details")
	p.AllowAttrs("start").OnElements("ol")
	p.AllowAttrs("tabindex").OnElements("pre")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	p.AllowAttrs("align").Matching(alignValue).OnElements("th", "td", "p", "div", "img")
	p.AllowAttrs("style").Matching(cellStyle).OnElements("th", "td")

	// URL attributes are kept verbatim so links with malformed escapes still
	// reach the link scanner; filterURLs enforces the scheme allow-list.
	p.RequireParseableURLs(false)

	return p
}

var (
	urlScheme    = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*):`)
	dataImageURI = regexp.MustCompile(`(?i)^data:image/(?:gif|jpeg|png|webp)[;,]`)

	linkSchemes  = map[string]bool{"http": true, "https": true, "mailto": true, "tel": true}
	imageSchemes = map[string]bool{"http": true, "https": true}
)

// sanitize runs fragment through the allow-list and then drops href and src
// values whose scheme is not allowed. Relative URLs are kept as written.
func sanitize(p *bluemonday.Policy, fragment string) string {
	return filterURLs(p.Sanitize(fragment))
}

func filterURLs(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	b.Grow(len(fragment))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return ""
			}
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			if dropUnsafeURLs(&tok) {
				b.WriteString(tok.String())
			} else {
				b.WriteString(raw)
			}
		default:
			b.Write(z.Raw())
		}
	}
}

// dropUnsafeURLs removes every a[href] and img[src] that fails allowedURL and
// reports whether the token changed.
func dropUnsafeURLs(tok *html.Token) bool {
	var key string
	switch tok.Data {
	case "a":
		key = "href"
	case "img":
		key = "src"
	default:
		return false
	}

	kept := tok.Attr[:0:0]
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key && !allowedURL(tok.Data, a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == len(tok.Attr) {
		return false
	}
	tok.Attr = kept

	return true
}

func allowedURL(element, val string) bool {
	// Browsers ignore ASCII tab and newline anywhere in a URL and strip
	// leading control characters and spaces before reading the scheme.
	v := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, val)
	v = strings.TrimLeft(v, "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x0b\x0c\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f ")

	m := urlScheme.FindStringSubmatch(v)
	if m == nil {
		return true
	}
	scheme := strings.ToLower(m[1])
	if element == "img" {
		return imageSchemes[scheme] || dataImageURI.MatchString(v)
	}

	return linkSchemes[scheme]
}
