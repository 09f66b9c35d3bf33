package renderer

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/h4x3rotab/repoview/internal/routes"
)

const externalRel = "noreferrer noopener"

// decorateHTML rewrites link and image attributes in rendered HTML,
// including tags that came from raw HTML embedded in the markdown. Link
// rewriting is idempotent, so tags already handled by the tree stages pass
// through unchanged apart from the added markers.
func decorateHTML(fragment, baseDir string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	b.Grow(len(fragment) + len(fragment)/8)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return b.String(), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			if decorateTag(&tok, baseDir) {
				b.WriteString(tok.String())
			} else {
				b.WriteString(raw)
			}
		default:
			b.Write(z.Raw())
		}
	}
}

func decorateTag(tok *html.Token, baseDir string) bool {
	switch tok.Data {
	case "a":
		href, ok := attr(tok, "href")
		if !ok {
			return false
		}
		href = routes.RewriteLink(href, baseDir)
		setAttr(tok, "href", href)
		if routes.IsExternal(href) {
			setAttr(tok, "target", "_blank")
			setAttr(tok, "rel", externalRel)
		}
		return true
	case "img":
		if src, ok := attr(tok, "src"); ok {
			setAttr(tok, "src", routes.RewriteImage(src, baseDir))
		}
		if _, ok := attr(tok, "loading"); !ok {
			setAttr(tok, "loading", "lazy")
		}
		return true
	case "input":
		if typ, _ := attr(tok, "type"); !strings.EqualFold(typ, "checkbox") {
			return false
		}
		if _, ok := attr(tok, "disabled"); !ok {
			setAttr(tok, "disabled", "")
		}
		return true
	}

	return false
}

func attr(tok *html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

func setAttr(tok *html.Token, key, val string) {
	for i, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			tok.Attr[i].Val = val
			return
		}
	}
	tok.Attr = append(tok.Attr, html.Attribute{Key: key, Val: val})
}
