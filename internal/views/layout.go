// Package views renders repoview's HTML pages as templ components.
package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/h4x3rotab/repoview/internal/gitinfo"
	"github.com/h4x3rotab/repoview/internal/routes"
	"github.com/h4x3rotab/repoview/internal/scanner"
)

// Page carries what every page header shows.
type Page struct {
	Title    string
	RepoName string
	Git      gitinfo.Info
	// RelPath is the slash-separated repository path for the breadcrumbs.
	RelPath string
	// Scan feeds the broken-links pill; nil hides it.
	Scan *scanner.State
}

// htmlWriter keeps the first write error so components can write without
// checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(parts ...string) {
	for _, s := range parts {
		if hw.err != nil {
			return
		}
		_, hw.err = io.WriteString(hw.w, s)
	}
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// Layout wraps body in the page chrome: stylesheet links, the repository
// header with git and scan pills, breadcrumbs, and the client script.
func Layout(p Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<!doctype html>\n<html lang=\"en\">\n<head>\n",
			"<meta charset=\"utf-8\">\n",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n",
			"<title>")
		hw.text(p.Title)
		hw.raw("</title>\n",
			"<link rel=\"stylesheet\" href=\"", routes.StaticPrefix, "app.css\">\n",
			"<link rel=\"stylesheet\" href=\"", routes.StaticPrefix, "chroma.css\">\n",
			"</head>\n<body>\n<header class=\"topbar\">\n<div class=\"topbar-row\">\n",
			"<a class=\"brand\" href=\"", routes.KindTree.Prefix(), "\">")
		hw.text(p.RepoName)
		hw.raw("</a>\n<div class=\"meta\">\n<span class=\"pill\">")
		hw.text(p.Git.BranchLabel())
		hw.raw("</span>\n")
		if short := p.Git.ShortCommit(); short != "" {
			hw.raw("<span class=\"pill mono\">")
			hw.text(short)
			hw.raw("</span>\n")
		}
		hw.component(ctx, BrokenLinksPill(p.Scan))
		hw.raw("<span id=\"conn-status\" class=\"conn-status\" data-status=\"connecting\"></span>\n",
			"</div>\n</div>\n")
		hw.component(ctx, Breadcrumbs(p.RelPath))
		hw.raw("</header>\n<main class=\"container\">\n")
		hw.component(ctx, body)
		hw.raw("\n</main>\n",
			"<script type=\"module\" src=\"", routes.StaticPrefix, "app.js\"></script>\n",
			"</body>\n</html>\n")

		return hw.err
	})
}

// Breadcrumbs links every ancestor directory of rel, starting at the root.
func Breadcrumbs(rel string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<nav class=\"breadcrumbs\" aria-label=\"Breadcrumbs\">",
			"<a class=\"crumb\" href=\"", routes.KindTree.Prefix(), "\">root</a>")

		var cursor []string
		for _, part := range strings.Split(rel, "/") {
			if part == "" {
				continue
			}
			cursor = append(cursor, part)
			hw.raw("<span class=\"crumb-sep\">/</span><a class=\"crumb\" href=\"")
			hw.text(routes.URLFor(routes.KindTree, strings.Join(cursor, "/")))
			hw.raw("\">")
			hw.text(part)
			hw.raw("</a>")
		}
		hw.raw("</nav>\n")

		return hw.err
	})
}

// PillLabel is the broken-links pill text, or "" when nothing is known yet.
func PillLabel(st *scanner.State) string {
	switch {
	case st == nil:
		return ""
	case st.Status == scanner.StatusRunning:
		return "Scanning links…"
	case st.LastResult != nil:
		return "Broken: " + itoa(len(st.LastResult.Broken))
	case st.LastError != nil:
		return "Broken: ?"
	}

	return ""
}

// BrokenLinksPill links to the report with the current scan status.
func BrokenLinksPill(st *scanner.State) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		label := PillLabel(st)
		if label == "" {
			return nil
		}
		hw := &htmlWriter{w: w}
		hw.raw("<a class=\"pill link\" href=\"", routes.BrokenLinksPath, "\">")
		hw.text(label)
		hw.raw("</a>\n")

		return hw.err
	})
}
