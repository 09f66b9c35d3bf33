package views

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/h4x3rotab/repoview/internal/routes"
	"github.com/h4x3rotab/repoview/internal/scanner"
)

// TreeRow is one directory entry in a listing.
type TreeRow struct {
	Name     string
	IsDir    bool
	Href     string
	Size     int64
	Modified time.Time
}

// SortRows orders directories first, then by name.
func SortRows(rows []TreeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsDir != rows[j].IsDir {
			return rows[i].IsDir
		}
		return rows[i].Name < rows[j].Name
	})
}

// TreePage lists a directory and shows its rendered README underneath.
func TreePage(p Page, rows []TreeRow, readmeHTML string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<section class=\"panel\">\n<div class=\"panel-title\">Files</div>\n",
			"<div class=\"table-wrap\">\n<table class=\"file-table\">\n",
			"<thead><tr><th class=\"name\">Name</th><th class=\"mtime\">Last modified</th><th class=\"size\">Size</th></tr></thead>\n",
			"<tbody>\n")
		if len(rows) == 0 {
			hw.raw("<tr><td colspan=\"3\" class=\"empty\">Empty directory</td></tr>\n")
		}
		for _, r := range rows {
			icon, size := "file", FormatBytes(r.Size)
			if r.IsDir {
				icon, size = "dir", ""
			}
			hw.raw("<tr>\n<td class=\"name\"><a class=\"item ", icon, "\" href=\"")
			hw.text(r.Href)
			hw.raw("\">")
			hw.text(r.Name)
			hw.raw("</a></td>\n<td class=\"mtime\">")
			hw.text(FormatTime(r.Modified))
			hw.raw("</td>\n<td class=\"size\">")
			hw.text(size)
			hw.raw("</td>\n</tr>\n")
		}
		hw.raw("</tbody>\n</table>\n</div>\n</section>\n")

		if readmeHTML != "" {
			hw.raw("<section class=\"panel readme\">\n<div class=\"panel-title\">README</div>\n",
				"<div class=\"markdown-body markdown-wrap\">", readmeHTML, "</div>\n</section>\n")
		}

		return hw.err
	})

	return Layout(p, body)
}

// FilePage shows one file. isMarkdown selects the markdown or code wrapper
// around content.
func FilePage(p Page, fileName string, isMarkdown bool, content templ.Component) templ.Component {
	dir := path.Dir(p.RelPath)
	if dir == "." {
		dir = ""
	}
	treeHref := routes.URLFor(routes.KindTree, dir)
	rawHref := routes.URLFor(routes.KindRaw, p.RelPath)
	wrapClass := "code-wrap"
	if isMarkdown {
		wrapClass = "markdown-body markdown-wrap"
	}

	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<section class=\"panel\">\n<div class=\"panel-title\">\n<span class=\"filename\">")
		hw.text(fileName)
		hw.raw("</span>\n<span class=\"spacer\"></span>\n<a class=\"btn\" href=\"")
		hw.text(treeHref)
		hw.raw("\">Back</a>\n<a class=\"btn\" href=\"")
		hw.text(rawHref)
		hw.raw("\">Raw</a>\n</div>\n<div class=\"", wrapClass, "\">\n")
		hw.component(ctx, content)
		hw.raw("\n</div>\n</section>\n")

		return hw.err
	})

	return Layout(p, body)
}

// TooLarge is the note shown instead of a file above the render limit.
func TooLarge(rel string, size int64) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<div class=\"note\">File is too large to render (")
		hw.text(FormatBytes(size))
		hw.raw("). Use <a href=\"")
		hw.text(routes.URLFor(routes.KindRaw, rel))
		hw.raw("\">Raw</a>.</div>")

		return hw.err
	})
}

// ErrorPage is a standalone page without the repository header.
func ErrorPage(title, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n",
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n<title>")
		hw.text(title)
		hw.raw("</title>\n<link rel=\"stylesheet\" href=\"", routes.StaticPrefix, "app.css\">\n",
			"</head>\n<body>\n<main class=\"container\">\n<section class=\"panel\">\n",
			"<div class=\"panel-title\">Error</div>\n<div class=\"error\">")
		hw.text(message)
		hw.raw("</div>\n</section>\n</main>\n</body>\n</html>\n")

		return hw.err
	})
}

// StatusLine summarizes a scan state in one sentence.
func StatusLine(st scanner.State) string {
	switch {
	case st.Status == scanner.StatusRunning:
		return "Scanning…"
	case st.LastResult != nil:
		r := st.LastResult
		return fmt.Sprintf("Last scan: %s · Files: %d · URLs: %d · Broken: %d · %dms",
			FormatTime(r.FinishedAt.Time), r.FilesScanned, r.URLsChecked, len(r.Broken), r.DurationMs)
	case st.LastError != nil:
		return "Last error: " + *st.LastError
	}

	return "No scan yet."
}

// BrokenLinksPage groups the last scan's broken links by source document.
func BrokenLinksPage(p Page, st scanner.State) templ.Component {
	p.Scan = &st
	var broken []scanner.BrokenLinkEntry
	if st.LastResult != nil {
		broken = st.LastResult.Broken
	}

	type group struct {
		source string
		items  []scanner.BrokenLinkEntry
	}
	var groups []*group
	index := make(map[string]*group)
	for _, b := range broken {
		g, ok := index[b.Source]
		if !ok {
			g = &group{source: b.Source}
			index[b.Source] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, b)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].source < groups[j].source })

	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw("<section class=\"panel\">\n<div class=\"panel-title\">Broken links</div>\n<div class=\"note\">")
		hw.text(StatusLine(st))
		hw.raw("</div>\n</section>\n")

		if len(groups) == 0 {
			hw.raw("<section class=\"panel\"><div class=\"panel-title\">All good</div>",
				"<div class=\"note\">No broken internal links found.</div></section>\n")
			return hw.err
		}

		for _, g := range groups {
			hw.raw("<section class=\"panel\">\n<div class=\"panel-title\">\n<span class=\"filename\"><a class=\"link\" href=\"")
			hw.text(routes.URLFor(routes.KindBlob, g.source))
			hw.raw("\">")
			hw.text(g.source)
			hw.raw("</a></span>\n<span class=\"spacer\"></span>\n<span class=\"pill\">", itoa(len(g.items)), "</span>\n</div>\n",
				"<div class=\"table-wrap\">\n<table class=\"file-table linkcheck\">\n",
				"<thead><tr><th>Kind</th><th>Reason</th><th>URL</th><th>Target</th></tr></thead>\n<tbody>\n")
			for _, item := range g.items {
				hw.raw("<tr><td class=\"mono\">")
				hw.text(item.Kind)
				hw.raw("</td><td class=\"mono\">")
				hw.text(string(item.Reason))
				hw.raw("</td><td class=\"mono\">")
				hw.text(item.URL)
				hw.raw("</td><td class=\"mono\">")
				hw.text(item.Target)
				hw.raw("</td></tr>\n")
			}
			hw.raw("</tbody>\n</table>\n</div>\n</section>\n")
		}

		return hw.err
	})

	return Layout(p, body)
}

// FormatBytes renders a size as "512 B", "1.5 KB", "12 MB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(n) / 1024
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if value < 10 {
		return fmt.Sprintf("%.1f %s", value, units[unit])
	}

	return fmt.Sprintf("%.0f %s", value, units[unit])
}

// FormatTime renders a timestamp in local time, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Local().Format("Jan 02, 2006 15:04")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
