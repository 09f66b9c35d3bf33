package renderer

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AlertTypes lists the admonition keywords recognized at the start of a blockquote.
var AlertTypes = []string{"note", "tip", "important", "warning", "caution"}

var alertMarker = regexp.MustCompile(`(?i)^\[!(NOTE|TIP|IMPORTANT|WARNING|CAUTION)\][ \t]*`)

// KindAlert is the node kind of a titled callout block.
var KindAlert = ast.NewNodeKind("Alert")

// Alert is a blockquote promoted to a callout.
type Alert struct {
	ast.BaseBlock
	AlertType string
}

func (n *Alert) Kind() ast.NodeKind { return KindAlert }

func (n *Alert) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"AlertType": n.AlertType}, nil)
}

// Title is the display title of the alert, e.g. "Warning".
func (n *Alert) Title() string {
	return cases.Title(language.English).String(n.AlertType)
}

func transformAlerts(doc *ast.Document, source []byte, _ Context) {
	for _, n := range collect(doc, ast.KindBlockquote) {
		para, ok := n.FirstChild().(*ast.Paragraph)
		if !ok || para.Lines().Len() == 0 {
			continue
		}

		first := para.Lines().At(0)
		m := alertMarker.FindSubmatchIndex(first.Value(source))
		if m == nil {
			continue
		}
		alertType := strings.ToLower(string(first.Value(source)[m[2]:m[3]]))
		stripLeadingText(para, first.Start+m[1])
		if para.ChildCount() == 0 {
			n.RemoveChild(n, para)
		}

		alert := &Alert{AlertType: alertType}
		for c := n.FirstChild(); c != nil; {
			next := c.NextSibling()
			alert.AppendChild(alert, c)
			c = next
		}
		n.Parent().ReplaceChild(n.Parent(), n, alert)
	}
}

// stripLeadingText drops inline text before the source offset cut.
func stripLeadingText(para *ast.Paragraph, cut int) {
	for c := para.FirstChild(); c != nil; {
		t, ok := c.(*ast.Text)
		if !ok {
			return
		}
		next := c.NextSibling()
		switch {
		case t.Segment.Stop <= cut:
			para.RemoveChild(para, t)
		case t.Segment.Start < cut:
			t.Segment = t.Segment.WithStart(cut)
			return
		default:
			return
		}
		c = next
	}
}

// blockRenderer writes the custom nodes produced by the transform stages.
type blockRenderer struct{}

func (r *blockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAlert, r.renderAlert)
	reg.Register(KindHeadingAnchor, r.renderHeadingAnchor)
}

func (r *blockRenderer) renderAlert(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*Alert)
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<div class="markdown-alert markdown-alert-`)
	_, _ = w.WriteString(n.AlertType)
	_, _ = w.WriteString(`"><p class="markdown-alert-title">`)
	_, _ = w.WriteString(n.Title())
	_, _ = w.WriteString("</p>\n")

	return ast.WalkContinue, nil
}

func (r *blockRenderer) renderHeadingAnchor(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*headingAnchor)
	_, _ = w.WriteString(`<a class="anchor" aria-hidden="true" href="#`)
	_, _ = w.Write(util.EscapeHTML(n.ID))
	_, _ = w.WriteString(`"></a>`)

	return ast.WalkSkipChildren, nil
}
