package renderer

import (
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// DiagramLanguage is the fence info string, matched case-insensitively, that
// is emitted verbatim for client-side diagrams.
const DiagramLanguage = "mermaid"

// fenceRenderer special-cases diagram fences and hands every other fenced
// block to the chroma-backed highlighter.
type fenceRenderer struct {
	highlight renderer.NodeRendererFunc
}

type fenceCapture struct {
	fn renderer.NodeRendererFunc
}

func (c *fenceCapture) Register(kind ast.NodeKind, fn renderer.NodeRendererFunc) {
	if kind == ast.KindFencedCodeBlock {
		c.fn = fn
	}
}

func newFenceRenderer() *fenceRenderer {
	capture := &fenceCapture{}
	highlighting.NewHTMLRenderer(
		highlighting.WithStyle(defaultCodeStyle),
		highlighting.WithGuessLanguage(false),
		highlighting.WithFormatOptions(
			chromahtml.WithClasses(true),
		),
	).RegisterFuncs(capture)

	return &fenceRenderer{highlight: capture.fn}
}

func (r *fenceRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *fenceRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.FencedCodeBlock)
	if !strings.EqualFold(string(n.Language(source)), DiagramLanguage) {
		return r.highlight(w, source, node, entering)
	}
	if !entering {
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<pre class="mermaid">`)
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
	_, _ = w.WriteString("</pre>\n")

	return ast.WalkSkipChildren, nil
}
