// Package renderer turns repository markdown into sanitized HTML.
//
// A render runs in fixed steps. goldmark parses the source into a fresh
// document tree with per-call heading IDs. An ordered list of named stages
// rewrites links and images through the route mapper, converts admonition
// blockquotes into callouts, and adds heading anchors. The tree is then
// rendered, embedded HTML is normalized by a tokenizer pass, and the result
// goes through an allow-list sanitizer as the very last step.
//
// A Renderer holds no per-document state and is safe for concurrent use.
package renderer

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/h4x3rotab/repoview/internal/errors"
)

// Context carries per-document render inputs.
type Context struct {
	// BaseDir is the slash-separated directory of the document relative to
	// the repository root. Relative links resolve against it.
	BaseDir string
}

// Stage is one named transform over a parsed document.
type Stage struct {
	Name      string
	Transform func(doc *ast.Document, source []byte, rc Context)
}

// Renderer is a configured markdown pipeline.
type Renderer struct {
	md     goldmark.Markdown
	stages []Stage
	policy *bluemonday.Policy
	code   codeHighlighter
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStages replaces the default transform stages.
func WithStages(stages ...Stage) Option {
	return func(r *Renderer) {
		r.stages = stages
	}
}

// WithCodeStyle selects the chroma style used by RenderCodeBlock and StyleCSS.
func WithCodeStyle(name string) Option {
	return func(r *Renderer) {
		r.code.styleName = name
	}
}

// DefaultStages returns the standard transform order.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "links", Transform: rewriteLinks},
		{Name: "images", Transform: rewriteImages},
		{Name: "alerts", Transform: transformAlerts},
		{Name: "heading-anchors", Transform: addHeadingAnchors},
	}
}

// New builds a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		stages: DefaultStages(),
		policy: newPolicy(),
		code:   codeHighlighter{styleName: defaultCodeStyle},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			emoji.Emoji,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(newFenceRenderer(), 100),
				util.Prioritized(&blockRenderer{}, 100),
			),
		),
	)

	return r
}

// Stages returns the names of the configured transform stages in order.
func (r *Renderer) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}

	return names
}

// Render converts markdown source to sanitized HTML. Parsing never fails on
// malformed markdown; an error means the document could not be rendered at
// all and callers treat it as having no content.
func (r *Renderer) Render(source []byte, rc Context) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.NewInternalError(errors.CodeInternal, "markdown render panicked", fmt.Errorf("%v", rec))
		}
	}()

	pc := parser.NewContext(parser.WithIDs(newSlugger()))
	doc := r.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	document, ok := doc.(*ast.Document)
	if !ok {
		return "", errors.NewInternalError(errors.CodeInternal, "parser did not return a document", nil)
	}
	for _, stage := range r.stages {
		stage.Transform(document, source, rc)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, document); err != nil {
		return "", errors.WrapInternal(err, "rendering markdown")
	}

	decorated, err := decorateHTML(buf.String(), rc.BaseDir)
	if err != nil {
		return "", errors.WrapInternal(err, "rewriting rendered HTML")
	}

	return sanitize(r.policy, decorated), nil
}

// Sanitize runs an HTML fragment through the renderer's allow-list policy.
func (r *Renderer) Sanitize(fragment string) string {
	return sanitize(r.policy, fragment)
}
