package renderer

import (
	"html"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const defaultCodeStyle = "github"

// CodeOptions tunes RenderCodeBlock.
type CodeOptions struct {
	// Language is a lexer name or alias such as "go" or "yaml".
	Language string
	// Filename is matched against lexer filename globs when Language is empty or unknown.
	Filename string
}

type codeHighlighter struct {
	styleName string
}

func (c codeHighlighter) style() *chroma.Style {
	return styles.Get(c.styleName)
}

func (c codeHighlighter) formatter() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.PreventSurroundingPre(true),
	)
}

func pickLexer(source string, opts CodeOptions) chroma.Lexer {
	var lexer chroma.Lexer
	if opts.Language != "" {
		lexer = lexers.Get(opts.Language)
	}
	if lexer == nil && opts.Filename != "" {
		lexer = lexers.Match(opts.Filename)
	}
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	return chroma.Coalesce(lexer)
}

// RenderCodeBlock highlights a non-markdown file for preview. Output is a
// sanitized <pre class="hljs"><code> block; highlighting failures fall back
// to escaped plain text.
func (r *Renderer) RenderCodeBlock(source string, opts CodeOptions) string {
	var b strings.Builder
	b.WriteString(`<pre class="hljs"><code>`)

	iterator, err := pickLexer(source, opts).Tokenise(nil, source)
	if err == nil {
		var body strings.Builder
		err = r.code.formatter().Format(&body, r.code.style(), iterator)
		if err == nil {
			b.WriteString(body.String())
		}
	}
	if err != nil {
		b.WriteString(html.EscapeString(source))
	}

	b.WriteString("</code></pre>")

	return sanitize(r.policy, b.String())
}

// WriteStyleCSS writes the stylesheet for the highlight classes used by
// fenced code blocks and RenderCodeBlock.
func (r *Renderer) WriteStyleCSS(w io.Writer) error {
	return r.code.formatter().WriteCSS(w, r.code.style())
}
