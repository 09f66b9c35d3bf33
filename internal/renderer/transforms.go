package renderer

import (
	"github.com/yuin/goldmark/ast"

	"github.com/h4x3rotab/repoview/internal/routes"
)

// collect gathers nodes of one kind so stages can restructure the tree
// without mutating it mid-walk.
func collect(doc *ast.Document, kind ast.NodeKind) []ast.Node {
	var nodes []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == kind {
			nodes = append(nodes, n)
		}
		return ast.WalkContinue, nil
	})

	return nodes
}

func rewriteLinks(doc *ast.Document, _ []byte, rc Context) {
	for _, n := range collect(doc, ast.KindLink) {
		link := n.(*ast.Link)
		link.Destination = []byte(routes.RewriteLink(string(link.Destination), rc.BaseDir))
	}
}

func rewriteImages(doc *ast.Document, _ []byte, rc Context) {
	for _, n := range collect(doc, ast.KindImage) {
		img := n.(*ast.Image)
		img.Destination = []byte(routes.RewriteImage(string(img.Destination), rc.BaseDir))
		if _, ok := img.AttributeString("loading"); !ok {
			img.SetAttributeString("loading", []byte("lazy"))
		}
	}
}

// KindHeadingAnchor is the node kind of the self-link placed inside headings.
var KindHeadingAnchor = ast.NewNodeKind("HeadingAnchor")

type headingAnchor struct {
	ast.BaseInline
	ID []byte
}

func (n *headingAnchor) Kind() ast.NodeKind { return KindHeadingAnchor }

func (n *headingAnchor) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"ID": string(n.ID)}, nil)
}

// addHeadingAnchors prepends an empty self-link to every heading that has an id.
func addHeadingAnchors(doc *ast.Document, _ []byte, _ Context) {
	for _, n := range collect(doc, ast.KindHeading) {
		raw, ok := n.AttributeString("id")
		if !ok {
			continue
		}
		id, ok := raw.([]byte)
		if !ok || len(id) == 0 {
			continue
		}

		anchor := &headingAnchor{ID: id}
		if first := n.FirstChild(); first != nil {
			n.InsertBefore(n, first, anchor)
		} else {
			n.AppendChild(n, anchor)
		}
	}
}
