package mdtext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ToText flattens markdown into plain text, one line per leaf block.
// Markup, link targets and raw html are dropped.
func ToText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	blocks := collectBlocks(doc, source, nil)
	return strings.Join(blocks, "\n")
}

func collectBlocks(n ast.Node, source []byte, out []string) []string {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch {
		case c.Kind() == ast.KindHTMLBlock:
			continue
		case c.Kind() == ast.KindFencedCodeBlock || c.Kind() == ast.KindCodeBlock:
			if s := linesText(c, source); s != "" {
				out = append(out, s)
			}
		case c.FirstChild() != nil && c.FirstChild().Type() == ast.TypeBlock:
			out = collectBlocks(c, source, out)
		default:
			if s := extractText(c, source); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func linesText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// IsMarkdownFile reports whether name carries a markdown extension.
func IsMarkdownFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}
