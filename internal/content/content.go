package content

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	policy   = bluemonday.StrictPolicy()
	markdown = goldmark.New()
)

// Sanitize strips all HTML from text written by other users before it is
// printed to a terminal. Entities are decoded again, since the output is
// plain text rather than HTML.
func Sanitize(input string) string {
	return html.UnescapeString(policy.Sanitize(input))
}

// PlainText renders a markdown message body as a single line of text:
// formatting is dropped, block boundaries become spaces and whitespace is
// collapsed.
func PlainText(input string) string {
	src := []byte(input)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && b.Len() > 0 {
			b.WriteByte(' ')
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		case *ast.AutoLink:
			b.Write(node.URL(src))
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

// Preview is the sanitized plain-text form of a message cut to max runes,
// with an ellipsis when shortened.
func Preview(input string, max int) string {
	s := PlainText(Sanitize(input))
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// Initials returns up to two initials of a display name, "U" when unknown.
func Initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "U"
	case 1:
		r, _ := utf8.DecodeRuneInString(parts[0])
		return strings.ToUpper(string(r))
	default:
		r1, _ := utf8.DecodeRuneInString(parts[0])
		r2, _ := utf8.DecodeRuneInString(parts[1])
		return strings.ToUpper(string(r1) + string(r2))
	}
}
