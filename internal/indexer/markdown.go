package indexer

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownRenderer turns markdown into plain text with one paragraph per
// block, separated by blank lines.
type MarkdownRenderer struct {
	parser goldmark.Markdown
}

// NewMarkdownRenderer creates a renderer with GFM tables enabled.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Render returns the document title and its plain text content.
func (r *MarkdownRenderer) Render(content []byte, filename string) (title, plain string) {
	if len(content) == 0 {
		return extractTitleFromFilename(filename), ""
	}

	doc := r.parser.Parser().Parse(text.NewReader(content))
	title = extractTitle(doc, content, filename)

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = appendBlock(blocks, n, content)
	}
	return title, strings.Join(blocks, "\n\n")
}

// appendBlock renders one block-level node.
func appendBlock(blocks []string, n ast.Node, content []byte) []string {
	var s string
	switch node := n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		s = extractTextFromNode(node, content)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		s = strings.TrimRight(string(node.Lines().Value(content)), "\n")
	case *ast.List:
		var items []string
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if t := extractTextFromNode(item, content); t != "" {
				items = append(items, "- "+t)
			}
		}
		s = strings.Join(items, "\n")
	case *ast.Blockquote:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			blocks = appendBlock(blocks, child, content)
		}
		return blocks
	case *extast.Table:
		var rows []string
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			if t := extractTableRowText(row, content); t != "" {
				rows = append(rows, t)
			}
		}
		s = strings.Join(rows, "\n")
	default:
		// Thematic breaks and raw HTML carry no text.
		return blocks
	}

	if s = strings.TrimSpace(s); s != "" {
		blocks = append(blocks, s)
	}
	return blocks
}

// extractTitle uses the first H1, falling back to the first H2 and then
// the filename.
func extractTitle(doc ast.Node, content []byte, filename string) string {
	var firstH1, firstH2 string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		headingText := extractTextFromNode(heading, content)
		switch {
		case heading.Level == 1 && firstH1 == "":
			firstH1 = headingText
			return ast.WalkStop, nil
		case heading.Level == 2 && firstH2 == "":
			firstH2 = headingText
		}
		return ast.WalkSkipChildren, nil
	})

	if firstH1 != "" {
		return firstH1
	}
	if firstH2 != "" {
		return firstH2
	}
	return extractTitleFromFilename(filename)
}

// extractTitleFromFilename drops the extension and capitalizes each word.
// Underscores and dashes count as word separators.
func extractTitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// extractTextFromNode concatenates the inline text under n. Soft and hard
// line breaks become spaces.
func extractTextFromNode(n ast.Node, content []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.Paragraph, *ast.TextBlock:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

// extractTableRowText joins the cells of a table row with pipes.
func extractTableRowText(row ast.Node, content []byte) string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, extractTextFromNode(cell, content))
		}
	}
	return strings.Join(cells, " | ")
}
