package structure

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/docqa/internal/tree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownStructure walks the goldmark AST and collects headings with the
// text that follows them.
func markdownStructure(path, name string) (*tree.DocumentStructure, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var headings []heading
	var current *heading
	var currentText bytes.Buffer

	flush := func() {
		if current != nil {
			current.summary = currentText.String()
			headings = append(headings, *current)
			current = nil
		}
		currentText.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			current = &heading{level: h.Level, title: string(h.Text(src))}
			continue
		}
		if current == nil {
			continue // Preamble before the first heading has no outline home.
		}
		if t := blockText(n, src); t != "" {
			if currentText.Len() > 0 {
				currentText.WriteString(" ")
			}
			currentText.WriteString(t)
		}
	}
	flush()

	structure := nest(headings)
	if len(structure) == 0 {
		// No headings at all: fall back to the snippet shape.
		return snippetStructure(path, name)
	}

	return &tree.DocumentStructure{
		DocName:        name,
		DocDescription: fmt.Sprintf("Structured index generated from %s", name),
		Structure:      structure,
	}, nil
}

// blockText gets the text content of a goldmark block node.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
