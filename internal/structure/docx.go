package structure

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/docqa/internal/tree"
	"github.com/fumiama/go-docx"
)

// docxStructure collects Heading1-6 styled paragraphs into an outline.
func docxStructure(path, name string) (*tree.DocumentStructure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var headings []heading
	var currentText strings.Builder

	flushInto := func() {
		if len(headings) > 0 {
			headings[len(headings)-1].summary = currentText.String()
		}
		currentText.Reset()
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			flushInto()
			headings = append(headings, heading{level: level, title: text})
			continue
		}
		if currentText.Len() > 0 {
			currentText.WriteString(" ")
		}
		currentText.WriteString(text)
	}
	flushInto()

	structure := nest(headings)
	if len(structure) == 0 {
		return snippetStructure(path, name)
	}

	return &tree.DocumentStructure{
		DocName:        name,
		DocDescription: fmt.Sprintf("Structured index generated from %s", name),
		Structure:      structure,
	}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	switch style {
	case "heading1":
		return 1
	case "heading2":
		return 2
	case "heading3":
		return 3
	case "heading4":
		return 4
	case "heading5":
		return 5
	case "heading6":
		return 6
	}
	return 0
}

func docxText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
