package structure

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/docqa/internal/tree"
	"golang.org/x/net/html"
)

// htmlStructure collects h1-h6 headings and their following text into an
// outline.
func htmlStructure(path, name string) (*tree.DocumentStructure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var headings []heading
	var currentText strings.Builder

	flushInto := func() {
		if len(headings) > 0 {
			headings[len(headings)-1].summary = currentText.String()
		}
		currentText.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				flushInto()
				headings = append(headings, heading{level: level, title: nodeText(n)})
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote":
				if t := nodeText(n); t != "" {
					if currentText.Len() > 0 {
						currentText.WriteString(" ")
					}
					currentText.WriteString(t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
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

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}
