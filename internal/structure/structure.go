// Package structure produces semantic outlines of documents for the index
// payload. An outline is a nested heading tree with short summaries; the
// hierarchical chunk tree built by the indexer is separate and links back
// via the payload's hierarchical_root_id.
package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docqa/internal/tree"
)

// Builder is the document-structure collaborator boundary.
type Builder interface {
	BuildStructure(path string) (*tree.DocumentStructure, error)
}

// summaryWords caps outline summaries.
const summaryWords = 60

// OutlineBuilder derives outlines locally: heading trees for Markdown,
// HTML, and DOCX, a page outline for PDF, and a whole-file snippet for
// plain text and CSV.
type OutlineBuilder struct{}

var _ Builder = (*OutlineBuilder)(nil)

func (b *OutlineBuilder) BuildStructure(path string) (*tree.DocumentStructure, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownStructure(path, name)
	case ".html", ".htm":
		return htmlStructure(path, name)
	case ".docx":
		return docxStructure(path, name)
	case ".pdf":
		return pdfStructure(path, name)
	case ".txt", ".csv":
		return snippetStructure(path, name)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}

// snippetStructure is the trivial deterministic fallback: the whole file
// collapsed into a single-node outline.
func snippetStructure(path, name string) (*tree.DocumentStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	snippet := strings.Join(strings.Fields(string(data)), " ")
	if len(snippet) > 800 {
		snippet = snippet[:800]
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return &tree.DocumentStructure{
		DocName:        name,
		DocDescription: fmt.Sprintf("Text document: %s", name),
		Structure: []tree.StructureNode{{
			Title:      stem,
			NodeID:     "0000",
			Summary:    snippet,
			StartIndex: 1,
			EndIndex:   1,
		}},
	}, nil
}

// heading is an intermediate flat outline entry before nesting.
type heading struct {
	level   int
	title   string
	summary string
}

// outlineNode builds the heading tree with pointers before materializing
// value-typed StructureNodes, so stack frames stay valid while siblings
// are appended.
type outlineNode struct {
	node     tree.StructureNode
	level    int
	children []*outlineNode
}

// nest converts a flat, document-ordered heading list into a tree using a
// level stack, assigning sequential 4-digit node ids.
func nest(headings []heading) []tree.StructureNode {
	var roots []*outlineNode
	var stack []*outlineNode

	for i, h := range headings {
		on := &outlineNode{
			level: h.level,
			node: tree.StructureNode{
				Title:      h.title,
				NodeID:     fmt.Sprintf("%04d", i),
				Summary:    summarize(h.summary),
				StartIndex: i + 1,
				EndIndex:   i + 1,
			},
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, on)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, on)
		}
		stack = append(stack, on)
	}
	return materialize(roots)
}

func materialize(nodes []*outlineNode) []tree.StructureNode {
	out := make([]tree.StructureNode, 0, len(nodes))
	for _, on := range nodes {
		n := on.node
		n.Nodes = materialize(on.children)
		out = append(out, n)
	}
	return out
}

func summarize(text string) string {
	words := strings.Fields(text)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return strings.Join(words, " ")
}
