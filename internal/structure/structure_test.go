package structure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMarkdownStructure_HeadingHierarchy(t *testing.T) {
	path := writeFile(t, "guide.md", `# Guide

Intro text here.

## Install

Run the installer.

### Linux

Use the tarball.

## Usage

Run the binary.
`)
	b := &OutlineBuilder{}
	ds, err := b.BuildStructure(path)
	if err != nil {
		t.Fatalf("BuildStructure: %v", err)
	}

	if ds.DocName != "guide.md" {
		t.Errorf("expected doc_name guide.md, got %q", ds.DocName)
	}
	if len(ds.Structure) != 1 {
		t.Fatalf("expected 1 top-level node, got %d", len(ds.Structure))
	}

	h1 := ds.Structure[0]
	if h1.Title != "Guide" {
		t.Errorf("expected h1 Guide, got %q", h1.Title)
	}
	if !strings.Contains(h1.Summary, "Intro text here.") {
		t.Errorf("expected h1 summary to carry intro, got %q", h1.Summary)
	}
	if len(h1.Nodes) != 2 {
		t.Fatalf("expected 2 h2 children, got %d", len(h1.Nodes))
	}
	install := h1.Nodes[0]
	if install.Title != "Install" {
		t.Errorf("expected Install, got %q", install.Title)
	}
	if len(install.Nodes) != 1 || install.Nodes[0].Title != "Linux" {
		t.Fatalf("expected nested Linux node, got %+v", install.Nodes)
	}
	if h1.Nodes[1].Title != "Usage" {
		t.Errorf("expected Usage, got %q", h1.Nodes[1].Title)
	}
}

func TestMarkdownStructure_NodeIDsAreSequential(t *testing.T) {
	path := writeFile(t, "doc.md", "# A\n\ntext\n\n# B\n\ntext\n")
	b := &OutlineBuilder{}
	ds, err := b.BuildStructure(path)
	if err != nil {
		t.Fatalf("BuildStructure: %v", err)
	}
	if len(ds.Structure) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(ds.Structure))
	}
	if ds.Structure[0].NodeID != "0000" || ds.Structure[1].NodeID != "0001" {
		t.Errorf("expected ids 0000/0001, got %q/%q", ds.Structure[0].NodeID, ds.Structure[1].NodeID)
	}
}

func TestTextStructure_SnippetFallback(t *testing.T) {
	path := writeFile(t, "notes.txt", "line one\nline   two\n")
	b := &OutlineBuilder{}
	ds, err := b.BuildStructure(path)
	if err != nil {
		t.Fatalf("BuildStructure: %v", err)
	}

	if ds.DocDescription != "Text document: notes.txt" {
		t.Errorf("unexpected description %q", ds.DocDescription)
	}
	if len(ds.Structure) != 1 {
		t.Fatalf("expected single-node structure, got %d", len(ds.Structure))
	}
	node := ds.Structure[0]
	if node.Title != "notes" || node.NodeID != "0000" {
		t.Errorf("unexpected node %+v", node)
	}
	if node.Summary != "line one line two" {
		t.Errorf("expected whitespace-collapsed snippet, got %q", node.Summary)
	}
}

func TestMarkdownStructure_NoHeadingsFallsBackToSnippet(t *testing.T) {
	path := writeFile(t, "plain.md", "no headings at all\n")
	b := &OutlineBuilder{}
	ds, err := b.BuildStructure(path)
	if err != nil {
		t.Fatalf("BuildStructure: %v", err)
	}
	if len(ds.Structure) != 1 || ds.Structure[0].Title != "plain" {
		t.Fatalf("expected snippet fallback, got %+v", ds.Structure)
	}
}

func TestHTMLStructure_Headings(t *testing.T) {
	path := writeFile(t, "page.html", `<html><body>
<h1>Top</h1><p>alpha</p>
<h2>Sub</h2><p>beta</p>
</body></html>`)
	b := &OutlineBuilder{}
	ds, err := b.BuildStructure(path)
	if err != nil {
		t.Fatalf("BuildStructure: %v", err)
	}
	if len(ds.Structure) != 1 {
		t.Fatalf("expected 1 top node, got %d", len(ds.Structure))
	}
	top := ds.Structure[0]
	if top.Title != "Top" || !strings.Contains(top.Summary, "alpha") {
		t.Errorf("unexpected top node %+v", top)
	}
	if len(top.Nodes) != 1 || top.Nodes[0].Title != "Sub" {
		t.Fatalf("expected Sub child, got %+v", top.Nodes)
	}
}

func TestBuildStructure_UnsupportedExtension(t *testing.T) {
	b := &OutlineBuilder{}
	if _, err := b.BuildStructure("whatever.xlsx"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
