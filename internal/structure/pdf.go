package structure

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/tree"
	pdflib "github.com/ledongthuc/pdf"
)

// pdfStructure builds a flat per-page outline. PDFs carry no reliable
// heading markup, so each page with extractable text becomes one node.
func pdfStructure(path, name string) (*tree.DocumentStructure, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var headings []heading
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		headings = append(headings, heading{
			level:   1,
			title:   fmt.Sprintf("Page %d", i),
			summary: text,
		})
	}

	structure := nest(headings)
	if len(structure) == 0 {
		// No extractable text anywhere; keep a single empty node so the
		// document still appears in the payload.
		structure = []tree.StructureNode{{
			Title:      strings.TrimSuffix(name, ".pdf"),
			NodeID:     "0000",
			StartIndex: 1,
			EndIndex:   1,
		}}
	}

	return &tree.DocumentStructure{
		DocName:        name,
		DocDescription: fmt.Sprintf("Structured index generated from %s", name),
		Structure:      structure,
	}, nil
}
