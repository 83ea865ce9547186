// Package parser turns document bytes into a lazy sequence of text
// blocks. The block boundary depends on the format: PDF pages, Markdown
// heading sections, plain-text lines, HTML content elements, or DOCX
// paragraphs. Downstream word-level chunking smooths the differences out.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Streamer emits each text block of a document through the emit callback.
// Streaming stops early if emit returns an error.
type Streamer interface {
	Stream(r io.Reader, emit func(block string) error) error
}

// SupportedExtensions lists file extensions this service can index.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".csv":      true,
}

// ForFile returns the appropriate streamer for a filename.
func ForFile(filename string) (Streamer, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return &TextStreamer{}, nil
	case ".md", ".markdown":
		return &MarkdownStreamer{}, nil
	case ".html", ".htm":
		return &HTMLStreamer{}, nil
	case ".csv":
		return &CSVStreamer{}, nil
	case ".pdf":
		return &PDFStreamer{}, nil
	case ".docx":
		return &DOCXStreamer{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}

// IsSupported checks if a file extension is supported.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}
