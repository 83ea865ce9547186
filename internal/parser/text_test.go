package parser

import (
	"strings"
	"testing"
)

func collect(t *testing.T, s Streamer, input string) []string {
	t.Helper()
	var blocks []string
	err := s.Stream(strings.NewReader(input), func(block string) error {
		blocks = append(blocks, block)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return blocks
}

func TestTextStreamer_SkipsBlankLines(t *testing.T) {
	input := "first line\n\n  \nsecond line\nthird line\n"
	blocks := collect(t, &TextStreamer{}, input)

	want := []string{"first line", "second line", "third line"}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(blocks))
	}
	for i, w := range want {
		if blocks[i] != w {
			t.Errorf("block[%d]: expected %q, got %q", i, w, blocks[i])
		}
	}
}

func TestTextStreamer_EmptyInput(t *testing.T) {
	blocks := collect(t, &TextStreamer{}, "")
	if len(blocks) != 0 {
		t.Errorf("expected 0 blocks for empty input, got %d", len(blocks))
	}
}

func TestForFile_Dispatch(t *testing.T) {
	cases := []struct {
		filename  string
		supported bool
	}{
		{"doc.pdf", true},
		{"doc.md", true},
		{"doc.markdown", true},
		{"doc.txt", true},
		{"doc.html", true},
		{"doc.docx", true},
		{"doc.csv", true},
		{"doc.xlsx", false},
		{"doc", false},
	}
	for _, tc := range cases {
		_, err := ForFile(tc.filename)
		if tc.supported && err != nil {
			t.Errorf("%s: expected streamer, got error %v", tc.filename, err)
		}
		if !tc.supported && err == nil {
			t.Errorf("%s: expected error for unsupported extension", tc.filename)
		}
		if IsSupported(tc.filename) != tc.supported {
			t.Errorf("%s: IsSupported mismatch", tc.filename)
		}
	}
}
