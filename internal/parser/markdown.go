package parser

import (
	"bufio"
	"io"
	"strings"
)

// MarkdownStreamer handles Markdown files, one block per heading section.
// Text before the first heading forms its own block.
type MarkdownStreamer struct{}

func (p *MarkdownStreamer) Stream(r io.Reader, emit func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buffer []string
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		block := strings.Join(buffer, "\n")
		buffer = buffer[:0]
		if strings.TrimSpace(block) == "" {
			return nil
		}
		return emit(block)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") && len(buffer) > 0 {
			if err := flush(); err != nil {
				return err
			}
		}
		buffer = append(buffer, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}
