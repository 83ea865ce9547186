package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextStreamer handles plain text files, one block per non-blank line.
type TextStreamer struct{}

func (p *TextStreamer) Stream(r io.Reader, emit func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
