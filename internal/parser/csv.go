package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVStreamer handles CSV files, one block per batch of rows rendered as
// header-labeled text.
type CSVStreamer struct{}

const csvBatchSize = 20

func (p *CSVStreamer) Stream(r io.Reader, emit func(string) error) error {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}
		if err := emit(text.String()); err != nil {
			return err
		}
	}
	return nil
}
