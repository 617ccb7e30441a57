package extractor

import (
	"encoding/csv"
	"fmt"
	"strings"
)

const utf8BOM = "\uFEFF"

func decodeText(data []byte) string {
	s := strings.ToValidUTF8(string(data), "\uFFFD")
	return strings.TrimPrefix(s, utf8BOM)
}

func extractText(data []byte) *Extraction {
	return &Extraction{Kind: KindText, Text: decodeText(data)}
}

// extractCSV keeps the raw body and prepends a header with the number of
// data rows, i.e. non-blank lines excluding the header line.
func extractCSV(data []byte, fileName string) *Extraction {
	body := decodeText(data)

	lines := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	dataRows := lines - 1
	if dataRows < 0 {
		dataRows = 0
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		rows = nil
	}

	return &Extraction{
		Kind:     KindCSV,
		Text:     fmt.Sprintf("CSV File: %s\nTotal Rows: %d\n\n%s", fileName, dataRows, body),
		Rows:     rows,
		RowCount: dataRows,
	}
}
