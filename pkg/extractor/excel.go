package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// cellDelimiter separates cells in the flat rendering. It is not a comma
// so embedded commas stay unambiguous.
const cellDelimiter = " | "

type sheet struct {
	name string
	rows [][]string
}

// extractExcel picks the reader from the content: OOXML workbooks are zip
// archives whatever their extension says.
func extractExcel(data []byte) (*Extraction, error) {
	var (
		sheets []sheet
		err    error
	)
	if isZip(data) {
		sheets, err = readXLSX(data)
	} else {
		sheets, err = readXLS(data)
	}
	if err != nil {
		return nil, err
	}

	var (
		b        strings.Builder
		all      [][]string
		dataRows int
	)
	for _, s := range sheets {
		rows := nonEmptyRows(s.rows)
		count := len(rows) - 1
		if count < 0 {
			count = 0
		}
		dataRows += count

		fmt.Fprintf(&b, "=== Sheet: %s (%d rows) ===\n", s.name, count)
		for _, row := range rows {
			b.WriteString(strings.Join(row, cellDelimiter))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		all = append(all, rows...)
	}

	return &Extraction{
		Kind:     KindExcel,
		Text:     strings.TrimRight(b.String(), "\n"),
		Rows:     all,
		RowCount: dataRows,
	}, nil
}

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		sheets = append(sheets, sheet{name: name, rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) (sheets []sheet, err error) {
	// The xls reader panics on some malformed records.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := xlsRow(ws, r)
			if row == nil {
				continue
			}
			var cells []string
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, sheet{name: ws.Name, rows: rows})
	}
	return sheets, nil
}

// xlsRow returns nil for rows missing from the sheet.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func nonEmptyRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
