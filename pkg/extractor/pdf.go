package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

func (e *Extractor) extractPDF(data []byte, fileName string) (*Extraction, error) {
	if int64(len(data)) > e.config.LargePDFBytes {
		e.logger.Warn("large PDF, extraction limited to the first pages",
			zap.String("file", fileName),
			zap.Int("size_bytes", len(data)),
			zap.Int("max_pages", e.config.MaxPDFPages),
		)
	}

	reader, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	pages := reader.NumPage()
	if pages > e.config.MaxPDFPages {
		pages = e.config.MaxPDFPages
	}

	text, err := e.joinPages(pages, func(n int) (string, error) {
		return pageText(reader, n)
	}, fileName)
	if err != nil {
		return nil, err
	}

	return &Extraction{Kind: KindPDF, Text: text, Pages: pages}, nil
}

// joinPages renders pages 1..n under page headers. Pages that fail are
// logged and skipped. Only page text counts toward MinPDFText.
func (e *Extractor) joinPages(n int, page func(int) (string, error), fileName string) (string, error) {
	var b strings.Builder
	var readable int
	for i := 1; i <= n; i++ {
		text, err := page(i)
		if err != nil {
			e.logger.Warn("skipping unreadable PDF page",
				zap.String("file", fileName),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if text != "" {
			readable += len(text)
			fmt.Fprintf(&b, "\n\n=== Page %d ===\n%s", i, text)
		}
	}

	if readable < e.config.MinPDFText {
		return "", ErrNoReadableText
	}
	return strings.TrimSpace(b.String()), nil
}

func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()
	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return reader, nil
}

// pageText joins the text runs of page n (1-based) with single spaces and
// collapses whitespace.
func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	var parts []string
	for _, row := range rows {
		var line strings.Builder
		for _, word := range row.Content {
			line.WriteString(word.S)
		}
		parts = append(parts, line.String())
	}

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}
