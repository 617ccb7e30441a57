package extractor

import (
	"path/filepath"
	"strings"
)

// Kind is the closed set of document kinds the extractor understands.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindCSV
	KindExcel
	KindPDF
)

// Label is the normalized type label handed to the analyzer.
func (k Kind) Label() string {
	switch k {
	case KindText:
		return "text"
	case KindCSV:
		return "csv"
	case KindExcel:
		return "excel"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

func (k Kind) String() string {
	return k.Label()
}

func isCSVMime(mime string) bool {
	switch mime {
	case "text/csv", "application/csv", "text/comma-separated-values":
		return true
	}
	return false
}

func isExcelMime(mime string) bool {
	switch mime {
	case "application/vnd.ms-excel", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return false
}

// DetectKind resolves a document kind from the declared MIME type first and
// the file extension second. Within each, the order is text/JSON, CSV,
// Excel, PDF. CSV MIME types are matched before the generic text/* rule.
func DetectKind(fileName, mimeType string) Kind {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	// Browsers commonly label .csv uploads as plain text or as Excel.
	if ext == ".csv" && (mime == "text/plain" || mime == "application/vnd.ms-excel") {
		return KindCSV
	}

	switch {
	case mime == "application/json" || (strings.HasPrefix(mime, "text/") && !isCSVMime(mime)):
		return KindText
	case isCSVMime(mime):
		return KindCSV
	case isExcelMime(mime):
		return KindExcel
	case mime == "application/pdf":
		return KindPDF
	}

	switch ext {
	case ".txt", ".md", ".json":
		return KindText
	case ".csv":
		return KindCSV
	case ".xlsx", ".xls":
		return KindExcel
	case ".pdf":
		return KindPDF
	}

	return KindUnsupported
}
