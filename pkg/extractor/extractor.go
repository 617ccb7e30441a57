package extractor

import (
	"context"

	"go.uber.org/zap"
)

type ExtractorConfig struct {
	MaxPDFPages   int   // pages parsed per PDF
	LargePDFBytes int64 // size above which a warning is logged
	MinPDFText    int   // below this many characters a PDF is rejected
	Workers       int   // parsing pool size, defaults to NumCPU
}

// Extraction is the normalized text of one document. Rows is an optional
// row-major view for CSV and Excel; Text is authoritative.
type Extraction struct {
	Kind     Kind
	Text     string
	Rows     [][]string
	RowCount int
	Pages    int
}

type Extractor struct {
	config ExtractorConfig
	pool   *Pool
	logger *zap.Logger
}

func NewWithConfig(config ExtractorConfig, logger *zap.Logger) (*Extractor, error) {
	if config.MaxPDFPages == 0 {
		config.MaxPDFPages = 10
	}
	if config.LargePDFBytes == 0 {
		config.LargePDFBytes = 4 * 1024 * 1024
	}
	if config.MinPDFText == 0 {
		config.MinPDFText = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := NewPool(config.Workers)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		config: config,
		pool:   pool,
		logger: logger,
	}, nil
}

// Extract converts raw file bytes into text. PDF and Excel parsing run on
// the worker pool; text and CSV are decoded inline.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName, mimeType string) (*Extraction, error) {
	kind := DetectKind(fileName, mimeType)

	switch kind {
	case KindText:
		return extractText(data), nil
	case KindCSV:
		return extractCSV(data, fileName), nil
	case KindExcel:
		return e.offload(ctx, func() (*Extraction, error) {
			return extractExcel(data)
		})
	case KindPDF:
		return e.offload(ctx, func() (*Extraction, error) {
			return e.extractPDF(data, fileName)
		})
	default:
		return nil, &UnsupportedTypeError{MimeType: mimeType, FileName: fileName}
	}
}

func (e *Extractor) offload(ctx context.Context, fn func() (*Extraction, error)) (*Extraction, error) {
	var (
		out *Extraction
		err error
	)
	if perr := e.pool.Do(ctx, func() { out, err = fn() }); perr != nil {
		return nil, perr
	}
	return out, err
}

func (e *Extractor) Close() {
	e.pool.Release()
}
