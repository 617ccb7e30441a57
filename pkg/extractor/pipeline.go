package extractor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MaxAnalysisInput bounds the text handed to the analyzer.
const MaxAnalysisInput = 4000

// Analyzer produces a short qualitative analysis of extracted content.
type Analyzer interface {
	Analyze(ctx context.Context, content, fileName, typeLabel string) (string, error)
}

type Result struct {
	ExtractedText string
	Analysis      string
	Kind          Kind
	RowCount      int
	Pages         int
	// Err is the extraction failure, if any. ExtractedText and Analysis
	// already carry a readable annotation of it.
	Err error
}

func (r Result) Processed() bool {
	return r.Err == nil
}

// Pipeline runs extraction and analysis for uploads. It never fails: any
// extraction error is turned into annotated placeholder text.
type Pipeline struct {
	extractor *Extractor
	analyzer  Analyzer
	logger    *zap.Logger
}

func NewPipeline(extractor *Extractor, analyzer Analyzer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		analyzer:  analyzer,
		logger:    logger,
	}
}

func (p *Pipeline) Process(ctx context.Context, data []byte, fileName, mimeType string) Result {
	p.logger.Debug("processing upload",
		zap.String("file", fileName),
		zap.String("mime_type", mimeType),
		zap.Int("size_bytes", len(data)),
	)

	ext, err := p.extractor.Extract(ctx, data, fileName, mimeType)
	if err != nil {
		p.logger.Error("file processing failed", zap.String("file", fileName), zap.Error(err))
		return Result{
			ExtractedText: fmt.Sprintf("Could not extract text from %s: %v", fileName, err),
			Analysis:      fmt.Sprintf("Error processing file: %v", err),
			Kind:          DetectKind(fileName, mimeType),
			Err:           err,
		}
	}

	p.logger.Debug("extracted text",
		zap.String("file", fileName),
		zap.String("kind", ext.Kind.Label()),
		zap.Int("chars", len(ext.Text)),
	)

	result := Result{
		ExtractedText: ext.Text,
		Kind:          ext.Kind,
		RowCount:      ext.RowCount,
		Pages:         ext.Pages,
	}

	if p.analyzer != nil {
		analysis, err := p.analyzer.Analyze(ctx, AnalysisInput(ext.Text), fileName, ext.Kind.Label())
		if err != nil {
			p.logger.Warn("file analysis failed", zap.String("file", fileName), zap.Error(err))
			analysis = fmt.Sprintf("Failed to analyze %s.", fileName)
		}
		result.Analysis = analysis
	}

	return result
}

// AnalysisInput returns at most MaxAnalysisInput characters of text,
// followed by "..." when it had to cut.
func AnalysisInput(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxAnalysisInput {
		return text
	}
	return string(runes[:MaxAnalysisInput]) + "..."
}
