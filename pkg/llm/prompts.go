package llm

import (
	"context"
	"fmt"
)

const (
	analysisSystemPrompt = "You are an assistant for SOYOSOYO SACCO. Provide a concise summary (50-80 words) highlighting key SACCO information."

	summarySystemPrompt = "You summarize SACCO documents. Summarize this document in 200-300 words. " +
		"Keep only key policies, figures and rules that members and staff need. Do not add information that is not in the document."

	// Sampling temperature for analysis and summaries, kept low so cached
	// output is stable.
	lowTemperature = 0.1
)

// Analyze implements the upload analysis used by the extraction pipeline.
func (ce *ChatEngine) Analyze(ctx context.Context, content, fileName, typeLabel string) (string, error) {
	user := fmt.Sprintf("File: %s (%s)\n\n%s", fileName, typeLabel, content)
	return ce.Complete(ctx, analysisSystemPrompt, user, ce.config.AnalysisMaxTokens, lowTemperature)
}

// Summarize produces the cacheable summary of one document.
func (ce *ChatEngine) Summarize(ctx context.Context, content string) (string, error) {
	return ce.Complete(ctx, summarySystemPrompt, content, ce.config.SummaryMaxTokens, lowTemperature)
}
