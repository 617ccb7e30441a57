package chat

import (
	"regexp"
	"strings"
)

// Response sizes by question complexity.
const (
	SimpleMaxTokens  = 150
	MediumMaxTokens  = 400
	ComplexMaxTokens = 800
)

var (
	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(who is|what is|when|where|how much|what time|is there|do you|can i|what's)`),
		regexp.MustCompile(`(chairperson|president|secretary|treasurer|manager)`),
		regexp.MustCompile(`(phone|email|address|location|hours|rate|fee)`),
		regexp.MustCompile(`(yes|no|true|false)`),
		regexp.MustCompile(`^.{1,50}$`),
	}

	complexPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(how to|process|procedure|steps|requirements|application|compare|difference|explain|describe)`),
		regexp.MustCompile(`(loan|credit|savings|investment|account|policy|bylaw)`),
		regexp.MustCompile(`(eligibility|qualification|benefits|terms|conditions)`),
		regexp.MustCompile(`\b(and|or)\b.*\b(and|or)\b`),
	}
)

type Complexity struct {
	Simple    bool
	MaxTokens int
}

// AnalyzeComplexity sizes the answer to the question. Complex patterns win
// over simple ones; a question matching neither gets a medium answer.
func AnalyzeComplexity(question string) Complexity {
	q := strings.ToLower(question)

	if matchesAny(complexPatterns, q) {
		return Complexity{MaxTokens: ComplexMaxTokens}
	}
	if matchesAny(simplePatterns, q) {
		return Complexity{Simple: true, MaxTokens: SimpleMaxTokens}
	}
	return Complexity{MaxTokens: MediumMaxTokens}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
