package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/xhad/saccoassist/internal/models"
)

type ProcessorConfig struct {
	ChunkSize       int // runes
	ChunkOverlap    int // runes carried into the next chunk
	MinChunkLength  int // shorter chunks are joined to a neighbour
	RemoveStopwords bool
	CustomStopwords []string
	Lowercase       bool
}

// Processor splits extracted document text into overlapping chunks for
// embedding.
type Processor struct {
	config    ProcessorConfig
	stopwords map[string]struct{}
	splitter  textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	stopwords := make(map[string]struct{})
	for _, w := range append(getStopwords(), config.CustomStopwords...) {
		stopwords[strings.ToLower(w)] = struct{}{}
	}

	return Processor{
		config:    config,
		stopwords: stopwords,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithSeparators([]string{". ", " ", ""}),
		),
	}
}

// ChunkDocument returns the chunks of doc's extracted text, indexed from
// zero and without embeddings.
func (p *Processor) ChunkDocument(doc models.UploadedDocument) []models.DocumentChunk {
	texts := p.Chunk(doc.Text())
	chunks := make([]models.DocumentChunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, models.DocumentChunk{
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
		})
	}
	return chunks
}

// Chunk cleans text and splits it on sentence boundaries. Text too short
// for a full chunk still yields one chunk so that small documents remain
// searchable.
func (p *Processor) Chunk(text string) []string {
	clean := p.cleanText(text)
	if clean == "" {
		return nil
	}
	chunks := p.splitIntoChunks(clean)
	if len(chunks) == 0 {
		chunks = []string{clean}
	}
	return chunks
}

func (p *Processor) cleanText(text string) string {
	if p.config.Lowercase {
		text = strings.ToLower(text)
	}

	// Replace multiple spaces with single space
	text = strings.Join(strings.Fields(text), " ")

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

// splitIntoChunks packs sentences into chunks of at most ChunkSize runes.
// Sentences longer than that fall back to word and then rune splits, so
// row-shaped text without sentence breaks is still bounded. A chunk shorter
// than MinChunkLength is joined to its predecessor when both fit.
func (p *Processor) splitIntoChunks(text string) []string {
	chunks, err := p.splitter.SplitText(text)
	if err != nil {
		return nil
	}

	var out []string
	for _, c := range chunks {
		if n := len(out); n > 0 {
			prev, cur := utf8.RuneCountInString(out[n-1]), utf8.RuneCountInString(c)
			short := prev < p.config.MinChunkLength || cur < p.config.MinChunkLength
			if short && prev+1+cur <= p.config.ChunkSize {
				out[n-1] += " " + c
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (p *Processor) removeStopwords(text string) string {
	words := strings.Fields(text)
	filtered := words[:0]
	for _, word := range words {
		if _, ok := p.stopwords[strings.ToLower(word)]; !ok {
			filtered = append(filtered, word)
		}
	}
	return strings.Join(filtered, " ")
}

// Common English stopwords
func getStopwords() []string {
	return []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with",
	}
}
