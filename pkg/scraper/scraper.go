package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultURL       = "https://www.soyosoyosacco.com/"
	DefaultUserAgent = "SOYOSOYO-SACCO-Assistant/1.0 (Content-Update-Bot)"

	maxBodyBytes = 10 << 20
)

type ScraperConfig struct {
	URL         string
	UserAgent   string
	RateLimit   float64 // requests per second
	Timeout     time.Duration
	Readability bool          // run go-readability before the selector pass
	Interval    time.Duration // period used by Run
}

// Scraper fetches one page and reduces it to plain text.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config ScraperConfig, logger *zap.Logger) (*Scraper, error) {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1 // one request per second by default
	}
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("invalid website url: %w", err)
	}

	return &Scraper{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}, nil
}

func (s *Scraper) Config() ScraperConfig {
	return s.config
}

// Fetch downloads urlStr and returns the raw body and its extracted text.
// Any non-2xx status is an error.
func (s *Scraper) Fetch(ctx context.Context, urlStr string) (raw, text string, err error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}
	raw = string(body)

	if !isHTML(resp.Header.Get("Content-Type"), raw) {
		return raw, raw, nil
	}
	text, err = s.htmlText(raw, resp.Request.URL)
	if err != nil {
		return "", "", err
	}
	return raw, text, nil
}

func isHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// htmlText prefers the readability article when enabled and non-empty,
// then picks the main content area with goquery.
func (s *Scraper) htmlText(raw string, pageURL *url.URL) (string, error) {
	source := raw
	if s.config.Readability {
		parser := readability.NewParser()
		article, err := parser.Parse(strings.NewReader(raw), pageURL)
		if err != nil {
			s.logger.Debug("readability failed, using full page", zap.Error(err))
		} else if strings.TrimSpace(article.Content) != "" {
			source = article.Content
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return extractMainContent(doc), nil
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}
	if strings.TrimSpace(content) == "" {
		content = doc.Text()
	}
	return content
}
