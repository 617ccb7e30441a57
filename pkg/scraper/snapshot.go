package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/pkg/hasher"
)

const (
	NotScrapedMessage = "No website content has been scraped yet. The assistant will rely on uploaded documents and general SACCO knowledge."

	DefaultSnapshotLength = 5000

	truncatedMarker = "... [Content truncated for efficiency]"
)

type RefreshResult struct {
	Success        bool   `json:"success"`
	ContentUpdated bool   `json:"contentUpdated"`
	Message        string `json:"message"`
	Content        string `json:"content,omitempty"`
}

type Status struct {
	HasContent    bool       `json:"hasContent"`
	LastUpdated   *time.Time `json:"lastUpdated"`
	ContentLength int        `json:"contentLength"`
	URL           string     `json:"url,omitempty"`
}

// section is a known part of the site picked out when the full text is
// over the length limit: the marker plus up to span following characters.
type section struct {
	label  string
	marker *regexp.Regexp
	span   int
}

var sections = []section{
	{"ABOUT", regexp.MustCompile(`(?i)The Evolution of Soyosoyo SACCO`), 1500},
	{"MISSION", regexp.MustCompile(`(?i)To continually empower members`), 500},
	{"PRODUCTS", regexp.MustCompile(`(?i)OUR PRODUCTS`), 2000},
	{"LOANS", regexp.MustCompile(`(?i)Members can borrow up to three times their savings`), 300},
}

// Cache holds the latest website snapshot. Readers load it atomically and
// always see a whole snapshot; Refresh is the only writer.
type Cache struct {
	scraper  *Scraper
	logger   *zap.Logger
	mu       sync.Mutex
	snapshot atomic.Pointer[models.WebsiteSnapshot]
	now      func() time.Time
}

func NewCache(scraper *Scraper, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		scraper: scraper,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Refresh fetches urlStr (the configured URL when empty) and replaces the
// snapshot when its content hash changed. Failures leave the current
// snapshot in place. Refreshes run one at a time, so a slow fetch never
// overwrites a snapshot taken after it started.
func (c *Cache) Refresh(ctx context.Context, urlStr string) RefreshResult {
	if urlStr == "" {
		urlStr = c.scraper.config.URL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("refreshing website content", zap.String("url", urlStr))
	raw, text, err := c.scraper.Fetch(ctx, urlStr)
	if err != nil {
		c.logger.Warn("website refresh failed", zap.String("url", urlStr), zap.Error(err))
		return RefreshResult{Message: fmt.Sprintf("Failed to scrape content: %v", err)}
	}

	processed := Normalize(text)
	hash := hasher.Weak(processed)

	if current := c.snapshot.Load(); current != nil && current.ContentHash == hash {
		c.logger.Info("website content unchanged", zap.Time("last_updated", current.LastUpdated))
		return RefreshResult{
			Success: true,
			Message: fmt.Sprintf("Content is up to date (last checked: %s)", formatTime(current.LastUpdated)),
			Content: current.ProcessedContent,
		}
	}

	c.snapshot.Store(&models.WebsiteSnapshot{
		URL:              urlStr,
		RawContent:       raw,
		ProcessedContent: processed,
		ContentHash:      hash,
		LastUpdated:      c.now(),
	})
	c.logger.Info("website content updated", zap.String("url", urlStr), zap.Int("length", len(processed)))

	return RefreshResult{
		Success:        true,
		ContentUpdated: true,
		Message:        fmt.Sprintf("Content updated successfully from %s", urlStr),
		Content:        processed,
	}
}

// Snapshot returns the website text bounded by maxLength characters and
// wrapped with its source and timestamp. maxLength <= 0 means
// DefaultSnapshotLength.
func (c *Cache) Snapshot(maxLength int) string {
	snap := c.snapshot.Load()
	if snap == nil {
		return NotScrapedMessage
	}
	if maxLength <= 0 {
		maxLength = DefaultSnapshotLength
	}

	content := snap.ProcessedContent
	if runeLen(content) > maxLength {
		content = keySections(content)
		if content == "" {
			content = snap.ProcessedContent
		}
		if runeLen(content) > maxLength {
			content = string([]rune(content)[:maxLength]) + truncatedMarker
		}
	}

	return fmt.Sprintf("SOYOSOYO SACCO Website Content (Last Updated: %s):\nSource: %s\n\n%s\n\n"+
		"Note: This information is from the official SOYOSOYO SACCO website and is automatically updated.",
		formatTime(snap.LastUpdated), snap.URL, content)
}

func keySections(content string) string {
	var parts []string
	for _, s := range sections {
		loc := s.marker.FindStringIndex(content)
		if loc == nil {
			continue
		}
		rest := []rune(content[loc[1]:])
		if len(rest) > s.span {
			rest = rest[:s.span]
		}
		parts = append(parts, s.label+": "+content[loc[0]:loc[1]]+string(rest))
	}
	return strings.Join(parts, "\n\n")
}

func (c *Cache) Status() Status {
	snap := c.snapshot.Load()
	if snap == nil {
		return Status{}
	}
	updated := snap.LastUpdated
	return Status{
		HasContent:    true,
		LastUpdated:   &updated,
		ContentLength: runeLen(snap.ProcessedContent),
		URL:           snap.URL,
	}
}

// Run refreshes immediately and then every interval until ctx is done.
// Failures are logged. interval <= 0 uses the scraper's configured one.
func (c *Cache) Run(ctx context.Context, urlStr string, interval time.Duration) {
	if interval <= 0 {
		interval = c.scraper.config.Interval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if res := c.Refresh(ctx, urlStr); !res.Success {
			c.logger.Warn("scheduled website refresh failed", zap.String("message", res.Message))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
