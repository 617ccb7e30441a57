package models

import "time"

type WebsiteSnapshot struct {
	URL              string
	RawContent       string
	ProcessedContent string
	ContentHash      string
	LastUpdated      time.Time
}
