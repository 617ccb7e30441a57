package scraper

import (
	"regexp"
	"strings"
)

var (
	boilerplateRe = regexp.MustCompile(`(?i)Skip to main content|Skip to navigation|Report abuse|Google Sites|Cookie Policy|Accept Cookies`)
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// Normalize collapses whitespace, strips site boilerplate, replaces
// markdown images with [Image] and markdown links with their text.
func Normalize(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	content = boilerplateRe.ReplaceAllString(content, "")
	content = imageRe.ReplaceAllString(content, "[Image]")
	content = linkRe.ReplaceAllString(content, "$1")
	return strings.Join(strings.Fields(content), " ")
}
