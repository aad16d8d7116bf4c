// Package sanitize turns raw feed entries into display-ready articles.
// All markup is stripped, links are validated, summaries are truncated.
// Normalize is a pure function and idempotent on already-clean input.
package sanitize

import (
	"errors"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// rejection reasons, items rejected here are counted by the aggregator but
// never surfaced as user-facing errors
var (
	ErrMissingTitle = errors.New("item has no title")
	ErrInvalidLink  = errors.New("item link is not an absolute http(s) URL")
)

const ellipsis = "..."

// Sanitizer normalizes RawItems into Articles
type Sanitizer struct {
	policy     *bluemonday.Policy
	maxTitle   int
	maxSummary int
}

// New creates a sanitizer with the given title and summary length limits
func New(maxTitle, maxSummary int) *Sanitizer {
	if maxTitle <= 0 {
		maxTitle = 200
	}
	if maxSummary <= 0 {
		maxSummary = 300
	}
	return &Sanitizer{
		policy:     bluemonday.StrictPolicy(),
		maxTitle:   maxTitle,
		maxSummary: maxSummary,
	}
}

// Normalize converts a raw feed entry into a display-ready article or rejects
// it. Rejection is per-item: a bad entry never fails the whole fetch.
func (s *Sanitizer) Normalize(raw domain.RawItem) (domain.Article, error) {
	title := s.strip(raw.Title)
	if title == "" {
		return domain.Article{}, ErrMissingTitle
	}

	link, err := validateLink(raw.Link)
	if err != nil {
		return domain.Article{}, err
	}

	article := domain.Article{
		Title:   truncate(title, s.maxTitle),
		Link:    link,
		Summary: truncate(s.strip(raw.Summary), s.maxSummary),
		Source:  s.strip(raw.Source),
	}

	// nil published is a valid sortable-last state, not an error
	if raw.Published != nil {
		utc := raw.Published.UTC()
		article.Published = &utc
	}

	return article, nil
}

// strip removes all markup and collapses whitespace, leaving plain text.
// bluemonday drops script/style content entirely and escapes entities, the
// unescape after it returns readable text.
func (s *Sanitizer) strip(text string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(text))
	return strings.Join(strings.Fields(cleaned), " ")
}

// validateLink accepts only absolute http(s) URLs, anything else
// (javascript:, data:, relative paths) rejects the item
func validateLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrInvalidLink
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", ErrInvalidLink
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidLink
	}
	if u.Host == "" {
		return "", ErrInvalidLink
	}
	return link, nil
}

// truncate cuts text to maxLen runes, backing up to the previous word
// boundary and appending an ellipsis marker
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	cut := string(runes[:maxLen-len(ellipsis)])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + ellipsis
}
