package domain

import "time"

// RawItem is one parsed feed entry before sanitization. It lives only between
// the fetcher and the sanitizer.
type RawItem struct {
	Title     string
	Link      string
	Summary   string
	Source    string
	Published *time.Time
}

// Article is the sanitized, display-ready unit. Title and summary are plain
// text, the link is a validated absolute http(s) URL, and Published marshals
// as RFC 3339 or null.
type Article struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Summary   string     `json:"summary"`
	Source    string     `json:"source"`
	Published *time.Time `json:"published"`
}
