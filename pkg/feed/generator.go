package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// Generator renders the aggregated result back out as a single RSS feed and
// the source registry as OPML
type Generator struct {
	baseURL string
}

// NewGenerator creates a new feed generator
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GenerateRSS creates an RSS 2.0 feed from an aggregation result
func (g *Generator) GenerateRSS(result *domain.AggregateResult) (string, error) {
	rssItems := make([]*RSSItem, 0, len(result.Articles))
	for _, article := range result.Articles {
		rssItems = append(rssItems, convertToRSSItem(article))
	}

	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &RSSChannel{
			Title:       "PulsePoint - Aggregated News",
			Link:        g.baseURL + "/",
			Description: fmt.Sprintf("Latest headlines from %d sources", len(result.Sources)),
			AtomLink:    &AtomLink{Href: g.baseURL + "/rss", Rel: "self", Type: "application/rss+xml"},
			// the build date is the aggregation time, not the render time
			LastBuildDate: result.GeneratedAt.Format(time.RFC1123Z),
			Items:         rssItems,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}

// convertToRSSItem converts a sanitized article to an RSS item
func convertToRSSItem(article domain.Article) *RSSItem {
	item := &RSSItem{
		Title:       article.Title,
		Link:        article.Link,
		GUID:        article.Link,
		Description: article.Summary,
		Source:      article.Source,
	}
	if article.Published != nil {
		item.PubDate = article.Published.Format(time.RFC1123Z)
	}
	return item
}

// GenerateOPML creates an OPML file with the registered sources
func (g *Generator) GenerateOPML(sources []domain.Source) (string, error) {
	type outline struct {
		XMLName xml.Name `xml:"outline"`
		Text    string   `xml:"text,attr"`
		Title   string   `xml:"title,attr"`
		Type    string   `xml:"type,attr"`
		XMLUrl  string   `xml:"xmlUrl,attr"`
	}

	type body struct {
		XMLName  xml.Name  `xml:"body"`
		Outlines []outline `xml:"outline"`
	}

	type head struct {
		XMLName     xml.Name `xml:"head"`
		Title       string   `xml:"title"`
		DateCreated string   `xml:"dateCreated"`
	}

	type opml struct {
		XMLName xml.Name `xml:"opml"`
		Version string   `xml:"version,attr"`
		Head    head     `xml:"head"`
		Body    body     `xml:"body"`
	}

	// disabled sources stay out of the export
	outlines := make([]outline, 0, len(sources))
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		outlines = append(outlines, outline{
			Text:   src.Name,
			Title:  src.Name,
			Type:   "rss",
			XMLUrl: src.URL,
		})
	}

	doc := opml{
		Version: "2.0",
		Head: head{
			Title:       "PulsePoint Source Subscriptions",
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
		Body: body{
			Outlines: outlines,
		},
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal OPML: %w", err)
	}

	return xml.Header + string(output), nil
}
