// Package feed retrieves and parses RSS/Atom feeds and renders the
// aggregated result back out as RSS and OPML.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// Fetcher performs one network retrieval plus parse per source. It is
// stateless across invocations; failures are classified into the outcome
// taxonomy instead of returned as errors so one broken source never affects
// another.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxPerSource int
}

// NewFetcher creates a feed fetcher. Timeouts come from the per-call
// deadline, not the client.
func NewFetcher(userAgent string, maxPerSource int) *Fetcher {
	if maxPerSource <= 0 {
		maxPerSource = 10
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:    userAgent,
		maxPerSource: maxPerSource,
	}
}

// Fetch retrieves and parses the source's feed bounded by deadline. No
// retries here, retry policy belongs to a higher layer.
func (f *Fetcher) Fetch(ctx context.Context, src domain.Source, deadline time.Duration) domain.FetchOutcome {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resp, err := f.get(ctx, src.URL)
	if err != nil {
		return domain.FetchOutcome{Source: src.Name, Status: classifyFetchError(err), Err: err.Error()}
	}
	defer resp.Body.Close()

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		// the body read can hit the deadline mid-stream too
		if ctx.Err() != nil {
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusTimeout, Err: ctx.Err().Error()}
		}
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusParseError, Err: fmt.Sprintf("parse feed: %v", err)}
	}

	// cap per-source items preserving the feed's own ordering; a feed that
	// parses but is empty is an empty success, not an error
	items := parsed.Items
	if len(items) > f.maxPerSource {
		items = items[:f.maxPerSource]
	}

	raw := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		raw = append(raw, convertItem(item, src.Name))
	}

	return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: raw}
}

// get issues the HTTP request with browser-like headers
func (f *Fetcher) get(ctx context.Context, feedURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp, nil
}

// convertItem maps one gofeed entry to a RawItem, preferring the parsed
// publish time and falling back to the update time
func convertItem(item *gofeed.Item, sourceName string) domain.RawItem {
	raw := domain.RawItem{
		Title:   item.Title,
		Link:    item.Link,
		Summary: item.Description,
		Source:  sourceName,
	}
	if raw.Summary == "" {
		raw.Summary = item.Content
	}

	if item.PublishedParsed != nil {
		raw.Published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		raw.Published = item.UpdatedParsed
	}

	return raw
}

// classifyFetchError maps a transport-stage error onto the outcome taxonomy
func classifyFetchError(err error) domain.FetchStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.StatusTimeout
	}
	return domain.StatusTransportError
}
