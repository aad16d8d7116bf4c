package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
	"github.com/pulsepoint/pulsepoint/pkg/sanitize"
)

// fetcherFunc adapts a function to the Fetcher interface
type fetcherFunc func(ctx context.Context, src domain.Source, deadline time.Duration) domain.FetchOutcome

func (f fetcherFunc) Fetch(ctx context.Context, src domain.Source, deadline time.Duration) domain.FetchOutcome {
	return f(ctx, src, deadline)
}

func ts(day int) *time.Time {
	t := time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func registry(names ...string) []domain.Source {
	sources := make([]domain.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, domain.Source{Name: name, URL: "https://" + name + ".example.com/rss", Enabled: true})
	}
	return sources
}

func newTestAggregator(f Fetcher, cfg Config) *Aggregator {
	return New(f, sanitize.New(200, 300), cfg)
}

func TestAggregator_Ordering(t *testing.T) {
	// articles with timestamps [T3, null, T1, T2] from sources [A, B, C, D]
	stamps := map[string]*time.Time{"A": ts(3), "B": nil, "C": ts(1), "D": ts(2)}

	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		return domain.FetchOutcome{
			Source: src.Name,
			Status: domain.StatusSuccess,
			Items: []domain.RawItem{{
				Title:     "Article " + src.Name,
				Link:      "https://example.com/" + src.Name,
				Source:    src.Name,
				Published: stamps[src.Name],
			}},
		}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), registry("A", "B", "C", "D"))

	require.Len(t, result.Articles, 4)
	// descending by timestamp, nulls last
	assert.Equal(t, "Article A", result.Articles[0].Title) // T3
	assert.Equal(t, "Article D", result.Articles[1].Title) // T2
	assert.Equal(t, "Article C", result.Articles[2].Title) // T1
	assert.Equal(t, "Article B", result.Articles[3].Title) // null
}

func TestAggregator_TieBreakByRegistryOrder(t *testing.T) {
	same := ts(5)
	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		return domain.FetchOutcome{
			Source: src.Name,
			Status: domain.StatusSuccess,
			Items: []domain.RawItem{
				{Title: src.Name + "-1", Link: "https://example.com/" + src.Name + "/1", Source: src.Name, Published: same},
				{Title: src.Name + "-2", Link: "https://example.com/" + src.Name + "/2", Source: src.Name, Published: same},
			},
		}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), registry("X", "Y"))

	require.Len(t, result.Articles, 4)
	// identical timestamps: registry order, then within-source order
	titles := []string{result.Articles[0].Title, result.Articles[1].Title, result.Articles[2].Title, result.Articles[3].Title}
	assert.Equal(t, []string{"X-1", "X-2", "Y-1", "Y-2"}, titles)
}

func TestAggregator_SummaryAccountsEverySource(t *testing.T) {
	sources := registry("ok", "timeout", "broken", "garbled")
	sources = append(sources, domain.Source{Name: "off", URL: "https://off.example.com/rss", Enabled: false})

	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		switch src.Name {
		case "ok":
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: []domain.RawItem{
				{Title: "Good", Link: "https://example.com/good", Source: src.Name, Published: ts(1)},
			}}
		case "timeout":
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusTimeout, Err: "context deadline exceeded"}
		case "broken":
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusTransportError, Err: "connection refused"}
		default:
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusParseError, Err: "not a feed"}
		}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), sources)

	require.Len(t, result.Sources, 5)
	byName := map[string]domain.SourceSummary{}
	for _, s := range result.Sources {
		byName[s.Name] = s
	}
	assert.Equal(t, domain.StatusSuccess, byName["ok"].Status)
	assert.Equal(t, 1, byName["ok"].Articles)
	assert.Equal(t, domain.StatusTimeout, byName["timeout"].Status)
	assert.Equal(t, domain.StatusTransportError, byName["broken"].Status)
	assert.Equal(t, domain.StatusParseError, byName["garbled"].Status)
	assert.Equal(t, domain.StatusDisabled, byName["off"].Status)

	// failures degrade to zero articles, never to an error
	require.Len(t, result.Articles, 1)
	assert.Equal(t, 1, result.Succeeded())
}

func TestAggregator_GlobalDeadline(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		if src.Name == "hanging" {
			// ignores its per-source deadline entirely
			time.Sleep(3 * time.Second)
			return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess}
		}
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: []domain.RawItem{
			{Title: "From " + src.Name, Link: "https://example.com/" + src.Name, Source: src.Name, Published: ts(1)},
		}}
	})

	sources := registry("a", "b", "c", "d", "e", "f", "g", "h", "i")
	sources = append(sources, domain.Source{Name: "hanging", URL: "https://hanging.example.com/rss", Enabled: true})

	agg := newTestAggregator(fetcher, Config{GlobalDeadline: 300 * time.Millisecond, PerSourceTimeout: 200 * time.Millisecond})

	start := time.Now()
	result := agg.Aggregate(context.Background(), sources)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "aggregation must not wait for the hanging source")
	assert.Len(t, result.Articles, 9)

	byName := map[string]domain.SourceSummary{}
	for _, s := range result.Sources {
		byName[s.Name] = s
	}
	assert.Equal(t, domain.StatusTimeout, byName["hanging"].Status)
	assert.Equal(t, 9, result.Succeeded())
}

func TestAggregator_RejectsInvalidItems(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: []domain.RawItem{
			{Title: "Valid", Link: "https://example.com/ok", Source: src.Name, Published: ts(1)},
			{Title: "Bad link", Link: "javascript:alert(1)", Source: src.Name},
			{Title: "", Link: "https://example.com/untitled", Source: src.Name},
		}}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), registry("S"))

	require.Len(t, result.Articles, 1)
	assert.Equal(t, "Valid", result.Articles[0].Title)
	// rejected items are not counted as contributed articles
	assert.Equal(t, 1, result.Sources[0].Articles)
}

func TestAggregator_DeduplicatesByLink(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: []domain.RawItem{
			{Title: "Story via " + src.Name, Link: "https://example.com/shared", Source: src.Name, Published: ts(1)},
		}}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), registry("first", "second"))

	require.Len(t, result.Articles, 1)
	// first occurrence in registry order wins
	assert.Equal(t, "Story via first", result.Articles[0].Title)
}

func TestAggregator_TotalCap(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		items := make([]domain.RawItem, 0, 10)
		for i := 0; i < 10; i++ {
			items = append(items, domain.RawItem{
				Title:     fmt.Sprintf("%s-%d", src.Name, i),
				Link:      fmt.Sprintf("https://example.com/%s/%d", src.Name, i),
				Source:    src.Name,
				Published: ts(i + 1),
			})
		}
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess, Items: items}
	})

	agg := newTestAggregator(fetcher, Config{MaxTotal: 15})
	result := agg.Aggregate(context.Background(), registry("a", "b", "c"))

	assert.Len(t, result.Articles, 15)
	// cap applies after sorting, so the newest articles survive
	assert.Equal(t, ts(10).UTC(), result.Articles[0].Published.UTC())
}

func TestAggregator_ContextPassedToFetches(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, src domain.Source, _ time.Duration) domain.FetchOutcome {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "fetch context must carry the global deadline")
		return domain.FetchOutcome{Source: src.Name, Status: domain.StatusSuccess}
	})

	agg := newTestAggregator(fetcher, Config{})
	result := agg.Aggregate(context.Background(), registry("only"))
	assert.Equal(t, 1, result.Succeeded())
}
