// Package aggregator fans out one fetch per enabled source, joins the
// outcomes under a global deadline, and produces a single sanitized, sorted,
// capped article list with a per-source outcome summary.
package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// Fetcher retrieves and parses one source's feed
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source, deadline time.Duration) domain.FetchOutcome
}

// Sanitizer normalizes raw feed items into display-ready articles
type Sanitizer interface {
	Normalize(raw domain.RawItem) (domain.Article, error)
}

// Config holds aggregation parameters
type Config struct {
	PerSourceTimeout time.Duration
	GlobalDeadline   time.Duration
	MaxTotal         int
}

// Aggregator coordinates concurrent fetches into one AggregateResult
type Aggregator struct {
	fetcher          Fetcher
	sanitizer        Sanitizer
	health           *HealthTracker
	perSourceTimeout time.Duration
	globalDeadline   time.Duration
	maxTotal         int
}

// New creates an aggregator with the provided fetcher and sanitizer
func New(fetcher Fetcher, sanitizer Sanitizer, cfg Config) *Aggregator {
	if cfg.PerSourceTimeout == 0 {
		cfg.PerSourceTimeout = 10 * time.Second
	}
	if cfg.GlobalDeadline == 0 {
		cfg.GlobalDeadline = 15 * time.Second
	}
	if cfg.MaxTotal == 0 {
		cfg.MaxTotal = 100
	}

	return &Aggregator{
		fetcher:          fetcher,
		sanitizer:        sanitizer,
		health:           NewHealthTracker(0, 0),
		perSourceTimeout: cfg.PerSourceTimeout,
		globalDeadline:   cfg.GlobalDeadline,
		maxTotal:         cfg.MaxTotal,
	}
}

type indexedOutcome struct {
	idx     int
	outcome domain.FetchOutcome
}

// Aggregate runs one full aggregation cycle over the registry. Source-level
// failures are recorded in the summary, never raised; total latency is
// bounded by the global deadline.
func (a *Aggregator) Aggregate(ctx context.Context, sources []domain.Source) *domain.AggregateResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.globalDeadline)
	defer cancel()

	outcomes := make([]*domain.FetchOutcome, len(sources))
	pending := 0

	// buffered to the fan-out width so abandoned fetches never block on send
	results := make(chan indexedOutcome, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		if !src.Enabled {
			outcomes[i] = &domain.FetchOutcome{Source: src.Name, Status: domain.StatusDisabled}
			continue
		}
		pending++
		deadline := min(a.health.Deadline(src.URL, a.perSourceTimeout), a.globalDeadline)
		g.Go(func() error {
			results <- indexedOutcome{idx: i, outcome: a.fetcher.Fetch(ctx, src, deadline)}
			return nil
		})
	}

	// close the channel once every fetch reported; sends are buffered so this
	// never races with an abandoned fetch finishing late
	go func() {
		_ = g.Wait()
		close(results)
	}()

	// join with deadline: collect until every fetch reported or the global
	// ceiling hit, whichever comes first
	expired := false
	for pending > 0 && !expired {
		select {
		case r := <-results:
			outcomes[r.idx] = &r.outcome
			pending--
		case <-ctx.Done():
			expired = true
		}
	}

	// drain whatever landed right at the ceiling, abandon the rest as
	// timeouts; late completions go to the buffered channel and are discarded
	for pending > 0 {
		select {
		case r := <-results:
			outcomes[r.idx] = &r.outcome
			pending--
		default:
			pending = 0
		}
	}
	for i, src := range sources {
		if outcomes[i] == nil {
			outcomes[i] = &domain.FetchOutcome{Source: src.Name, Status: domain.StatusTimeout, Err: "abandoned at global deadline"}
		}
	}
	cancel() // release any fetch still in flight

	result := a.merge(sources, outcomes)

	lgr.Printf("[INFO] aggregated %d articles from %d/%d sources in %v",
		len(result.Articles), result.Succeeded(), len(sources), time.Since(start).Round(time.Millisecond))
	return result
}

// merge sanitizes successful outcomes, drops duplicates and invalid items,
// sorts and caps the final list
func (a *Aggregator) merge(sources []domain.Source, outcomes []*domain.FetchOutcome) *domain.AggregateResult {
	var articles []domain.Article
	summaries := make([]domain.SourceSummary, len(sources))
	rejected := 0
	seen := map[string]struct{}{}

	for i, outcome := range outcomes {
		accepted := 0
		for _, raw := range outcome.Items {
			article, err := a.sanitizer.Normalize(raw)
			if err != nil {
				rejected++
				continue
			}
			if _, dup := seen[article.Link]; dup {
				continue
			}
			seen[article.Link] = struct{}{}
			articles = append(articles, article)
			accepted++
		}
		summaries[i] = domain.SourceSummary{
			Name:     outcome.Source,
			Status:   outcome.Status,
			Articles: accepted,
			Error:    outcome.Err,
		}
		a.health.Record(sources[i].URL, outcome.Status)
	}

	if rejected > 0 {
		lgr.Printf("[DEBUG] rejected %d invalid items", rejected)
	}

	// published desc with nils last; the stable sort keeps registry order and
	// within-source order as the tie-break, making the output deterministic
	sort.SliceStable(articles, func(i, j int) bool {
		pi, pj := articles[i].Published, articles[j].Published
		switch {
		case pi != nil && pj != nil:
			return pi.After(*pj)
		case pi != nil:
			return true
		default:
			return false
		}
	})

	if len(articles) > a.maxTotal {
		articles = articles[:a.maxTotal]
	}

	return &domain.AggregateResult{
		Articles:    articles,
		Sources:     summaries,
		GeneratedAt: time.Now().UTC(),
	}
}
