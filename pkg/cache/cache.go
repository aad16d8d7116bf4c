// Package cache holds the last good aggregation result with TTL and
// stale-while-revalidate semantics. Entry replacement is atomic; readers
// never observe a half-built result, and a failed refresh never evicts a
// previously-good entry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// ErrEmpty is returned when no aggregation has ever succeeded and the
// current synchronous attempt failed as well
var ErrEmpty = errors.New("no aggregation result available")

// Refresher produces a new aggregation result. It returns an error only when
// the cycle produced nothing usable (empty registry or zero sources
// succeeding); partial failure is a valid result.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.AggregateResult, error)
}

// Cache is the single piece of mutable shared state in the pipeline
type Cache struct {
	refresher   Refresher
	ttl         time.Duration
	staleWindow time.Duration

	mu         sync.Mutex
	entry      *entry
	refreshing bool

	now func() time.Time // injectable for tests
}

type entry struct {
	result     *domain.AggregateResult
	expiresAt  time.Time
	staleUntil time.Time
}

// New creates a cache. The stale window is measured from entry creation and
// must be longer than the TTL.
func New(refresher Refresher, ttl, staleWindow time.Duration) *Cache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if staleWindow <= ttl {
		staleWindow = ttl * 6
	}
	return &Cache{
		refresher:   refresher,
		ttl:         ttl,
		staleWindow: staleWindow,
		now:         time.Now,
	}
}

// Get returns the current aggregation result, refreshing per the state
// machine: fresh entries are served directly, stale entries are served
// immediately while exactly one background refresh runs, and an absent or
// expired entry blocks the caller on a synchronous refresh.
func (c *Cache) Get(ctx context.Context) (*domain.AggregateResult, error) {
	now := c.now()

	c.mu.Lock()
	e := c.entry
	switch {
	case e != nil && now.Before(e.expiresAt):
		c.mu.Unlock()
		return e.result, nil

	case e != nil && now.Before(e.staleUntil):
		// the gate covers only the start-refresh decision, never the refresh
		start := !c.refreshing
		if start {
			c.refreshing = true
		}
		c.mu.Unlock()

		if start {
			// detached from the request so client disconnects don't kill it;
			// the refresher bounds each attempt with its own deadline
			go c.backgroundRefresh(context.WithoutCancel(ctx))
		}
		return e.result, nil
	}
	c.mu.Unlock()

	// empty, or so old it is treated as empty: the caller waits
	res, err := c.refresher.Refresh(ctx)
	if err != nil {
		if e != nil {
			// never regress to "no data" while any previous result exists
			lgr.Printf("[WARN] synchronous refresh failed, serving expired result: %v", err)
			return e.result, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEmpty, err)
	}

	c.store(res)
	return res, nil
}

// Last returns the most recent result regardless of freshness, nil when no
// aggregation ever succeeded. Used by the health endpoint.
func (c *Cache) Last() *domain.AggregateResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil
	}
	return c.entry.result
}

// backgroundRefresh recomputes the result off the request path, retrying
// transient total failures with backoff. On failure the stale entry keeps
// serving and the next stale hit retries.
func (c *Cache) backgroundRefresh(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	retrier := repeater.NewBackoff(3, 500*time.Millisecond, repeater.WithMaxDelay(5*time.Second))

	var res *domain.AggregateResult
	err := retrier.Do(ctx, func() error {
		var rerr error
		res, rerr = c.refresher.Refresh(ctx)
		return rerr
	})
	if err != nil {
		lgr.Printf("[WARN] background refresh failed, keeping previous result: %v", err)
		return
	}

	c.store(res)
}

// store atomically replaces the current entry
func (c *Cache) store(res *domain.AggregateResult) {
	now := c.now()
	c.mu.Lock()
	c.entry = &entry{
		result:     res,
		expiresAt:  now.Add(c.ttl),
		staleUntil: now.Add(c.staleWindow),
	}
	c.mu.Unlock()
}
