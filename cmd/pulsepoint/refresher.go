package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// Aggregator runs one aggregation cycle over the registry
type Aggregator interface {
	Aggregate(ctx context.Context, sources []domain.Source) *domain.AggregateResult
}

// refresher adapts the aggregator to the cache's Refresher interface. It
// turns a totally failed cycle into an error so the cache knows not to store
// it; partial failure stays a valid result.
type refresher struct {
	aggregator Aggregator
	sources    []domain.Source
}

// Refresh runs one aggregation cycle
func (r *refresher) Refresh(ctx context.Context) (*domain.AggregateResult, error) {
	if len(r.sources) == 0 {
		return nil, errors.New("source registry is empty")
	}

	result := r.aggregator.Aggregate(ctx, r.sources)

	enabled := 0
	for _, src := range r.sources {
		if src.Enabled {
			enabled++
		}
	}
	if enabled > 0 && result.Succeeded() == 0 {
		return nil, fmt.Errorf("all %d enabled sources failed", enabled)
	}

	return result, nil
}
