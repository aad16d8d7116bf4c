package domain

import "time"

// FetchStatus classifies the result of fetching one source.
type FetchStatus string

// fetch outcome taxonomy, one entry per source per aggregation cycle
const (
	StatusSuccess        FetchStatus = "success"
	StatusTimeout        FetchStatus = "timeout"
	StatusTransportError FetchStatus = "transport-error"
	StatusParseError     FetchStatus = "parse-error"
	StatusDisabled       FetchStatus = "disabled"
)

// FetchOutcome is the per-source result of one fetch: either raw items or a
// failure tag. Never persisted.
type FetchOutcome struct {
	Source string
	Status FetchStatus
	Items  []RawItem
	Err    string
}

// SourceSummary records how one source contributed to an aggregation cycle.
type SourceSummary struct {
	Name     string      `json:"name"`
	Status   FetchStatus `json:"status"`
	Articles int         `json:"articles"`
	Error    string      `json:"error,omitempty"`
}

// AggregateResult is one complete aggregation cycle: sorted articles plus the
// per-source outcome summary. Replaced wholesale on refresh, never mutated.
type AggregateResult struct {
	Articles    []Article       `json:"articles"`
	Sources     []SourceSummary `json:"sources"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Succeeded returns the number of sources that fetched successfully.
func (r *AggregateResult) Succeeded() int {
	count := 0
	for _, s := range r.Sources {
		if s.Status == StatusSuccess {
			count++
		}
	}
	return count
}
