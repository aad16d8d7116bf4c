package domain

// Source represents one registered feed endpoint. The registry is fixed at
// process start; identity is the feed URL.
type Source struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}
