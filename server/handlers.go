package server

import (
	"log"
	"net/http"
	"time"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// newsResponse is the wire shape consumed by the web layer
type newsResponse struct {
	Articles    []domain.Article       `json:"articles"`
	Count       int                    `json:"count"`
	GeneratedAt time.Time              `json:"generated_at"`
	Sources     []domain.SourceSummary `json:"sources"`
}

// newsHandler returns the current aggregated articles, serving from cache
// with stale-while-revalidate semantics
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.news.Get(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to get articles: %v", err)
		renderError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	articles := result.Articles
	if articles == nil {
		articles = []domain.Article{}
	}

	renderJSON(w, r, http.StatusOK, newsResponse{
		Articles:    articles,
		Count:       len(articles),
		GeneratedAt: result.GeneratedAt,
		Sources:     result.Sources,
	})
}

// healthHandler reports whether the pipeline can serve: the registry is
// non-empty and the last aggregation did not fail for every source
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	last := s.news.Last()

	ok := len(s.sources) > 0 && (last == nil || last.Succeeded() > 0)

	health := map[string]interface{}{
		"ok":      ok,
		"sources": len(s.sources),
	}
	if last != nil {
		health["last_generated"] = last.GeneratedAt
		health["succeeded"] = last.Succeeded()
	}

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	renderJSON(w, r, code, health)
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.config.Version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// sourcesHandler lists the registry, disabled sources included
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"sources": s.sources,
		"count":   len(s.sources),
	})
}
