package server

import (
	"log"
	"net/http"
)

// rssHandler serves the aggregated result as a single RSS 2.0 feed
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.news.Get(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to get articles for RSS: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusServiceUnavailable)
		return
	}

	rss, err := s.generator.GenerateRSS(result)
	if err != nil {
		log.Printf("[ERROR] failed to generate RSS feed: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(rss)); err != nil {
		log.Printf("[ERROR] failed to write RSS response: %v", err)
	}
}

// opmlHandler exports the enabled sources as an OPML subscription list
func (s *Server) opmlHandler(w http.ResponseWriter, r *http.Request) {
	opml, err := s.generator.GenerateOPML(s.sources)
	if err != nil {
		log.Printf("[ERROR] failed to generate OPML: %v", err)
		http.Error(w, "Failed to generate OPML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pulsepoint.opml"`)
	if _, err := w.Write([]byte(opml)); err != nil {
		log.Printf("[ERROR] failed to write OPML response: %v", err)
	}
}
