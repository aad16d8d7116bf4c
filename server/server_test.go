package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepoint/pulsepoint/pkg/domain"
)

// newsProviderStub implements NewsProvider for handler tests
type newsProviderStub struct {
	result *domain.AggregateResult
	err    error
	last   *domain.AggregateResult
	calls  int
}

func (s *newsProviderStub) Get(_ context.Context) (*domain.AggregateResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *newsProviderStub) Last() *domain.AggregateResult { return s.last }

func testSources() []domain.Source {
	return []domain.Source{
		{Name: "BBC News", URL: "https://feeds.bbci.co.uk/news/rss.xml", Enabled: true},
		{Name: "Disabled", URL: "https://example.com/feed", Enabled: false},
	}
}

func testResult() *domain.AggregateResult {
	published := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return &domain.AggregateResult{
		Articles: []domain.Article{
			{Title: "Headline", Link: "https://example.com/1", Summary: "Summary", Source: "BBC News", Published: &published},
		},
		Sources: []domain.SourceSummary{
			{Name: "BBC News", Status: domain.StatusSuccess, Articles: 1},
			{Name: "Disabled", Status: domain.StatusDisabled},
		},
		GeneratedAt: published,
	}
}

func startTestServer(t *testing.T, news NewsProvider) *httptest.Server {
	t.Helper()
	srv := New(Config{Listen: ":0", Timeout: 5 * time.Second, BaseURL: "http://localhost:8080", Version: "test"}, news, testSources())
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Run(t *testing.T) {
	srv := New(Config{Listen: "127.0.0.1:0", Timeout: 5 * time.Second, Version: "test"}, &newsProviderStub{result: testResult()}, testSources())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := srv.Run(ctx)
	assert.NoError(t, err, "graceful shutdown is not an error")
}

func TestServer_Ping(t *testing.T) {
	ts := startTestServer(t, &newsProviderStub{result: testResult()})

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
}

func TestServer_NotFound(t *testing.T) {
	ts := startTestServer(t, &newsProviderStub{result: testResult()})

	resp, err := http.Get(ts.URL + "/api/v1/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_AppInfoHeader(t *testing.T) {
	ts := startTestServer(t, &newsProviderStub{result: testResult()})

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "pulsepoint", resp.Header.Get("App-Name"))
	assert.Equal(t, "test", resp.Header.Get("App-Version"))
}

func TestServer_ErrorPath(t *testing.T) {
	ts := startTestServer(t, &newsProviderStub{err: errors.New("no aggregation result available")})

	resp, err := http.Get(ts.URL + "/api/v1/news")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "no aggregation result available")
}
