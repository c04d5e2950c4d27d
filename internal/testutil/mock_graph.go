// Package testutil provides a configurable mock Graph API server for
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockGraph is a configurable mock Graph API server.
type MockGraph struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	pathCounts   map[string]int
	lastQuery    url.Values
}

// NewMockGraph starts a mock server. Paths without a registered handler
// get a Graph-style 404 error payload.
func NewMockGraph() *MockGraph {
	mock := &MockGraph{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastQuery = r.URL.Query()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, ErrorBody("Unsupported get request.", 100))
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockGraph) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGraph) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGraph) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastQuery = nil
}

// SetHandler registers a custom handler for a path.
func (m *MockGraph) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockGraph) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			fmt.Fprint(w, resp.Body)
		}
	})
}

// SetEnvelope configures a single-page data envelope for a path.
func (m *MockGraph) SetEnvelope(path string, items ...string) {
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       Envelope(items, ""),
	})
}

// SetPagedEnvelope serves the given pages from a path using cursor
// pagination. Each request's page is selected by the after parameter;
// every page except the last carries a next link back to this server.
func (m *MockGraph) SetPagedEnvelope(path string, pages [][]string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("after"))
		if page < 0 || page >= len(pages) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, ErrorBody("Invalid cursor", 100))
			return
		}

		next := ""
		if page < len(pages)-1 {
			next = fmt.Sprintf("%s%s?after=%d", m.server.URL, path, page+1)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, Envelope(pages[page], next))
	})
}

// RequestCount returns the total number of requests received.
func (m *MockGraph) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests received for one path.
func (m *MockGraph) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockGraph) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// Envelope builds a Graph-style {data, paging} response body. An empty
// next omits the paging.next link.
func Envelope(items []string, next string) string {
	var b strings.Builder
	b.WriteString(`{"data":[`)
	b.WriteString(strings.Join(items, ","))
	b.WriteString(`]`)
	if next != "" {
		quoted, _ := json.Marshal(next)
		fmt.Fprintf(&b, `,"paging":{"next":%s}`, quoted)
	}
	b.WriteString(`}`)
	return b.String()
}

// ErrorBody builds a Graph-style error payload.
func ErrorBody(message string, code int) string {
	quoted, _ := json.Marshal(message)
	return fmt.Sprintf(`{"error":{"message":%s,"code":%d}}`, quoted, code)
}

// RateLimitResponse is a 429 with a Graph rate-limit error body.
func RateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       ErrorBody("Application request limit reached", 4),
	}
}

// ServerErrorResponse is a 500 with a generic error body.
func ServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       ErrorBody("An unknown error occurred", 1),
	}
}
