// Package testutil provides testing utilities for the booru client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock board endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBoard is a configurable mock board server for testing.
type MockBoard struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount  int
	LastRequest   *http.Request
	RequestedURLs []string
}

// NewMockBoard creates a new mock board server.
func NewMockBoard() *MockBoard {
	mock := &MockBoard{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequest = r
		mock.RequestedURLs = append(mock.RequestedURLs, r.URL.String())
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBoard) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBoard) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockBoard) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequest = nil
	m.RequestedURLs = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBoard) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockBoard) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPostPages configures a posts endpoint that serves pages of records
// keyed by page number. Requests past the last page get an empty listing.
func (m *MockBoard) SetPostPages(path string, pages map[int][]map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		writeListing(w, pages[page])
	})
}

// SetPostsByID configures a posts endpoint that serves records by id cursor.
// A "page" parameter of the form "a<id>" returns up to limit records with
// id greater than <id>, in descending id order like a real board.
func (m *MockBoard) SetPostsByID(path string, posts []map[string]any, limit int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		lower := int64(0)
		if cursor, ok := strings.CutPrefix(r.URL.Query().Get("page"), "a"); ok {
			lower, _ = strconv.ParseInt(cursor, 10, 64)
		}

		var batch []map[string]any
		for _, p := range posts {
			id, _ := p["id"].(int64)
			if id > lower {
				batch = append(batch, p)
			}
		}
		if limit > 0 && len(batch) > limit {
			batch = batch[:limit]
		}
		// Descending id order.
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
		writeListing(w, batch)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBoard) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedURLs returns a copy of all requested URLs in order.
func (m *MockBoard) GetRequestedURLs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.RequestedURLs...)
}

// defaultHandler provides a default empty board listing.
func (m *MockBoard) defaultHandler(w http.ResponseWriter, r *http.Request) {
	writeListing(w, nil)
}

func writeListing(w http.ResponseWriter, items []map[string]any) {
	if items == nil {
		items = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"posts": items})
}

// Post builds a minimal post record for listing fixtures.
func Post(id int64, tags ...string) map[string]any {
	return map[string]any{
		"id":         id,
		"md5":        fmt.Sprintf("%032x", id),
		"tag_string": strings.Join(tags, " "),
	}
}

// NewListingResponse creates a 200 OK response wrapping items under key.
func NewListingResponse(key string, items []map[string]any) MockResponse {
	if items == nil {
		items = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{key: items})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewThrottledResponse creates a 429 Too Many Requests response.
func NewThrottledResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"success": false, "reason": "too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"success": false, "reason": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
