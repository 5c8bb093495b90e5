// Package testutil provides a configurable mock registry API server.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// SearchPath is the list endpoint path served by the mock.
const SearchPath = "/v1/hojin"

// Item is one corporation record served by the mock.
type Item struct {
	CorporateNumber string `json:"corporate_number"`
	Name            string `json:"name,omitempty"`

	DateOfEstablishment string `json:"date_of_establishment,omitempty"`
	EmployeeNumber      string `json:"employee_number,omitempty"`
	CapitalStock        string `json:"capital_stock,omitempty"`
	PrefectureCode      string `json:"prefecture_code,omitempty"`
	CityCode            string `json:"city_code,omitempty"`
	PostalCode          string `json:"postal_code,omitempty"`
	Location            string `json:"location,omitempty"`
	CompanyURL          string `json:"company_url,omitempty"`
	BusinessSummary     string `json:"business_summary,omitempty"`
}

// Response defines the behavior for one mock endpoint.
type Response struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockGbiz is a configurable mock registry server for testing.
type MockGbiz struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockGbiz creates a new mock registry server.
func NewMockGbiz() *MockGbiz {
	mock := &MockGbiz{
		handlers:   make(map[string]http.HandlerFunc),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Unconfigured paths answer like an empty registry.
		w.WriteHeader(http.StatusNoContent)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGbiz) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGbiz) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockGbiz) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockGbiz) SetResponse(path string, resp Response) {
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

// SetListPages serves the list endpoint from a fixed page sequence; pages
// beyond the slice answer 204.
func (m *MockGbiz) SetListPages(pages [][]Item) {
	m.SetHandler(SearchPath, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 || page > len(pages) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(SearchBody(pages[page-1]...)))
	})
}

// SetDetail serves the detail endpoint for one corporate number.
func (m *MockGbiz) SetDetail(number string, item Item) {
	m.SetResponse(SearchPath+"/"+number, Response{
		StatusCode: http.StatusOK,
		Body:       SearchBody(item),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// RequestsTo returns the number of requests made to one path.
func (m *MockGbiz) RequestsTo(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetRequestCount returns the total number of requests made to the server.
func (m *MockGbiz) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SearchBody builds a registry response envelope for the given items.
func SearchBody(items ...Item) string {
	envelope := map[string]any{"hojin-infos": items}
	b, err := json.Marshal(envelope)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// NewNotFoundResponse creates a 404 response for an unknown number.
func NewNotFoundResponse() Response {
	return Response{
		StatusCode: http.StatusNotFound,
		Body:       `{"message": "not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() Response {
	return Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
