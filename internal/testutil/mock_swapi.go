// Package testutil provides testing utilities for the SWAPI aggregator.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
)

// DefaultPageSize matches the upstream page size.
const DefaultPageSize = 10

// MockResponse overrides the response for a single collection page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSWAPI is a configurable, paginated mock of the upstream API.
// Collections are served under {URL()}/{collection}/?page=N.
type MockSWAPI struct {
	server *httptest.Server
	mu     sync.RWMutex

	pageSize    int
	collections map[string][]swapi.Entity
	overrides   map[string]map[int]MockResponse
	endless     map[string]bool
	handlers    map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	pageRequests      map[string][]int
}

// NewMockSWAPI creates a new mock upstream server.
func NewMockSWAPI() *MockSWAPI {
	mock := &MockSWAPI{
		pageSize:     DefaultPageSize,
		collections:  make(map[string][]swapi.Entity),
		overrides:    make(map[string]map[int]MockResponse),
		endless:      make(map[string]bool),
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pageRequests: make(map[string][]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))

	return mock
}

// URL returns the API base URL of the mock server.
func (m *MockSWAPI) URL() string {
	return m.server.URL + "/api"
}

// Close shuts down the mock server.
func (m *MockSWAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSWAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.pageRequests = make(map[string][]int)
}

// SetPageSize changes how many entities are served per page.
func (m *MockSWAPI) SetPageSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size > 0 {
		m.pageSize = size
	}
}

// SetCollection sets the full contents of a collection.
func (m *MockSWAPI) SetCollection(name string, entities []swapi.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = entities
}

// SetPageResponse overrides the response for one page of a collection.
func (m *MockSWAPI) SetPageResponse(collection string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides[collection] == nil {
		m.overrides[collection] = make(map[int]MockResponse)
	}
	m.overrides[collection][page] = resp
}

// SetEndless makes every page of collection report a next page.
func (m *MockSWAPI) SetEndless(collection string, endless bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endless[collection] = endless
}

// SetHandler sets a custom handler for a specific collection.
func (m *MockSWAPI) SetHandler(collection string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[collection] = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSWAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// PageRequests returns the requested page numbers for collection, sorted.
func (m *MockSWAPI) PageRequests(collection string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := append([]int(nil), m.pageRequests[collection]...)
	sort.Ints(pages)
	return pages
}

// PageCount returns how many pages collection spans at the current page size.
func (m *MockSWAPI) PageCount(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.collections[collection])
	if n == 0 {
		return 1
	}
	return (n + m.pageSize - 1) / m.pageSize
}

func (m *MockSWAPI) serve(w http.ResponseWriter, r *http.Request) {
	collection := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/")
	query := r.URL.Query()

	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	page := 0
	if pageStr := query.Get("page"); pageStr != "" {
		page, _ = strconv.Atoi(pageStr)
		m.pageRequests[collection] = append(m.pageRequests[collection], page)
	}
	handler, hasHandler := m.handlers[collection]
	override, hasOverride := m.overrides[collection][page]
	m.mu.Unlock()

	if hasHandler {
		handler(w, r)
		return
	}

	if hasOverride {
		writeOverride(w, override)
		return
	}

	if term := query.Get("search"); term != "" {
		m.serveSearch(w, collection, term)
		return
	}

	if page == 0 {
		page = 1
	}
	m.servePage(w, r, collection, page)
}

func (m *MockSWAPI) servePage(w http.ResponseWriter, r *http.Request, collection string, page int) {
	m.mu.RLock()
	entities, exists := m.collections[collection]
	pageSize := m.pageSize
	endless := m.endless[collection]
	m.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found"})
		return
	}

	start := (page - 1) * pageSize
	if page < 1 || (start >= len(entities) && !(page == 1 || endless)) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found"})
		return
	}

	end := start + pageSize
	if end > len(entities) {
		end = len(entities)
	}
	results := []swapi.Entity{}
	if start < end {
		results = entities[start:end]
	}

	var next any
	if endless || end < len(entities) {
		next = fmt.Sprintf("http://%s/api/%s/?page=%d", r.Host, collection, page+1)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entities),
		"next":    next,
		"results": results,
	})
}

func (m *MockSWAPI) serveSearch(w http.ResponseWriter, collection, term string) {
	m.mu.RLock()
	entities := m.collections[collection]
	m.mu.RUnlock()

	results := []swapi.Entity{}
	for _, e := range entities {
		if strings.Contains(strings.ToLower(e.Name()), strings.ToLower(term)) {
			results = append(results, e)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"next":    nil,
		"results": results,
	})
}

func writeOverride(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewMalformedResponse creates a 200 OK response with an unparsable body.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"results": [`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// MakePeople builds n people named "Person 1".."Person n", each living on
// the planet URL returned by home(i). A nil home leaves homeworld empty.
func MakePeople(baseURL string, n int, home func(i int) string) []swapi.Entity {
	people := make([]swapi.Entity, 0, n)
	for i := 1; i <= n; i++ {
		e := swapi.Entity{
			"name":   fmt.Sprintf("Person %d", i),
			"height": strconv.Itoa(150 + i),
			"mass":   strconv.Itoa(1000 + i*10),
			"url":    fmt.Sprintf("%s/people/%d/", baseURL, i),
		}
		if home != nil {
			e["homeworld"] = home(i)
		}
		people = append(people, e)
	}
	return people
}

// MakePlanets builds n planets named "Planet 1".."Planet n".
func MakePlanets(baseURL string, n int) []swapi.Entity {
	planets := make([]swapi.Entity, 0, n)
	for i := 1; i <= n; i++ {
		planets = append(planets, swapi.Entity{
			"name": fmt.Sprintf("Planet %d", i),
			"url":  PlanetURL(baseURL, i),
		})
	}
	return planets
}

// PlanetURL returns the canonical URL of planet i.
func PlanetURL(baseURL string, i int) string {
	return fmt.Sprintf("%s/planets/%d/", baseURL, i)
}
