// Package testutil provides a scripted ClinicalTrials.gov registry for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockResponse is one scripted reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockRegistry is an httptest server imitating /studies and /version.
//
// Studies requests are answered from pages keyed by page token ("" for the
// first page). Failures queued with FailNext are served before any page.
type MockRegistry struct {
	server *httptest.Server

	mu       sync.Mutex
	pages    map[string]MockResponse
	failures []MockResponse
	version  MockResponse
	requests []url.Values
	hits     map[string]int
}

// NewMockRegistry starts a mock registry.
func NewMockRegistry() *MockRegistry {
	m := &MockRegistry{
		pages: make(map[string]MockResponse),
		hits:  make(map[string]int),
		version: MockResponse{
			StatusCode: http.StatusOK,
			Body:       `{"apiVersion":"2.0.3","dataTimestamp":"2026-10-17T09:00:00"}`,
		},
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the API root to use as client BaseURL.
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// SetPage serves studies for token and links to next ("" ends the chain).
func (m *MockRegistry) SetPage(token string, studies []map[string]any, next string) {
	payload := map[string]any{"studies": studies}
	if next != "" {
		payload["nextPageToken"] = next
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal page: %v", err))
	}
	m.SetRawPage(token, MockResponse{StatusCode: http.StatusOK, Body: string(data)})
}

// SetRawPage serves resp for token verbatim.
func (m *MockRegistry) SetRawPage(token string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[token] = resp
}

// SetVersion replaces the /version reply.
func (m *MockRegistry) SetVersion(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = resp
}

// FailNext queues n copies of resp ahead of the regular replies.
func (m *MockRegistry) FailNext(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, resp)
	}
}

// Requests returns the query of every /studies request in order.
func (m *MockRegistry) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// Hits returns the number of requests served for path.
func (m *MockRegistry) Hits(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

func (m *MockRegistry) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.hits[r.URL.Path]++

	var resp MockResponse
	switch {
	case len(m.failures) > 0:
		resp = m.failures[0]
		m.failures = m.failures[1:]
		if r.URL.Path == "/studies" {
			m.requests = append(m.requests, r.URL.Query())
		}
	case r.URL.Path == "/studies":
		m.requests = append(m.requests, r.URL.Query())
		page, ok := m.pages[r.URL.Query().Get("pageToken")]
		if !ok {
			page = MockResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"unknown page token"}`}
		}
		resp = page
	case r.URL.Path == "/version":
		resp = m.version
	default:
		resp = MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":"not found"}`}
	}
	m.mu.Unlock()

	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	w.Header().Set("Content-Type", "application/json")
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// ServerError is a 503 reply.
func ServerError() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error":"service unavailable"}`,
	}
}

// Study builds a minimal raw study with the given id and title.
func Study(nctID, title string) map[string]any {
	return map[string]any{
		"protocolSection": map[string]any{
			"identificationModule": map[string]any{
				"nctId":      nctID,
				"briefTitle": title,
			},
		},
	}
}

// StudyWithStatus adds a status module with overall status and start date.
func StudyWithStatus(nctID, title, status, startDate string) map[string]any {
	s := Study(nctID, title)
	protocol := s["protocolSection"].(map[string]any)
	protocol["statusModule"] = map[string]any{
		"overallStatus":   status,
		"startDateStruct": map[string]any{"date": startDate},
	}
	return s
}
