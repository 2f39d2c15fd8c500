package testutil

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/flexprice/parkingpermits/internal/httpclient"
)

var _ httpclient.Client = (*MockHTTPClient)(nil)

// MockHTTPClient implements a mock HTTP client for testing
type MockHTTPClient struct {
	mu       sync.RWMutex
	routes   map[string][]MockResponse
	requests []*httpclient.Request
}

// MockResponse represents a mock HTTP response
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// NewMockHTTPClient creates a new mock HTTP client
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{
		routes: make(map[string][]MockResponse),
	}
}

// RegisterResponse queues a response for requests whose URL ends with route.
// Queued responses are served in order and the last one repeats.
func (m *MockHTTPClient) RegisterResponse(route string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route] = append(m.routes[route], resp)
}

// RegisterJSONResponse is a helper to register a JSON body with status 200
func (m *MockHTTPClient) RegisterJSONResponse(route string, body string) {
	m.RegisterResponse(route, MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	})
}

// Send implements the httpclient.Client interface. Statuses of 400 and above
// come back as *httpclient.Error like the retrying client returns them.
func (m *MockHTTPClient) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	var matched MockResponse
	found := false
	for route, queue := range m.routes {
		if strings.HasSuffix(req.URL, route) && len(queue) > 0 {
			matched = queue[0]
			if len(queue) > 1 {
				m.routes[route] = queue[1:]
			}
			found = true
			break
		}
	}

	if !found {
		return nil, httpclient.NewError(http.StatusNotFound, []byte("Not Found"))
	}
	if matched.StatusCode >= http.StatusBadRequest {
		return nil, httpclient.NewError(matched.StatusCode, matched.Body)
	}

	return &httpclient.Response{
		StatusCode: matched.StatusCode,
		Body:       matched.Body,
		Headers:    matched.Headers,
	}, nil
}

// Requests returns the requests sent so far
func (m *MockHTTPClient) Requests() []*httpclient.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*httpclient.Request(nil), m.requests...)
}
