// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"worldmonitor/internal/fetcher"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher[T any] struct {
	FetchFunc func(ctx context.Context) (T, error)
	KeyFunc   func() string
}

// Fetch implements the Fetcher interface
func (m *MockFetcher[T]) Fetch(ctx context.Context) (T, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	var zero T
	return zero, nil
}

// Key implements the Fetcher interface
func (m *MockFetcher[T]) Key() string {
	if m.KeyFunc != nil {
		return m.KeyFunc()
	}
	return "mock:key"
}

// NewMockFetcher creates a simple mock fetcher with predefined values
func NewMockFetcher[T any](key string, value T, err error) fetcher.Fetcher[T] {
	return &MockFetcher[T]{
		FetchFunc: func(ctx context.Context) (T, error) {
			return value, err
		},
		KeyFunc: func() string {
			return key
		},
	}
}

// Server is an httptest server that counts requests.
type Server struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits returns how many requests the server has handled.
func (s *Server) Hits() int64 {
	return s.hits.Load()
}

// NewServer starts a server closed automatically at test cleanup.
func NewServer(t *testing.T, h http.HandlerFunc) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Respond returns a handler that writes body with the given status and content type.
func Respond(status int, contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
