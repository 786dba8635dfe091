package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBytes_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v", r.URL.Query().Get("k"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{UserAgent: "test-agent"})
	body, err := GetBytes(context.Background(), client, server.URL, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestGetBytes_StatusClassified(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{RetryCount: 2})
	_, err := GetBytes(context.Background(), client, server.URL, nil)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrorTypeClient, fe.Type)
	// 4xx responses are not retried
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetBytes_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{Timeout: 50 * time.Millisecond})
	_, err := GetBytes(context.Background(), client, server.URL, nil)
	require.Error(t, err)
}
