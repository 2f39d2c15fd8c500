package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() Client {
	return NewRetryableClient(ClientConfig{
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, logger.NewNoopLogger())
}

func TestRetryableClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := newTestClient().Send(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Idempotency-Key": "key-1"},
		Body:    []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryableClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	_, err := newTestClient().Send(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.True(t, ierr.IsHTTPClient(err))

	httpErr, ok := IsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
