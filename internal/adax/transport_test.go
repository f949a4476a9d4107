package adax

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

// sequenceServer returns the specified status codes, one per call. Once exhausted, it returns HTTP 200.
func sequenceServer(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		call := int(calls.Add(1))
		if call <= len(codes) && codes[call-1] != http.StatusOK {
			w.WriteHeader(codes[call-1])
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	t.Cleanup(s.Close)
	return s, &calls
}

func TestTransport_Do(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		codes     []int
		wantCalls int32
		wantCode  int
		wantErr   error
	}{
		{name: "read", method: http.MethodGet, codes: []int{http.StatusOK}, wantCalls: 1, wantCode: http.StatusOK},
		{name: "read retried", method: http.MethodGet, codes: []int{http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2, wantCode: http.StatusOK},
		{name: "read rate limited", method: http.MethodGet, codes: []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2, wantErr: ErrRateLimitExceeded},
		{name: "read error not retried", method: http.MethodGet, codes: []int{http.StatusInternalServerError}, wantCalls: 1, wantCode: http.StatusInternalServerError},
		{name: "write", method: http.MethodPost, codes: []int{http.StatusOK}, wantCalls: 1, wantCode: http.StatusOK},
		{name: "write retried", method: http.MethodPost, codes: []int{http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2, wantCode: http.StatusOK},
		{name: "write rate limited", method: http.MethodPost, codes: []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2, wantCode: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, calls := sequenceServer(t, tt.codes...)

			resp, err := testTransport(s.URL).Do(t.Context(), Request{Method: tt.method, Path: "/"})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestTransport_Do_Backoff(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		backoff time.Duration
	}{
		{name: "read", method: http.MethodGet, backoff: DefaultReadBackoff},
		{name: "write", method: http.MethodPost, backoff: DefaultWriteBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if testing.Short() {
				t.Skip("skipping backoff test in short mode")
			}
			t.Parallel()
			s, calls := sequenceServer(t, http.StatusTooManyRequests, http.StatusOK)
			tr := testTransport(s.URL)
			tr.ReadBackoff = DefaultReadBackoff
			tr.WriteBackoff = DefaultWriteBackoff

			start := time.Now()
			resp, err := tr.Do(t.Context(), Request{Method: tt.method, Path: "/"})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, time.Since(start), tt.backoff)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "payload", string(resp.Body))
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestTransport_Do_Cancelled(t *testing.T) {
	s, calls := sequenceServer(t, http.StatusTooManyRequests, http.StatusOK)
	tr := testTransport(s.URL)
	tr.ReadBackoff = time.Hour

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, err := tr.Do(ctx, Request{Path: "/"})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransport_Do_TransportError(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	s.Close()

	_, err := testTransport(s.URL).Do(t.Context(), Request{Path: "/"})
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.False(t, errors.Is(err, ErrRateLimitExceeded))
}

func TestTransport_Do_NoLogger(t *testing.T) {
	s, calls := sequenceServer(t, http.StatusTooManyRequests, http.StatusOK)
	tr := testTransport(s.URL)
	tr.Logger = nil

	var resp Response
	var err error
	assert.NotPanics(t, func() { resp, err = tr.Do(t.Context(), Request{Path: "/"}) })
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransport_Do_Headers(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(s.Close)

	resp, err := testTransport(s.URL).Do(t.Context(), Request{Path: "/", Header: bearer("token")})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
