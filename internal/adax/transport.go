package adax

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"
)

const (
	DefaultReadBackoff  = 3 * time.Second
	DefaultWriteBackoff = 5 * time.Second
)

// Request is one call to the API. Path is relative to the Transport's base URL.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

func (r Request) isRead() bool {
	return r.Method == "" || r.Method == http.MethodGet || r.Method == http.MethodHead
}

// Response holds the status and the (unparsed) body of an API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs API calls. A call that receives HTTP 429 is retried once, after ReadBackoff (for GET requests)
// or WriteBackoff (for all other requests).
//
// If a read is rate-limited a second time, Do returns ErrRateLimitExceeded. A write that is rate-limited a second time
// returns the raw response, leaving it to the caller to decide what to do.
type Transport struct {
	HTTPClient   *http.Client
	BaseURL      string
	ReadBackoff  time.Duration
	WriteBackoff time.Duration
	Logger       *slog.Logger
}

func (t *Transport) Do(ctx context.Context, req Request) (Response, error) {
	resp, err := t.do(ctx, req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}

	backoff := t.backoff(req)
	t.logger().Debug("rate limited. retrying", "method", req.Method, "path", req.Path, "backoff", backoff)

	select {
	case <-ctx.Done():
		return Response{}, &TransportError{Err: ctx.Err()}
	case <-time.After(backoff):
	}

	resp, err = t.do(ctx, req)
	if !req.isRead() {
		return resp, err
	}
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, ErrRateLimitExceeded
	}
	return resp, nil
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

func (t *Transport) backoff(req Request) time.Duration {
	if req.isRead() {
		return t.ReadBackoff
	}
	return t.WriteBackoff
}

func (t *Transport) do(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, t.BaseURL+req.Path, body)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	maps.Copy(httpReq.Header, req.Header)

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	return Response{StatusCode: resp.StatusCode, Body: payload}, nil
}
