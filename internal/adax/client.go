// Package adax provides a client for the ADAX cloud API for WiFi room heaters.
//
// All calls go through a Transport, which retries a call once when the API rejects it with HTTP 429.
// The Client authenticates with a password grant and caches the resulting bearer token until it expires.
package adax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultURL = "https://api-1.adax.no/client-api"

	contentPath = "/rest/v1/content"
	controlPath = "/rest/v1/control"
)

// Client calls the ADAX API.
type Client struct {
	transport *Transport
	tokens    *TokenManager
	logger    *slog.Logger
}

type Option func(*Client)

// WithURL sets the base URL of the API.
func WithURL(url string) Option {
	return func(c *Client) {
		c.transport.BaseURL = url
	}
}

// WithHTTPClient sets the http.Client used to call the API.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.transport.HTTPClient = httpClient
	}
}

// WithBackoff sets how long the client waits before retrying a rate-limited read or write.
func WithBackoff(read, write time.Duration) Option {
	return func(c *Client) {
		c.transport.ReadBackoff = read
		c.transport.WriteBackoff = write
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client for the specified credentials.
func New(clientID, secret string, options ...Option) *Client {
	c := Client{
		transport: &Transport{
			HTTPClient:   http.DefaultClient,
			BaseURL:      DefaultURL,
			ReadBackoff:  DefaultReadBackoff,
			WriteBackoff: DefaultWriteBackoff,
		},
		logger: slog.Default(),
	}
	for _, option := range options {
		option(&c)
	}
	c.transport.Logger = c.logger.With("component", "transport")
	c.tokens = NewTokenManager(c.transport, clientID, secret, c.logger.With("component", "token"))
	return &c
}

// GetHome returns the state of all rooms.
func (c *Client) GetHome(ctx context.Context) (Home, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Home{}, err
	}

	resp, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   contentPath,
		Header: bearer(token),
	})
	if err != nil {
		return Home{}, fmt.Errorf("content: %w", err)
	}
	if err = c.checkStatus(resp); err != nil {
		return Home{}, fmt.Errorf("content: %w", &FetchError{Err: err})
	}

	var home Home
	if err = json.Unmarshal(resp.Body, &home); err != nil {
		return Home{}, fmt.Errorf("content: %w", &FetchError{Err: err})
	}
	return home, nil
}

// Control sends one batch of room updates. The response body is not parsed: success is determined by the HTTP status.
func (c *Client) Control(ctx context.Context, updates []RoomUpdate) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		Rooms []RoomUpdate `json:"rooms"`
	}{Rooms: updates})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}

	header := bearer(token)
	header.Set("Content-Type", "application/json")
	resp, err := c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   controlPath,
		Body:   body,
		Header: header,
	})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("control: %w", ErrRateLimitExceeded)
	}
	if err = c.checkStatus(resp); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	c.logger.Debug("control response", "body", string(resp.Body))
	return nil
}

// Token returns a valid access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

var errUnauthorized = errors.New(http.StatusText(http.StatusUnauthorized))

func (c *Client) checkStatus(resp Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// token may have been revoked server-side. get a new one next time.
		c.tokens.Invalidate()
		return errUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	default:
		return nil
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}
