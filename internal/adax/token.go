package adax

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const tokenPath = "/auth/token"

// TokenState is the result of a successful password grant.
type TokenState struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	// Expiry is the time the token expires, in seconds since epoch.
	Expiry int64 `json:"-"`
}

// Valid returns true if the token has not expired at the specified time.
func (s TokenState) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Unix() < s.Expiry
}

// TokenManager obtains a bearer token using the client's credentials and caches it until it expires.
type TokenManager struct {
	transport *Transport
	clientID  string
	secret    string
	logger    *slog.Logger
	now       func() time.Time
	state     TokenState
	lock      sync.Mutex
}

func NewTokenManager(transport *Transport, clientID, secret string, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		transport: transport,
		clientID:  clientID,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

// Token returns a valid access token. If the current token has expired, Token requests a new one.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	if m.state.Valid(now) {
		return m.state.AccessToken, nil
	}

	m.logger.Debug("authenticating")

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", m.clientID)
	form.Set("password", m.secret)

	resp, err := m.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   tokenPath,
		Body:   []byte(form.Encode()),
		Header: http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}},
	})
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode, Detail: string(resp.Body)}
	}

	var state TokenState
	if err = json.Unmarshal(resp.Body, &state); err != nil {
		return "", fmt.Errorf("token: %w", &FetchError{Err: err})
	}
	state.Expiry = now.Unix() + state.ExpiresIn
	m.state = state

	m.logger.Debug("authenticated", "expires", time.Unix(state.Expiry, 0))
	return m.state.AccessToken, nil
}

// Invalidate discards the current token, so the next call to Token requests a new one.
func (m *TokenManager) Invalidate() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = TokenState{}
}

// State returns the current token state.
func (m *TokenManager) State() TokenState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}
