package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/home/hometest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Handle(t *testing.T) {
	source := hometest.New(adax.Room{ID: 1, Name: "living", Temperature: 2000})
	h := New(source, slog.New(slog.DiscardHandler))
	go func() { _ = h.Run(t.Context()) }()
	assert.Eventually(t, func() bool { return source.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, &http.Request{})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, 1, source.Refreshes())

	assert.Eventually(t, func() bool {
		resp = httptest.NewRecorder()
		h.ServeHTTP(resp, &http.Request{})
		return resp.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	var body struct {
		Rooms   []adax.Room `json:"rooms"`
		Pending int         `json:"pending"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []adax.Room{{ID: 1, Name: "living", Temperature: 2000}}, body.Rooms)
	assert.Zero(t, body.Pending)
}
