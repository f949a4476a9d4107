package cmd

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/adax/adaxtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_makeTasks(t *testing.T) {
	tests := []struct {
		name   string
		config string
		length int
	}{
		{
			name: "minimal",
			config: `
api:
  addr: :9091
`,
			length: 4,
		},
		{
			name: "mqtt",
			config: `
mqtt:
  broker: tcp://localhost:1883
`,
			length: 5,
		},
		{
			name: "slack",
			config: `
slack:
  token: xoxb-1234
  appToken: xapp-1234
`,
			length: 5,
		},
		{
			name: "slack without app token",
			config: `
slack:
  token: xoxb-1234
`,
			length: 4,
		},
		{
			name: "all",
			config: `
mqtt:
  broker: tcp://localhost:1883
slack:
  token: xoxb-1234
  appToken: xapp-1234
`,
			length: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := viper.New()
			cfg.SetConfigType("yaml")
			require.NoError(t, cfg.ReadConfig(bytes.NewBufferString(tt.config)))

			tasks, err := makeTasks(cfg, nil, prometheus.NewPedanticRegistry(), slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			assert.Len(t, tasks, tt.length)
		})
	}
}

func Test_configuration(t *testing.T) {
	cfg := viper.New()
	cfg.SetConfigType("yaml")
	require.NoError(t, cfg.ReadConfig(bytes.NewBufferString(`
adax:
  tick: 5s
  cacheTTL: 2m
  maxPollingInterval: 30
`)))

	c := configuration(cfg)
	assert.Equal(t, 5*time.Second, c.Tick)
	assert.Equal(t, 2*time.Minute, c.CacheTTL)
	assert.Equal(t, 30*time.Second, c.MaxPollingInterval)
}

func Test_newClient(t *testing.T) {
	srv := httptest.NewServer(adaxtest.New("client", "secret", adax.Room{ID: 1, Name: "living"}))
	t.Cleanup(srv.Close)

	cfg := viper.New()
	cfg.Set("adax.url", srv.URL)
	cfg.Set("adax.clientId", "client")
	cfg.Set("adax.secret", "secret")

	registry := prometheus.NewRegistry()
	c := newClient(cfg, registry, slog.New(slog.DiscardHandler))
	h, err := c.GetHome(t.Context())
	require.NoError(t, err)
	assert.Len(t, h.Rooms, 1)

	// one series for the token, one for the content
	count, err := testutil.GatherAndCount(registry, "adax_bridge_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
