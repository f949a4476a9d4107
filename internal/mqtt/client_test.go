package mqtt

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "adax-bridge-test",
		Username: "user",
		Password: "secret",
	}, topics{prefix: "home/adax"})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
	assert.Equal(t, "adax-bridge-test", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, defaultConnectTimeout, opts.ConnectTimeout)
	assert.Equal(t, int64(defaultKeepAlive/time.Second), opts.KeepAlive)

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "home/adax/status", opts.WillTopic)
	assert.Equal(t, []byte(statusOffline), opts.WillPayload)
	assert.True(t, opts.WillRetained)
}

func TestBuildClientOptions_Anonymous(t *testing.T) {
	opts := buildClientOptions(Config{Broker: "tcp://localhost:1883"}, topics{})
	assert.Empty(t, opts.Username)
	assert.Equal(t, "adax/status", opts.WillTopic)
}

func TestTopics(t *testing.T) {
	tp := topics{prefix: "home/adax"}
	assert.Equal(t, "home/adax/status", tp.status())
	assert.Equal(t, "home/adax/rooms/12/state", tp.state(12))
	assert.Equal(t, "home/adax/rooms/+/set", tp.allSet())

	tests := []struct {
		topic   string
		want    int
		wantErr assert.ErrorAssertionFunc
	}{
		{topic: "home/adax/rooms/12/set", want: 12, wantErr: assert.NoError},
		{topic: "home/adax/rooms/12/state", wantErr: assert.Error},
		{topic: "adax/rooms/12/set", wantErr: assert.Error},
		{topic: "home/adax/rooms/twelve/set", wantErr: assert.Error},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, err := tp.roomID(tt.topic)
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

var _ pahomqtt.Message = fakeMessage{}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return defaultQoS }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestClient_WrapHandler(t *testing.T) {
	c := Client{logger: slog.New(slog.DiscardHandler)}

	var received string
	h := c.wrapHandler(func(topic string, payload []byte) error {
		received = topic + ":" + string(payload)
		return errors.New("fail")
	})
	h(nil, fakeMessage{topic: "adax/rooms/1/set", payload: []byte(`{}`)})
	assert.Equal(t, "adax/rooms/1/set:{}", received)

	// panics in a handler are recovered
	h = c.wrapHandler(func(string, []byte) error { panic("boom") })
	assert.NotPanics(t, func() { h(nil, fakeMessage{topic: "adax/rooms/1/set"}) })
}
