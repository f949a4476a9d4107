// Package mqtt publishes the state of each room to an MQTT broker and accepts commands for them.
package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	defaultQoS               = 1
)

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrTimeout          = errors.New("mqtt: operation timed out")
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
}

// MessageHandler processes one received message. Returned errors are logged.
type MessageHandler func(topic string, payload []byte) error

// Client wraps a paho client. Subscriptions are restored when the client reconnects.
// On (re)connect, the client publishes "online" on the status topic. The broker publishes "offline" if the client
// disappears.
type Client struct {
	client        pahomqtt.Client
	topics        topics
	subscriptions map[string]MessageHandler
	lock          sync.RWMutex
	logger        *slog.Logger
}

// Connect connects to the broker. If the configuration has no client ID, a random one is generated.
func Connect(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "adax-bridge-" + uuid.NewString()
	}
	c := Client{
		topics:        topics{prefix: cfg.Prefix},
		subscriptions: make(map[string]MessageHandler),
		logger:        logger,
	}

	opts := buildClientOptions(cfg, c.topics)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("connection lost", "err", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.logger.Debug("connected", "broker", cfg.Broker, "clientID", cfg.ClientID)
	return &c, nil
}

func buildClientOptions(cfg Config, t topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(t.status(), statusOffline, defaultQoS, true)
	return opts
}

func (c *Client) handleConnect() {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, defaultQoS, c.wrapHandler(handler))
	}
	c.client.Publish(c.topics.status(), defaultQoS, true, statusOnline)
}

// Publish sends the payload to the topic and waits for the broker to acknowledge it.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, defaultQoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %w", ErrPublishFailed, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers a handler for the topic, which may contain wildcards.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.lock.Lock()
	c.subscriptions[topic] = handler
	c.lock.Unlock()

	token := c.client.Subscribe(topic, defaultQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		c.lock.Lock()
		delete(c.subscriptions, topic)
		c.lock.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Close publishes "offline" on the status topic and disconnects from the broker.
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Publish(c.topics.status(), defaultQoS, true, statusOffline).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
}

// wrapHandler logs errors returned by the handler and recovers from panics.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("message handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("failed to process message", "topic", msg.Topic(), "err", err)
		}
	}
}
