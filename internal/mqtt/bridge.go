package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/thermostat"
)

// Broker is the part of the Client used by the Bridge.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Controller gives access to the ideal state of all rooms, queues changes and publishes updates.
type Controller interface {
	thermostat.Controller
	Subscribe() chan adax.Home
	Unsubscribe(chan adax.Home)
}

// Bridge publishes the state of each room on every update, and applies commands received on the rooms' set topic.
type Bridge struct {
	broker     Broker
	controller Controller
	registry   *thermostat.Registry
	topics     topics
	logger     *slog.Logger
}

func NewBridge(broker Broker, controller Controller, prefix string, logger *slog.Logger) *Bridge {
	return &Bridge{
		broker:     broker,
		controller: controller,
		registry:   thermostat.NewRegistry(controller, logger.With("component", "registry")),
		topics:     topics{prefix: prefix},
		logger:     logger,
	}
}

func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")

	if err := b.broker.Subscribe(b.topics.allSet(), b.handleSet); err != nil {
		return err
	}

	ch := b.controller.Subscribe()
	defer b.controller.Unsubscribe(ch)

	// rooms discovered before we subscribed
	if home := b.controller.GetHome(); len(home.Rooms) > 0 {
		b.publish(home)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case home := <-ch:
			b.publish(home)
		}
	}
}

func (b *Bridge) publish(home adax.Home) {
	_, removed := b.registry.Sync(home.Rooms)
	for _, id := range removed {
		// an empty retained message removes the room's state from the broker
		if err := b.broker.Publish(b.topics.state(id), nil, true); err != nil {
			b.logger.Warn("failed to clear room state", "id", id, "err", err)
		}
	}
	for _, room := range home.Rooms {
		payload, err := json.Marshal(thermostat.NewState(room))
		if err != nil {
			b.logger.Error("failed to encode room state", "id", room.ID, "err", err)
			continue
		}
		if err = b.broker.Publish(b.topics.state(room.ID), payload, true); err != nil {
			b.logger.Warn("failed to publish room state", "id", room.ID, "err", err)
		}
	}
}

// Service connects to the broker and runs a Bridge until the context is cancelled.
type Service struct {
	Config     Config
	Controller Controller
	Logger     *slog.Logger
}

func (s *Service) Run(ctx context.Context) error {
	c, err := Connect(s.Config, s.Logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return NewBridge(c, s.Controller, s.Config.Prefix, s.Logger).Run(ctx)
}

// setCommand is the payload of a set topic. Temperatures are in degrees Celsius.
type setCommand struct {
	TargetTemperature *float64                 `json:"targetTemperature"`
	HeatingEnabled    *bool                    `json:"heatingEnabled"`
	Mode              *thermostat.HeatingState `json:"mode"`
}

var errEmptyCommand = errors.New("command requires targetTemperature, heatingEnabled or mode")

func (b *Bridge) handleSet(topic string, payload []byte) error {
	id, err := b.topics.roomID(topic)
	if err != nil {
		return err
	}
	t, ok := b.registry.Get(id)
	if !ok {
		return fmt.Errorf("unknown room: %d", id)
	}

	var cmd setCommand
	if err = json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	var update adax.RoomUpdate
	switch {
	case cmd.Mode != nil:
		update = t.SetTargetHeatingState(*cmd.Mode)
	case cmd.TargetTemperature != nil:
		update = t.SetTargetTemperature(*cmd.TargetTemperature)
	case cmd.HeatingEnabled != nil && *cmd.HeatingEnabled:
		update = t.SetTargetHeatingState(thermostat.Heat)
	case cmd.HeatingEnabled != nil:
		update = t.SetTargetHeatingState(thermostat.Off)
	default:
		return errEmptyCommand
	}
	b.logger.Debug("command received", "topic", topic, "update", update)
	return nil
}
