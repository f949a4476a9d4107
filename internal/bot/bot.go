// Package bot lets a Slack workspace list the rooms and change their heating through slash commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/thermostat"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

type Bot struct {
	SlackApp
	controller Controller
	registry   *thermostat.Registry
	logger     *slog.Logger
	updated    atomic.Bool
}

// Controller gives access to the ideal state of all rooms and queues changes.
type Controller interface {
	thermostat.Controller
	Subscribe() chan adax.Home
	Unsubscribe(chan adax.Home)
	Refresh()
	PendingChanges() int
}

type SlackApp interface {
	AddSlashCommand(string, func(slack.SlashCommand, *socketmode.Client))
	Run(ctx context.Context) error
}

func New(app SlackApp, controller Controller, logger *slog.Logger) *Bot {
	b := Bot{
		SlackApp:   app,
		controller: controller,
		registry:   thermostat.NewRegistry(controller, logger.With("component", "registry")),
		logger:     logger,
	}

	b.SlackApp.AddSlashCommand("/rooms", b.doAndPost(b.onRooms))
	b.SlackApp.AddSlashCommand("/setroom", b.doAndPost(b.onSetRoom))
	b.SlackApp.AddSlashCommand("/refresh", b.doAndPost(b.onRefresh))

	return &b
}

func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")

	errCh := make(chan error, 1)
	go func() { errCh <- b.SlackApp.Run(ctx) }()

	ch := b.controller.Subscribe()
	defer b.controller.Unsubscribe(ch)

	if home := b.controller.GetHome(); len(home.Rooms) > 0 {
		b.update(home)
	}

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
			return nil
		case <-ctx.Done():
			return nil
		case home := <-ch:
			b.update(home)
		}
	}
}

func (b *Bot) update(home adax.Home) {
	b.registry.Sync(home.Rooms)
	b.updated.Store(true)
}

var noUpdates = slack.Attachment{Color: "bad", Text: "no updates yet. please check back later"}

func (b *Bot) onRooms(_ context.Context, _ ...string) slack.Attachment {
	if !b.updated.Load() {
		return noUpdates
	}

	thermostats := b.registry.Thermostats()
	text := make([]string, 0, len(thermostats))
	for _, t := range thermostats {
		if state, ok := t.State(); ok {
			text = append(text, roomState(state))
		}
	}

	if len(text) == 0 {
		return slack.Attachment{Color: "bad", Text: "no rooms found"}
	}

	slices.Sort(text)
	title := "rooms:"
	if pending := b.controller.PendingChanges(); pending > 0 {
		title = fmt.Sprintf("rooms (%d pending):", pending)
	}
	return slack.Attachment{
		Color: "good",
		Title: title,
		Text:  strings.Join(text, "\n"),
	}
}

func roomState(state thermostat.State) string {
	text := fmt.Sprintf("%s: %.1fºC", state.Name, state.CurrentTemperature)
	if state.TargetHeatingState == thermostat.Off {
		return text + " (off)"
	}
	text += fmt.Sprintf(" (target: %.1f", state.TargetTemperature)
	if state.CurrentHeatingState == thermostat.Heat {
		text += ", heating"
	}
	return text + ")"
}

func (b *Bot) onSetRoom(_ context.Context, args ...string) slack.Attachment {
	if !b.updated.Load() {
		return noUpdates
	}

	cmd, err := parseSetRoom(args...)
	if err != nil {
		return slack.Attachment{Color: "bad", Text: "invalid command: " + err.Error()}
	}

	t, ok := b.registry.Lookup(cmd.room)
	if !ok {
		return slack.Attachment{Color: "bad", Text: "invalid room: " + cmd.room}
	}
	name := cmd.room
	if state, ok := t.State(); ok {
		name = state.Name
	}

	var text string
	if cmd.mode != nil {
		t.SetTargetHeatingState(*cmd.mode)
		text = "Switching heating " + map[thermostat.HeatingState]string{thermostat.Heat: "on", thermostat.Off: "off"}[*cmd.mode] + " for " + name
	} else {
		update := t.SetTargetTemperature(cmd.temperature)
		text = fmt.Sprintf("Setting target temperature for %s to %.1fºC", name, thermostat.TargetTemperature(*update.TargetTemperature))
	}
	return slack.Attachment{Color: "good", Text: text}
}

func (b *Bot) onRefresh(_ context.Context, _ ...string) slack.Attachment {
	b.controller.Refresh()
	return slack.Attachment{Text: "refreshing ADAX data"}
}

func (b *Bot) doAndPost(f func(context.Context, ...string) slack.Attachment) func(cmd slack.SlashCommand, c *socketmode.Client) {
	return func(cmd slack.SlashCommand, c *socketmode.Client) {
		a := f(context.Background(), tokenizeText(cmd.Text)...)
		if _, _, err := c.PostMessage(cmd.ChannelID, slack.MsgOptionAttachments(a)); err != nil {
			b.logger.Error("failed to post response", "err", err)
		}
	}
}
