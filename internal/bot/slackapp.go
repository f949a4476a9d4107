package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

var _ SlackApp = &SocketModeApp{}

// SocketModeApp receives slash commands over a Slack socket mode connection, so the bot does not need a public
// endpoint.
type SocketModeApp struct {
	client   *socketmode.Client
	commands map[string]func(slack.SlashCommand, *socketmode.Client)
	logger   *slog.Logger
	lock     sync.RWMutex
}

// NewSocketModeApp creates a SocketModeApp. token is the bot token (xoxb-...), appToken the app-level token
// (xapp-...).
func NewSocketModeApp(token, appToken string, logger *slog.Logger) *SocketModeApp {
	api := slack.New(token, slack.OptionAppLevelToken(appToken))
	return &SocketModeApp{
		client:   socketmode.New(api),
		commands: make(map[string]func(slack.SlashCommand, *socketmode.Client)),
		logger:   logger,
	}
}

func (a *SocketModeApp) AddSlashCommand(command string, handler func(slack.SlashCommand, *socketmode.Client)) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.commands[command] = handler
}

func (a *SocketModeApp) Run(ctx context.Context) error {
	go a.handleEvents(ctx)
	return a.client.RunContext(ctx)
}

func (a *SocketModeApp) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-a.client.Events:
			a.handleEvent(evt)
		}
	}
}

func (a *SocketModeApp) handleEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		a.logger.Debug("connecting to slack")
	case socketmode.EventTypeConnected:
		a.logger.Info("connected to slack")
	case socketmode.EventTypeConnectionError:
		a.logger.Warn("slack connection failed", "data", evt.Data)
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			a.logger.Warn("ignoring unexpected slash command payload", "type", evt.Type)
			return
		}
		if evt.Request != nil {
			a.client.Ack(*evt.Request)
		}
		a.lock.RLock()
		handler, ok := a.commands[cmd.Command]
		a.lock.RUnlock()
		if !ok {
			a.logger.Warn("unknown slash command", "command", cmd.Command)
			return
		}
		a.logger.Debug("slash command received", "command", cmd.Command, "text", cmd.Text, "user", cmd.UserName)
		handler(cmd, a.client)
	}
}
