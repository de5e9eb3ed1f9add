package slackbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"
)

// acker acknowledges Socket Mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// SocketRunner receives payloads over a Socket Mode websocket and feeds them
// to the same [Bot] as the HTTP endpoints.
type SocketRunner struct {
	client *socketmode.Client
	bot    *Bot
}

// NewSocketRunner creates a runner for a single workspace. appToken is the
// xapp- token with connections:write; botToken authorises Web API calls.
func NewSocketRunner(appToken, botToken string, bot *Bot, debug bool, opts ...slack.Option) *SocketRunner {
	opts = append([]slack.Option{slack.OptionAppLevelToken(appToken)}, opts...)
	api := slack.New(botToken, opts...)
	client := socketmode.New(api,
		socketmode.OptionDebug(debug),
		socketmode.OptionLog(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug)),
	)
	return &SocketRunner{client: client, bot: bot}
}

// Run connects and processes payloads until ctx is cancelled.
func (s *SocketRunner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.client.RunContext(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("slackbot: socket mode: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case evt, ok := <-s.client.Events:
				if !ok {
					return nil
				}
				s.handle(ctx, s.client, evt)
			}
		}
	})
	return g.Wait()
}

func (s *SocketRunner) handle(ctx context.Context, ack acker, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("slackbot: connecting to socket mode")
	case socketmode.EventTypeConnected:
		slog.Info("slackbot: socket mode connected")
	case socketmode.EventTypeConnectionError, socketmode.EventTypeInvalidAuth:
		slog.Warn("slackbot: socket mode connection problem", "type", evt.Type, "data", evt.Data)

	case socketmode.EventTypeEventsAPI:
		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		s.ack(ack, evt)
		if !ok {
			slog.Warn("slackbot: unexpected events_api payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		s.bot.DispatchEvent(ctx, ev)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		s.ack(ack, evt)
		if !ok {
			slog.Warn("slackbot: unexpected slash command payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		s.bot.DispatchCommand(ctx, cmd)

	case socketmode.EventTypeInteractive:
		ic, ok := evt.Data.(slack.InteractionCallback)
		s.ack(ack, evt)
		if !ok {
			slog.Warn("slackbot: unexpected interaction payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		s.bot.DispatchInteraction(ctx, ic)

	default:
		slog.Debug("slackbot: ignoring socket mode event", "type", evt.Type)
	}
}

func (s *SocketRunner) ack(ack acker, evt socketmode.Event) {
	if evt.Request != nil {
		ack.Ack(*evt.Request)
	}
}
