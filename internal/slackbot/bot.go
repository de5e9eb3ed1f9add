// Package slackbot is the inbound side of the Slack app. It accepts Events
// API callbacks, slash commands and interactions over HTTP or Socket Mode,
// resolves the workspace they belong to and routes them to registered
// handlers.
//
// Every payload is acknowledged before it is processed. Processing happens
// on its own goroutine tracked by [Bot], so shutdown can drain in-flight work
// with [Bot.Wait].
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/store"
	"github.com/MrWong99/lingobridge/internal/translator"
)

// DefaultHandleTimeout bounds the processing of one payload.
const DefaultHandleTimeout = 2 * time.Minute

// Workspaces resolves installed workspaces.
type Workspaces interface {
	GetWorkspace(ctx context.Context, teamID string) (*store.Workspace, error)
}

// MessageHandler translates message events.
type MessageHandler interface {
	HandleMessage(ctx context.Context, ev translator.Event) translator.Outcome
}

// Config holds the dependencies of a [Bot].
type Config struct {
	Workspaces Workspaces
	Router     *Router
	Messages   MessageHandler
	Gateway    gateway.Factory
	Metrics    *observe.Metrics

	// Default serves teams without an installation record. Socket Mode
	// deployments set it from the configured bot token.
	Default *store.Workspace

	// HandleTimeout defaults to [DefaultHandleTimeout].
	HandleTimeout time.Duration
}

// Bot dispatches acknowledged payloads to the router.
type Bot struct {
	workspaces Workspaces
	router     *Router
	messages   MessageHandler
	gw         gateway.Factory
	metrics    *observe.Metrics
	fallback   *store.Workspace
	timeout    time.Duration

	wg sync.WaitGroup
}

// New creates a Bot and registers the message and app_mention handlers on
// cfg.Router. A nil Router gets a fresh one.
func New(cfg Config) *Bot {
	if cfg.Router == nil {
		cfg.Router = NewRouter()
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = DefaultHandleTimeout
	}
	b := &Bot{
		workspaces: cfg.Workspaces,
		router:     cfg.Router,
		messages:   cfg.Messages,
		gw:         cfg.Gateway,
		metrics:    cfg.Metrics,
		fallback:   cfg.Default,
		timeout:    cfg.HandleTimeout,
	}
	if b.messages != nil {
		b.router.RegisterEvent(string(slackevents.Message), b.handleMessage)
	}
	b.router.RegisterEvent(string(slackevents.AppMention), b.handleMention)
	return b
}

// Router returns the router payloads are dispatched to.
func (b *Bot) Router() *Router { return b.router }

// DispatchEvent processes an Events API callback asynchronously.
func (b *Bot) DispatchEvent(ctx context.Context, ev slackevents.EventsAPIEvent) {
	if ev.Type != slackevents.CallbackEvent {
		return
	}
	b.spawn(ctx, "event", func(ctx context.Context) {
		ws := b.workspace(ctx, ev.TeamID)
		if ws == nil {
			b.recordEvent(ctx, ev.InnerEvent.Type, "unknown_team")
			return
		}
		if !b.router.HandleEvent(ctx, ws, ev.InnerEvent) {
			b.recordEvent(ctx, ev.InnerEvent.Type, "unhandled")
		}
	})
}

// DispatchCommand processes a slash command asynchronously.
func (b *Bot) DispatchCommand(ctx context.Context, cmd slack.SlashCommand) {
	b.spawn(ctx, "command", func(ctx context.Context) {
		ws := b.workspace(ctx, cmd.TeamID)
		if ws == nil {
			b.recordEvent(ctx, "slash_command", "unknown_team")
			return
		}
		if b.router.HandleCommand(ctx, ws, cmd) {
			b.recordEvent(ctx, "slash_command", "handled")
			return
		}
		b.recordEvent(ctx, "slash_command", "unhandled")
		err := b.gw.For(ws.BotAccessToken).SendEphemeral(ctx, cmd.ChannelID, cmd.UserID,
			gateway.Message{Text: fmt.Sprintf("Unknown command `%s`.", cmd.Command)})
		if err != nil {
			observe.Logger(ctx).Warn("slackbot: failed to answer unknown command", "err", err)
		}
	})
}

// DispatchInteraction processes a block action or view submission
// asynchronously.
func (b *Bot) DispatchInteraction(ctx context.Context, ic slack.InteractionCallback) {
	b.spawn(ctx, "interaction", func(ctx context.Context) {
		ws := b.workspace(ctx, ic.Team.ID)
		if ws == nil {
			b.recordEvent(ctx, string(ic.Type), "unknown_team")
			return
		}
		outcome := "handled"
		if !b.router.HandleInteraction(ctx, ws, &ic) {
			outcome = "unhandled"
		}
		b.recordEvent(ctx, string(ic.Type), outcome)
	})
}

// Wait blocks until every dispatched payload finished or ctx is done.
func (b *Bot) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("slackbot: drain: %w", ctx.Err())
	}
}

// spawn runs fn on a tracked goroutine. The request context only lends its
// trace; cancellation of the inbound request does not stop processing.
func (b *Bot) spawn(ctx context.Context, kind string, fn func(context.Context)) {
	ctx = observe.Detach(ctx)
	attrs := metric.WithAttributes(observe.Attr("kind", kind))
	if b.metrics != nil {
		b.metrics.InFlight.Add(ctx, 1, attrs)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if b.metrics != nil {
			defer b.metrics.InFlight.Add(ctx, -1, attrs)
		}
		defer func() {
			if r := recover(); r != nil {
				slog.Error("slackbot: handler panicked", "kind", kind, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// workspace resolves teamID, falling back to the default workspace. It
// returns nil for unknown teams.
func (b *Bot) workspace(ctx context.Context, teamID string) *store.Workspace {
	log := observe.Logger(ctx)
	if b.workspaces != nil {
		ws, err := b.workspaces.GetWorkspace(ctx, teamID)
		if err != nil {
			log.Error("slackbot: failed to load workspace", "team", teamID, "err", err)
			return nil
		}
		if ws != nil {
			return ws
		}
	}
	if b.fallback != nil {
		ws := *b.fallback
		if ws.TeamID == "" {
			ws.TeamID = teamID
		}
		return &ws
	}
	log.Debug("slackbot: ignoring payload from unknown team", "team", teamID)
	return nil
}

func (b *Bot) recordEvent(ctx context.Context, eventType, outcome string) {
	if b.metrics != nil {
		b.metrics.RecordEvent(ctx, eventType, outcome)
	}
}

// handleMessage feeds message events into the translation pipeline.
func (b *Bot) handleMessage(ctx context.Context, ws *store.Workspace, inner slackevents.EventsAPIInnerEvent) {
	msg, ok := inner.Data.(*slackevents.MessageEvent)
	if !ok {
		observe.Logger(ctx).Warn("slackbot: unexpected message payload", "type", fmt.Sprintf("%T", inner.Data))
		return
	}
	ev := translator.Event{
		TeamID:      ws.TeamID,
		Channel:     msg.Channel,
		ChannelType: msg.ChannelType,
		User:        msg.User,
		TS:          msg.TimeStamp,
		Text:        msg.Text,
		BotID:       msg.BotID,
		SubType:     msg.SubType,
		BotToken:    ws.BotAccessToken,
		BotUserID:   ws.BotUserID,
	}
	if msg.Message != nil {
		ev.Blocks = msg.Message.Blocks.BlockSet
	}
	b.messages.HandleMessage(ctx, ev)
}

// handleMention answers a mention with the activation hint, threaded.
func (b *Bot) handleMention(ctx context.Context, ws *store.Workspace, inner slackevents.EventsAPIInnerEvent) {
	ev, ok := inner.Data.(*slackevents.AppMentionEvent)
	if !ok {
		return
	}
	if ev.BotID != "" {
		b.recordEvent(ctx, "app_mention", "skipped")
		return
	}
	_, err := b.gw.For(ws.BotAccessToken).Send(ctx, ev.Channel, gateway.Message{
		Text:     translator.EnableTranslationMessage,
		ThreadTS: ev.TimeStamp,
	})
	if err != nil {
		observe.Logger(ctx).Error("slackbot: failed to answer mention", "channel", ev.Channel, "err", err)
		b.recordEvent(ctx, "app_mention", "error")
		return
	}
	b.recordEvent(ctx, "app_mention", "handled")
}
