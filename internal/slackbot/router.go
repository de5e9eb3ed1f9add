package slackbot

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/MrWong99/lingobridge/internal/store"
)

// CommandFunc handles a slash command.
type CommandFunc func(ctx context.Context, ws *store.Workspace, cmd slack.SlashCommand)

// ActionFunc handles one block action of a block_actions interaction.
type ActionFunc func(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback, action *slack.BlockAction)

// ViewFunc handles a view_submission interaction.
type ViewFunc func(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback)

// EventFunc handles an Events API inner event.
type EventFunc func(ctx context.Context, ws *store.Workspace, ev slackevents.EventsAPIInnerEvent)

// Router dispatches Slack payloads to registered handlers.
type Router struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc // "/command" → handler
	actions  map[string]ActionFunc  // action_id → handler
	views    map[string]ViewFunc    // callback_id → handler
	events   map[string]EventFunc   // inner event type → handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		commands: make(map[string]CommandFunc),
		actions:  make(map[string]ActionFunc),
		views:    make(map[string]ViewFunc),
		events:   make(map[string]EventFunc),
	}
}

// RegisterCommand registers a slash command handler. name includes the
// leading slash, e.g. "/translate-toggle".
func (r *Router) RegisterCommand(name string, handler CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = handler
}

// RegisterAction registers a handler for a block element action_id.
func (r *Router) RegisterAction(actionID string, handler ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[actionID] = handler
}

// RegisterView registers a handler for a modal callback_id.
func (r *Router) RegisterView(callbackID string, handler ViewFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[callbackID] = handler
}

// RegisterEvent registers a handler for an Events API event type such as
// "message" or "app_home_opened".
func (r *Router) RegisterEvent(eventType string, handler EventFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[eventType] = handler
}

// Commands returns the registered slash command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HandleCommand runs the handler for cmd. It reports false when no handler
// is registered.
func (r *Router) HandleCommand(ctx context.Context, ws *store.Workspace, cmd slack.SlashCommand) bool {
	r.mu.RLock()
	handler, ok := r.commands[cmd.Command]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("slackbot: unknown command", "command", cmd.Command)
		return false
	}
	handler(ctx, ws, cmd)
	return true
}

// HandleInteraction dispatches block actions by action_id and view
// submissions by callback_id. Other interaction types are ignored.
func (r *Router) HandleInteraction(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback) bool {
	switch ic.Type {
	case slack.InteractionTypeBlockActions:
		return r.handleActions(ctx, ws, ic)

	case slack.InteractionTypeViewSubmission:
		r.mu.RLock()
		handler, ok := r.views[ic.View.CallbackID]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("slackbot: unknown view", "callback_id", ic.View.CallbackID)
			return false
		}
		handler(ctx, ws, ic)
		return true

	default:
		slog.Debug("slackbot: unhandled interaction type", "type", ic.Type)
		return false
	}
}

func (r *Router) handleActions(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback) bool {
	handled := false
	for _, action := range ic.ActionCallback.BlockActions {
		r.mu.RLock()
		handler, ok := r.actions[action.ActionID]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("slackbot: unknown action", "action_id", action.ActionID)
			continue
		}
		handler(ctx, ws, ic, action)
		handled = true
	}
	return handled
}

// HandleEvent runs the handler registered for the inner event type.
func (r *Router) HandleEvent(ctx context.Context, ws *store.Workspace, ev slackevents.EventsAPIInnerEvent) bool {
	r.mu.RLock()
	handler, ok := r.events[ev.Type]
	r.mu.RUnlock()

	if !ok {
		slog.Debug("slackbot: no handler for event", "type", ev.Type)
		return false
	}
	handler(ctx, ws, ev)
	return true
}
