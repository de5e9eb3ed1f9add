package slackbot

import (
	"context"
	"slices"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/MrWong99/lingobridge/internal/store"
)

func TestRouter_Commands(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	noop := func(context.Context, *store.Workspace, slack.SlashCommand) {}
	r.RegisterCommand("/translate-toggle", noop)
	r.RegisterCommand("/set-translation", noop)

	want := []string{"/set-translation", "/translate-toggle"}
	if got := r.Commands(); !slices.Equal(got, want) {
		t.Errorf("Commands() = %v, want %v", got, want)
	}
}

func TestRouter_HandleCommand(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	var got string
	r.RegisterCommand("/echo", func(_ context.Context, _ *store.Workspace, cmd slack.SlashCommand) {
		got = cmd.Text
	})

	if !r.HandleCommand(context.Background(), nil, slack.SlashCommand{Command: "/echo", Text: "hi"}) {
		t.Fatal("HandleCommand(/echo) = false")
	}
	if got != "hi" {
		t.Errorf("handler saw %q, want hi", got)
	}
	if r.HandleCommand(context.Background(), nil, slack.SlashCommand{Command: "/missing"}) {
		t.Error("HandleCommand(/missing) = true, want false")
	}
}

func TestRouter_HandleInteraction(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	var actions []string
	r.RegisterAction("a", func(_ context.Context, _ *store.Workspace, _ *slack.InteractionCallback, a *slack.BlockAction) {
		actions = append(actions, a.ActionID)
	})
	var views int
	r.RegisterView("cb", func(context.Context, *store.Workspace, *slack.InteractionCallback) {
		views++
	})

	tests := []struct {
		name string
		ic   slack.InteractionCallback
		want bool
	}{
		{
			name: "known action among unknown",
			ic: slack.InteractionCallback{
				Type: slack.InteractionTypeBlockActions,
				ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{
					{ActionID: "zzz"}, {ActionID: "a"},
				}},
			},
			want: true,
		},
		{
			name: "only unknown actions",
			ic: slack.InteractionCallback{
				Type:           slack.InteractionTypeBlockActions,
				ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{{ActionID: "zzz"}}},
			},
			want: false,
		},
		{
			name: "known view",
			ic:   slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission, View: slack.View{CallbackID: "cb"}},
			want: true,
		},
		{
			name: "unknown view",
			ic:   slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission, View: slack.View{CallbackID: "other"}},
			want: false,
		},
		{
			name: "shortcut ignored",
			ic:   slack.InteractionCallback{Type: slack.InteractionTypeShortcut},
			want: false,
		},
	}
	for _, tt := range tests {
		if got := r.HandleInteraction(context.Background(), nil, &tt.ic); got != tt.want {
			t.Errorf("%s: HandleInteraction = %v, want %v", tt.name, got, tt.want)
		}
	}
	if !slices.Equal(actions, []string{"a"}) {
		t.Errorf("actions = %v, want [a]", actions)
	}
	if views != 1 {
		t.Errorf("views = %d, want 1", views)
	}
}

func TestRouter_HandleEvent(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	called := false
	r.RegisterEvent(string(slackevents.AppHomeOpened), func(context.Context, *store.Workspace, slackevents.EventsAPIInnerEvent) {
		called = true
	})

	if !r.HandleEvent(context.Background(), nil, slackevents.EventsAPIInnerEvent{Type: string(slackevents.AppHomeOpened)}) || !called {
		t.Error("app_home_opened not dispatched")
	}
	if r.HandleEvent(context.Background(), nil, slackevents.EventsAPIInnerEvent{Type: "reaction_added"}) {
		t.Error("HandleEvent(reaction_added) = true, want false")
	}
}
