package slackbot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	gwmock "github.com/MrWong99/lingobridge/internal/gateway/mock"
	"github.com/MrWong99/lingobridge/internal/store"
	storemock "github.com/MrWong99/lingobridge/internal/store/mock"
	"github.com/MrWong99/lingobridge/internal/translator"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type recordingHandler struct {
	mu     sync.Mutex
	events []translator.Event
}

func (h *recordingHandler) HandleMessage(_ context.Context, ev translator.Event) translator.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return translator.OutcomeDelivered
}

func (h *recordingHandler) Events() []translator.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]translator.Event(nil), h.events...)
}

type botFixture struct {
	st   *storemock.Store
	gw   *gwmock.Factory
	msgs *recordingHandler
	bot  *Bot
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	f := &botFixture{st: storemock.New(), gw: gwmock.NewFactory(), msgs: &recordingHandler{}}
	err := f.st.UpsertWorkspace(context.Background(), &store.Workspace{
		TeamID:         "T1",
		BotAccessToken: "xoxb-1",
		BotUserID:      "UBOT",
	})
	if err != nil {
		t.Fatalf("UpsertWorkspace: %v", err)
	}
	f.bot = New(Config{Workspaces: f.st, Messages: f.msgs, Gateway: f.gw})
	return f
}

func (f *botFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.bot.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func callback(team string, inner any, innerType slackevents.EventsAPIType) slackevents.EventsAPIEvent {
	return slackevents.EventsAPIEvent{
		Type:       slackevents.CallbackEvent,
		TeamID:     team,
		InnerEvent: slackevents.EventsAPIInnerEvent{Type: string(innerType), Data: inner},
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestBot_DispatchMessage(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	blocks := slack.Blocks{BlockSet: []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "hola", false, false), nil, nil),
	}}
	msg := &slackevents.MessageEvent{
		Channel:     "C1",
		ChannelType: "channel",
		User:        "U1",
		Text:        "hola amigos",
		TimeStamp:   "1700000000.000100",
		Message:     &slack.Msg{Blocks: blocks},
	}

	f.bot.DispatchEvent(context.Background(), callback("T1", msg, slackevents.Message))
	f.drain(t)

	got := f.msgs.Events()
	if len(got) != 1 {
		t.Fatalf("HandleMessage calls = %d, want 1", len(got))
	}
	ev := got[0]
	if ev.TeamID != "T1" || ev.Channel != "C1" || ev.User != "U1" || ev.TS != msg.TimeStamp {
		t.Errorf("event = %+v", ev)
	}
	if ev.BotToken != "xoxb-1" || ev.BotUserID != "UBOT" {
		t.Errorf("workspace not attached: token=%q bot=%q", ev.BotToken, ev.BotUserID)
	}
	if len(ev.Blocks) != 1 {
		t.Errorf("blocks = %d, want 1", len(ev.Blocks))
	}
}

func TestBot_UnknownTeamIgnored(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	msg := &slackevents.MessageEvent{Channel: "C1", User: "U1", Text: "hola amigos"}

	f.bot.DispatchEvent(context.Background(), callback("T-unknown", msg, slackevents.Message))
	f.drain(t)

	if n := len(f.msgs.Events()); n != 0 {
		t.Errorf("HandleMessage calls = %d, want 0", n)
	}
}

func TestBot_DefaultWorkspace(t *testing.T) {
	t.Parallel()

	msgs := &recordingHandler{}
	bot := New(Config{
		Workspaces: storemock.New(),
		Messages:   msgs,
		Gateway:    gwmock.NewFactory(),
		Default:    &store.Workspace{BotAccessToken: "xoxb-socket", BotUserID: "UBOT"},
	})
	bot.DispatchEvent(context.Background(), callback("T9", &slackevents.MessageEvent{Text: "hola amigos"}, slackevents.Message))
	if err := bot.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	got := msgs.Events()
	if len(got) != 1 {
		t.Fatalf("HandleMessage calls = %d, want 1", len(got))
	}
	if got[0].TeamID != "T9" || got[0].BotToken != "xoxb-socket" {
		t.Errorf("event = %+v, want default workspace for T9", got[0])
	}
}

func TestBot_WorkspaceLookupError(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	f.st.Errs["GetWorkspace"] = errors.New("db down")

	f.bot.DispatchEvent(context.Background(), callback("T1", &slackevents.MessageEvent{Text: "hola amigos"}, slackevents.Message))
	f.drain(t)

	if n := len(f.msgs.Events()); n != 0 {
		t.Errorf("HandleMessage calls = %d, want 0", n)
	}
}

func TestBot_MentionReplyThreaded(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	mention := &slackevents.AppMentionEvent{Channel: "C1", User: "U1", Text: "<@UBOT> help", TimeStamp: "1700000000.000200"}

	f.bot.DispatchEvent(context.Background(), callback("T1", mention, slackevents.AppMention))
	f.drain(t)

	sends := f.gw.CallsFor("Send")
	if len(sends) != 1 {
		t.Fatalf("Send calls = %d, want 1", len(sends))
	}
	if sends[0].Msg.Text != translator.EnableTranslationMessage {
		t.Errorf("text = %q", sends[0].Msg.Text)
	}
	if sends[0].Msg.ThreadTS != mention.TimeStamp {
		t.Errorf("thread = %q, want %q", sends[0].Msg.ThreadTS, mention.TimeStamp)
	}
	if sends[0].Token != "xoxb-1" {
		t.Errorf("token = %q", sends[0].Token)
	}
}

func TestBot_DispatchCommand(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	var (
		mu  sync.Mutex
		got []string
	)
	f.bot.Router().RegisterCommand("/ping", func(_ context.Context, ws *store.Workspace, cmd slack.SlashCommand) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ws.TeamID+":"+cmd.Text)
	})

	f.bot.DispatchCommand(context.Background(), slack.SlashCommand{TeamID: "T1", Command: "/ping", Text: "hi"})
	f.bot.DispatchCommand(context.Background(), slack.SlashCommand{TeamID: "T1", Command: "/nope", ChannelID: "C1", UserID: "U1"})
	f.drain(t)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "T1:hi" {
		t.Errorf("handler calls = %v, want [T1:hi]", got)
	}
	eph := f.gw.CallsFor("SendEphemeral")
	if len(eph) != 1 || eph[0].User != "U1" {
		t.Fatalf("ephemeral calls = %+v, want one unknown command reply", eph)
	}
}

func TestBot_DispatchInteraction(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	done := make(chan string, 1)
	f.bot.Router().RegisterAction("press", func(_ context.Context, _ *store.Workspace, _ *slack.InteractionCallback, a *slack.BlockAction) {
		done <- a.Value
	})

	ic := slack.InteractionCallback{
		Type: slack.InteractionTypeBlockActions,
		Team: slack.Team{ID: "T1"},
		ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{
			{ActionID: "press", Value: "v1"},
		}},
	}
	f.bot.DispatchInteraction(context.Background(), ic)
	f.drain(t)

	select {
	case v := <-done:
		if v != "v1" {
			t.Errorf("value = %q, want v1", v)
		}
	default:
		t.Fatal("action handler not called")
	}
}

func TestBot_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t)
	release := make(chan struct{})
	f.bot.Router().RegisterCommand("/slow", func(context.Context, *store.Workspace, slack.SlashCommand) {
		<-release
	})
	f.bot.DispatchCommand(context.Background(), slack.SlashCommand{TeamID: "T1", Command: "/slow"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.bot.Wait(ctx); err == nil {
		t.Error("Wait returned nil while a handler was still running")
	}

	close(release)
	f.drain(t)
}
