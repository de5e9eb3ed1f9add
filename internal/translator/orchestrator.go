// Package translator runs the per-message translation pipeline.
//
// [Orchestrator.HandleMessage] is a single state machine. Each step either
// ends processing (a skip, a prompt or a silent abort) or hands over to the
// next one:
//
//	strip → intake → preference gate → channel gate → detect →
//	glossary mask → memory lookup → translate → restore → deliver
//
// Every collaborator call runs under its own step timeout. Failures never
// propagate to the caller; they are logged and reflected in the returned
// [Outcome].
package translator

import (
	"context"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/correction"
	"github.com/MrWong99/lingobridge/internal/delivery"
	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/glossary"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/oracle"
	"github.com/MrWong99/lingobridge/internal/store"
)

// DefaultStepTimeout bounds each store, oracle and gateway call.
const DefaultStepTimeout = 20 * time.Second

// Outcome is the terminal state reached for one message.
type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"
	OutcomePromptedPref   Outcome = "prompted_preference"
	OutcomePromptedEnable Outcome = "prompted_channel"
	OutcomeSameLanguage   Outcome = "same_language"
	OutcomePassthrough    Outcome = "passthrough"
	OutcomeDetectFailed   Outcome = "detect_failed"
	OutcomeTranslateFail  Outcome = "translate_failed"
	OutcomeStoreError     Outcome = "store_error"
	OutcomeDelivered      Outcome = "delivered"
	OutcomeUndelivered    Outcome = "undelivered"
)

// Channel types as reported by the Events API.
const (
	ChannelTypeChannel = "channel"
	ChannelTypeGroup   = "group"
	ChannelTypeIM      = "im"
)

// Event is an inbound message together with the workspace it belongs to.
type Event struct {
	TeamID      string
	Channel     string
	ChannelType string
	User        string
	TS          string
	Text        string
	BotID       string
	SubType     string
	Blocks      []slack.Block

	// BotToken and BotUserID identify the app in the event's workspace.
	BotToken  string
	BotUserID string
}

// Request is the working state of one message once it passed the gates.
type Request struct {
	TeamID      string
	Channel     string
	ChannelType string
	TS          string
	Raw         string
	Stripped    string
	Detected    string
	User        store.User
	Glossary    glossary.Config
}

// Store is the persistence the pipeline reads from.
type Store interface {
	GetUser(ctx context.Context, teamID, userID string) (*store.User, error)
	GetSettings(ctx context.Context, teamID string) (*store.Settings, error)
}

// Memory finds reusable human corrections.
type Memory interface {
	Lookup(ctx context.Context, team, text, from, to string) (*correction.Result, error)
}

// Deliverer posts the finished translation.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) delivery.Result
}

// Config holds the orchestrator dependencies.
type Config struct {
	Store    Store
	Memory   Memory
	Oracle   oracle.Oracle
	Delivery Deliverer
	Gateway  gateway.Factory
	Metrics  *observe.Metrics

	// StepTimeout defaults to [DefaultStepTimeout].
	StepTimeout time.Duration
}

// Orchestrator translates messages. It is safe for concurrent use; events
// share nothing but the collaborators.
type Orchestrator struct {
	store       Store
	memory      Memory
	oracle      oracle.Oracle
	delivery    Deliverer
	gw          gateway.Factory
	metrics     *observe.Metrics
	stepTimeout time.Duration
}

// New creates an Orchestrator. Metrics may be nil.
func New(cfg Config) *Orchestrator {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	return &Orchestrator{
		store:       cfg.Store,
		memory:      cfg.Memory,
		oracle:      cfg.Oracle,
		delivery:    cfg.Delivery,
		gw:          cfg.Gateway,
		metrics:     cfg.Metrics,
		stepTimeout: cfg.StepTimeout,
	}
}

// HandleMessage runs the pipeline for ev and reports where it stopped.
func (o *Orchestrator) HandleMessage(ctx context.Context, ev Event) Outcome {
	ctx, span := observe.StartSpan(ctx, "translator.HandleMessage")
	defer span.End()

	log := observe.Logger(ctx).With("team", ev.TeamID, "channel", ev.Channel, "ts", ev.TS)
	out := o.handle(ctx, log, ev)
	if o.metrics != nil {
		o.metrics.RecordEvent(ctx, "message", string(out))
	}
	log.Debug("translator: message handled", "outcome", out)
	return out
}

func (o *Orchestrator) handle(ctx context.Context, log *slog.Logger, ev Event) Outcome {
	stripped := StripMention(ev.Text, ev.BotUserID)
	if reason := Eligible(ev, stripped); reason != ReasonNone {
		log.Debug("translator: skipping message", "reason", reason)
		return OutcomeSkipped
	}

	user, err := stepValue(ctx, o.stepTimeout, func(ctx context.Context) (*store.User, error) {
		return o.store.GetUser(ctx, ev.TeamID, ev.User)
	})
	if err != nil {
		log.Error("translator: failed to load user", "user", ev.User, "err", err)
		return OutcomeStoreError
	}
	if user == nil || !user.Preference.IsSet() {
		msg := EnableTranslationMessage
		if ev.ChannelType == ChannelTypeIM {
			msg = SetTranslationMessage
		}
		o.prompt(ctx, log, ev, msg)
		return OutcomePromptedPref
	}

	settings, err := stepValue(ctx, o.stepTimeout, func(ctx context.Context) (*store.Settings, error) {
		return o.store.GetSettings(ctx, ev.TeamID)
	})
	if err != nil {
		log.Error("translator: failed to load settings", "err", err)
		return OutcomeStoreError
	}
	switch ev.ChannelType {
	case ChannelTypeChannel, ChannelTypeGroup:
		if !settings.ChannelEnabled(ev.Channel) {
			o.prompt(ctx, log, ev, EnableTranslationMessage)
			return OutcomePromptedEnable
		}
	}

	req := Request{
		TeamID:      ev.TeamID,
		Channel:     ev.Channel,
		ChannelType: ev.ChannelType,
		TS:          ev.TS,
		Raw:         ev.Text,
		Stripped:    stripped,
		User:        *user,
		Glossary:    settings.GlossaryConfig(),
	}
	target := user.Preference.Target

	req.Detected, err = stepValue(ctx, o.stepTimeout, func(ctx context.Context) (string, error) {
		return o.oracle.Detect(ctx, stripped)
	})
	if err != nil {
		log.Warn("translator: language detection failed", "err", err)
		return OutcomeDetectFailed
	}
	if req.Detected == target {
		log.Debug("translator: already in target language", "lang", req.Detected)
		return OutcomeSameLanguage
	}

	doc := glossary.Protect(stripped, req.Glossary)
	if doc.Blank() {
		o.recordSource(ctx, observe.SourcePassthrough)
		return OutcomePassthrough
	}

	translation, source := o.fromMemory(ctx, log, req, target)
	if translation == "" {
		masked := doc.Encode()
		out, err := stepValue(ctx, o.stepTimeout, func(ctx context.Context) (string, error) {
			return o.oracle.Translate(ctx, masked, req.Detected, target, user.Preference.Style)
		})
		if err != nil {
			log.Warn("translator: translation failed", "from", req.Detected, "to", target, "err", err)
			return OutcomeTranslateFail
		}
		translation, source = glossary.Restore(out), observe.SourceOracle
	}
	o.recordSource(ctx, source)

	dctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	res := o.delivery.Deliver(dctx, delivery.Request{
		Event:       delivery.Event{Channel: ev.Channel, TS: ev.TS, Text: ev.Text},
		UserToken:   user.AccessToken,
		BotToken:    ev.BotToken,
		Source:      stripped,
		Translation: translation,
		From:        req.Detected,
		To:          target,
	})
	if res == delivery.ResultFailed || res == delivery.ResultApology {
		return OutcomeUndelivered
	}
	return OutcomeDelivered
}

// fromMemory returns a stored correction for req, or "" on a miss. Lookup
// errors fall through to the oracle.
func (o *Orchestrator) fromMemory(ctx context.Context, log *slog.Logger, req Request, target string) (string, string) {
	if o.memory == nil {
		return "", ""
	}
	hit, err := stepValue(ctx, o.stepTimeout, func(ctx context.Context) (*correction.Result, error) {
		return o.memory.Lookup(ctx, req.TeamID, req.Stripped, req.Detected, target)
	})
	if err != nil {
		log.Warn("translator: correction lookup failed, using model", "err", err)
		return "", ""
	}
	if hit == nil || hit.Correction.NewTranslation == "" {
		return "", ""
	}
	log.Debug("translator: reusing correction", "id", hit.Correction.ID, "kind", hit.Kind, "score", hit.Score)
	if hit.Kind == correction.MatchExact {
		return hit.Correction.NewTranslation, observe.SourceMemoryExact
	}
	return hit.Correction.NewTranslation, observe.SourceMemoryFuzzy
}

// prompt posts msg to the event's channel with the bot token.
func (o *Orchestrator) prompt(ctx context.Context, log *slog.Logger, ev Event, msg string) {
	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	if _, err := o.gw.For(ev.BotToken).Send(ctx, ev.Channel, gateway.Message{Text: msg}); err != nil {
		log.Error("translator: failed to post prompt", "err", err)
	}
}

func (o *Orchestrator) recordSource(ctx context.Context, source string) {
	if o.metrics != nil {
		o.metrics.RecordTranslation(ctx, source)
	}
}

// stepValue runs fn under a timeout derived from ctx.
func stepValue[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
