// Package delivery posts finished translations back to Slack.
//
// When the author granted a user token the original message is edited in
// place so the translation appears underneath it; otherwise the bot answers
// in a thread. Long texts are split over several section blocks, and the
// feedback buttons are attached only when their payload fits Slack's limits.
// Formatting rejections are retried once as plain text, anything else turns
// into a short apology in the thread.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/language"
	"github.com/MrWong99/lingobridge/internal/observe"
)

// Defaults for [Config].
const (
	DefaultChunkSize          = 2900
	DefaultButtonPayloadLimit = 1800
)

// Action IDs of the buttons attached to translations.
const (
	ActionSuggest = "suggest_better_translation"
	ActionHide    = "hide_translation"
)

// ApologyText is posted in the thread when a translation cannot be delivered.
const ApologyText = ":warning: Sorry, I couldn't post the translation for this message."

// Event identifies the message that was translated.
type Event struct {
	Channel string
	TS      string
	Text    string
}

// Request is one translation to deliver.
type Request struct {
	Event Event

	// UserToken is the author's OAuth token. Empty means reply in a thread.
	UserToken string
	BotToken  string

	// Source is the text that was translated, when it differs from
	// Event.Text (for example after removing a bot mention). It becomes the
	// original text of suggested corrections.
	Source string

	Translation string
	From, To    string
}

// SuggestPayload is the value of the suggest button.
type SuggestPayload struct {
	MessageTS    string `json:"message_ts"`
	OriginalText string `json:"original_text"`
	Translation  string `json:"translation"`
	FromLang     string `json:"from_lang"`
	ToLang       string `json:"to_lang"`
}

// HidePayload is the value of the hide button.
type HidePayload struct {
	MessageTS string `json:"message_ts"`
}

// Config tunes message layout.
type Config struct {
	ChunkSize          int
	ButtonPayloadLimit int
}

// Result summarises what [Policy.Deliver] ended up doing.
type Result string

const (
	ResultUpdated    Result = "updated"
	ResultThreaded   Result = "threaded"
	ResultPlainRetry Result = "plain_retry"
	ResultApology    Result = "apology"
	ResultFailed     Result = "failed"
)

// Policy delivers translations. It is safe for concurrent use.
type Policy struct {
	gw      gateway.Factory
	cfg     Config
	metrics *observe.Metrics
}

// New creates a Policy. metrics may be nil.
func New(gw gateway.Factory, cfg Config, metrics *observe.Metrics) *Policy {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ButtonPayloadLimit <= 0 {
		cfg.ButtonPayloadLimit = DefaultButtonPayloadLimit
	}
	return &Policy{gw: gw, cfg: cfg, metrics: metrics}
}

// Header renders the translation line shown to readers.
func Header(translation, to string) string {
	return fmt.Sprintf("%s *Translation (%s):* %s", language.Flag(to), language.Name(to), translation)
}

// Deliver posts req. Failures are logged and counted, never returned.
func (p *Policy) Deliver(ctx context.Context, req Request) Result {
	log := observe.Logger(ctx).With("channel", req.Event.Channel, "ts", req.Event.TS)
	bot := p.gw.For(req.BotToken)
	header := Header(req.Translation, req.To)

	var (
		err    error
		result Result
	)
	if req.UserToken != "" {
		text := req.Event.Text + "\n\n" + header
		err = p.gw.For(req.UserToken).Update(ctx, req.Event.Channel, req.Event.TS, gateway.Message{
			Text:   text,
			Blocks: p.Blocks(text, req),
		})
		result = ResultUpdated
	} else {
		_, err = bot.Send(ctx, req.Event.Channel, gateway.Message{
			Text:     header,
			Blocks:   p.Blocks(header, req),
			ThreadTS: req.Event.TS,
		})
		result = ResultThreaded
	}
	if err == nil {
		p.record(ctx, result)
		return result
	}

	if gateway.IsFormatError(err) {
		log.Warn("delivery: rejected by slack, retrying as plain text", "err", err)
		_, err = bot.Send(ctx, req.Event.Channel, gateway.Message{Text: req.Translation, ThreadTS: req.Event.TS})
		if err == nil {
			p.record(ctx, ResultPlainRetry)
			return ResultPlainRetry
		}
		log.Error("delivery: plain text retry failed", "err", err)
		p.record(ctx, ResultFailed)
		return ResultFailed
	}

	log.Error("delivery: failed to post translation", "err", err)
	if _, aerr := bot.Send(ctx, req.Event.Channel, gateway.Message{Text: ApologyText, ThreadTS: req.Event.TS}); aerr != nil {
		log.Error("delivery: failed to post apology", "err", aerr)
		p.record(ctx, ResultFailed)
		return ResultFailed
	}
	p.record(ctx, ResultApology)
	return ResultApology
}

func (p *Policy) record(ctx context.Context, r Result) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if r == ResultFailed || r == ResultApology {
		status = "error"
	}
	p.metrics.RecordDelivery(ctx, string(r), status)
}

// Blocks lays text out as section blocks followed by the feedback buttons
// when they fit.
func (p *Policy) Blocks(text string, req Request) []slack.Block {
	chunks := Chunk(text, p.cfg.ChunkSize)
	blocks := make([]slack.Block, 0, len(chunks)+1)
	for _, c := range chunks {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, c, false, false), nil, nil))
	}
	if actions := p.buttons(req); actions != nil {
		blocks = append(blocks, actions)
	}
	return blocks
}

func (p *Policy) buttons(req Request) *slack.ActionBlock {
	source := req.Source
	if source == "" {
		source = req.Event.Text
	}
	suggest, err := json.Marshal(SuggestPayload{
		MessageTS:    req.Event.TS,
		OriginalText: source,
		Translation:  req.Translation,
		FromLang:     req.From,
		ToLang:       req.To,
	})
	if err != nil {
		return nil
	}
	hide, err := json.Marshal(HidePayload{MessageTS: req.Event.TS})
	if err != nil {
		return nil
	}
	if max(utf8.RuneCount(suggest), utf8.RuneCount(hide)) > p.cfg.ButtonPayloadLimit {
		return nil
	}

	suggestBtn := slack.NewButtonBlockElement(ActionSuggest, string(suggest),
		slack.NewTextBlockObject(slack.PlainTextType, "🔄 Suggest Better Translation", true, false))
	hideBtn := slack.NewButtonBlockElement(ActionHide, string(hide),
		slack.NewTextBlockObject(slack.PlainTextType, "🙈 Hide Translation", true, false)).
		WithStyle(slack.StyleDanger)
	return slack.NewActionBlock("", suggestBtn, hideBtn)
}

// Chunk splits s into pieces of at most size runes. Joining the pieces
// yields s. An empty s yields a single empty chunk.
func Chunk(s string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(s) <= size {
		return []string{s}
	}
	var out []string
	for len(s) > 0 {
		n, cut := 0, len(s)
		for i := range s {
			if n == size {
				cut = i
				break
			}
			n++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// LogValue keeps tokens out of logs.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("channel", r.Event.Channel),
		slog.String("ts", r.Event.TS),
		slog.String("from", r.From),
		slog.String("to", r.To),
		slog.Bool("user_token", r.UserToken != ""),
	)
}
