package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/delivery"
	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/slackbot"
	"github.com/MrWong99/lingobridge/internal/store"
)

// CallbackFeedback is the callback ID of the suggest translation modal.
const CallbackFeedback = "translation_feedback_callback"

const (
	blockImproved  = "improved_translation_data"
	actionImproved = "improved_translation"
	blockReason    = "reason_data"
	actionReason   = "reason"
)

// ThankYouText is posted in the thread after a correction was recorded.
const ThankYouText = "✅ Thank you for the feedback! Translation has been updated and will be used for similar texts in the future."

// translationMarker precedes the translation appended to an edited message.
const translationMarker = " *Translation ("

// FeedbackMetadata travels in the private_metadata of the feedback modal.
type FeedbackMetadata struct {
	ChannelID          string `json:"channel_id"`
	MessageTS          string `json:"message_ts"`
	OriginalText       string `json:"original_text"`
	CurrentTranslation string `json:"current_translation"`
	FromLang           string `json:"from_lang"`
	ToLang             string `json:"to_lang"`
}

// FeedbackStore is the persistence used by [Feedback].
type FeedbackStore interface {
	InsertCorrection(ctx context.Context, c *store.Correction) error
	GetUser(ctx context.Context, teamID, userID string) (*store.User, error)
}

// Feedback handles the buttons attached to translations and the correction
// modal.
type Feedback struct {
	store FeedbackStore
	gw    gateway.Factory
}

// NewFeedback creates a Feedback handler.
func NewFeedback(st FeedbackStore, gw gateway.Factory) *Feedback {
	return &Feedback{store: st, gw: gw}
}

// Register registers the suggest and hide buttons and the feedback modal.
func (f *Feedback) Register(r *slackbot.Router) {
	r.RegisterAction(delivery.ActionSuggest, f.handleSuggest)
	r.RegisterAction(delivery.ActionHide, f.handleHide)
	r.RegisterView(CallbackFeedback, f.handleSubmit)
}

func (f *Feedback) handleSuggest(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback, action *slack.BlockAction) {
	var p delivery.SuggestPayload
	if err := json.Unmarshal([]byte(action.Value), &p); err != nil {
		observe.Logger(ctx).Warn("commands: malformed suggest payload", "err", err)
		return
	}
	meta := FeedbackMetadata{
		ChannelID:          ic.Channel.ID,
		MessageTS:          p.MessageTS,
		OriginalText:       p.OriginalText,
		CurrentTranslation: p.Translation,
		FromLang:           p.FromLang,
		ToLang:             p.ToLang,
	}
	view, err := FeedbackModal(meta)
	if err != nil {
		observe.Logger(ctx).Error("commands: failed to build feedback modal", "err", err)
		return
	}
	if err := f.gw.For(ws.BotAccessToken).OpenModal(ctx, ic.TriggerID, view); err != nil {
		observe.Logger(ctx).Error("commands: failed to open feedback modal", "err", err)
	}
}

// handleHide removes a translation. Threaded translations belong to the bot
// and are deleted. A translation appended to the author's own message is
// stripped with the author's token instead.
func (f *Feedback) handleHide(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback, action *slack.BlockAction) {
	log := observe.Logger(ctx).With("channel", ic.Channel.ID, "ts", ic.Message.Timestamp)

	var p delivery.HidePayload
	if err := json.Unmarshal([]byte(action.Value), &p); err != nil {
		log.Warn("commands: malformed hide payload", "err", err)
		return
	}

	if original, edited := StripTranslation(ic.Message.Text); edited && ic.Message.User != "" && ic.Message.User == ic.User.ID {
		user, err := f.store.GetUser(ctx, ws.TeamID, ic.User.ID)
		if err != nil {
			log.Error("commands: failed to load user", "err", err)
			return
		}
		if user != nil && user.AccessToken != "" {
			err := f.gw.For(user.AccessToken).Update(ctx, ic.Channel.ID, ic.Message.Timestamp, gateway.Message{
				Text:   original,
				Blocks: []slack.Block{slack.NewSectionBlock(mrkdwn(original), nil, nil)},
			})
			if err != nil {
				log.Error("commands: failed to strip translation", "err", err)
			}
			return
		}
	}

	if err := f.gw.For(ws.BotAccessToken).Delete(ctx, ic.Channel.ID, ic.Message.Timestamp); err != nil {
		log.Error("commands: failed to hide translation", "source_ts", p.MessageTS, "err", err)
	}
}

func (f *Feedback) handleSubmit(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback) {
	log := observe.Logger(ctx).With("team", ws.TeamID, "user", ic.User.ID)

	var meta FeedbackMetadata
	if err := json.Unmarshal([]byte(ic.View.PrivateMetadata), &meta); err != nil {
		log.Warn("commands: malformed feedback metadata", "err", err)
		return
	}
	improved := strings.TrimSpace(inputValue(ic.View.State, blockImproved, actionImproved))
	if improved == "" {
		log.Debug("commands: empty feedback ignored")
		return
	}

	c := &store.Correction{
		TeamID:         ws.TeamID,
		UserID:         ic.User.ID,
		OriginalText:   meta.OriginalText,
		OldTranslation: meta.CurrentTranslation,
		NewTranslation: improved,
		Reason:         strings.TrimSpace(inputValue(ic.View.State, blockReason, actionReason)),
		FromLanguage:   meta.FromLang,
		ToLanguage:     meta.ToLang,
		ChannelID:      meta.ChannelID,
		MessageTS:      meta.MessageTS,
	}
	if err := f.store.InsertCorrection(ctx, c); err != nil {
		log.Error("commands: failed to record correction", "err", err)
		return
	}
	log.Info("commands: correction recorded", "id", c.ID, "from", c.FromLanguage, "to", c.ToLanguage)

	_, err := f.gw.For(ws.BotAccessToken).Send(ctx, meta.ChannelID, gateway.Message{Text: ThankYouText, ThreadTS: meta.MessageTS})
	if err != nil {
		log.Warn("commands: failed to thank for feedback", "err", err)
	}
}

// FeedbackModal renders the correction form for meta.
func FeedbackModal(meta FeedbackMetadata) (slack.ModalViewRequest, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return slack.ModalViewRequest{}, fmt.Errorf("commands: encode metadata: %w", err)
	}
	blocks := []slack.Block{
		slack.NewSectionBlock(mrkdwn("*Original Text:*\n"+meta.OriginalText), nil, nil),
		slack.NewSectionBlock(mrkdwn("*Current Translation:*\n"+meta.CurrentTranslation), nil, nil),
		slack.NewDividerBlock(),
		slack.NewInputBlock(blockImproved, plain("🎯 Improved Translation"), nil,
			slack.NewPlainTextInputBlockElement(plain("Enter your improved translation here..."), actionImproved).
				WithMultiline(true)),
		slack.NewInputBlock(blockReason, plain("💭 Reason for Change"), nil,
			slack.NewPlainTextInputBlockElement(plain("Why is this translation better? (optional)"), actionReason).
				WithMultiline(true)).
			WithOptional(true),
	}
	view := modal(CallbackFeedback, "🔄 Suggest Translation", "Submit", blocks)
	view.PrivateMetadata = string(raw)
	return view, nil
}

// StripTranslation returns the text of an edited message without the
// appended translation header. ok is false when text carries no header.
func StripTranslation(text string) (original string, ok bool) {
	from := 0
	for {
		i := strings.Index(text[from:], translationMarker)
		if i < 0 {
			return text, false
		}
		i += from
		if j := strings.LastIndex(text[:i], "\n\n"); j >= 0 {
			flag := text[j+2 : i]
			if flag != "" && !strings.ContainsAny(flag, " \t\n") {
				return text[:j], true
			}
		}
		from = i + len(translationMarker)
	}
}
