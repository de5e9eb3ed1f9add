// Package commands implements the slash commands, App Home and interactive
// modals of the translation bot on top of a [slackbot.Router].
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/language"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/slackbot"
	"github.com/MrWong99/lingobridge/internal/store"
)

// Slash command names.
const (
	CommandSetTranslation = "/set-translation"
	CommandToggle         = "/translate-toggle"
)

const setTranslationUsage = "Please provide both `primary:<lang>` and `target:<lang>` codes.\n\nExample: `/set-translation primary:en target:ja style:formal`"

// PreferenceStore is the persistence used by [Preferences].
type PreferenceStore interface {
	SetPreference(ctx context.Context, teamID, userID string, pref store.Preference) error
	ToggleChannel(ctx context.Context, teamID, channelID string) (bool, error)
}

// Preferences handles /set-translation and /translate-toggle.
type Preferences struct {
	store PreferenceStore
	gw    gateway.Factory
}

// NewPreferences creates a Preferences handler.
func NewPreferences(st PreferenceStore, gw gateway.Factory) *Preferences {
	return &Preferences{store: st, gw: gw}
}

// Register registers both commands with the router.
func (p *Preferences) Register(r *slackbot.Router) {
	r.RegisterCommand(CommandSetTranslation, p.handleSet)
	r.RegisterCommand(CommandToggle, p.handleToggle)
}

// ParseArgs splits "key:value" words. Words without a colon are ignored and
// later keys override earlier ones.
func ParseArgs(text string) map[string]string {
	args := make(map[string]string)
	for _, word := range strings.Fields(text) {
		k, v, ok := strings.Cut(word, ":")
		if !ok {
			continue
		}
		args[strings.ToLower(k)] = v
	}
	return args
}

// ParsePreference validates /set-translation arguments. The returned
// message is the user-facing explanation when ok is false.
func ParsePreference(text string) (pref store.Preference, msg string, ok bool) {
	args := ParseArgs(text)
	primary, target := args["primary"], args["target"]
	if primary == "" || target == "" {
		return pref, setTranslationUsage, false
	}

	pref.Primary = language.Normalize(primary)
	if !language.Valid(pref.Primary) {
		return pref, fmt.Sprintf("Invalid primary language code: `%s`. Please use a valid ISO 639-1 code (e.g., `en`, `ja`).", primary), false
	}
	pref.Target = language.Normalize(target)
	if !language.Valid(pref.Target) {
		return pref, fmt.Sprintf("Invalid target language code: `%s`. Please use a valid ISO 639-1 code (e.g., `en`, `ja`).", target), false
	}
	style, valid := store.ParseStyle(strings.ToLower(args["style"]))
	if !valid {
		return pref, "Invalid style. It should be one of the following: `formal`, `casual`.", false
	}
	pref.Style = style
	return pref, "", true
}

func (p *Preferences) handleSet(ctx context.Context, ws *store.Workspace, cmd slack.SlashCommand) {
	log := observe.Logger(ctx).With("team", ws.TeamID, "user", cmd.UserID)

	pref, msg, ok := ParsePreference(cmd.Text)
	if ok {
		if err := p.store.SetPreference(ctx, ws.TeamID, cmd.UserID, pref); err != nil {
			log.Error("commands: failed to save preference", "err", err)
			msg = "Sorry, I couldn't save your translation settings. Please try again."
		} else {
			log.Info("commands: preference updated", "primary", pref.Primary, "target", pref.Target, "style", pref.Style)
			msg = fmt.Sprintf("Your translation settings have been updated successfully! %s %s → %s %s (%s)",
				language.Flag(pref.Primary), language.Name(pref.Primary),
				language.Flag(pref.Target), language.Name(pref.Target), pref.Style)
		}
	}
	reply(ctx, p.gw.For(ws.BotAccessToken), cmd.ChannelID, cmd.UserID, msg)
}

func (p *Preferences) handleToggle(ctx context.Context, ws *store.Workspace, cmd slack.SlashCommand) {
	enabled, err := p.store.ToggleChannel(ctx, ws.TeamID, cmd.ChannelID)
	if err != nil {
		observe.Logger(ctx).Error("commands: failed to toggle channel", "team", ws.TeamID, "channel", cmd.ChannelID, "err", err)
		reply(ctx, p.gw.For(ws.BotAccessToken), cmd.ChannelID, cmd.UserID, "Sorry, I couldn't change the translation setting for this channel.")
		return
	}
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	reply(ctx, p.gw.For(ws.BotAccessToken), cmd.ChannelID, cmd.UserID,
		fmt.Sprintf("Translation has been %s for this channel.", status))
}

// reply sends an ephemeral message and logs failures.
func reply(ctx context.Context, m gateway.Messenger, channel, user, text string) {
	if err := m.SendEphemeral(ctx, channel, user, gateway.Message{Text: text}); err != nil {
		observe.Logger(ctx).Warn("commands: failed to send ephemeral reply", "channel", channel, "err", err)
	}
}
