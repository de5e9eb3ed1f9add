package commands

import (
	"context"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/glossary"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/slackbot"
	"github.com/MrWong99/lingobridge/internal/store"
)

// Glossary action and callback IDs.
const (
	ActionManageTerms   = "manage_terms"
	ActionManageMapping = "manage_mapping"

	CallbackManageTerms   = "manage_terms_callback"
	CallbackManageMapping = "manage_mapping_callback"
)

// Block and action IDs of the glossary modal inputs.
const (
	blockAddedTerm   = "added_term_data"
	actionAddedTerm  = "added_term"
	blockTerms       = "terms_data"
	actionTerms      = "terms"
	blockAddedSource = "added_source_data"
	actionAddedSrc   = "added_source"
	blockAddedTarget = "added_target_data"
	actionAddedTgt   = "added_target"
	blockMappings    = "mapping_data"
	actionMappings   = "mappings"
)

const placeholderImage = "https://api.slack.com/img/blocks/bkb_template_images/placeholder.png"

// GlossaryStore is the persistence used by [Glossary].
type GlossaryStore interface {
	GetSettings(ctx context.Context, teamID string) (*store.Settings, error)
	SetGlossaryTerms(ctx context.Context, teamID string, terms []string) error
	SetGlossaryMappings(ctx context.Context, teamID string, mappings []glossary.Mapping) error
}

// Glossary serves the App Home tab and the term and mapping modals.
type Glossary struct {
	store GlossaryStore
	gw    gateway.Factory
}

// NewGlossary creates a Glossary handler.
func NewGlossary(st GlossaryStore, gw gateway.Factory) *Glossary {
	return &Glossary{store: st, gw: gw}
}

// Register registers the home tab, the manage buttons and the modal
// submissions with the router.
func (g *Glossary) Register(r *slackbot.Router) {
	r.RegisterEvent(string(slackevents.AppHomeOpened), g.handleHomeOpened)
	r.RegisterAction(ActionManageTerms, g.handleManageTerms)
	r.RegisterAction(ActionManageMapping, g.handleManageMapping)
	r.RegisterView(CallbackManageTerms, g.handleTermsSubmit)
	r.RegisterView(CallbackManageMapping, g.handleMappingSubmit)
}

func (g *Glossary) handleHomeOpened(ctx context.Context, ws *store.Workspace, ev slackevents.EventsAPIInnerEvent) {
	opened, ok := ev.Data.(*slackevents.AppHomeOpenedEvent)
	if !ok {
		return
	}
	if opened.Tab != "" && opened.Tab != "home" {
		return
	}
	if err := g.gw.For(ws.BotAccessToken).PublishHome(ctx, opened.User, HomeView()); err != nil {
		observe.Logger(ctx).Error("commands: failed to publish home", "user", opened.User, "err", err)
	}
}

func (g *Glossary) handleManageTerms(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback, _ *slack.BlockAction) {
	cfg, ok := g.glossary(ctx, ws.TeamID)
	if !ok {
		return
	}
	if err := g.gw.For(ws.BotAccessToken).OpenModal(ctx, ic.TriggerID, TermsModal(cfg.Terms)); err != nil {
		observe.Logger(ctx).Error("commands: failed to open terms modal", "err", err)
	}
}

func (g *Glossary) handleManageMapping(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback, _ *slack.BlockAction) {
	cfg, ok := g.glossary(ctx, ws.TeamID)
	if !ok {
		return
	}
	if err := g.gw.For(ws.BotAccessToken).OpenModal(ctx, ic.TriggerID, MappingModal(cfg.Mappings)); err != nil {
		observe.Logger(ctx).Error("commands: failed to open mapping modal", "err", err)
	}
}

func (g *Glossary) handleTermsSubmit(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback) {
	cfg, ok := g.glossary(ctx, ws.TeamID)
	if !ok {
		return
	}
	added := inputValue(ic.View.State, blockAddedTerm, actionAddedTerm)
	kept := selectedValues(ic.View.State, blockTerms, actionTerms)

	terms := glossary.EditTerms(cfg.Terms, added, kept)
	if err := g.store.SetGlossaryTerms(ctx, ws.TeamID, terms); err != nil {
		observe.Logger(ctx).Error("commands: failed to save terms", "team", ws.TeamID, "err", err)
		return
	}
	observe.Logger(ctx).Info("commands: glossary terms updated", "team", ws.TeamID, "count", len(terms))
}

func (g *Glossary) handleMappingSubmit(ctx context.Context, ws *store.Workspace, ic *slack.InteractionCallback) {
	cfg, ok := g.glossary(ctx, ws.TeamID)
	if !ok {
		return
	}
	added := glossary.Mapping{
		Source: inputValue(ic.View.State, blockAddedSource, actionAddedSrc),
		Target: inputValue(ic.View.State, blockAddedTarget, actionAddedTgt),
	}
	kept := selectedValues(ic.View.State, blockMappings, actionMappings)

	mappings := glossary.EditMappings(cfg.Mappings, added, kept)
	if err := g.store.SetGlossaryMappings(ctx, ws.TeamID, mappings); err != nil {
		observe.Logger(ctx).Error("commands: failed to save mappings", "team", ws.TeamID, "err", err)
		return
	}
	observe.Logger(ctx).Info("commands: glossary mappings updated", "team", ws.TeamID, "count", len(mappings))
}

func (g *Glossary) glossary(ctx context.Context, teamID string) (glossary.Config, bool) {
	settings, err := g.store.GetSettings(ctx, teamID)
	if err != nil {
		observe.Logger(ctx).Error("commands: failed to load settings", "team", teamID, "err", err)
		return glossary.Config{}, false
	}
	return settings.GlossaryConfig(), true
}

// HomeView renders the App Home tab.
func HomeView() slack.HomeTabViewRequest {
	return slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewHeaderBlock(plain(":wave::skin-tone-2: Welcome to Translator Bot!"), slack.HeaderBlockOptionBlockID("header")),
			slack.NewSectionBlock(mrkdwn("I can help translate messages in your channels. Use `/set-translation primary:ja target:en` to set your language preferences and `/translate-toggle` to enable/disable translation in channels."),
				nil, nil, slack.SectionBlockOptionBlockID("details_header")),
			slack.NewDividerBlock(),
			slack.NewContextBlock("", slack.NewImageBlockElement(placeholderImage, "placeholder")),
			slack.NewSectionBlock(mrkdwn(":gear: *Glossary Management*"), nil, nil),
			slack.NewActionBlock("",
				slack.NewButtonBlockElement(ActionManageTerms, "", plain("📖 Manage Terms")),
				slack.NewButtonBlockElement(ActionManageMapping, "", plain("🔄 Manage Mapping")),
			),
			slack.NewDividerBlock(),
			slack.NewContextBlock("", mrkdwn("Manage your *Do Not Translate* terms and *Mapping List* here.")),
		}},
	}
}

// TermsModal renders the protected term editor.
func TermsModal(terms []string) slack.ModalViewRequest {
	blocks := []slack.Block{
		slack.NewInputBlock(blockAddedTerm, plain("➕ Add a New Term"), nil,
			slack.NewPlainTextInputBlockElement(plainNoEmoji("Enter a new term (e.g. MyNumber)"), actionAddedTerm)).
			WithOptional(true),
	}

	var opts []*slack.OptionBlockObject
	for _, t := range terms {
		if t == "" {
			continue
		}
		opts = append(opts, slack.NewOptionBlockObject(t, plain(t), nil))
	}
	if len(opts) > 0 {
		sel := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic, plain("Deselect terms to remove them"), actionTerms, opts...).
			WithInitialOptions(opts...)
		blocks = append(blocks, slack.NewInputBlock(blockTerms, plain("📖 Current Terms (deselect to remove)"), nil, sel).WithOptional(true))
	} else {
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn("_No terms yet. Add your first one above!_"), nil, nil))
	}

	return modal(CallbackManageTerms, "📖 Manage Terms", "Save", blocks)
}

// MappingModal renders the source → target mapping editor.
func MappingModal(mappings []glossary.Mapping) slack.ModalViewRequest {
	blocks := []slack.Block{
		slack.NewInputBlock(blockAddedSource, plain("🔑 Source Term"), nil,
			slack.NewPlainTextInputBlockElement(plainNoEmoji("Enter source term (e.g. 源泉徴収)"), actionAddedSrc)).
			WithOptional(true),
		slack.NewInputBlock(blockAddedTarget, plain("🎯 Target Term"), nil,
			slack.NewPlainTextInputBlockElement(plainNoEmoji("Enter target term (e.g. withholding tax)"), actionAddedTgt)).
			WithOptional(true),
		slack.NewDividerBlock(),
	}

	var opts []*slack.OptionBlockObject
	for _, m := range mappings {
		if m.Source == "" || m.Target == "" {
			continue
		}
		opts = append(opts, slack.NewOptionBlockObject(m.String(), plain(m.Source+" → "+m.Target), nil))
	}
	if len(opts) > 0 {
		sel := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic, plain("Deselect mappings to remove them"), actionMappings, opts...).
			WithInitialOptions(opts...)
		blocks = append(blocks, slack.NewInputBlock(blockMappings, plain("🔄 Current Mappings (deselect to remove)"), nil, sel).WithOptional(true))
	} else {
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn("_No mappings yet. Add your first one above!_"), nil, nil))
	}

	return modal(CallbackManageMapping, "🔄 Manage Mapping", "Save", blocks)
}

func modal(callbackID, title, submit string, blocks []slack.Block) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackID,
		Title:      plain(title),
		Submit:     plain(submit),
		Close:      plain("Cancel"),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func plainNoEmoji(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// inputValue returns the value of a plain text input, or "".
func inputValue(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].Value
}

// selectedValues returns the values of a multi-select's selected options.
func selectedValues(state *slack.ViewState, blockID, actionID string) []string {
	if state == nil {
		return nil
	}
	opts := state.Values[blockID][actionID].SelectedOptions
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}
