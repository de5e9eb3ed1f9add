package translator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

// minTextLen is the shortest message body, in runes, worth translating.
const minTextLen = 3

// loneMention matches a message consisting of nothing but one user mention.
var loneMention = regexp.MustCompile(`^<@U[A-Z0-9]+>$`)

// Skip reasons reported by [Eligible].
const (
	ReasonNone        = ""
	ReasonBot         = "bot"
	ReasonEmpty       = "empty"
	ReasonSubtype     = "subtype"
	ReasonMentionOnly = "mention_only"
	ReasonTooShort    = "too_short"
)

// StripMention removes every literal mention of botUserID from text and trims
// the result. An empty botUserID only trims.
func StripMention(text, botUserID string) string {
	if botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+botUserID+">", "")
	}
	return strings.TrimSpace(text)
}

// ExtractText returns the readable text of a message: the text elements of
// rich_text sections and the mrkdwn of section blocks. When the blocks carry
// no text, fallback is returned.
func ExtractText(blocks []slack.Block, fallback string) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch blk := blk.(type) {
		case *slack.RichTextBlock:
			for _, el := range blk.Elements {
				sec, ok := el.(*slack.RichTextSection)
				if !ok {
					continue
				}
				var parts []string
				for _, se := range sec.Elements {
					if te, ok := se.(*slack.RichTextSectionTextElement); ok {
						parts = append(parts, te.Text)
					}
				}
				b.WriteString(strings.Join(parts, " "))
			}
		case *slack.SectionBlock:
			if blk.Text != nil && blk.Text.Type == slack.MarkdownType {
				b.WriteString(blk.Text.Text)
				b.WriteString(" ")
			}
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// Eligible reports why ev must not be translated, or [ReasonNone]. stripped
// is ev.Text with the bot mention removed.
func Eligible(ev Event, stripped string) string {
	switch {
	case ev.BotID != "":
		return ReasonBot
	case ev.Text == "":
		return ReasonEmpty
	case ev.SubType != "":
		return ReasonSubtype
	case stripped == "":
		return ReasonMentionOnly
	case loneMention.MatchString(strings.TrimSpace(ev.Text)):
		return ReasonMentionOnly
	}
	if utf8.RuneCountInString(strings.TrimSpace(ExtractText(ev.Blocks, ev.Text))) < minTextLen {
		return ReasonTooShort
	}
	return ReasonNone
}
