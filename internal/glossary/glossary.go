// Package glossary protects team-specific vocabulary across a machine
// translation call.
//
// Protect scans a message for the team's do-not-translate terms and its
// source-to-target mappings and returns a [Document]: a sequence of literal
// spans, kept terms and mapped terms. The Document is only flattened into
// bracket-tag text at the oracle boundary via [Document.Encode]; the oracle is
// instructed to leave the tags alone and [Restore] turns them back into plain
// text afterwards.
//
// Tag syntax uses the reserved double angle bracket delimiters:
//
//	<<KEEP:term>>
//	<<MAP:source:target>>
//
// Text that naturally contains these sequences is indistinguishable from a
// tag. Terms that contain a delimiter are ignored by Protect.
package glossary

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	openDelim  = "<<"
	closeDelim = ">>"
	keepPrefix = "KEEP:"
	mapPrefix  = "MAP:"
)

// Mapping replaces every whole-word occurrence of Source with Target.
type Mapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// String renders the mapping in its "source:target" option form.
func (m Mapping) String() string {
	return m.Source + ":" + m.Target
}

// Config is a team's glossary. Terms are never translated. Mappings are
// substituted verbatim. Both lists are applied in order and a term listed in
// both wins as a protected term because Terms are applied first.
type Config struct {
	Terms    []string  `json:"terms"`
	Mappings []Mapping `json:"mappings"`
}

// IsEmpty reports whether the config would leave every text untouched.
func (c Config) IsEmpty() bool {
	return len(c.Terms) == 0 && len(c.Mappings) == 0
}

// Kind discriminates the segments of a [Document].
type Kind uint8

const (
	// KindLiteral is ordinary text that goes to the oracle as is.
	KindLiteral Kind = iota
	// KindKeep is a protected term that must survive translation unchanged.
	KindKeep
	// KindMap is a mapped term that is replaced with its target.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindKeep:
		return "keep"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Segment is one span of a [Document].
//
// For KindLiteral, Text is the span itself. For KindKeep and KindMap, Text is
// the occurrence exactly as it appeared in the input, and Target is the
// replacement for KindMap.
type Segment struct {
	Kind   Kind
	Text   string
	Target string
}

// Document is the structured form of a protected message.
type Document struct {
	Segments []Segment
}

// Protect splits text into literal, keep and map segments according to cfg.
// Matching is case-insensitive and limited to whole words. Only literal spans
// are scanned, so an earlier match is never rewritten by a later rule.
func Protect(text string, cfg Config) Document {
	segs := []Segment{{Kind: KindLiteral, Text: text}}

	for _, term := range cfg.Terms {
		term = strings.TrimSpace(term)
		if !safeTerm(term) {
			continue
		}
		segs = split(segs, term, func(occ string) Segment {
			return Segment{Kind: KindKeep, Text: occ}
		})
	}
	for _, m := range cfg.Mappings {
		src, dst := strings.TrimSpace(m.Source), strings.TrimSpace(m.Target)
		if !safeTerm(src) || strings.Contains(src, ":") || !safeTerm(dst) {
			continue
		}
		segs = split(segs, src, func(occ string) Segment {
			return Segment{Kind: KindMap, Text: occ, Target: dst}
		})
	}
	return Document{Segments: compact(segs)}
}

// Encode flattens the document into oracle input.
func (d Document) Encode() string {
	var b strings.Builder
	for _, s := range d.Segments {
		switch s.Kind {
		case KindKeep:
			b.WriteString(openDelim + keepPrefix + s.Text + closeDelim)
		case KindMap:
			b.WriteString(openDelim + mapPrefix + s.Text + ":" + s.Target + closeDelim)
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Original reassembles the exact text the document was built from.
func (d Document) Original() string {
	var b strings.Builder
	for _, s := range d.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Render produces the final text: kept terms as written and mapped terms
// replaced by their target.
func (d Document) Render() string {
	var b strings.Builder
	for _, s := range d.Segments {
		if s.Kind == KindMap {
			b.WriteString(s.Target)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Blank reports whether nothing translatable is left once protected and
// mapped terms are masked out.
func (d Document) Blank() bool {
	for _, s := range d.Segments {
		if s.Kind == KindLiteral && strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Placeholders returns the number of keep and map segments.
func (d Document) Placeholders() int {
	n := 0
	for _, s := range d.Segments {
		if s.Kind != KindLiteral {
			n++
		}
	}
	return n
}

// Restore replaces every well-formed tag in masked with its plain text.
// Malformed or unterminated tags are passed through unchanged.
func Restore(masked string) string {
	return Parse(masked).Render()
}

// Parse reads oracle output back into a Document. Anything that is not a
// well-formed tag becomes literal text.
func Parse(masked string) Document {
	var segs []Segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Segment{Kind: KindLiteral, Text: lit.String()})
			lit.Reset()
		}
	}

	rest := masked
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			lit.WriteString(rest)
			break
		}
		lit.WriteString(rest[:i])
		rest = rest[i:]

		seg, n, ok := parseTag(rest)
		if !ok {
			// Only the first '<' is literal; the next one may open a tag.
			lit.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		flush()
		segs = append(segs, seg)
		rest = rest[n:]
	}
	flush()
	return Document{Segments: segs}
}

// parseTag parses a tag at the start of s and returns the segment and the
// number of bytes consumed.
func parseTag(s string) (Segment, int, bool) {
	body := s[len(openDelim):]
	end := strings.Index(body, closeDelim)
	if end < 0 {
		return Segment{}, 0, false
	}
	payload := body[:end]
	if strings.Contains(payload, openDelim) {
		return Segment{}, 0, false
	}
	consumed := len(openDelim) + end + len(closeDelim)

	switch {
	case strings.HasPrefix(payload, keepPrefix):
		term := payload[len(keepPrefix):]
		if term == "" {
			return Segment{}, 0, false
		}
		return Segment{Kind: KindKeep, Text: term}, consumed, true
	case strings.HasPrefix(payload, mapPrefix):
		src, dst, found := strings.Cut(payload[len(mapPrefix):], ":")
		if !found || src == "" || dst == "" {
			return Segment{}, 0, false
		}
		return Segment{Kind: KindMap, Text: src, Target: dst}, consumed, true
	}
	return Segment{}, 0, false
}

// split replaces every whole-word occurrence of term inside the literal
// segments of segs with the segment built by mk.
func split(segs []Segment, term string, mk func(occ string) Segment) []Segment {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if s.Kind != KindLiteral {
			out = append(out, s)
			continue
		}
		last := 0
		for _, loc := range re.FindAllStringIndex(s.Text, -1) {
			if !wholeWord(s.Text, loc[0], loc[1]) {
				continue
			}
			if loc[0] > last {
				out = append(out, Segment{Kind: KindLiteral, Text: s.Text[last:loc[0]]})
			}
			out = append(out, mk(s.Text[loc[0]:loc[1]]))
			last = loc[1]
		}
		if last < len(s.Text) {
			out = append(out, Segment{Kind: KindLiteral, Text: s.Text[last:]})
		}
	}
	return out
}

// compact merges adjacent literal segments and drops empty ones.
func compact(segs []Segment) []Segment {
	out := segs[:0]
	for _, s := range segs {
		if s.Kind == KindLiteral {
			if s.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Kind == KindLiteral {
				out[n-1].Text += s.Text
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func safeTerm(t string) bool {
	return t != "" && !strings.Contains(t, openDelim) && !strings.Contains(t, closeDelim)
}

// wholeWord reports whether text[start:end] is bounded by non-word runes.
func wholeWord(text string, start, end int) bool {
	match := text[start:end]
	first, _ := firstRune(match)
	last, _ := lastRune(match)
	if before, ok := lastRune(text[:start]); ok && isWordRune(first) && isWordRune(before) {
		return false
	}
	if after, ok := firstRune(text[end:]); ok && isWordRune(last) && isWordRune(after) {
		return false
	}
	return true
}

// isWordRune reports whether r takes part in a space-delimited word. Scripts
// written without spaces never form a word boundary, so terms in them match
// anywhere.
func isWordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai) {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

func lastRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r, true
}
