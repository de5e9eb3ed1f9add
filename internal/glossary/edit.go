package glossary

import (
	"slices"
	"strings"
)

// EditTerms applies a "manage terms" submission to current. Blank entries are
// dropped and added is appended unless already present. When current was
// non-empty, only the terms in kept survive, together with added.
func EditTerms(current []string, added string, kept []string) []string {
	added = strings.TrimSpace(added)

	out := make([]string, 0, len(current)+1)
	for _, t := range current {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	if added != "" && !slices.Contains(out, added) {
		out = append(out, added)
	}
	if len(current) == 0 {
		return out
	}
	return slices.DeleteFunc(out, func(t string) bool {
		return t != added && !slices.Contains(kept, t)
	})
}

// EditMappings applies a "manage mapping" submission to current. kept holds
// the "source:target" values still selected. The new pair is appended unless
// an identical one exists, and it always survives the selection filter.
func EditMappings(current []Mapping, added Mapping, kept []string) []Mapping {
	added = Mapping{Source: strings.TrimSpace(added.Source), Target: strings.TrimSpace(added.Target)}
	hasAdded := added.Source != "" && added.Target != ""

	out := make([]Mapping, 0, len(current)+1)
	for _, m := range current {
		m = Mapping{Source: strings.TrimSpace(m.Source), Target: strings.TrimSpace(m.Target)}
		if m.Source == "" || m.Target == "" || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	if hasAdded && !slices.Contains(out, added) {
		out = append(out, added)
	}
	if len(current) == 0 {
		return out
	}
	return slices.DeleteFunc(out, func(m Mapping) bool {
		return !(hasAdded && m == added) && !slices.Contains(kept, m.String())
	})
}

// ParseMapping parses the "source:target" option form.
func ParseMapping(s string) (Mapping, bool) {
	src, dst, ok := strings.Cut(s, ":")
	src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
	if !ok || src == "" || dst == "" {
		return Mapping{}, false
	}
	return Mapping{Source: src, Target: dst}, true
}
