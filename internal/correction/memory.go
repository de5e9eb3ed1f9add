// Package correction reuses human-improved translations.
//
// [Memory] consults the correction log before a fresh machine translation is
// requested: an exact match on the source text wins outright, otherwise the
// most similar earlier correction is used when its similarity score is
// strictly above the configured threshold.
package correction

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/MrWong99/lingobridge/internal/similarity"
	"github.com/MrWong99/lingobridge/internal/store"
)

// DefaultThreshold is the similarity a fuzzy candidate must exceed.
const DefaultThreshold = 0.8

// Match kinds reported by [Memory.Lookup].
const (
	MatchNone  = ""
	MatchExact = "exact"
	MatchFuzzy = "fuzzy"
)

// Result is a successful lookup.
type Result struct {
	Correction store.Correction
	// Kind is [MatchExact] or [MatchFuzzy].
	Kind string
	// Score is 1 for exact matches.
	Score float64
}

// Option configures a [Memory].
type Option func(*Memory)

// WithThreshold overrides [DefaultThreshold].
func WithThreshold(t float64) Option {
	return func(m *Memory) { m.SetThreshold(t) }
}

// WithCandidateLimit bounds how many of the newest corrections are scored.
// Zero or a negative value scores every correction for the language pair.
func WithCandidateLimit(n int) Option {
	return func(m *Memory) { m.SetCandidateLimit(n) }
}

// Memory looks up corrections. It holds no mutable state besides its tuning
// knobs, which may be changed concurrently with lookups.
type Memory struct {
	store     store.CorrectionStore
	threshold atomic.Uint64 // math.Float64bits
	limit     atomic.Int64
}

// New creates a Memory over cs.
func New(cs store.CorrectionStore, opts ...Option) *Memory {
	m := &Memory{store: cs}
	m.SetThreshold(DefaultThreshold)
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetThreshold changes the fuzzy threshold at runtime.
func (m *Memory) SetThreshold(t float64) { m.threshold.Store(math.Float64bits(t)) }

// Threshold returns the current fuzzy threshold.
func (m *Memory) Threshold() float64 { return math.Float64frombits(m.threshold.Load()) }

// SetCandidateLimit changes the candidate limit at runtime.
func (m *Memory) SetCandidateLimit(n int) { m.limit.Store(int64(n)) }

// CandidateLimit returns the current candidate limit.
func (m *Memory) CandidateLimit() int { return int(m.limit.Load()) }

// Lookup returns the correction to reuse for text translated from → to in
// team, or (nil, nil) when there is none.
func (m *Memory) Lookup(ctx context.Context, team, text, from, to string) (*Result, error) {
	exact, err := m.store.FindExact(ctx, team, text, from, to)
	if err != nil {
		return nil, fmt.Errorf("correction: exact lookup: %w", err)
	}
	if exact != nil {
		return &Result{Correction: *exact, Kind: MatchExact, Score: 1}, nil
	}

	candidates, err := m.store.FindCandidates(ctx, team, from, to, m.CandidateLimit())
	if err != nil {
		return nil, fmt.Errorf("correction: candidate lookup: %w", err)
	}
	best, score := Best(text, candidates, m.Threshold())
	if best == nil {
		return nil, nil
	}
	return &Result{Correction: *best, Kind: MatchFuzzy, Score: score}, nil
}

// Best returns the candidate most similar to text whose score is strictly
// greater than threshold. candidates must be ordered newest first; on equal
// scores the earlier (newer) one wins.
func Best(text string, candidates []store.Correction, threshold float64) (*store.Correction, float64) {
	var (
		best      *store.Correction
		bestScore float64
	)
	for i := range candidates {
		s := similarity.Score(text, candidates[i].OriginalText)
		if s <= threshold {
			continue
		}
		if best == nil || s > bestScore {
			best, bestScore = &candidates[i], s
		}
	}
	return best, bestScore
}
