package correction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/lingobridge/internal/store"
	"github.com/MrWong99/lingobridge/internal/store/mock"
)

func insert(t *testing.T, st *mock.Store, text, translation string, at time.Time) {
	t.Helper()
	c := &store.Correction{
		TeamID: "T1", UserID: "U1",
		OriginalText: text, NewTranslation: translation,
		FromLanguage: "en", ToLanguage: "ja",
		CreatedAt: at,
	}
	if err := st.InsertCorrection(context.Background(), c); err != nil {
		t.Fatalf("InsertCorrection: %v", err)
	}
}

func TestLookup_ExactMostRecentWins(t *testing.T) {
	t.Parallel()

	st := mock.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insert(t, st, "foo", "X", base)
	insert(t, st, "foo", "Y", base.Add(time.Minute))

	m := New(st)
	res, err := m.Lookup(context.Background(), "T1", "foo", "en", "ja")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res == nil || res.Correction.NewTranslation != "Y" {
		t.Fatalf("Lookup = %+v, want translation Y", res)
	}
	if res.Kind != MatchExact || res.Score != 1 {
		t.Errorf("Kind/Score = %s/%v, want exact/1", res.Kind, res.Score)
	}
	if st.CallCount("FindCandidates") != 0 {
		t.Error("fuzzy search ran despite an exact hit")
	}
}

func TestLookup_Fuzzy(t *testing.T) {
	t.Parallel()

	st := mock.New()
	insert(t, st, "see you on Friday", "金曜日に会いましょう", time.Now())

	m := New(st)
	res, err := m.Lookup(context.Background(), "T1", "see you on Monday", "en", "ja")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res == nil || res.Kind != MatchFuzzy {
		t.Fatalf("Lookup = %+v, want fuzzy hit", res)
	}
	if res.Score <= DefaultThreshold {
		t.Errorf("score %v not above threshold", res.Score)
	}
}

func TestLookup_FuzzyBelowThreshold(t *testing.T) {
	t.Parallel()

	st := mock.New()
	insert(t, st, "the quarterly report is ready", "x", time.Now())

	res, err := New(st).Lookup(context.Background(), "T1", "lunch at noon?", "en", "ja")
	if err != nil || res != nil {
		t.Fatalf("Lookup = (%+v, %v), want (nil, nil)", res, err)
	}
}

func TestLookup_Empty(t *testing.T) {
	t.Parallel()

	res, err := New(mock.New()).Lookup(context.Background(), "T1", "hello", "en", "ja")
	if err != nil || res != nil {
		t.Fatalf("Lookup = (%+v, %v), want (nil, nil)", res, err)
	}
}

func TestLookup_OtherLanguagePairIgnored(t *testing.T) {
	t.Parallel()

	st := mock.New()
	insert(t, st, "hello", "こんにちは", time.Now())

	res, err := New(st).Lookup(context.Background(), "T1", "hello", "en", "fr")
	if err != nil || res != nil {
		t.Fatalf("Lookup = (%+v, %v), want (nil, nil)", res, err)
	}
}

func TestLookup_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	for _, method := range []string{"FindExact", "FindCandidates"} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			st := mock.New()
			st.Errs[method] = boom
			if _, err := New(st).Lookup(context.Background(), "T1", "hi", "en", "ja"); !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapped boom", err)
			}
		})
	}
}

func TestLookup_CandidateLimit(t *testing.T) {
	t.Parallel()

	st := mock.New()
	m := New(st, WithCandidateLimit(5))
	if _, err := m.Lookup(context.Background(), "T1", "hi", "en", "ja"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	var got any
	for _, c := range st.Calls() {
		if c.Method == "FindCandidates" {
			got = c.Args[3]
		}
	}
	if got != 5 {
		t.Errorf("limit passed = %v, want 5", got)
	}

	m.SetCandidateLimit(0)
	if m.CandidateLimit() != 0 {
		t.Errorf("CandidateLimit = %d after reset", m.CandidateLimit())
	}
}

func TestBest(t *testing.T) {
	t.Parallel()

	newer := store.Correction{ID: 2, OriginalText: "abcdefghij"}
	older := store.Correction{ID: 1, OriginalText: "abcdefghij"}
	worse := store.Correction{ID: 3, OriginalText: "abcdefgxyz"}

	tests := []struct {
		name      string
		cands     []store.Correction
		threshold float64
		wantID    int64
	}{
		{"tie goes to newest", []store.Correction{newer, older}, 0.8, 2},
		{"best score wins", []store.Correction{worse, older}, 0.5, 1},
		{"strictly above threshold", []store.Correction{worse}, 0.7, 0},
		{"no candidates", nil, 0.8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := Best("abcdefghij", tt.cands, tt.threshold)
			var id int64
			if got != nil {
				id = got.ID
			}
			if id != tt.wantID {
				t.Errorf("Best ID = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestSetThreshold(t *testing.T) {
	t.Parallel()

	m := New(mock.New(), WithThreshold(0.5))
	if m.Threshold() != 0.5 {
		t.Fatalf("Threshold = %v, want 0.5", m.Threshold())
	}
	m.SetThreshold(0.9)
	if m.Threshold() != 0.9 {
		t.Errorf("Threshold = %v, want 0.9", m.Threshold())
	}
}
