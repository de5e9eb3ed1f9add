// Package mock provides an in-memory [store.Store] for tests.
//
// Unlike a pure stub, [Store] keeps real state so that handlers and the
// translation pipeline can be exercised end to end without a database.
// Every method invocation is recorded and any method can be made to fail by
// setting the matching entry in [Store.Errs].
//
// Typical usage:
//
//	st := mock.New()
//	st.Errs["GetUser"] = errors.New("db down")
//
//	// inject st into the system under test …
//
//	if got := st.CallCount("GetUser"); got != 1 {
//	    t.Errorf("expected 1 GetUser call, got %d", got)
//	}
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/lingobridge/internal/glossary"
	"github.com/MrWong99/lingobridge/internal/store"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is an in-memory [store.Store]. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	calls []Call

	// Errs maps a method name to the error it should return. A missing key
	// means success.
	Errs map[string]error

	// Now supplies timestamps. Defaults to [time.Now].
	Now func() time.Time

	workspaces  map[string]store.Workspace
	users       map[[2]string]store.User
	settings    map[string]store.Settings
	corrections []store.Correction
	nextID      int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		Errs:       make(map[string]error),
		workspaces: make(map[string]store.Workspace),
		users:      make(map[[2]string]store.User),
		settings:   make(map[string]store.Settings),
	}
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Corrections returns every stored correction in insertion order.
func (m *Store) Corrections() []store.Correction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.corrections)
}

// record must be called with mu held.
func (m *Store) record(method string, args ...any) error {
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return m.Errs[method]
}

func (m *Store) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// UpsertWorkspace implements [store.WorkspaceStore].
func (m *Store) UpsertWorkspace(_ context.Context, ws *store.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpsertWorkspace", ws.TeamID); err != nil {
		return err
	}
	now := m.now()
	if prev, ok := m.workspaces[ws.TeamID]; ok {
		ws.CreatedAt = prev.CreatedAt
	} else {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now
	m.workspaces[ws.TeamID] = *ws
	return nil
}

// GetWorkspace implements [store.WorkspaceStore].
func (m *Store) GetWorkspace(_ context.Context, teamID string) (*store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetWorkspace", teamID); err != nil {
		return nil, err
	}
	ws, ok := m.workspaces[teamID]
	if !ok {
		return nil, nil
	}
	return &ws, nil
}

// GetUser implements [store.UserStore].
func (m *Store) GetUser(_ context.Context, teamID, userID string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetUser", teamID, userID); err != nil {
		return nil, err
	}
	u, ok := m.users[[2]string{teamID, userID}]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// SetPreference implements [store.UserStore].
func (m *Store) SetPreference(_ context.Context, teamID, userID string, pref store.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetPreference", teamID, userID, pref); err != nil {
		return err
	}
	if pref.Style == "" {
		pref.Style = store.StyleFormal
	}
	u := m.userLocked(teamID, userID)
	u.Preference = pref
	m.users[[2]string{teamID, userID}] = u
	return nil
}

// UpsertUserToken implements [store.UserStore].
func (m *Store) UpsertUserToken(_ context.Context, teamID, userID, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpsertUserToken", teamID, userID); err != nil {
		return err
	}
	u := m.userLocked(teamID, userID)
	u.AccessToken = accessToken
	m.users[[2]string{teamID, userID}] = u
	return nil
}

func (m *Store) userLocked(teamID, userID string) store.User {
	now := m.now()
	u, ok := m.users[[2]string{teamID, userID}]
	if !ok {
		u = store.User{TeamID: teamID, UserID: userID, CreatedAt: now}
	}
	u.UpdatedAt = now
	return u
}

// GetSettings implements [store.SettingsStore].
func (m *Store) GetSettings(_ context.Context, teamID string) (*store.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetSettings", teamID); err != nil {
		return nil, err
	}
	s, ok := m.settings[teamID]
	if !ok {
		return nil, nil
	}
	s.Channels = slices.Clone(s.Channels)
	s.Glossary = glossary.Config{
		Terms:    slices.Clone(s.Glossary.Terms),
		Mappings: slices.Clone(s.Glossary.Mappings),
	}
	return &s, nil
}

// ToggleChannel implements [store.SettingsStore].
func (m *Store) ToggleChannel(_ context.Context, teamID, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ToggleChannel", teamID, channelID); err != nil {
		return false, err
	}
	s := m.settings[teamID]
	s.TeamID = teamID
	enabled := false
	if i := slices.Index(s.Channels, channelID); i >= 0 {
		s.Channels = slices.Delete(slices.Clone(s.Channels), i, i+1)
	} else {
		s.Channels = append(slices.Clone(s.Channels), channelID)
		enabled = true
	}
	m.settings[teamID] = s
	return enabled, nil
}

// SetGlossaryTerms implements [store.SettingsStore].
func (m *Store) SetGlossaryTerms(_ context.Context, teamID string, terms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetGlossaryTerms", teamID, terms); err != nil {
		return err
	}
	s := m.settings[teamID]
	s.TeamID = teamID
	s.Glossary.Terms = slices.Clone(terms)
	m.settings[teamID] = s
	return nil
}

// SetGlossaryMappings implements [store.SettingsStore].
func (m *Store) SetGlossaryMappings(_ context.Context, teamID string, mappings []glossary.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetGlossaryMappings", teamID, mappings); err != nil {
		return err
	}
	s := m.settings[teamID]
	s.TeamID = teamID
	s.Glossary.Mappings = slices.Clone(mappings)
	m.settings[teamID] = s
	return nil
}

// InsertCorrection implements [store.CorrectionStore].
func (m *Store) InsertCorrection(_ context.Context, c *store.Correction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("InsertCorrection", c.TeamID, c.OriginalText); err != nil {
		return err
	}
	m.nextID++
	c.ID = m.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.corrections = append(m.corrections, *c)
	return nil
}

// FindExact implements [store.CorrectionStore].
func (m *Store) FindExact(_ context.Context, teamID, text, from, to string) (*store.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindExact", teamID, text, from, to); err != nil {
		return nil, err
	}
	for _, c := range m.newestFirst(teamID, from, to) {
		if c.OriginalText == text {
			return &c, nil
		}
	}
	return nil, nil
}

// FindCandidates implements [store.CorrectionStore].
func (m *Store) FindCandidates(_ context.Context, teamID, from, to string, limit int) ([]store.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindCandidates", teamID, from, to, limit); err != nil {
		return nil, err
	}
	out := m.newestFirst(teamID, from, to)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// newestFirst orders by CreatedAt then ID, both descending.
func (m *Store) newestFirst(teamID, from, to string) []store.Correction {
	var out []store.Correction
	for _, c := range m.corrections {
		if c.TeamID == teamID && c.FromLanguage == from && c.ToLanguage == to {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b store.Correction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out
}
