// Package store defines the persistence contracts of the translation bot:
// installed workspaces, per-user language preferences, per-team settings
// (activated channels and glossary) and the append-only correction log.
//
// Lookups of absent records return (nil, nil). Implementations must be safe
// for concurrent use.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MrWong99/lingobridge/internal/glossary"
)

// ErrNotFound reports a record required by the caller that does not exist.
// Store methods themselves return (nil, nil) for absent records.
var ErrNotFound = errors.New("store: not found")

// Style is the register requested for translations.
type Style string

const (
	StyleFormal Style = "formal"
	StyleCasual Style = "casual"
)

// ParseStyle accepts "formal" and "casual". An empty string yields
// [StyleFormal].
func ParseStyle(s string) (Style, bool) {
	switch Style(s) {
	case "", StyleFormal:
		return StyleFormal, true
	case StyleCasual:
		return StyleCasual, true
	}
	return "", false
}

// Workspace is a Slack team that installed the app.
type Workspace struct {
	TeamID         string
	TeamName       string
	AuthedUserID   string
	BotAccessToken string
	BotUserID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Preference is a user's translation direction and register.
type Preference struct {
	Primary string
	Target  string
	Style   Style
}

// IsSet reports whether both languages are configured.
func (p Preference) IsSet() bool {
	return p.Primary != "" && p.Target != ""
}

// User is a workspace member known to the bot. AccessToken is the user token
// granted during install and is empty for everyone else.
type User struct {
	TeamID      string
	UserID      string
	AccessToken string
	Preference  Preference
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Settings holds per-team configuration.
type Settings struct {
	TeamID   string
	Channels []string
	Glossary glossary.Config
}

// ChannelEnabled reports whether translation is active in channelID. A nil
// Settings has no active channels.
func (s *Settings) ChannelEnabled(channelID string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Channels, channelID)
}

// GlossaryConfig returns the team glossary, or the empty glossary for a nil
// Settings.
func (s *Settings) GlossaryConfig() glossary.Config {
	if s == nil {
		return glossary.Config{}
	}
	return s.Glossary
}

// Correction is a human-improved translation. Corrections are never updated;
// a newer record for the same text supersedes older ones at read time.
type Correction struct {
	ID             int64
	TeamID         string
	UserID         string
	OriginalText   string
	OldTranslation string
	NewTranslation string
	Reason         string
	FromLanguage   string
	ToLanguage     string
	ChannelID      string
	MessageTS      string
	CreatedAt      time.Time
}

// WorkspaceStore persists installed workspaces.
type WorkspaceStore interface {
	// UpsertWorkspace creates or replaces the workspace keyed by TeamID.
	UpsertWorkspace(ctx context.Context, ws *Workspace) error

	// GetWorkspace returns (nil, nil) if the team never installed the app.
	GetWorkspace(ctx context.Context, teamID string) (*Workspace, error)
}

// UserStore persists users and their preferences.
type UserStore interface {
	// GetUser returns (nil, nil) if the user is unknown.
	GetUser(ctx context.Context, teamID, userID string) (*User, error)

	// SetPreference creates the user if needed and replaces the preference.
	SetPreference(ctx context.Context, teamID, userID string, pref Preference) error

	// UpsertUserToken stores the user token granted during install.
	UpsertUserToken(ctx context.Context, teamID, userID, accessToken string) error
}

// SettingsStore persists per-team settings.
type SettingsStore interface {
	// GetSettings returns (nil, nil) if the team has no settings yet.
	GetSettings(ctx context.Context, teamID string) (*Settings, error)

	// ToggleChannel atomically adds channelID to the activation set when
	// absent and removes it when present. It reports the new state.
	ToggleChannel(ctx context.Context, teamID, channelID string) (enabled bool, err error)

	// SetGlossaryTerms replaces the protected term list.
	SetGlossaryTerms(ctx context.Context, teamID string, terms []string) error

	// SetGlossaryMappings replaces the mapping list.
	SetGlossaryMappings(ctx context.Context, teamID string, mappings []glossary.Mapping) error
}

// CorrectionStore is the append-only correction log.
type CorrectionStore interface {
	// InsertCorrection appends c and fills in its ID and CreatedAt.
	InsertCorrection(ctx context.Context, c *Correction) error

	// FindExact returns the newest correction for exactly this text and
	// language pair, or (nil, nil).
	FindExact(ctx context.Context, teamID, text, from, to string) (*Correction, error)

	// FindCandidates returns corrections for the language pair newest first.
	// limit <= 0 returns all of them.
	FindCandidates(ctx context.Context, teamID, from, to string, limit int) ([]Correction, error)
}

// Store bundles every persistence contract.
type Store interface {
	WorkspaceStore
	UserStore
	SettingsStore
	CorrectionStore
}
