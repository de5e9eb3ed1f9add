// Package postgres implements [store.Store] on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lingobridge/internal/glossary"
	"github.com/MrWong99/lingobridge/internal/store"
)

// Schema is the SQL DDL for every table the bot uses. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
    team_id          TEXT PRIMARY KEY,
    team_name        TEXT NOT NULL DEFAULT '',
    authed_user_id   TEXT NOT NULL DEFAULT '',
    bot_access_token TEXT NOT NULL,
    bot_user_id      TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS slack_users (
    team_id          TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    access_token     TEXT NOT NULL DEFAULT '',
    primary_language TEXT NOT NULL DEFAULT '',
    target_language  TEXT NOT NULL DEFAULT '',
    style            TEXT NOT NULL DEFAULT 'formal',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS team_settings (
    team_id           TEXT PRIMARY KEY,
    channels          TEXT[] NOT NULL DEFAULT '{}',
    glossary_terms    JSONB NOT NULL DEFAULT '[]',
    glossary_mappings JSONB NOT NULL DEFAULT '[]',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS corrections (
    id              BIGSERIAL PRIMARY KEY,
    team_id         TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    original_text   TEXT NOT NULL,
    old_translation TEXT NOT NULL,
    new_translation TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    from_language   TEXT NOT NULL,
    to_language     TEXT NOT NULL,
    channel_id      TEXT NOT NULL,
    message_ts      TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_corrections_exact
    ON corrections(team_id, from_language, to_language, md5(original_text));
CREATE INDEX IF NOT EXISTS idx_corrections_recent
    ON corrections(team_id, from_language, to_language, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_corrections_user ON corrections(team_id, user_id);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [store.Store] backed by PostgreSQL. Glossary lists are kept as
// JSONB and the channel activation set as a TEXT array.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// New creates a [Store] over db. Call [Store.Migrate] before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pool to dsn, verifies it with a ping and applies [Schema].
// The caller owns the returned pool and must Close it.
func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// Migrate executes the [Schema] DDL.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// ── Workspaces ────────────────────────────────────────────────────────────────

// UpsertWorkspace implements [store.WorkspaceStore].
func (s *Store) UpsertWorkspace(ctx context.Context, ws *store.Workspace) error {
	if ws.TeamID == "" {
		return fmt.Errorf("postgres: upsert workspace: team id must not be empty")
	}
	const query = `
		INSERT INTO workspaces (team_id, team_name, authed_user_id, bot_access_token, bot_user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id) DO UPDATE SET
			team_name = EXCLUDED.team_name,
			authed_user_id = EXCLUDED.authed_user_id,
			bot_access_token = EXCLUDED.bot_access_token,
			bot_user_id = EXCLUDED.bot_user_id,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		ws.TeamID, ws.TeamName, ws.AuthedUserID, ws.BotAccessToken, ws.BotUserID,
	).Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert workspace %q: %w", ws.TeamID, err)
	}
	return nil
}

// GetWorkspace implements [store.WorkspaceStore].
func (s *Store) GetWorkspace(ctx context.Context, teamID string) (*store.Workspace, error) {
	const query = `
		SELECT team_id, team_name, authed_user_id, bot_access_token, bot_user_id, created_at, updated_at
		FROM workspaces
		WHERE team_id = $1`

	var ws store.Workspace
	err := s.db.QueryRow(ctx, query, teamID).Scan(
		&ws.TeamID, &ws.TeamName, &ws.AuthedUserID, &ws.BotAccessToken, &ws.BotUserID,
		&ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get workspace %q: %w", teamID, err)
	}
	return &ws, nil
}

// ── Users ─────────────────────────────────────────────────────────────────────

// GetUser implements [store.UserStore].
func (s *Store) GetUser(ctx context.Context, teamID, userID string) (*store.User, error) {
	const query = `
		SELECT team_id, user_id, access_token, primary_language, target_language, style, created_at, updated_at
		FROM slack_users
		WHERE team_id = $1 AND user_id = $2`

	var (
		u     store.User
		style string
	)
	err := s.db.QueryRow(ctx, query, teamID, userID).Scan(
		&u.TeamID, &u.UserID, &u.AccessToken,
		&u.Preference.Primary, &u.Preference.Target, &style,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get user %s/%s: %w", teamID, userID, err)
	}
	u.Preference.Style, _ = store.ParseStyle(style)
	return &u, nil
}

// SetPreference implements [store.UserStore].
func (s *Store) SetPreference(ctx context.Context, teamID, userID string, pref store.Preference) error {
	style, ok := store.ParseStyle(string(pref.Style))
	if !ok {
		return fmt.Errorf("postgres: set preference: invalid style %q", pref.Style)
	}
	const query = `
		INSERT INTO slack_users (team_id, user_id, primary_language, target_language, style)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id, user_id) DO UPDATE SET
			primary_language = EXCLUDED.primary_language,
			target_language = EXCLUDED.target_language,
			style = EXCLUDED.style,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, teamID, userID, pref.Primary, pref.Target, string(style)); err != nil {
		return fmt.Errorf("postgres: set preference %s/%s: %w", teamID, userID, err)
	}
	return nil
}

// UpsertUserToken implements [store.UserStore].
func (s *Store) UpsertUserToken(ctx context.Context, teamID, userID, accessToken string) error {
	const query = `
		INSERT INTO slack_users (team_id, user_id, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, teamID, userID, accessToken); err != nil {
		return fmt.Errorf("postgres: upsert user token %s/%s: %w", teamID, userID, err)
	}
	return nil
}

// ── Settings ──────────────────────────────────────────────────────────────────

// GetSettings implements [store.SettingsStore].
func (s *Store) GetSettings(ctx context.Context, teamID string) (*store.Settings, error) {
	const query = `
		SELECT team_id, channels, glossary_terms, glossary_mappings
		FROM team_settings
		WHERE team_id = $1`

	var (
		set                 store.Settings
		termsJSON, mapsJSON []byte
	)
	err := s.db.QueryRow(ctx, query, teamID).Scan(&set.TeamID, &set.Channels, &termsJSON, &mapsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get settings %q: %w", teamID, err)
	}
	if err := json.Unmarshal(termsJSON, &set.Glossary.Terms); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal glossary_terms: %w", err)
	}
	if err := json.Unmarshal(mapsJSON, &set.Glossary.Mappings); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal glossary_mappings: %w", err)
	}
	return &set, nil
}

// ToggleChannel implements [store.SettingsStore]. The flip happens inside a
// single upsert so concurrent toggles serialise on the row lock.
func (s *Store) ToggleChannel(ctx context.Context, teamID, channelID string) (bool, error) {
	const query = `
		INSERT INTO team_settings (team_id, channels)
		VALUES ($1, ARRAY[$2::text])
		ON CONFLICT (team_id) DO UPDATE SET
			channels = CASE
				WHEN $2::text = ANY(team_settings.channels) THEN array_remove(team_settings.channels, $2::text)
				ELSE array_append(team_settings.channels, $2::text)
			END,
			updated_at = now()
		RETURNING $2::text = ANY(channels)`

	var enabled bool
	if err := s.db.QueryRow(ctx, query, teamID, channelID).Scan(&enabled); err != nil {
		return false, fmt.Errorf("postgres: toggle channel %s/%s: %w", teamID, channelID, err)
	}
	return enabled, nil
}

// SetGlossaryTerms implements [store.SettingsStore].
func (s *Store) SetGlossaryTerms(ctx context.Context, teamID string, terms []string) error {
	data, err := json.Marshal(emptySlice(terms))
	if err != nil {
		return fmt.Errorf("postgres: marshal glossary_terms: %w", err)
	}
	const query = `
		INSERT INTO team_settings (team_id, glossary_terms)
		VALUES ($1, $2)
		ON CONFLICT (team_id) DO UPDATE SET
			glossary_terms = EXCLUDED.glossary_terms,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, teamID, data); err != nil {
		return fmt.Errorf("postgres: set glossary terms %q: %w", teamID, err)
	}
	return nil
}

// SetGlossaryMappings implements [store.SettingsStore].
func (s *Store) SetGlossaryMappings(ctx context.Context, teamID string, mappings []glossary.Mapping) error {
	if mappings == nil {
		mappings = []glossary.Mapping{}
	}
	data, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("postgres: marshal glossary_mappings: %w", err)
	}
	const query = `
		INSERT INTO team_settings (team_id, glossary_mappings)
		VALUES ($1, $2)
		ON CONFLICT (team_id) DO UPDATE SET
			glossary_mappings = EXCLUDED.glossary_mappings,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, teamID, data); err != nil {
		return fmt.Errorf("postgres: set glossary mappings %q: %w", teamID, err)
	}
	return nil
}

// ── Corrections ───────────────────────────────────────────────────────────────

const correctionColumns = `id, team_id, user_id, original_text, old_translation, new_translation,
		       reason, from_language, to_language, channel_id, message_ts, created_at`

// InsertCorrection implements [store.CorrectionStore].
func (s *Store) InsertCorrection(ctx context.Context, c *store.Correction) error {
	const query = `
		INSERT INTO corrections (
			team_id, user_id, original_text, old_translation, new_translation,
			reason, from_language, to_language, channel_id, message_ts
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query,
		c.TeamID, c.UserID, c.OriginalText, c.OldTranslation, c.NewTranslation,
		c.Reason, c.FromLanguage, c.ToLanguage, c.ChannelID, c.MessageTS,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert correction: %w", err)
	}
	return nil
}

// FindExact implements [store.CorrectionStore].
func (s *Store) FindExact(ctx context.Context, teamID, text, from, to string) (*store.Correction, error) {
	const query = `
		SELECT ` + correctionColumns + `
		FROM corrections
		WHERE team_id = $1 AND from_language = $2 AND to_language = $3
		  AND md5(original_text) = md5($4) AND original_text = $4
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	c, err := scanCorrection(s.db.QueryRow(ctx, query, teamID, from, to, text))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find exact correction: %w", err)
	}
	return c, nil
}

// FindCandidates implements [store.CorrectionStore].
func (s *Store) FindCandidates(ctx context.Context, teamID, from, to string, limit int) ([]store.Correction, error) {
	query := `
		SELECT ` + correctionColumns + `
		FROM corrections
		WHERE team_id = $1 AND from_language = $2 AND to_language = $3
		ORDER BY created_at DESC, id DESC`
	args := []any{teamID, from, to}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find candidates: %w", err)
	}
	defer rows.Close()

	var out []store.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: find candidates scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find candidates: %w", err)
	}
	return out, nil
}

func scanCorrection(row pgx.Row) (*store.Correction, error) {
	var c store.Correction
	err := row.Scan(
		&c.ID, &c.TeamID, &c.UserID, &c.OriginalText, &c.OldTranslation, &c.NewTranslation,
		&c.Reason, &c.FromLanguage, &c.ToLanguage, &c.ChannelID, &c.MessageTS, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice so JSON
// marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
