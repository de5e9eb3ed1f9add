package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/store"
	"github.com/MrWong99/lingobridge/internal/translator"
)

// ErrMissingCode is returned when the OAuth redirect carries no code.
var ErrMissingCode = errors.New("slackbot: missing oauth code")

// Exchanger trades an OAuth code for tokens.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*slack.OAuthV2Response, error)
}

// OAuthExchanger calls oauth.v2.access.
type OAuthExchanger struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client
}

// Exchange implements [Exchanger].
func (e OAuthExchanger) Exchange(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := slack.GetOAuthV2ResponseContext(ctx, client, e.ClientID, e.ClientSecret, code, e.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("slackbot: oauth exchange: %w", err)
	}
	return resp, nil
}

// InstallStore persists what an install grants.
type InstallStore interface {
	UpsertWorkspace(ctx context.Context, ws *store.Workspace) error
	UpsertUserToken(ctx context.Context, teamID, userID, accessToken string) error
}

// Installer completes the OAuth v2 install flow.
type Installer struct {
	exchanger Exchanger
	store     InstallStore
	gw        gateway.Factory
	redirect  string
}

// NewInstaller creates an Installer. After a successful install the browser
// is sent to redirectBase with a workspaceTeamId query parameter.
func NewInstaller(ex Exchanger, st InstallStore, gw gateway.Factory, redirectBase string) *Installer {
	return &Installer{exchanger: ex, store: st, gw: gw, redirect: strings.TrimRight(redirectBase, "/")}
}

// Install exchanges code, stores the workspace and installer token, and
// welcomes the installing user.
func (i *Installer) Install(ctx context.Context, code string) (*store.Workspace, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}
	resp, err := i.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	ws := &store.Workspace{
		TeamID:         resp.Team.ID,
		TeamName:       resp.Team.Name,
		AuthedUserID:   resp.AuthedUser.ID,
		BotAccessToken: resp.AccessToken,
		BotUserID:      resp.BotUserID,
	}
	if err := i.store.UpsertWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("slackbot: save workspace: %w", err)
	}
	if resp.AuthedUser.AccessToken != "" {
		if err := i.store.UpsertUserToken(ctx, ws.TeamID, ws.AuthedUserID, resp.AuthedUser.AccessToken); err != nil {
			return nil, fmt.Errorf("slackbot: save user token: %w", err)
		}
	}

	if _, err := i.gw.For(ws.BotAccessToken).Send(ctx, ws.AuthedUserID, gateway.Message{Text: translator.WelcomeMessage}); err != nil {
		observe.Logger(ctx).Warn("slackbot: failed to send welcome message", "team", ws.TeamID, "err", err)
	}
	return ws, nil
}

// ServeHTTP handles GET /slack/redirect.
func (i *Installer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := i.Install(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		observe.Logger(r.Context()).Warn("slackbot: install failed", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": err.Error()})
		return
	}
	observe.Logger(r.Context()).Info("slackbot: workspace installed", "team", ws.TeamID, "name", ws.TeamName)
	target := i.redirect + "/?workspaceTeamId=" + url.QueryEscape(ws.TeamID)
	http.Redirect(w, r, target, http.StatusFound)
}
