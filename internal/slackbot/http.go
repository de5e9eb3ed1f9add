package slackbot

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// maxBodyBytes caps inbound Slack payloads.
const maxBodyBytes = 1 << 20

// Handler serves the Slack HTTP endpoints.
type Handler struct {
	bot       *Bot
	secret    string
	installer *Installer
}

// NewHandler creates a Handler. Requests are verified against the signing
// secret; an empty secret disables verification. installer may be nil, in
// which case the OAuth redirect endpoint is not mounted.
func NewHandler(bot *Bot, signingSecret string, installer *Installer) *Handler {
	return &Handler{bot: bot, secret: signingSecret, installer: installer}
}

// Register mounts the Slack endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /slack/events", h.events)
	mux.HandleFunc("POST /slack/slash-commands", h.slashCommands)
	mux.HandleFunc("POST /slack/interactive-events", h.interactiveEvents)
	if h.installer != nil {
		mux.Handle("GET /slack/redirect", h.installer)
	}
}

// verify reads the request body and checks the Slack signature. On failure
// the response has been written and nil is returned.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil
	}
	if h.secret == "" {
		return body
	}
	sv, err := slack.NewSecretsVerifier(r.Header, h.secret)
	if err != nil {
		slog.Warn("slackbot: rejected request", "path", r.URL.Path, "err", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil
	}
	if _, err := sv.Write(body); err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil
	}
	if err := sv.Ensure(); err != nil {
		slog.Warn("slackbot: signature mismatch", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil
	}
	return body
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	body := h.verify(w, r)
	if body == nil {
		return
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.Warn("slackbot: malformed event payload", "err", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if ev.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "malformed challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": challenge.Challenge})
		return
	}

	w.WriteHeader(http.StatusOK)
	h.bot.DispatchEvent(r.Context(), ev)
}

func (h *Handler) slashCommands(w http.ResponseWriter, r *http.Request) {
	body := h.verify(w, r)
	if body == nil {
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		slog.Warn("slackbot: malformed slash command", "err", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	h.bot.DispatchCommand(r.Context(), cmd)
}

func (h *Handler) interactiveEvents(w http.ResponseWriter, r *http.Request) {
	body := h.verify(w, r)
	if body == nil {
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	var ic slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &ic); err != nil {
		// Malformed interactions are acknowledged and dropped.
		slog.Warn("slackbot: malformed interaction payload", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
	h.bot.DispatchInteraction(r.Context(), ic)
}
