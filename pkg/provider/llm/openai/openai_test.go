package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/lingobridge/pkg/provider/llm"
)

// TestConvertMessage_Roles checks that every supported role is converted.
func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role  string
		check func(t *testing.T, sys, user, asst bool)
	}{
		{llm.RoleSystem, func(t *testing.T, sys, _, _ bool) {
			if !sys {
				t.Error("expected OfSystem to be set")
			}
		}},
		{llm.RoleUser, func(t *testing.T, _, user, _ bool) {
			if !user {
				t.Error("expected OfUser to be set")
			}
		}},
		{llm.RoleAssistant, func(t *testing.T, _, _, asst bool) {
			if !asst {
				t.Error("expected OfAssistant to be set")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			p, err := convertMessage(llm.Message{Role: tt.role, Content: "hi"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, p.OfSystem != nil, p.OfUser != nil, p.OfAssistant != nil)
		})
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestModelCapabilities checks the known model table and the defaults.
func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model   string
		context int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4.1-mini", 1_047_576},
		{"gpt-4", 8_192},
		{"gpt-3.5-turbo", 16_385},
		{"my-custom-model", 128_000},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.context {
			t.Errorf("%s: ContextWindow = %d, want %d", tt.model, caps.ContextWindow, tt.context)
		}
		if caps.MaxOutputTokens <= 0 {
			t.Errorf("%s: expected MaxOutputTokens > 0", tt.model)
		}
	}
}

// TestNew_Validation ensures constructor rejects empty arguments.
func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

// TestComplete_RoundTrip runs Complete against a fake chat completions endpoint.
func TestComplete_RoundTrip(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hola mundo"}}],
"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "translate",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Hello world"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Hola mundo" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hola mundo")
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model sent = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Hello world" {
		t.Errorf("unexpected messages sent: %+v", got.Messages)
	}
}

// TestComplete_NoMessages rejects an empty request before any network call.
func TestComplete_NoMessages(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
