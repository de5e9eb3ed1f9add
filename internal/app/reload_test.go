package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/MrWong99/lingobridge/internal/config"
	"github.com/MrWong99/lingobridge/internal/correction"
	gwmock "github.com/MrWong99/lingobridge/internal/gateway/mock"
	storemock "github.com/MrWong99/lingobridge/internal/store/mock"
	llmmock "github.com/MrWong99/lingobridge/pkg/provider/llm/mock"
)

func TestReload_AppliesHotSettings(t *testing.T) {
	t.Parallel()

	old := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "mock"}},
	}
	var level slog.LevelVar
	a, err := New(context.Background(), old,
		&Providers{LLM: NamedProvider{Name: "mock", Provider: &llmmock.Provider{}}},
		WithStore(storemock.New()),
		WithGateway(gwmock.NewFactory()),
		WithLogLevel(&level),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := a.memory.Threshold(); got != correction.DefaultThreshold {
		t.Fatalf("initial threshold = %v, want default", got)
	}

	updated := *old
	updated.Server.LogLevel = config.LogDebug
	updated.Translation.FuzzyThreshold = 0.95
	updated.Translation.FuzzyCandidateLimit = 10
	a.Reload(old, &updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if got := a.memory.Threshold(); got != 0.95 {
		t.Errorf("threshold = %v, want 0.95", got)
	}
	if got := a.memory.CandidateLimit(); got != 10 {
		t.Errorf("candidate limit = %d, want 10", got)
	}

	// Dropping the threshold back to zero restores the default.
	reset := updated
	reset.Translation.FuzzyThreshold = 0
	a.Reload(&updated, &reset)
	if got := a.memory.Threshold(); got != correction.DefaultThreshold {
		t.Errorf("threshold after reset = %v, want default", got)
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range tests {
		if got := SlogLevel(in); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
