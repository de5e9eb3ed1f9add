package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/lingobridge/internal/config"
)

// validConfig returns the smallest config that passes validation.
func validConfig() *config.Config {
	return &config.Config{
		Database:  config.DatabaseConfig{PostgresDSN: "postgres://localhost/test"},
		Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai"}},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "minimal", mutate: func(*config.Config) {}},
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "half tls",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"} },
			wantErr: "server.tls",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *config.Config) { c.Slack.Mode = "rtm" },
			wantErr: "slack.mode",
		},
		{
			name: "socket without app token",
			mutate: func(c *config.Config) {
				c.Slack.Mode = config.SlackModeSocket
				c.Slack.AppToken = "xoxb-wrong"
			},
			wantErr: "slack.app_token",
		},
		{
			name: "socket with tokens",
			mutate: func(c *config.Config) {
				c.Slack.Mode = config.SlackModeSocket
				c.Slack.AppToken = "xapp-1"
				c.Slack.BotToken = "xoxb-1"
			},
		},
		{
			name:    "missing dsn",
			mutate:  func(c *config.Config) { c.Database.PostgresDSN = "" },
			wantErr: "database.postgres_dsn",
		},
		{
			name:    "missing llm",
			mutate:  func(c *config.Config) { c.Providers.LLM.Name = "" },
			wantErr: "providers.llm.name",
		},
		{
			name: "unnamed fallback",
			mutate: func(c *config.Config) {
				c.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "anthropic"}, {Model: "x"}}
			},
			wantErr: "providers.llm_fallbacks[1].name",
		},
		{
			name:    "negative retries",
			mutate:  func(c *config.Config) { c.Oracle.Retries = -1 },
			wantErr: "oracle.retries",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *config.Config) { c.Oracle.Temperature = 3 },
			wantErr: "oracle.temperature",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *config.Config) { c.Translation.FuzzyThreshold = 1.5 },
			wantErr: "translation.fuzzy_threshold",
		},
		{
			name:    "negative candidate limit",
			mutate:  func(c *config.Config) { c.Translation.FuzzyCandidateLimit = -5 },
			wantErr: "translation.fuzzy_candidate_limit",
		},
		{
			name:    "relative metrics path",
			mutate:  func(c *config.Config) { c.Telemetry.MetricsPath = "metrics" },
			wantErr: "telemetry.metrics_path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	err := config.Validate(&config.Config{Server: config.ServerConfig{LogLevel: "loud"}})
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.log_level", "database.postgres_dsn", "providers.llm.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q lacks %q", err, want)
		}
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lingobridge.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.PostgresDSN == "" {
		t.Error("database section not loaded")
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()

	known := config.ValidProviderNames["llm"]
	for _, name := range []string{"openai", "anthropic", "ollama"} {
		found := false
		for _, k := range known {
			if k == name {
				found = true
			}
		}
		if !found {
			t.Errorf("llm provider %q missing from ValidProviderNames", name)
		}
	}
}
