package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Slack
	mode := cfg.Slack.Mode
	if mode == "" {
		mode = SlackModeHTTP
	}
	switch {
	case !mode.IsValid():
		errs = append(errs, fmt.Errorf("slack.mode %q is invalid; valid values: http, socket", cfg.Slack.Mode))
	case mode == SlackModeSocket:
		if !strings.HasPrefix(cfg.Slack.AppToken, "xapp-") {
			errs = append(errs, errors.New("slack.app_token must be an xapp- token in socket mode"))
		}
		if cfg.Slack.BotToken == "" && cfg.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("socket mode needs slack.bot_token or an installed workspace in database.postgres_dsn"))
		}
	case mode == SlackModeHTTP:
		if cfg.Slack.SigningSecret == "" {
			slog.Warn("slack.signing_secret is empty; webhook signatures will not be verified")
		}
		if cfg.Slack.ClientID == "" || cfg.Slack.ClientSecret == "" {
			slog.Warn("slack.client_id or slack.client_secret is empty; the install redirect is disabled")
		}
	}

	// Database
	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required"))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}

	// Oracle
	if cfg.Oracle.Retries < 0 {
		errs = append(errs, fmt.Errorf("oracle.retries %d must not be negative", cfg.Oracle.Retries))
	}
	if cfg.Oracle.Temperature < 0 || cfg.Oracle.Temperature > 2 {
		errs = append(errs, fmt.Errorf("oracle.temperature %.2f is out of range [0, 2]", cfg.Oracle.Temperature))
	}

	// Translation
	t := cfg.Translation
	if t.FuzzyThreshold < 0 || t.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("translation.fuzzy_threshold %.2f is out of range [0, 1]", t.FuzzyThreshold))
	}
	if t.FuzzyCandidateLimit < 0 {
		errs = append(errs, fmt.Errorf("translation.fuzzy_candidate_limit %d must not be negative", t.FuzzyCandidateLimit))
	}
	if t.StepTimeout < 0 {
		errs = append(errs, fmt.Errorf("translation.step_timeout %s must not be negative", t.StepTimeout))
	}
	if t.ChunkSize < 0 || t.ButtonPayloadLimit < 0 {
		errs = append(errs, errors.New("translation.chunk_size and translation.button_payload_limit must not be negative"))
	}

	// Telemetry
	if p := cfg.Telemetry.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", p))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
