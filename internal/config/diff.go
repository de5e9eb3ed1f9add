package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdChanged bool
	NewThreshold     float64

	CandidateLimitChanged bool
	NewCandidateLimit     int

	// RestartRequired lists sections that changed but only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether d carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ThresholdChanged && !d.CandidateLimitChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Translation.FuzzyThreshold != new.Translation.FuzzyThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Translation.FuzzyThreshold
	}
	if old.Translation.FuzzyCandidateLimit != new.Translation.FuzzyCandidateLimit {
		d.CandidateLimitChanged = true
		d.NewCandidateLimit = new.Translation.FuzzyCandidateLimit
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Slack != new.Slack {
		d.RestartRequired = append(d.RestartRequired, "slack")
	}
	if old.Database != new.Database {
		d.RestartRequired = append(d.RestartRequired, "database")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Oracle != new.Oracle {
		d.RestartRequired = append(d.RestartRequired, "oracle")
	}
	ot, nt := old.Translation, new.Translation
	if ot.StepTimeout != nt.StepTimeout || ot.ChunkSize != nt.ChunkSize || ot.ButtonPayloadLimit != nt.ButtonPayloadLimit {
		d.RestartRequired = append(d.RestartRequired, "translation")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.LLM, b.LLM) || len(a.LLMFallbacks) != len(b.LLMFallbacks) {
		return false
	}
	for i := range a.LLMFallbacks {
		if !entryEqual(a.LLMFallbacks[i], b.LLMFallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual ignores Options, which are opaque to the config layer.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
