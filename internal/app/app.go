// Package app wires all lingobridge subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves Slack traffic until the context ends, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithGateway, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingobridge/internal/config"
	"github.com/MrWong99/lingobridge/internal/correction"
	"github.com/MrWong99/lingobridge/internal/delivery"
	"github.com/MrWong99/lingobridge/internal/gateway"
	"github.com/MrWong99/lingobridge/internal/health"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/oracle"
	"github.com/MrWong99/lingobridge/internal/resilience"
	"github.com/MrWong99/lingobridge/internal/slackbot"
	"github.com/MrWong99/lingobridge/internal/slackbot/commands"
	"github.com/MrWong99/lingobridge/internal/store"
	"github.com/MrWong99/lingobridge/internal/store/postgres"
	"github.com/MrWong99/lingobridge/internal/translator"
	"github.com/MrWong99/lingobridge/pkg/provider/llm"
)

const (
	defaultListenAddr  = ":3000"
	defaultMetricsPath = "/metrics"
	shutdownDrain      = 10 * time.Second
)

// NamedProvider is an LLM backend with the name used in logs and metrics.
type NamedProvider struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the LLM backends built by main.go via the config registry.
// Fallbacks are tried in order when LLM fails.
type Providers struct {
	LLM       NamedProvider
	Fallbacks []NamedProvider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	store     store.Store
	checkers  []health.Checker
	gw        gateway.Factory
	metrics   *observe.Metrics
	memory    *correction.Memory
	bot       *slackbot.Bot
	handler   http.Handler
	socket    *slackbot.SocketRunner
	exchanger slackbot.Exchanger
	watcher   *config.Watcher
	level     *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of connecting to Postgres.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithGateway injects the Slack Web API factory.
func WithGateway(gw gateway.Factory) Option {
	return func(a *App) { a.gw = gw }
}

// WithMetrics injects the metrics instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithExchanger injects the OAuth code exchanger.
func WithExchanger(ex slackbot.Exchanger) Option {
	return func(a *App) { a.exchanger = ex }
}

// WithWatcher runs w alongside the server and applies its reloads.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithLogLevel lets hot reloads change the level of the default logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gw == nil {
		a.gw = gateway.NewFactory()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Oracle ────────────────────────────────────────────────────────
	orc, err := a.buildOracle()
	if err != nil {
		return nil, fmt.Errorf("app: init oracle: %w", err)
	}

	// ── 3. Translation pipeline ──────────────────────────────────────────
	a.memory = correction.New(a.store,
		correction.WithThreshold(threshold(cfg.Translation.FuzzyThreshold)),
		correction.WithCandidateLimit(cfg.Translation.FuzzyCandidateLimit),
	)
	policy := delivery.New(a.gw, delivery.Config{
		ChunkSize:          cfg.Translation.ChunkSize,
		ButtonPayloadLimit: cfg.Translation.ButtonPayloadLimit,
	}, a.metrics)
	tr := translator.New(translator.Config{
		Store:       a.store,
		Memory:      a.memory,
		Oracle:      orc,
		Delivery:    policy,
		Gateway:     a.gw,
		Metrics:     a.metrics,
		StepTimeout: cfg.Translation.StepTimeout,
	})

	// ── 4. Slack bot ─────────────────────────────────────────────────────
	a.initBot(tr)

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to Postgres unless a store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		return errors.New("database.postgres_dsn is required when no store is injected")
	}
	st, pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = st
	a.checkers = append(a.checkers, health.PingChecker("postgres", pool))
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	slog.Info("connected to postgres")
	return nil
}

// buildOracle wraps the configured LLM backends in a fallback chain when more
// than one is configured.
func (a *App) buildOracle() (*oracle.LLM, error) {
	if a.providers == nil || a.providers.LLM.Provider == nil {
		return nil, errors.New("an LLM provider is required")
	}

	var p llm.Provider = a.providers.LLM.Provider
	if len(a.providers.Fallbacks) > 0 {
		fb := resilience.NewLLMFallback(a.providers.LLM.Provider, a.providers.LLM.Name, resilience.FallbackConfig{
			OnResult: a.recordProviderResult,
		})
		for _, f := range a.providers.Fallbacks {
			fb.AddFallback(f.Name, f.Provider)
		}
		slog.Info("llm fallback chain", "providers", fb.Names())
		p = fb
	}

	oc := a.cfg.Oracle
	return oracle.New(p, oracle.Config{
		Temperature:  oc.Temperature,
		MaxTokens:    oc.MaxTokens,
		Retries:      oc.Retries,
		RetryBackoff: oc.RetryBackoff,
	}, a.metrics), nil
}

func (a *App) recordProviderResult(provider string, err error) {
	ctx := context.Background()
	status := "ok"
	if err != nil {
		status = "error"
		a.metrics.RecordProviderError(ctx, provider, "llm")
	}
	a.metrics.RecordProviderRequest(ctx, provider, "llm", status)
}

// initBot creates the dispatcher and registers every command, action, view
// and event handler.
func (a *App) initBot(tr *translator.Orchestrator) {
	sc := a.cfg.Slack

	var fallback *store.Workspace
	if sc.Mode == config.SlackModeSocket && sc.BotToken != "" {
		fallback = &store.Workspace{BotAccessToken: sc.BotToken, BotUserID: sc.BotUserID}
	}

	a.bot = slackbot.New(slackbot.Config{
		Workspaces: a.store,
		Messages:   tr,
		Gateway:    a.gw,
		Metrics:    a.metrics,
		Default:    fallback,
	})
	router := a.bot.Router()
	commands.NewPreferences(a.store, a.gw).Register(router)
	commands.NewGlossary(a.store, a.gw).Register(router)
	commands.NewFeedback(a.store, a.gw).Register(router)
	slog.Debug("slack handlers registered", "commands", router.Commands())

	if sc.Mode == config.SlackModeSocket {
		a.socket = slackbot.NewSocketRunner(sc.AppToken, sc.BotToken, a.bot, sc.Debug)
	}
}

// initHTTP builds the mux: probes and metrics always, Slack webhooks and the
// install redirect in http mode.
func (a *App) initHTTP() {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)

	metricsPath := a.cfg.Telemetry.MetricsPath
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}
	mux.Handle("GET "+metricsPath, promhttp.Handler())

	sc := a.cfg.Slack
	if sc.Mode != config.SlackModeSocket {
		var installer *slackbot.Installer
		ex := a.exchanger
		if ex == nil && sc.ClientID != "" && sc.ClientSecret != "" {
			ex = slackbot.OAuthExchanger{
				ClientID:     sc.ClientID,
				ClientSecret: sc.ClientSecret,
				RedirectURL:  sc.RedirectURL,
			}
		}
		if ex != nil {
			installer = slackbot.NewInstaller(ex, a.store, a.gw, sc.InstallRedirect)
		}
		slackbot.NewHandler(a.bot, sc.SigningSecret, installer).Register(mux)
	}

	a.handler = observe.Middleware(a.metrics)(mux)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, the Socket Mode connection and the config watcher until
// ctx is cancelled or one of them fails. In-flight Slack handlers are given
// a short grace period before Run returns.
func (a *App) Run(ctx context.Context) error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.socket != nil {
		g.Go(func() error { return a.socket.Run(gctx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app running", "slack_mode", a.mode())
	err := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
	defer cancel()
	if werr := a.bot.Wait(drainCtx); werr != nil {
		slog.Warn("slack handlers still running at shutdown", "err", werr)
	}

	if err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) mode() config.SlackMode {
	if a.cfg.Slack.Mode == "" {
		return config.SlackModeHTTP
	}
	return a.cfg.Slack.Mode
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable part of a config change. It is meant to
// be the callback of a [config.Watcher].
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ThresholdChanged {
		a.memory.SetThreshold(threshold(d.NewThreshold))
		slog.Info("fuzzy threshold changed", "threshold", a.memory.Threshold())
	}
	if d.CandidateLimitChanged {
		a.memory.SetCandidateLimit(d.NewCandidateLimit)
		slog.Info("fuzzy candidate limit changed", "limit", d.NewCandidateLimit)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config level to slog. Unknown levels map to info.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func threshold(t float64) float64 {
	if t <= 0 {
		return correction.DefaultThreshold
	}
	return t
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
