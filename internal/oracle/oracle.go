// Package oracle asks a language model to detect the language of a message
// and to translate it while honouring glossary placeholders.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/lingobridge/internal/language"
	"github.com/MrWong99/lingobridge/internal/observe"
	"github.com/MrWong99/lingobridge/internal/store"
	"github.com/MrWong99/lingobridge/pkg/provider/llm"
)

var (
	// ErrEmptyResponse is returned when the model answers with blank content.
	ErrEmptyResponse = errors.New("oracle: empty response")

	// ErrNotLanguageCode is returned by Detect when the reply is not an
	// ISO 639-1 code.
	ErrNotLanguageCode = errors.New("oracle: reply is not a language code")
)

const detectPrompt = "Detect the primary language of the given text. Respond with only the ISO 639-1 language code (e.g., 'en', 'ja', 'es', 'fr', etc.)."

// Oracle is the language model collaborator of the translation pipeline.
type Oracle interface {
	// Detect returns the lower-case ISO 639-1 code of text's language.
	Detect(ctx context.Context, text string) (string, error)

	// Translate translates masked text. Glossary placeholders in the input
	// are explained to the model, which is asked to resolve them.
	Translate(ctx context.Context, text, from, to string, style store.Style) (string, error)
}

// Config tunes model calls.
type Config struct {
	Temperature float64
	MaxTokens   int

	// Retries is how many extra attempts follow a failed call.
	Retries int

	// RetryBackoff is the delay before the first retry. It doubles on each
	// further attempt. Default 500ms.
	RetryBackoff time.Duration
}

// LLM implements [Oracle] on an [llm.Provider].
type LLM struct {
	provider llm.Provider
	cfg      Config
	metrics  *observe.Metrics
	sleep    func(context.Context, time.Duration) error
}

var _ Oracle = (*LLM)(nil)

// New creates an LLM oracle. metrics may be nil.
func New(p llm.Provider, cfg Config, metrics *observe.Metrics) *LLM {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &LLM{provider: p, cfg: cfg, metrics: metrics, sleep: sleepCtx}
}

// Detect implements [Oracle].
func (o *LLM) Detect(ctx context.Context, text string) (string, error) {
	out, err := o.complete(ctx, "detect", detectPrompt, text)
	if err != nil {
		return "", err
	}
	code := language.Normalize(out)
	if !language.Valid(code) {
		return "", fmt.Errorf("%w: %q", ErrNotLanguageCode, out)
	}
	return code, nil
}

// Translate implements [Oracle].
func (o *LLM) Translate(ctx context.Context, text, from, to string, style store.Style) (string, error) {
	if style == "" {
		style = store.StyleFormal
	}
	return o.complete(ctx, "translate", TranslatePrompt(from, to, style), text)
}

// TranslatePrompt builds the system prompt for a translation request.
func TranslatePrompt(from, to string, style store.Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the following text from %s to %s.\n\n", from, to)
	b.WriteString("Rules:\n")
	b.WriteString("1. Do not translate or modify:\n")
	b.WriteString("   - Emojis (e.g., :wave:)\n")
	b.WriteString("   - Slack formatting (*bold*, _italic_, ~strike~, :emoji:, inline code, code blocks, and links like <https://...>)\n")
	b.WriteString("   - Any text inside <<KEEP:...>> markers - keep the original term inside\n")
	b.WriteString("   - Any text inside <<MAP:source:target>> markers - replace with the target term\n")
	b.WriteString("2. Handle special markers:\n")
	b.WriteString("   - <<KEEP:term>> → keep \"term\" unchanged in the output\n")
	b.WriteString("   - <<MAP:source:target>> → replace with \"target\" in the output\n")
	b.WriteString("3. Preserve markdown and Slack formatting exactly.\n")
	b.WriteString("4. Do not translate code or inline code.\n")
	b.WriteString("5. Keep proper nouns and technical terms unchanged when appropriate.\n")
	fmt.Fprintf(&b, "6. Always translate from %s to %s, unless the text is 100%% identical to %s.\n\n", from, to, to)
	fmt.Fprintf(&b, "IMPORTANT: The translation style must be %s.\n", style)
	fmt.Fprintf(&b, "  - If style = %q, use polite, respectful language.\n", store.StyleFormal)
	fmt.Fprintf(&b, "  - If style = %q, use friendly, informal language.\n\n", store.StyleCasual)
	b.WriteString("Return only the translated text with markers properly processed, nothing else.")
	return b.String()
}

func (o *LLM) complete(ctx context.Context, op, system, user string) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
		Temperature:  o.cfg.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
	}

	ctx, span := observe.StartSpan(ctx, "oracle."+op)
	defer span.End()

	var lastErr error
	backoff := o.cfg.RetryBackoff
	for attempt := 0; attempt <= o.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, backoff); err != nil {
				return "", fmt.Errorf("oracle: %s: %w", op, errors.Join(lastErr, err))
			}
			backoff *= 2
		}

		start := time.Now()
		out, err := o.once(ctx, req)
		o.record(ctx, op, err, time.Since(start))
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		observe.Logger(ctx).Debug("oracle: attempt failed", "op", op, "attempt", attempt+1, "err", err)
	}
	return "", fmt.Errorf("oracle: %s: %w", op, lastErr)
}

func (o *LLM) once(ctx context.Context, req llm.CompletionRequest) (string, error) {
	resp, err := o.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (o *LLM) record(ctx context.Context, op string, err error, d time.Duration) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordOracle(ctx, op, status, d.Seconds())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
