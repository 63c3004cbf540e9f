// Package llm holds the generative backends behind assist.Completer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/config"
	"github.com/matheus3301/replykit/internal/logging"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
)

// ErrNotConfigured is returned by every call of a backend without an API key.
var ErrNotConfigured = errors.New("generative backend not configured")

// New builds the backend selected in cfg. A missing API key is not fatal:
// the daemon still serves everything else and generation calls fail with
// ErrNotConfigured.
func New(ctx context.Context, cfg config.Generation, log *zap.Logger) (assist.Completer, error) {
	log = logging.OrNop(log)
	if cfg.APIKey == "" {
		log.Warn("no API key for generative backend, suggestions disabled", zap.String("backend", cfg.Backend))
		return Unconfigured{Backend: cfg.Backend}, nil
	}
	timeout := cfg.RequestTimeout.Duration
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch cfg.Backend {
	case config.BackendGemini, "":
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: timeout}, log)
	case config.BackendOpenAI:
		return NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Timeout: timeout}, log), nil
	default:
		return nil, fmt.Errorf("unknown generative backend %q (want %s or %s)", cfg.Backend, config.BackendGemini, config.BackendOpenAI)
	}
}

// Unconfigured fails every call.
type Unconfigured struct {
	Backend string
}

func (u Unconfigured) Complete(context.Context, assist.Request) (string, error) {
	return "", fmt.Errorf("%w: set the %s API key", ErrNotConfigured, u.Backend)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
