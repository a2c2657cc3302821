// Package genai produces AI-assisted replies for leads: prompt building per
// business vertical, provider calls, compliance screening and canned fallbacks.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/pkg/ports"
)

// DefaultMaxChars caps generated replies when the request sets no limit.
const DefaultMaxChars = 300

// ErrNoProvider is returned by Generate when no provider is configured.
var ErrNoProvider = errors.New("no generation provider configured")

// Provider is a text generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, user string) (string, error)
}

// Service implements ports.Generator over an ordered list of providers.
type Service struct {
	providers []Provider
	business  string
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithProvider appends a provider. Providers are tried in order.
func WithProvider(p Provider) Option {
	return func(s *Service) {
		s.providers = append(s.providers, p)
	}
}

// WithBusinessName names the company in the system prompt.
func WithBusinessName(name string) Option {
	return func(s *Service) {
		s.business = name
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a generation service.
func NewService(opts ...Option) *Service {
	s := &Service{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate tries each provider in order. A reply that breaks a compliance
// rule is replaced by the vertical's fallback instead of trying the next provider.
// An error is returned only when every provider failed.
func (s *Service) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if len(s.providers) == 0 {
		return "", ErrNoProvider
	}

	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	system := SystemPrompt(req.Vertical, s.business)
	user := UserPrompt(req, maxChars)

	var errs []error
	for _, p := range s.providers {
		text, err := p.Generate(ctx, system, user)
		if err != nil {
			s.logger.Warn("provider failed", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if violations := Violations(text); len(violations) > 0 {
			s.logger.Warn("reply rejected by compliance", "provider", p.Name(), "violations", violations)
			return FallbackResponse(req.Vertical), nil
		}
		return truncate(text, maxChars), nil
	}
	return "", errors.Join(errs...)
}

// Fallback returns the canned reply for a vertical.
func (s *Service) Fallback(vertical string) string {
	return FallbackResponse(vertical)
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars-1]) + "…"
}

var _ ports.Generator = (*Service)(nil)
