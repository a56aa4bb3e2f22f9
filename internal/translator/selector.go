package translator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultProvider is used when the configured name is unknown.
const DefaultProvider = "cerebras"

// RetryDelayer is implemented by providers with their own initial retry delay.
type RetryDelayer interface {
	RetryDelay() time.Duration
}

// Selector resolves the configured provider once and caches it for the
// lifetime of the process. It is safe for concurrent use.
type Selector struct {
	name      string
	providers map[string]Provider
	logger    *slog.Logger

	once     sync.Once
	selected Provider
}

// NewSelector registers providers by Name. The echo provider is always
// registered.
func NewSelector(name string, logger *slog.Logger, providers ...Provider) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		name:      strings.ToLower(strings.TrimSpace(name)),
		providers: make(map[string]Provider, len(providers)+1),
		logger:    logger,
	}
	echo := NewEchoProvider()
	s.providers[echo.Name()] = echo
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// Provider returns the selected provider, resolving it on first use.
func (s *Selector) Provider(ctx context.Context) Provider {
	s.once.Do(func() {
		s.selected = s.resolve(ctx)
	})
	return s.selected
}

func (s *Selector) resolve(ctx context.Context) Provider {
	p, ok := s.providers[s.name]
	if !ok {
		s.logger.Warn("unknown translation provider, using default", "provider", s.name, "default", DefaultProvider)
		p, ok = s.providers[DefaultProvider]
	}
	if !ok {
		s.logger.Warn("default translation provider not registered, falling back to echo", "provider", DefaultProvider)
		return s.providers["echo"]
	}
	if err := p.IsAvailable(ctx); err != nil {
		s.logger.Warn("translation provider unavailable, falling back to echo", "provider", p.Name(), "err", err)
		return s.providers["echo"]
	}
	s.logger.Info("translation provider selected", "provider", p.Name())
	return p
}
