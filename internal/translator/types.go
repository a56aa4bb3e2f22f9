package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/bubbletran/internal/batch"
)

// ServiceConfig holds the per-provider settings read from configuration.
type ServiceConfig struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	Model   string        `mapstructure:"model" json:"model"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Provider translates one batch of items per call.
type Provider interface {
	Name() string
	// IsAvailable reports whether the provider is configured. It never
	// touches the network.
	IsAvailable(ctx context.Context) error
	// TranslateBatch returns a translation per item id. contextText, when
	// non-empty, is prior dialogue the translation should stay consistent with.
	TranslateBatch(ctx context.Context, items []batch.Item, contextText string) (map[string]string, error)
}

// Kind classifies a provider failure.
type Kind int

const (
	// KindTransient covers network, HTTP and rate-limit failures.
	KindTransient Kind = iota
	// KindMalformed is a successful call whose body could not be used.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var ErrNotConfigured = errors.New("provider not configured")

type TranslationError struct {
	Provider   string
	Kind       Kind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TranslationError) Unwrap() error { return e.Cause }

// Retryable is false for malformed responses.
func (e *TranslationError) Retryable() bool { return e.Kind == KindTransient }

func (e *TranslationError) RetryAfterHint() time.Duration { return e.RetryAfter }

func transientError(provider, message string, cause error) *TranslationError {
	return &TranslationError{Provider: provider, Kind: KindTransient, Message: message, Cause: cause}
}

func malformedError(provider, message string, cause error) *TranslationError {
	return &TranslationError{Provider: provider, Kind: KindMalformed, Message: message, Cause: cause}
}

// IsMalformed reports whether err is a malformed-response failure.
func IsMalformed(err error) bool {
	var te *TranslationError
	return errors.As(err, &te) && te.Kind == KindMalformed
}
