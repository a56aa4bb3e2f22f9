// Package contextstore persists per-conversation translation history so
// later pages can be translated consistently with earlier ones.
package contextstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/bubbletran/internal"
)

const (
	DefaultMaxEntries = 200
	DefaultMaxReturn  = 40
)

// Store keeps an ordered history per conversation, most recent last.
type Store interface {
	// GetRecent returns up to limit of the newest entries. limit <= 0
	// means the configured maximum.
	GetRecent(ctx context.Context, conversationID string, limit int) ([]internal.ContextEntry, error)
	// Append adds entries and trims the history to the retention limit,
	// discarding the oldest first.
	Append(ctx context.Context, conversationID string, entries []internal.ContextEntry) error
	Conversations(ctx context.Context) ([]Summary, error)
	// Clear removes a conversation and returns how many entries it held.
	Clear(ctx context.Context, conversationID string) (int, error)
	Close() error
}

type Summary struct {
	ConversationID string
	Entries        int
	LastUpdated    time.Time
}

// Limits are the retention and lookup bounds shared by every backend.
type Limits struct {
	MaxEntries int
	MaxReturn  int
}

func (l Limits) withDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxReturn <= 0 {
		l.MaxReturn = DefaultMaxReturn
	}
	return l
}

func (l Limits) resolve(limit int) int {
	if limit <= 0 {
		return l.MaxReturn
	}
	return limit
}

type Config struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	RedisURL   string `mapstructure:"redis_url"`
	MaxEntries int    `mapstructure:"max_entries"`
	MaxReturn  int    `mapstructure:"max_return"`
}

// Open creates the backend named by cfg.Backend: file (default), sqlite or redis.
func Open(ctx context.Context, cfg Config) (Store, error) {
	limits := Limits{MaxEntries: cfg.MaxEntries, MaxReturn: cfg.MaxReturn}
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		s, err = NewFileStore(cfg.Path, limits)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.Path, limits)
	case "redis":
		s, err = NewRedisStore(ctx, cfg.RedisURL, limits)
	default:
		return nil, fmt.Errorf("unknown context backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func secondsToTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec := int64(ts)
	return time.Unix(sec, int64((ts-float64(sec))*float64(time.Second)))
}

// cleanEntries normalizes texts, drops entries with neither text and fills
// missing timestamps.
func cleanEntries(entries []internal.ContextEntry) []internal.ContextEntry {
	now := nowSeconds()
	out := make([]internal.ContextEntry, 0, len(entries))
	for _, e := range entries {
		e.Source = normalizeText(e.Source)
		e.Target = normalizeText(e.Target)
		if e.Source == "" && e.Target == "" {
			continue
		}
		if e.Timestamp <= 0 {
			e.Timestamp = now
		}
		out = append(out, e)
	}
	return out
}

func tail(entries []internal.ContextEntry, n int) []internal.ContextEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
