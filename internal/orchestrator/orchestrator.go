// Package orchestrator turns a page's word groups into a complete id → text
// translation map: reading order, batching, provider calls under the shared
// rate limit and retry policy, and source-text fallback for anything that
// could not be translated.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/batch"
	"github.com/valpere/bubbletran/internal/clock"
	"github.com/valpere/bubbletran/internal/ratelimit"
	"github.com/valpere/bubbletran/internal/retry"
	"github.com/valpere/bubbletran/internal/sequence"
	"github.com/valpere/bubbletran/internal/translator"
)

var (
	ErrEmptyGroupID     = errors.New("group has an empty id")
	ErrDuplicateGroupID = errors.New("duplicate group id")
)

const defaultRetryDelay = 2 * time.Second

type OrchestratorConfig struct {
	MaxItems    int
	MaxBytes    int
	MaxAttempts int
	// RetryDelay overrides the provider's own initial retry delay when > 0.
	RetryDelay time.Duration
	Clock      clock.Clock
}

// Report summarizes one Translate call.
type Report struct {
	Provider      string `json:"provider"`
	Groups        int    `json:"groups"`
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failed_batches"`
	Calls         int    `json:"calls"`
	// Missing counts ids a successful response left out.
	Missing int `json:"missing"`
}

type Orchestrator struct {
	selector *translator.Selector
	limiter  *ratelimit.Limiter
	config   OrchestratorConfig
	logger   *slog.Logger
}

// New builds an orchestrator. A nil limiter disables rate limiting.
func New(selector *translator.Selector, limiter *ratelimit.Limiter, config OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = retry.DefaultMaxAttempts
	}
	return &Orchestrator{
		selector: selector,
		limiter:  limiter,
		config:   config,
		logger:   logger,
	}
}

// Translate returns a translation for every group id. Provider failures
// never surface here: the affected groups map to their source text.
func (o *Orchestrator) Translate(ctx context.Context, groups []internal.WordGroup, history []internal.ContextEntry) (map[string]string, error) {
	result, _, err := o.TranslateWithReport(ctx, groups, history)
	return result, err
}

func (o *Orchestrator) TranslateWithReport(ctx context.Context, groups []internal.WordGroup, history []internal.ContextEntry) (map[string]string, Report, error) {
	if err := validateIDs(groups); err != nil {
		return nil, Report{}, err
	}

	ordered := sequence.OrderGroups(groups)
	result := make(map[string]string, len(ordered))
	items := make([]batch.Item, len(ordered))
	for i, g := range ordered {
		result[g.ID] = g.SourceText
		items[i] = batch.Item{ID: g.ID, Text: g.SourceText}
	}

	report := Report{Groups: len(groups)}
	if len(items) == 0 {
		return result, report, nil
	}

	contextText := FormatContext(history)
	provider := o.selector.Provider(ctx)
	report.Provider = provider.Name()

	batches := batch.Plan(items, batch.Limits{MaxItems: o.config.MaxItems, MaxBytes: o.config.MaxBytes})
	report.Batches = len(batches)

	policy := retry.Policy{
		MaxAttempts:  o.config.MaxAttempts,
		InitialDelay: o.retryDelay(provider),
		Clock:        o.config.Clock,
	}
	_, echo := provider.(*translator.EchoProvider)

	for n, b := range batches {
		translated, outcome := retry.Do(ctx, policy, func(ctx context.Context) (map[string]string, error) {
			if !echo && o.limiter != nil {
				o.limiter.Wait()
			}
			return provider.TranslateBatch(ctx, b.Items, contextText)
		})
		report.Calls += outcome.Calls()

		if outcome.Err != nil {
			report.FailedBatches++
			o.logger.Warn("batch translation failed, using source text",
				"provider", provider.Name(), "batch", n, "items", len(b.Items),
				"attempts", outcome.Calls(), "err", outcome.Err)
			continue
		}

		for _, it := range b.Items {
			if text, ok := translated[it.ID]; ok {
				result[it.ID] = text
			} else {
				report.Missing++
			}
		}
	}

	o.logger.Info("translation finished",
		"provider", report.Provider, "groups", report.Groups, "batches", report.Batches,
		"failed_batches", report.FailedBatches, "calls", report.Calls, "missing", report.Missing)

	return result, report, nil
}

func (o *Orchestrator) retryDelay(p translator.Provider) time.Duration {
	if o.config.RetryDelay > 0 {
		return o.config.RetryDelay
	}
	if rd, ok := p.(translator.RetryDelayer); ok {
		return rd.RetryDelay()
	}
	return defaultRetryDelay
}

func validateIDs(groups []internal.WordGroup) error {
	seen := make(map[string]struct{}, len(groups))
	for i, g := range groups {
		if g.ID == "" {
			return fmt.Errorf("group %d: %w", i, ErrEmptyGroupID)
		}
		if _, dup := seen[g.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateGroupID, g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	return nil
}

// FormatContext renders prior dialogue as "source → target" lines, oldest
// first. Entries with neither text are skipped; an empty string means no
// context.
func FormatContext(history []internal.ContextEntry) string {
	var sb strings.Builder
	for _, e := range history {
		src := strings.TrimSpace(e.Source)
		tgt := strings.TrimSpace(e.Target)
		if src == "" && tgt == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s → %s", src, tgt))
	}
	return sb.String()
}

// Apply writes translations into the groups, defaulting to source text.
func Apply(groups []internal.WordGroup, translations map[string]string) {
	for i := range groups {
		if text, ok := translations[groups[i].ID]; ok {
			groups[i].TranslatedText = text
		} else {
			groups[i].TranslatedText = groups[i].SourceText
		}
	}
}
