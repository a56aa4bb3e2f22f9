// Package page runs the full word-to-translation pipeline for one page.
package page

import (
	"context"
	"log/slog"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/contextstore"
	"github.com/valpere/bubbletran/internal/grouping"
	"github.com/valpere/bubbletran/internal/orchestrator"
	"github.com/valpere/bubbletran/internal/sequence"
)

type Result struct {
	Groups []internal.WordGroup
	Report orchestrator.Report
}

type Analyzer struct {
	orchestrator *orchestrator.Orchestrator
	store        contextstore.Store
	logger       *slog.Logger
}

// New builds an analyzer. store may be nil, in which case no history is
// read or written.
func New(orch *orchestrator.Orchestrator, store contextstore.Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{orchestrator: orch, store: store, logger: logger}
}

// Process groups words, assembles their text and translates every group.
// Groups come back in id order. History failures are logged and never
// abort the page.
func (a *Analyzer) Process(ctx context.Context, words []internal.OCRWord, conversationID string) (Result, error) {
	groups := grouping.GroupWords(words)
	sequence.Assemble(groups, words)

	history := a.history(ctx, conversationID)

	translations, report, err := a.orchestrator.TranslateWithReport(ctx, groups, history)
	if err != nil {
		return Result{}, err
	}
	orchestrator.Apply(groups, translations)

	a.remember(ctx, conversationID, groups)

	return Result{Groups: groups, Report: report}, nil
}

func (a *Analyzer) history(ctx context.Context, conversationID string) []internal.ContextEntry {
	if a.store == nil || conversationID == "" {
		return nil
	}
	entries, err := a.store.GetRecent(ctx, conversationID, 0)
	if err != nil {
		a.logger.Warn("failed to load conversation context", "conversation_id", conversationID, "err", err)
		return nil
	}
	return entries
}

// remember stores the page's lines in reading order. Groups left
// untranslated are skipped so fallbacks never become context.
func (a *Analyzer) remember(ctx context.Context, conversationID string, groups []internal.WordGroup) {
	if a.store == nil || conversationID == "" {
		return
	}
	var entries []internal.ContextEntry
	for _, g := range sequence.OrderGroups(groups) {
		if g.SourceText == "" || g.TranslatedText == g.SourceText {
			continue
		}
		entries = append(entries, internal.ContextEntry{Source: g.SourceText, Target: g.TranslatedText})
	}
	if len(entries) == 0 {
		return
	}
	if err := a.store.Append(ctx, conversationID, entries); err != nil {
		a.logger.Warn("failed to save conversation context", "conversation_id", conversationID, "err", err)
	}
}
