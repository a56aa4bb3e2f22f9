/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/contextstore"
	"github.com/valpere/bubbletran/internal/orchestrator"
	"github.com/valpere/bubbletran/internal/page"
	"github.com/valpere/bubbletran/internal/ratelimit"
	"github.com/valpere/bubbletran/internal/translator"
)

// buildServices constructs every provider the configuration can reach. The
// selector decides which one is used.
func buildServices() []translator.Provider {
	return []translator.Provider{
		translator.NewCerebrasService(cfg.Cerebras),
		translator.NewGeminiService(cfg.Gemini),
	}
}

func buildOrchestrator() *orchestrator.Orchestrator {
	selector := translator.NewSelector(cfg.Provider, logger, buildServices()...)
	limiter := ratelimit.New(cfg.RateLimit.MinInterval, nil)
	return orchestrator.New(selector, limiter, orchestrator.OrchestratorConfig{
		MaxItems:    cfg.Batch.MaxItems,
		MaxBytes:    cfg.Batch.MaxBytes,
		MaxAttempts: cfg.Retry.MaxAttempts,
		RetryDelay:  cfg.Retry.InitialDelay,
	}, logger)
}

func openContextStore(ctx context.Context) (contextstore.Store, error) {
	store, err := contextstore.Open(ctx, cfg.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to open context store: %w", err)
	}
	return store, nil
}

// buildAnalyzer wires the page pipeline. The caller closes the returned
// store.
func buildAnalyzer(ctx context.Context) (*page.Analyzer, contextstore.Store, error) {
	store, err := openContextStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return page.New(buildOrchestrator(), store, logger), store, nil
}

// readWords accepts either a bare JSON array of words or an object with a
// "words" field.
func readWords(path string) ([]internal.OCRWord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read words file: %w", err)
	}

	var words []internal.OCRWord
	if err := json.Unmarshal(raw, &words); err == nil {
		return words, nil
	}

	var wrapped struct {
		Words []internal.OCRWord `json:"words"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse words file: %w", err)
	}
	return wrapped.Words, nil
}

func writeJSON(path string, v any) error {
	out := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
