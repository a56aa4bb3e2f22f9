package translator

import (
	"context"

	"github.com/valpere/bubbletran/internal/batch"
)

// EchoProvider returns every item's text unchanged. It is the fallback when
// no remote provider is usable.
type EchoProvider struct{}

func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

func (p *EchoProvider) Name() string {
	return "echo"
}

func (p *EchoProvider) IsAvailable(ctx context.Context) error {
	return nil
}

func (p *EchoProvider) TranslateBatch(ctx context.Context, items []batch.Item, contextText string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.ID] = it.Text
	}
	return out, nil
}
