package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/valpere/bubbletran/internal/batch"
)

const (
	DefaultCerebrasBaseURL = "https://api.cerebras.ai/v1"
	DefaultCerebrasModel   = "llama-3.3-70b"
	CerebrasRetryDelay     = 2 * time.Second
	DefaultCerebrasTimeout = 60 * time.Second

	cerebrasTemperature = 0.2
)

// CerebrasService talks to the Cerebras OpenAI-compatible chat completions
// endpoint with a strict JSON schema response format.
type CerebrasService struct {
	apiKey string
	model  string
	client *openai.Client
}

func NewCerebrasService(cfg ServiceConfig) *CerebrasService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultCerebrasBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultCerebrasModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCerebrasTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = baseURL
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &CerebrasService{
		apiKey: cfg.APIKey,
		model:  model,
		client: openai.NewClientWithConfig(oc),
	}
}

func (s *CerebrasService) Name() string {
	return "cerebras"
}

func (s *CerebrasService) RetryDelay() time.Duration {
	return CerebrasRetryDelay
}

func (s *CerebrasService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("cerebras: %w: CEREBRAS_API_KEY not set", ErrNotConfigured)
	}
	return nil
}

func (s *CerebrasService) TranslateBatch(ctx context.Context, items []batch.Item, contextText string) (map[string]string, error) {
	user, err := userContent(items, contextText)
	if err != nil {
		return nil, malformedError(s.Name(), "failed to encode items", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(contextText)},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   SchemaName,
				Schema: json.RawMessage(TranslationSchema),
				Strict: true,
			},
		},
		Temperature: cerebrasTemperature,
	})
	if err != nil {
		return nil, s.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, malformedError(s.Name(), "response has no choices", nil)
	}
	return parseItems(s.Name(), resp.Choices[0].Message.Content)
}

func (s *CerebrasService) classify(err error) error {
	te := transientError(s.Name(), "chat completion failed", err)

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &apiErr):
		te.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		// Non-2xx bodies that fail to decode land here too.
		te.StatusCode = reqErr.HTTPStatusCode
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return malformedError(s.Name(), "response is not a chat completion", err)
	}
	if te.StatusCode == http.StatusTooManyRequests {
		te.Message = "rate limited"
	}
	return te
}
