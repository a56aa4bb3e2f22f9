package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/bubbletran/internal/batch"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
	GeminiRetryDelay     = 5 * time.Second
	DefaultGeminiTimeout = 30 * time.Second

	geminiTemperature = 0.2
)

// GeminiService calls the generateContent REST endpoint with a single
// free-text prompt and the API key as a query parameter.
type GeminiService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewGeminiService(cfg ServiceConfig) *GeminiService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGeminiTimeout
	}
	return &GeminiService{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (s *GeminiService) Name() string {
	return "gemini"
}

func (s *GeminiService) RetryDelay() time.Duration {
	return GeminiRetryDelay
}

func (s *GeminiService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("gemini: %w: GEMINI_API_KEY not set", ErrNotConfigured)
	}
	return nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiService) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, url.PathEscape(s.model), url.QueryEscape(s.apiKey))
}

func (s *GeminiService) TranslateBatch(ctx context.Context, items []batch.Item, contextText string) (map[string]string, error) {
	prompt, err := singlePrompt(items, contextText)
	if err != nil {
		return nil, malformedError(s.Name(), "failed to encode items", err)
	}

	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	body.GenerationConfig.Temperature = geminiTemperature

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, malformedError(s.Name(), "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, transientError(s.Name(), "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		// The URL carries the key; keep it out of logs.
		return nil, transientError(s.Name(), "request failed", redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		te := transientError(s.Name(), "rate limited", nil)
		te.StatusCode = resp.StatusCode
		te.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), s.now())
		return nil, te
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		te := transientError(s.Name(), fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
		te.StatusCode = resp.StatusCode
		return nil, te
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, malformedError(s.Name(), "failed to decode response", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, malformedError(s.Name(), "response has no candidate text", nil)
	}
	return parseItems(s.Name(), gr.Candidates[0].Content.Parts[0].Text)
}

// parseRetryAfter reads a Retry-After value given as delta-seconds or an
// HTTP date. Unparsable or past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func redactURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s %s: %w", ue.Op, "generateContent", ue.Err)
	}
	return err
}
