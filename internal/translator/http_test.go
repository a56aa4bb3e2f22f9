package translator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/bubbletran/internal/batch"
)

var testItems = []batch.Item{
	{ID: "g_0", Text: "先輩"},
	{ID: "g_1", Text: "待って"},
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultCerebrasModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func TestCerebrasService_IsAvailable(t *testing.T) {
	if err := NewCerebrasService(ServiceConfig{}).IsAvailable(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := NewCerebrasService(ServiceConfig{APIKey: "k"}).IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCerebrasService_TranslateBatch(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"items":[{"id":"g_0","en":"Senpai"},{"id":"g_1","en":"Wait"}]}`))
	}))
	defer server.Close()

	svc := NewCerebrasService(ServiceConfig{APIKey: "test-key", BaseURL: server.URL})
	got, err := svc.TranslateBatch(context.Background(), testItems, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["g_0"] != "Senpai" || got["g_1"] != "Wait" {
		t.Errorf("got %v", got)
	}

	if captured["model"] != DefaultCerebrasModel {
		t.Errorf("model = %v", captured["model"])
	}
	if temp, _ := captured["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Errorf("temperature = %v", captured["temperature"])
	}
	msgs := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v", role)
	}
	if role := msgs[1].(map[string]any)["role"]; role != "user" {
		t.Errorf("second role = %v", role)
	}

	rf := captured["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format.type = %v", rf["type"])
	}
	js := rf["json_schema"].(map[string]any)
	if js["name"] != SchemaName || js["strict"] != true {
		t.Errorf("json_schema = %v", js)
	}
	schema, _ := json.Marshal(js["schema"])
	var want, gotSchema any
	json.Unmarshal([]byte(TranslationSchema), &want)
	json.Unmarshal(schema, &gotSchema)
	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(gotSchema)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("schema sent = %s", schema)
	}
}

func TestCerebrasService_ContextExtendsPrompt(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(chatResponse(`{"items":[]}`))
	}))
	defer server.Close()

	svc := NewCerebrasService(ServiceConfig{APIKey: "k", BaseURL: server.URL})
	if _, err := svc.TranslateBatch(context.Background(), testItems, "先輩 → Senpai"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured.Messages[0].Content, "consistent") {
		t.Errorf("system prompt = %q", captured.Messages[0].Content)
	}
	if !strings.HasPrefix(captured.Messages[1].Content, "PREVIOUS DIALOGUE") {
		t.Errorf("user content = %q", captured.Messages[1].Content)
	}
}

func TestCerebrasService_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		malformed  bool
		statusCode int
		raw        string
	}{
		{"rate limited", http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "slow down"}}, false, 429, ""},
		{"server error", http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom"}}, false, 500, ""},
		{"no choices", http.StatusOK, map[string]any{"id": "x", "choices": []any{}}, true, 0, ""},
		{"bad content", http.StatusOK, chatResponse("not json at all"), true, 0, ""},
		{"non-JSON body", http.StatusOK, nil, true, 0, "<html>gateway hiccup</html>"},
		{"non-JSON gateway error", http.StatusBadGateway, nil, false, 502, "<html>bad gateway</html>"},
		{"wrong body shape", http.StatusOK, nil, true, 0, `{"choices":"none"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.raw != "" {
					io.WriteString(w, tt.raw)
					return
				}
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			svc := NewCerebrasService(ServiceConfig{APIKey: "k", BaseURL: server.URL})
			_, err := svc.TranslateBatch(context.Background(), testItems, "")
			var te *TranslationError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TranslationError, got %v", err)
			}
			if IsMalformed(err) != tt.malformed {
				t.Errorf("malformed = %v, want %v (%v)", IsMalformed(err), tt.malformed, err)
			}
			if te.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", te.StatusCode, tt.statusCode)
			}
		})
	}
}

func geminiBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
}

func TestGeminiService_TranslateBatch(t *testing.T) {
	var captured struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(geminiBody("```json\n{\"items\":[{\"id\":\"g_0\",\"en\":\"Senpai\"}]}\n```"))
	}))
	defer server.Close()

	svc := NewGeminiService(ServiceConfig{APIKey: "secret", BaseURL: server.URL})
	got, err := svc.TranslateBatch(context.Background(), testItems, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["g_0"] != "Senpai" {
		t.Errorf("got %v", got)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Role != "user" || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected contents %+v", captured.Contents)
	}
	prompt := captured.Contents[0].Parts[0].Text
	if !strings.HasPrefix(prompt, persona) || !strings.Contains(prompt, "待って") {
		t.Errorf("prompt = %q", prompt)
	}
	if captured.GenerationConfig.Temperature != geminiTemperature {
		t.Errorf("temperature = %v", captured.GenerationConfig.Temperature)
	}
}

func TestGeminiService_RateLimited(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"seconds", "7", 7 * time.Second},
		{"http date", "Mon, 02 Jan 2006 15:04:10 GMT", 5 * time.Second},
		{"missing", "", 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer server.Close()

			svc := NewGeminiService(ServiceConfig{APIKey: "k", BaseURL: server.URL})
			svc.now = func() time.Time { return time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC) }

			_, err := svc.TranslateBatch(context.Background(), testItems, "")
			var te *TranslationError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TranslationError, got %v", err)
			}
			if !te.Retryable() || te.StatusCode != http.StatusTooManyRequests {
				t.Errorf("unexpected error %+v", te)
			}
			if te.RetryAfter != tt.want {
				t.Errorf("RetryAfter = %v, want %v", te.RetryAfter, tt.want)
			}
		})
	}
}

func TestGeminiService_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{"server error", http.StatusServiceUnavailable, `{"error":"busy"}`, false},
		{"bad envelope", http.StatusOK, `not json`, true},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, true},
		{"bad payload", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{\"items\":[{\"id\":\"g_0\"}]}"}]}}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			svc := NewGeminiService(ServiceConfig{APIKey: "k", BaseURL: server.URL})
			_, err := svc.TranslateBatch(context.Background(), testItems, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if IsMalformed(err) != tt.malformed {
				t.Errorf("malformed = %v, want %v (%v)", IsMalformed(err), tt.malformed, err)
			}
		})
	}
}

func TestGeminiService_TransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc := NewGeminiService(ServiceConfig{APIKey: "very-secret", BaseURL: url})
	_, err := svc.TranslateBatch(context.Background(), testItems, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "very-secret") {
		t.Errorf("error leaks the API key: %v", err)
	}
	var te *TranslationError
	if !errors.As(err, &te) || !te.Retryable() {
		t.Errorf("expected transient error, got %v", err)
	}
}
