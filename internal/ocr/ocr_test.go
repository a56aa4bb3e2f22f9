package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestImageSize(t *testing.T) {
	w, h, err := ImageSize(pngImage(t, 640, 480))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("got %dx%d, want 640x480", w, h)
	}

	if _, _, err := ImageSize([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestFallback(t *testing.T) {
	words, err := Fallback(pngImage(t, 100, 50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 1 || words[0].Text != FallbackText {
		t.Fatalf("unexpected words %+v", words)
	}
	box := words[0].Box()
	if box.X0 != 0 || box.Y0 != 0 || box.X1 != 100 || box.Y1 != 50 {
		t.Errorf("box = %+v", box)
	}
}

func TestNormalizeHint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ja", "ja"},
		{"JA", "ja"},
		{"ko", "ko"},
		{"zh-hant", "zh-Hant"},
		{"", ""},
		{"not a language!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeHint(tt.in); got != tt.want {
				t.Errorf("normalizeHint(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewEngine_NoCredentials(t *testing.T) {
	e, err := NewEngine(context.Background(), VisionConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name() != "fallback" {
		t.Errorf("engine = %s, want fallback", e.Name())
	}
	words, err := e.Detect(context.Background(), pngImage(t, 10, 10), "ja")
	if err != nil || len(words) != 1 {
		t.Errorf("Detect = %v, %v", words, err)
	}
}

func visionServer(t *testing.T, response string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images:annotate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		if captured != nil {
			json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

const annotated = `{"responses":[{"fullTextAnnotation":{"pages":[{"blocks":[{"paragraphs":[{"words":[
	{"symbols":[{"text":"先"},{"text":"輩"}],"boundingBox":{"vertices":[{"x":10,"y":20},{"x":30,"y":20},{"x":30,"y":60},{"x":10,"y":60}]}},
	{"symbols":[{"text":"!"}],"boundingBox":{"vertices":[{"x":1},{"x":2}]}},
	{"symbols":[{"text":"待"}],"boundingBox":{"vertices":[{},{"x":5},{"x":5,"y":5},{"y":5}]}}
]}]}]}]}}]}`

func TestVisionEngine_Detect(t *testing.T) {
	var captured map[string]any
	server := visionServer(t, annotated, &captured)
	defer server.Close()

	e, err := NewVisionEngine(context.Background(), VisionConfig{APIKey: "test-key", Endpoint: server.URL}, nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	words, err := e.Detect(context.Background(), pngImage(t, 100, 100), "ja")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d: %+v", len(words), words)
	}
	if words[0].Text != "先輩" {
		t.Errorf("first word = %q", words[0].Text)
	}
	if box := words[0].Box(); box.X0 != 10 || box.Y0 != 20 || box.X1 != 30 || box.Y1 != 60 {
		t.Errorf("first box = %+v", box)
	}
	if words[1].Text != "待" || words[1].Poly[0].X != 0 || words[1].Poly[2].Y != 5 {
		t.Errorf("second word = %+v", words[1])
	}

	reqs := captured["requests"].([]any)
	req := reqs[0].(map[string]any)
	features := req["features"].([]any)
	if features[0].(map[string]any)["type"] != documentTextDetection {
		t.Errorf("features = %v", features)
	}
	hints := req["imageContext"].(map[string]any)["languageHints"].([]any)
	if len(hints) != 1 || hints[0] != "ja" {
		t.Errorf("language hints = %v", hints)
	}
	if content, _ := req["image"].(map[string]any)["content"].(string); content == "" {
		t.Error("image content not sent")
	}
}

func TestVisionEngine_EmptyResultFallsBack(t *testing.T) {
	server := visionServer(t, `{"responses":[{}]}`, nil)
	defer server.Close()

	e, err := NewVisionEngine(context.Background(), VisionConfig{APIKey: "test-key", Endpoint: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	words, err := e.Detect(context.Background(), pngImage(t, 40, 30), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 1 || words[0].Text != FallbackText {
		t.Errorf("expected fallback word, got %+v", words)
	}
}

func TestVisionEngine_ResponseError(t *testing.T) {
	server := visionServer(t, `{"responses":[{"error":{"code":3,"message":"bad image"}}]}`, nil)
	defer server.Close()

	e, err := NewVisionEngine(context.Background(), VisionConfig{APIKey: "test-key", Endpoint: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Detect(context.Background(), pngImage(t, 4, 4), "ja"); err == nil {
		t.Error("expected error")
	}
}
