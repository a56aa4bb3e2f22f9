package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/clock"
	"github.com/valpere/bubbletran/internal/geometry"
	"github.com/valpere/bubbletran/internal/logging"
	"github.com/valpere/bubbletran/internal/orchestrator"
	"github.com/valpere/bubbletran/internal/page"
	"github.com/valpere/bubbletran/internal/translator"
)

type fakeEngine struct {
	words    []internal.OCRWord
	err      error
	lastHint string
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Detect(ctx context.Context, img []byte, languageHint string) ([]internal.OCRWord, error) {
	e.lastHint = languageHint
	return e.words, e.err
}

func word(text string, x0, y0, x1, y1 float64) internal.OCRWord {
	return internal.OCRWord{
		Text: text,
		Poly: [4]geometry.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}},
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(engine *fakeEngine) *httptest.Server {
	logger := logging.Discard()
	selector := translator.NewSelector("echo", logger)
	orch := orchestrator.New(selector, nil, orchestrator.OrchestratorConfig{Clock: clock.NewFake(time.Unix(0, 0))}, logger)
	analyzer := page.New(orch, nil, logger)
	return httptest.NewServer(New(analyzer, engine, Options{FetchTimeout: 2 * time.Second}, logger).Handler())
}

func post(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestAnalyze_Base64(t *testing.T) {
	engine := &fakeEngine{words: []internal.OCRWord{
		word("先輩", 10.7, 20.2, 70.9, 35.5),
		word("待って", 400, 400, 460, 415),
	}}
	srv := newTestServer(engine)
	defer srv.Close()

	b64 := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 640, 480))
	resp, body := post(t, srv.URL+"/analyze", map[string]any{"image_b64": b64})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if id, _ := body["request_id"].(string); id == "" || resp.Header.Get("X-Request-ID") != id {
		t.Errorf("request id = %v / %q", body["request_id"], resp.Header.Get("X-Request-ID"))
	}
	if engine.lastHint != "ja" {
		t.Errorf("default language hint = %q", engine.lastHint)
	}

	imgSize := body["ocr_image_size"].(map[string]any)
	if imgSize["w"] != float64(640) || imgSize["h"] != float64(480) {
		t.Errorf("ocr_image_size = %v", imgSize)
	}

	groups := body["groups"].([]any)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groups)
	}
	first := groups[0].(map[string]any)
	if first["id"] != "g_0" || first["source_text"] != "先輩" || first["translated_text"] != "先輩" {
		t.Errorf("first group = %v", first)
	}
	if first["orientation"] != "horizontal" {
		t.Errorf("orientation = %v", first["orientation"])
	}
	box := first["bbox"].(map[string]any)
	if box["x0"] != float64(10) || box["y0"] != float64(20) || box["x1"] != float64(70) || box["y1"] != float64(35) {
		t.Errorf("bbox = %v", box)
	}
}

func TestAnalyze_URL(t *testing.T) {
	img := pngBytes(t, 32, 16)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer images.Close()

	engine := &fakeEngine{words: []internal.OCRWord{word("あ", 1, 1, 10, 10)}}
	srv := newTestServer(engine)
	defer srv.Close()

	resp, body := post(t, srv.URL+"/analyze", map[string]any{"image_url": images.URL + "/page.png", "language_hint": "ko"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if engine.lastHint != "ko" {
		t.Errorf("language hint = %q", engine.lastHint)
	}
	size := body["ocr_image_size"].(map[string]any)
	if size["w"] != float64(32) || size["h"] != float64(16) {
		t.Errorf("ocr_image_size = %v", size)
	}

	resp, _ = post(t, srv.URL+"/analyze", map[string]any{"image_url": images.URL + "/missing.png"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("missing image status = %d, want 502", resp.StatusCode)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		body   any
		status int
	}{
		{"no image", &fakeEngine{}, map[string]any{}, http.StatusBadRequest},
		{"bad base64", &fakeEngine{}, map[string]any{"image_b64": "!!!"}, http.StatusBadRequest},
		{"not an image", &fakeEngine{}, map[string]any{"image_b64": base64.StdEncoding.EncodeToString([]byte("hello"))}, http.StatusBadRequest},
		{"ocr failure", &fakeEngine{err: errors.New("quota")}, map[string]any{"image_b64": "PNG"}, http.StatusBadGateway},
		{"malformed json", &fakeEngine{}, "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.engine)
			defer srv.Close()

			body := tt.body
			if m, ok := body.(map[string]any); ok && m["image_b64"] == "PNG" {
				m["image_b64"] = base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4))
			}
			resp, out := post(t, srv.URL+"/analyze", body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if detail, _ := out["detail"].(string); detail == "" {
				t.Errorf("missing error detail: %v", out)
			}
		})
	}
}

func TestWords(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	words := []internal.OCRWord{
		word("a", 100, 100, 115, 115),
		word("b", 100, 120, 115, 135),
		word("c", 500, 500, 515, 515),
	}
	resp, body := post(t, srv.URL+"/words", map[string]any{"words": words})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if _, ok := body["ocr_image_size"]; ok {
		t.Error("words response should not carry an image size")
	}
	groups := body["groups"].([]any)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groups)
	}
	second := groups[1].(map[string]any)
	if second["source_text"] != "c" {
		t.Errorf("second group = %v", second)
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	access, err := logging.New("info", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger := logging.Discard()
	orch := orchestrator.New(translator.NewSelector("echo", logger), nil, orchestrator.OrchestratorConfig{}, logger)
	handler := New(page.New(orch, nil, logger), &fakeEngine{}, Options{AccessLog: access}, logger).Handler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, _ := post(t, srv.URL+"/analyze", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("access record is not json: %v (%s)", err, buf.String())
	}
	if rec["method"] != "POST" || rec["path"] != "/analyze" || rec["status"] != float64(400) {
		t.Errorf("record = %v", rec)
	}
	if rec["request_id"] != resp.Header.Get("X-Request-ID") {
		t.Errorf("request_id = %v, header %q", rec["request_id"], resp.Header.Get("X-Request-ID"))
	}
}

func TestWords_Empty(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, body := post(t, srv.URL+"/words", map[string]any{"words": []any{}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if groups, ok := body["groups"].([]any); !ok || len(groups) != 0 {
		t.Errorf("groups = %#v, want empty array", body["groups"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/health", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
