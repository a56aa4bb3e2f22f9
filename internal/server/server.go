// Package server exposes the page pipeline over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/ocr"
	"github.com/valpere/bubbletran/internal/page"
)

const (
	DefaultFetchTimeout = 20 * time.Second
	maxRequestBytes     = 32 << 20
)

var errNoImage = errors.New("provide image_url or image_b64")

type Options struct {
	FetchTimeout time.Duration
	// AccessLog receives one record per request when set.
	AccessLog *slog.Logger
}

type Server struct {
	analyzer  *page.Analyzer
	engine    ocr.Engine
	fetch     *http.Client
	logger    *slog.Logger
	accessLog *slog.Logger
}

func New(analyzer *page.Analyzer, engine ocr.Engine, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Server{
		analyzer:  analyzer,
		engine:    engine,
		fetch:     &http.Client{Timeout: opts.FetchTimeout},
		logger:    logger,
		accessLog: opts.AccessLog,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /words", s.handleWords)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.accessLog == nil {
		return mux
	}
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.accessLog.Info("request",
			"client", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", rec.Header().Get("X-Request-ID"))
	})
}

type size struct {
	W int `json:"w"`
	H int `json:"h"`
}

type analyzeRequest struct {
	ImageURL string `json:"image_url"`
	ImageB64 string `json:"image_b64"`
	// IntrinsicSize is accepted for compatibility and not used.
	IntrinsicSize  *size   `json:"intrinsic_size,omitempty"`
	LanguageHint   *string `json:"language_hint"`
	ConversationID string  `json:"conversation_id"`
}

type wordsRequest struct {
	Words          []internal.OCRWord `json:"words"`
	ConversationID string             `json:"conversation_id"`
}

type bbox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

type groupResponse struct {
	ID             string               `json:"id"`
	BBox           bbox                 `json:"bbox"`
	Orientation    internal.Orientation `json:"orientation"`
	SourceText     string               `json:"source_text"`
	TranslatedText string               `json:"translated_text"`
}

type pageResponse struct {
	RequestID    string          `json:"request_id"`
	OCRImageSize *size           `json:"ocr_image_size,omitempty"`
	Groups       []groupResponse `json:"groups"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()

	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, requestID, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	img, status, err := s.loadImage(r.Context(), req)
	if err != nil {
		s.writeError(w, requestID, err.Error(), status)
		return
	}

	width, height, err := ocr.ImageSize(img)
	if err != nil {
		s.writeError(w, requestID, "unsupported or corrupt image", http.StatusBadRequest)
		return
	}

	hint := ocr.DefaultLanguageHint
	if req.LanguageHint != nil {
		hint = *req.LanguageHint
	}
	words, err := s.engine.Detect(r.Context(), img, hint)
	if err != nil {
		s.logger.Error("ocr failed", "request_id", requestID, "engine", s.engine.Name(), "err", err)
		s.writeError(w, requestID, "ocr failed", http.StatusBadGateway)
		return
	}

	res, err := s.analyzer.Process(r.Context(), words, req.ConversationID)
	if err != nil {
		s.writeError(w, requestID, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("page analyzed",
		"request_id", requestID, "words", len(words), "groups", len(res.Groups),
		"provider", res.Report.Provider, "failed_batches", res.Report.FailedBatches,
		"duration", time.Since(start))

	s.writeJSON(w, requestID, pageResponse{
		RequestID:    requestID,
		OCRImageSize: &size{W: width, H: height},
		Groups:       toResponse(res.Groups),
	})
}

func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req wordsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, requestID, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.analyzer.Process(r.Context(), req.Words, req.ConversationID)
	if err != nil {
		s.writeError(w, requestID, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("words grouped",
		"request_id", requestID, "words", len(req.Words), "groups", len(res.Groups),
		"provider", res.Report.Provider)

	s.writeJSON(w, requestID, pageResponse{
		RequestID: requestID,
		Groups:    toResponse(res.Groups),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, `{"status":"ok"}`); err != nil {
		s.logger.Error("unable to write health response", "err", err)
	}
}

// loadImage prefers inline data over a URL. The returned status is the HTTP
// code to answer with when err is not nil.
func (s *Server) loadImage(ctx context.Context, req analyzeRequest) ([]byte, int, error) {
	if req.ImageB64 != "" {
		data := req.ImageB64
		if _, after, ok := strings.Cut(data, ","); ok {
			data = after
		}
		img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid image_b64: %w", err)
		}
		return img, 0, nil
	}

	if req.ImageURL != "" {
		s.logger.Info("fetching image", "url", req.ImageURL)
		img, err := s.fetchImage(ctx, req.ImageURL)
		if err != nil {
			s.logger.Warn("image fetch failed", "url", req.ImageURL, "err", err)
			return nil, http.StatusBadGateway, errors.New("failed to fetch image URL")
		}
		return img, 0, nil
	}

	return nil, http.StatusBadRequest, errNoImage
}

func (s *Server) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func toResponse(groups []internal.WordGroup) []groupResponse {
	out := make([]groupResponse, len(groups))
	for i, g := range groups {
		out[i] = groupResponse{
			ID: g.ID,
			BBox: bbox{
				X0: int(g.BBox.X0),
				Y0: int(g.BBox.Y0),
				X1: int(g.BBox.X1),
				Y1: int(g.BBox.Y1),
			},
			Orientation:    g.Orientation,
			SourceText:     g.SourceText,
			TranslatedText: g.TranslatedText,
		}
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, requestID string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("unable to encode JSON response", "request_id", requestID, "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, requestID, message string, code int) {
	s.logger.Warn("request failed", "request_id", requestID, "status", code, "err", message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": message, "request_id": requestID})
}
