package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/geometry"
)

const documentTextDetection = "DOCUMENT_TEXT_DETECTION"

type VisionConfig struct {
	Credentials string `mapstructure:"credentials"`
	APIKey      string `mapstructure:"api_key"`
	Endpoint    string `mapstructure:"endpoint"`
}

func (c VisionConfig) configured() bool {
	return c.Credentials != "" || c.APIKey != ""
}

// VisionEngine runs Google Cloud Vision document text detection.
type VisionEngine struct {
	svc    *vision.Service
	logger *slog.Logger
}

func NewVisionEngine(ctx context.Context, cfg VisionConfig, logger *slog.Logger) (*VisionEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{}
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionEngine{svc: svc, logger: logger}, nil
}

// NewEngine returns a Vision engine when credentials are configured and the
// placeholder engine otherwise.
func NewEngine(ctx context.Context, cfg VisionConfig, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.configured() {
		logger.Warn("vision credentials not configured, using fallback OCR")
		return FallbackEngine{}, nil
	}
	return NewVisionEngine(ctx, cfg, logger)
}

func (e *VisionEngine) Name() string { return "vision" }

// Detect returns the placeholder word when Vision finds nothing.
func (e *VisionEngine) Detect(ctx context.Context, img []byte, languageHint string) ([]internal.OCRWord, error) {
	req := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(img)},
		Features: []*vision.Feature{{Type: documentTextDetection}},
	}
	if hint := normalizeHint(languageHint); hint != "" {
		req.ImageContext = &vision.ImageContext{LanguageHints: []string{hint}}
	} else if languageHint != "" {
		e.logger.Warn("ignoring invalid language hint", "hint", languageHint)
	}

	resp, err := e.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, errors.New("vision returned no responses")
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return nil, fmt.Errorf("vision error: %s", first.Error.Message)
	}

	words := wordsFromAnnotation(first.FullTextAnnotation)
	if len(words) == 0 {
		e.logger.Info("vision returned no words, using fallback bubble")
		return Fallback(img)
	}
	return words, nil
}

func wordsFromAnnotation(ann *vision.TextAnnotation) []internal.OCRWord {
	if ann == nil {
		return nil
	}
	var words []internal.OCRWord
	for _, page := range ann.Pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				for _, w := range para.Words {
					if word, ok := convertWord(w); ok {
						words = append(words, word)
					}
				}
			}
		}
	}
	return words
}

// convertWord joins the symbols of w. Words without a four-vertex bounding
// polygon are dropped.
func convertWord(w *vision.Word) (internal.OCRWord, bool) {
	if w == nil || w.BoundingBox == nil || len(w.BoundingBox.Vertices) != 4 {
		return internal.OCRWord{}, false
	}
	var sb strings.Builder
	for _, s := range w.Symbols {
		if s != nil {
			sb.WriteString(s.Text)
		}
	}

	var word internal.OCRWord
	word.Text = sb.String()
	for i, v := range w.BoundingBox.Vertices {
		if v != nil {
			word.Poly[i] = geometry.Point{X: float64(v.X), Y: float64(v.Y)}
		}
	}
	return word, true
}
