package internal

import "github.com/valpere/bubbletran/internal/geometry"

type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// OCRWord is one word detection as reported by the OCR engine.
type OCRWord struct {
	Text string            `json:"text"`
	Poly [4]geometry.Point `json:"poly"`
}

func (w OCRWord) Box() geometry.BBox {
	return geometry.BoxFromPolygon(w.Poly[:])
}

// WordGroup is one bubble-shaped text region. WordIdx indexes the word list
// the group was built from.
type WordGroup struct {
	ID             string        `json:"id"`
	BBox           geometry.BBox `json:"bbox"`
	WordIdx        []int         `json:"word_idx"`
	Orientation    Orientation   `json:"orientation"`
	SourceText     string        `json:"source_text"`
	TranslatedText string        `json:"translated_text"`
}

// ContextEntry is one previously translated line of a conversation.
// Timestamp is unix seconds.
type ContextEntry struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Timestamp float64 `json:"timestamp"`
}
