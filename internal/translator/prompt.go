package translator

import (
	"encoding/json"
	"strings"

	"github.com/valpere/bubbletran/internal/batch"
)

const persona = "You are a professional manga translator. Translate Japanese to natural, " +
	"concise English while preserving honorifics when present. Convey the meaning " +
	"first; do not translate word by word. Return JSON only."

const consistencyRequirement = " Stay consistent with the names, terms and tone " +
	"used in the previous dialogue provided as context."

const instruction = `Translate each entry's "text" to English. Answer with an object ` +
	`{"items":[{"id":...,"en":...}]} containing every id exactly once:`

// systemPrompt returns the persona, extended with a consistency requirement
// when context is supplied.
func systemPrompt(contextText string) string {
	if contextText == "" {
		return persona
	}
	return persona + consistencyRequirement
}

// userContent builds the request body text: the optional context block,
// the instruction and the JSON item payload.
func userContent(items []batch.Item, contextText string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if contextText != "" {
		sb.WriteString("PREVIOUS DIALOGUE (source → translation, for consistency only; do NOT retranslate):\n")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	}
	sb.WriteString(instruction)
	sb.WriteString("\n")
	sb.Write(payload)
	return sb.String(), nil
}

// singlePrompt folds the system prompt and user content into one text for
// providers that take a single free-text prompt.
func singlePrompt(items []batch.Item, contextText string) (string, error) {
	user, err := userContent(items, contextText)
	if err != nil {
		return "", err
	}
	return systemPrompt(contextText) + "\n\n" + user, nil
}
