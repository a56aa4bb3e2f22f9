package translator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/valpere/bubbletran/internal/postprocess"
)

// SchemaName is the name the structured-output schema is registered under.
const SchemaName = "bubble_translations"

// TranslationSchema is the strict response schema sent to the chat provider.
const TranslationSchema = `{"type":"object","additionalProperties":false,"properties":{"items":{"type":"array","items":{"type":"object","additionalProperties":false,"properties":{"id":{"type":"string"},"en":{"type":"string"}},"required":["id","en"]}}},"required":["items"]}`

type translatedItem struct {
	ID *string `json:"id"`
	En *string `json:"en"`
}

type translationPayload struct {
	Items *[]translatedItem `json:"items"`
}

// parseItems decodes a {"items":[{"id","en"}]} document from raw model
// output. Any deviation from the schema is a malformed error. Output that
// already decodes is used as is, so tags inside translated strings survive;
// otherwise the response is cleaned of reasoning and fences first.
func parseItems(provider, content string) (map[string]string, error) {
	if out, err := decodeItems(provider, strings.TrimSpace(content)); err == nil {
		return out, nil
	}

	cleaned := postprocess.Clean(content)
	if cleaned == "" {
		return nil, malformedError(provider, "empty response content", nil)
	}
	return decodeItems(provider, cleaned)
}

func decodeItems(provider, content string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()

	var payload translationPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, malformedError(provider, "response is not valid translation JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformedError(provider, "trailing data after translation JSON", nil)
	}
	if payload.Items == nil {
		return nil, malformedError(provider, `response is missing "items"`, nil)
	}

	out := make(map[string]string, len(*payload.Items))
	for i, item := range *payload.Items {
		if item.ID == nil || item.En == nil {
			return nil, malformedError(provider, fmt.Sprintf("item %d is missing id or en", i), nil)
		}
		out[*item.ID] = *item.En
	}
	return out, nil
}
