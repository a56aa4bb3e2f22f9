// Package batch packs ordered translation items into request-sized batches
// bounded by an item count and a serialized payload size.
package batch

import (
	"encoding/json"
)

const (
	DefaultMaxItems = 24
	DefaultMaxBytes = 6000

	// wrapperBytes is the "[" and "]" around a serialized item list.
	wrapperBytes = 2
)

// Item is one group's source text, keyed by group id.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Limits bounds a batch. A zero field means no bound on that axis.
type Limits struct {
	MaxItems int
	MaxBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxItems: DefaultMaxItems, MaxBytes: DefaultMaxBytes}
}

// Batch is a run of consecutive items together with their JSON array payload.
type Batch struct {
	Items   []Item
	Payload []byte
}

// ItemSize returns the serialized size of item inside a payload.
func ItemSize(item Item) int {
	data, err := json.Marshal(item)
	if err != nil {
		return 0
	}
	return len(data)
}

// Plan splits items into batches, preserving order. An item that alone
// exceeds MaxBytes still gets a batch of its own.
func Plan(items []Item, limits Limits) []Batch {
	var (
		batches []Batch
		current []Item
		size    int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, newBatch(current))
		current = nil
		size = 0
	}

	for _, item := range items {
		itemSize := ItemSize(item)
		if len(current) > 0 {
			nextSize := size + 1 + itemSize
			if (limits.MaxItems > 0 && len(current)+1 > limits.MaxItems) ||
				(limits.MaxBytes > 0 && nextSize > limits.MaxBytes) {
				flush()
			}
		}
		if len(current) == 0 {
			size = wrapperBytes + itemSize
		} else {
			size += 1 + itemSize
		}
		current = append(current, item)
	}
	flush()

	return batches
}

func newBatch(items []Item) Batch {
	payload, err := json.Marshal(items)
	if err != nil {
		payload = []byte("[]")
	}
	return Batch{Items: items, Payload: payload}
}

// Decode parses a batch payload back into items.
func Decode(payload []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	return items, nil
}
