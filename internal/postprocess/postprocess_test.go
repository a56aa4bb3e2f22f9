package postprocess

import "testing"

const payload = `{"items":[{"id":"g_0","en":"Wait, Senpai!"}]}`

func TestRemoveThinkingBlocks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no thinking blocks",
			input:    payload,
			expected: payload,
		},
		{
			name:     "think block before payload",
			input:    "<think>The speaker is addressing an upperclassman.</think>" + payload,
			expected: payload,
		},
		{
			name:     "reasoning block",
			input:    "<reasoning>keep the honorific</reasoning>\n" + payload,
			expected: payload,
		},
		{
			name:     "multiple blocks",
			input:    "<thinking>one</thinking>" + payload + "<reflection>two</reflection>",
			expected: payload,
		},
		{
			name:     "truncated block",
			input:    payload + "<thinking>the model was cut off",
			expected: payload,
		},
		{
			name:     "only truncated block",
			input:    "<think>never finished",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeThinkingBlocks(tt.input)
			if result != tt.expected {
				t.Errorf("removeThinkingBlocks(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRemoveInstructionEchoes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no echo",
			input:    payload,
			expected: payload,
		},
		{
			name:     "here is the JSON",
			input:    "Here is the JSON: " + payload,
			expected: payload,
		},
		{
			name:     "here are the translations",
			input:    "Here are the translations:\n" + payload,
			expected: payload,
		},
		{
			name:     "sure echo",
			input:    "Sure, here's the requested output: " + payload,
			expected: payload,
		},
		{
			name:     "translations label",
			input:    "Translations: " + payload,
			expected: payload,
		},
		{
			name:     "echo not at start",
			input:    "Note. Here is the JSON: {}",
			expected: "Note. Here is the JSON: {}",
		},
		{
			name:     "echo without colon",
			input:    "Here is the JSON",
			expected: "Here is the JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeInstructionEchoes(tt.input)
			if result != tt.expected {
				t.Errorf("removeInstructionEchoes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRemoveCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n" + payload + "\n```", payload},
		{"bare fence", "```\n" + payload + "\n```", payload},
		{"single line fence", "```" + payload + "```", payload},
		{"no fence", payload, payload},
		{"unterminated fence", "```json\n" + payload, "```json\n" + payload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removeCodeFence(tt.input); got != tt.expected {
				t.Errorf("removeCodeFence(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTrimToObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"surrounding prose", "Result follows " + payload + " hope this helps", payload},
		{"no braces", "sorry, I cannot help", "sorry, I cannot help"},
		{"reversed braces", "} oops {", "} oops {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimToObject(tt.input); got != tt.expected {
				t.Errorf("trimToObject(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "clean payload",
			input:    payload,
			expected: payload,
		},
		{
			name:     "full cleanup pipeline",
			input:    "<think>Translating two bubbles.</think>\nHere is the JSON:\n```json\n" + payload + "\n```",
			expected: payload,
		},
		{
			name:     "prose after fence",
			input:    "```json\n" + payload + "\n```\nLet me know if you need changes.",
			expected: payload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clean(tt.input)
			if result != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
