// Package postprocess removes common LLM artifacts from provider output.
//
// It is applied to the raw message content returned by the LLM-backed
// translation providers before their JSON payload is decoded.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text in four phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Markdown code fence removal
//  4. Trimming of prose around the outermost JSON object
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = removeCodeFence(text)
	text = trimToObject(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// RE2 has no backreferences, so each tag pair is spelled out.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns match introductory phrases that models prepend to the
// payload. Each is anchored at the start and requires a colon.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [requested] [JSON|translation|translations]:"
	regexp.MustCompile(`(?i)^here(?:'s| is| are)(?: the)? (?:requested )?(?:json|translations?|output|result)\s*:`),
	// "[The] [JSON] translations:"
	regexp.MustCompile(`(?i)^(?:the )?(?:json )?(?:translations?|output)\s*:`),
	// "Certainly / Sure / Of course[,] here is [the] JSON:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is| are)(?: the)? (?:requested )?(?:json|translations?|output|result)\s*:`),
}

func removeInstructionEchoes(text string) string {
	text = strings.TrimSpace(text)
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: code fences ---

// codeFenceRe matches text wrapped in a markdown fence, with an optional
// info string such as "json".
var codeFenceRe = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \\t]*\\n?(.*?)\\n?```$")

func removeCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// --- Phase 4: surrounding prose ---

// trimToObject drops text before the first '{' and after the last '}'.
// Text without a brace pair is returned unchanged so the decoder reports it.
func trimToObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
