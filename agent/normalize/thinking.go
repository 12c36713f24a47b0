package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
)

// thinkingMarkerRe matches the reasoning-section labels models have been
// observed to emit. This whole extraction is a best-effort heuristic: the
// labels are not a contract and a model may interleave reasoning in ways no
// marker catches.
var thinkingMarkerRe = regexp.MustCompile(`(?im)^[ \t]*(?:thinking[ _]process|thought process|reasoning)[ \t]*:[ \t]*`)

// ExtractThinking splits a model reply into its reasoning section and the
// remaining content. When nothing resembling a reasoning section is found,
// thinking is "" and content is the input unchanged.
func ExtractThinking(text string) (thinking, content string) {
	if doc, ok := parseObject(text); ok {
		if tp, ok := doc["thinking_process"].(string); ok && tp != "" {
			delete(doc, "thinking_process")
			if rest, err := marshalDocument(doc); err == nil {
				return tp, rest
			}
			return tp, text
		}
		return "", text
	}

	loc := thinkingMarkerRe.FindStringIndex(text)
	if loc == nil {
		return "", text
	}

	// The section runs from after the marker to the first blank line.
	after := text[loc[1]:]
	end := strings.Index(after, "\n\n")
	if end < 0 {
		return strings.TrimSpace(after), strings.TrimSpace(text[:loc[0]])
	}

	thinking = strings.TrimSpace(after[:end])
	content = strings.TrimSpace(text[:loc[0]] + after[end:])
	return thinking, content
}

// MaybeThinkingJSON reports whether text is a JSON object carrying a
// thinking_process field, without modifying it.
func MaybeThinkingJSON(text string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err != nil {
		return false
	}
	_, ok := doc["thinking_process"]
	return ok
}
