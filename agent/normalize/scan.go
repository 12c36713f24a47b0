package normalize

import (
	"regexp"
	"strings"
)

// Brace-scan candidates below this length are almost always incidental
// braces in prose, not documents.
const minScanCandidateLen = 50

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// fencedBlocks returns the inner content of every triple-backtick block in
// text, in order of appearance.
func fencedBlocks(text string) []string {
	if !strings.Contains(text, "```") {
		return nil
	}
	matches := fencedBlockRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// balancedObjects walks text and collects top-level brace-balanced {...}
// substrings above the length threshold. The scanner is quote-aware so
// braces inside JSON strings do not unbalance the count.
func balancedObjects(text string) []string {
	var out []string

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, ch := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				if len(candidate) >= minScanCandidateLen {
					out = append(out, candidate)
				}
				start = -1
			}
		}
	}

	return out
}
