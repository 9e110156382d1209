package llm

import (
	"regexp"
	"slices"
	"strconv"
)

var indexRegex = regexp.MustCompile(`\b\d+\b`)

// ParseChoiceText extracts option indices from a free-text reply such as
// "Options 0 and 2 are correct." Numbers outside [0, numOptions) are
// ignored. The result is sorted and deduplicated; ok is false when no
// index was found.
func ParseChoiceText(text string, numOptions int) (indices []int, ok bool) {
	seen := make(map[int]bool)
	for _, m := range indexRegex.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 || n >= numOptions || seen[n] {
			continue
		}
		seen[n] = true
		indices = append(indices, n)
	}
	slices.Sort(indices)
	return indices, len(indices) > 0
}

// extractJSONObject returns the first balanced {...} object in text,
// skipping braces inside JSON strings. Models often wrap JSON in prose or
// markdown fences.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
