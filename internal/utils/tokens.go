package utils

import "strings"

// Token estimation uses a flat characters-per-token heuristic. It errs on the
// side of overestimating for JSON-heavy prompts.

// CharsPerToken is the heuristic ratio used by every budget in the pipeline.
const CharsPerToken = 4

// TruncationMarker is appended to text cut by TruncateText.
const TruncationMarker = "\n... (truncated)"

// CountTokens estimates the number of tokens in text, rounding up.
func CountTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// CharBudget converts a token budget into a character budget.
func CharBudget(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * CharsPerToken
}

// TruncateText bounds text to maxChars characters. When the kept prefix contains
// a line break it is cut back to the last one so no partial line survives, and a
// marker is appended. Text within the limit is returned unchanged.
func TruncateText(text string, maxChars int) string {
	if maxChars < 0 {
		maxChars = 0
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	cut := string(runes[:maxChars])
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		cut = cut[:i]
	}
	return cut + TruncationMarker
}
