// Package tokenizer estimates generation-model token counts. The estimate is
// a 4-characters-per-token heuristic, close enough for chunk filtering and
// tier selection without shipping a model vocabulary.
package tokenizer

// Estimate returns the approximate token count of text.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}
