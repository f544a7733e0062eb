package ingestion

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenCounter converts text to an integer length measure. It is the budget
// unit for segmentation. A real tokenizer can be plugged in here; when none
// is given the heuristic counter below is used.
type TokenCounter func(text string) int

// HeuristicTokenCount estimates token count from whitespace-separated words.
// Each word counts once, punctuation marks count as their own tokens, and
// long words add a subword token per six extra letters. It tracks subword
// tokenizers on Spanish prose much closer than a raw character count.
func HeuristicTokenCount(text string) int {
	tokens := 0
	for _, word := range strings.Fields(text) {
		tokens++
		letters := 0
		for _, r := range word {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				tokens++
			} else {
				letters++
			}
		}
		if letters > 6 {
			tokens += (letters - 1) / 6
		}
	}
	return tokens
}

// ApproxTokenCount estimates token count as character count / 4.
// It is a degraded but monotonic metric: 1 token ≈ 4 characters holds well
// enough for the chunk budgets this corpus uses.
func ApproxTokenCount(text string) int {
	return utf8.RuneCountInString(text) / 4
}
