// Package tokenizer turns document and query text into index terms. Terms
// are lower-cased whitespace-separated fields; punctuation stays attached and
// nothing is stemmed or dropped, so every word of a page is searchable
// exactly as written.
package tokenizer

import "strings"

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lower-cases text and splits it on Unicode whitespace.
func Tokenize(text string) []Token {
	words := strings.Fields(strings.ToLower(text))
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{Term: word, Position: pos})
	}
	return tokens
}

// DistinctTerms returns each term of text once, in first-seen order.
func DistinctTerms(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
