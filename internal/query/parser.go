package query

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/tokenizer"
)

// Plan is a parsed query: its distinct terms in first-seen order.
type Plan struct {
	Terms    []string
	RawQuery string
}

// Parse lower-cases and whitespace-splits query. Every term is OR-ed.
func Parse(query string) *Plan {
	plan := &Plan{RawQuery: query}
	if strings.TrimSpace(query) == "" {
		plan.Terms = []string{}
		return plan
	}
	plan.Terms = tokenizer.DistinctTerms(query)
	return plan
}
