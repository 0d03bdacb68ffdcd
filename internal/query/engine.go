// Package query evaluates OR queries against the inverted index. A document's
// weight is the number of distinct query terms it contains; ties fall back to
// its rank score and then to its id.
package query

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/index"
)

// DefaultLimit caps every result list.
const DefaultLimit = 50

// PostingSource is the slice of the index the engine reads.
type PostingSource interface {
	Search(term string) index.PostingList
}

// ScoredDoc is one candidate with its ordering keys.
type ScoredDoc struct {
	DocID  int     `json:"id"`
	Weight int     `json:"weight"`
	Rank   float64 `json:"rank"`
}

// Execute returns at most limit candidates for plan, best first. ranks may
// be nil; missing documents rank 0. A non-positive limit means DefaultLimit.
func Execute(src PostingSource, ranks map[int]float64, plan *Plan, limit int) []ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	weights := make(map[int]int)
	for _, term := range plan.Terms {
		for _, p := range src.Search(term) {
			weights[p.DocID]++
		}
	}
	if len(weights) == 0 {
		return []ScoredDoc{}
	}

	h := &scoredDocHeap{}
	for id, w := range weights {
		heap.Push(h, ScoredDoc{DocID: id, Weight: w, Rank: ranks[id]})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

// better reports whether a orders before b in the result list.
func better(a, b ScoredDoc) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.Rank != b.Rank {
		return a.Rank > b.Rank
	}
	return a.DocID < b.DocID
}

// scoredDocHeap is a min-heap on result order: the root is the worst
// candidate kept so far.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int           { return len(h) }
func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h scoredDocHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
