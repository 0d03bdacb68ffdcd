// Package index holds the in-memory inverted index: term to the set of
// document ids containing it, with a per-document occurrence count kept for
// ranking weight.
package index

import (
	"slices"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/tokenizer"
)

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]map[int]int
	docCount int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[int]int),
	}
}

// AddDocument indexes text under docID. Re-adding the same id overwrites its
// frequencies for the terms in text but keeps postings for terms it no
// longer contains; documents are immutable so callers never do that.
func (m *MemoryIndex) AddDocument(docID int, text string) {
	freqs := make(map[string]int)
	for _, tok := range tokenizer.Tokenize(text) {
		freqs[tok.Term]++
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for term, n := range freqs {
		docs, ok := m.index[term]
		if !ok {
			docs = make(map[int]int)
			m.index[term] = docs
		}
		docs[docID] = n
	}
	m.docCount++
}

// Search returns the posting list for term ordered by document id, or nil if
// the term is unknown.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for id, freq := range docs {
		result = append(result, Posting{DocID: id, Frequency: freq})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Contains reports whether docID is in term's posting set.
func (m *MemoryIndex) Contains(term string, docID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[term][docID]
	return ok
}

// Postings flattens the index to term -> sorted doc ids.
func (m *MemoryIndex) Postings() map[string][]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]int, len(m.index))
	for term, docs := range m.index {
		ids := make([]int, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		out[term] = ids
	}
	return out
}

// Frequencies flattens the index to term -> doc id -> occurrence count.
func (m *MemoryIndex) Frequencies() map[string]map[int]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[int]int, len(m.index))
	for term, docs := range m.index {
		cp := make(map[int]int, len(docs))
		for id, n := range docs {
			cp[id] = n
		}
		out[term] = cp
	}
	return out
}

// Load replaces the index contents. freqs may be nil, in which case every
// posting gets frequency 1 until the caller re-derives counts.
func (m *MemoryIndex) Load(postings map[string][]int, freqs map[string]map[int]int, docCount int) {
	index := make(map[string]map[int]int, len(postings))
	for term, ids := range postings {
		docs := make(map[int]int, len(ids))
		for _, id := range ids {
			n := freqs[term][id]
			if n <= 0 {
				n = 1
			}
			docs[id] = n
		}
		index[term] = docs
	}
	m.mu.Lock()
	m.index = index
	m.docCount = docCount
	m.mu.Unlock()
}

// Recount refreshes the occurrence counts of docID from text for terms whose
// posting set already holds docID. Posting membership is left untouched.
func (m *MemoryIndex) Recount(docID int, text string) {
	freqs := make(map[string]int)
	for _, tok := range tokenizer.Tokenize(text) {
		freqs[tok.Term]++
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for term, n := range freqs {
		if docs, ok := m.index[term]; ok {
			if _, ok := docs[docID]; ok {
				docs[docID] = n
			}
		}
	}
}

func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}
