// Package session holds the state of one crawl-and-search context: document
// store, inverted index, link graph, visited set and rank scores. Nothing is
// process-global, so tests and tools can run independent sessions side by
// side.
package session

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/linkgraph"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/snapshot"
)

// Page is a fetched, parsed page ready to be stored.
type Page struct {
	URL         string
	Title       string
	Description string
	BodyText    string
	Links       []string
}

type Session struct {
	// mu serialises id assignment with the index and graph updates for that
	// document, and makes Snapshot see all three in the same state.
	mu    sync.Mutex
	store *docstore.Store
	index *index.MemoryIndex
	graph *linkgraph.Graph

	visitedMu sync.Mutex
	visited   map[string]struct{}

	rankMu sync.RWMutex
	ranks  map[int]float64

	rankOpts rank.Options
	logger   *slog.Logger
}

func New() *Session {
	return &Session{
		store:    docstore.New(),
		index:    index.NewMemoryIndex(),
		graph:    linkgraph.New(),
		visited:  make(map[string]struct{}),
		ranks:    make(map[int]float64),
		rankOpts: rank.DefaultOptions(),
		logger:   slog.Default().With("component", "session"),
	}
}

// SetRankOptions overrides the damping, tolerance and iteration cap used by
// RecomputeRanks.
func (s *Session) SetRankOptions(opts rank.Options) {
	s.rankMu.Lock()
	s.rankOpts = opts
	s.rankMu.Unlock()
}

// MarkVisited records url and reports whether this call was the first to do
// so. Concurrent callers with the same url see exactly one true.
func (s *Session) MarkVisited(url string) bool {
	s.visitedMu.Lock()
	defer s.visitedMu.Unlock()
	if _, ok := s.visited[url]; ok {
		return false
	}
	s.visited[url] = struct{}{}
	return true
}

func (s *Session) IsVisited(url string) bool {
	s.visitedMu.Lock()
	defer s.visitedMu.Unlock()
	_, ok := s.visited[url]
	return ok
}

func (s *Session) VisitedCount() int {
	s.visitedMu.Lock()
	defer s.visitedMu.Unlock()
	return len(s.visited)
}

// AddPage stores p, indexes its text and records its outlinks. A URL that is
// already stored is left untouched and reported with false.
func (s *Session) AddPage(p Page) (docstore.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, added := s.store.Add(p.URL, p.Title, p.Description, p.BodyText)
	if !added {
		return doc, false
	}
	s.index.AddDocument(doc.ID, doc.IndexText())
	s.graph.AddEdges(doc.URL, p.Links)
	return doc, true
}

func (s *Session) Document(id int) (docstore.Document, bool) {
	return s.store.Get(id)
}

func (s *Session) DocumentCount() int {
	return s.store.Len()
}

// Index exposes the inverted index for read-only callers.
func (s *Session) Index() *index.MemoryIndex {
	return s.index
}

func (s *Session) Outlinks(url string) []string {
	return s.graph.Outlinks(url)
}

// RecomputeRanks rebuilds every document's score from the link graph. Only
// edges between stored documents take part; pages whose links all leave the
// crawled set are dangling.
func (s *Session) RecomputeRanks() rank.Result {
	s.mu.Lock()
	docs := s.store.All()
	out := make([][]int, len(docs))
	pos := make(map[int]int, len(docs))
	for i, d := range docs {
		pos[d.ID] = i
	}
	for i, d := range docs {
		for _, target := range s.graph.Outlinks(d.URL) {
			if id, ok := s.store.IDByURL(target); ok {
				out[i] = append(out[i], pos[id])
			}
		}
	}
	s.mu.Unlock()

	s.rankMu.RLock()
	opts := s.rankOpts
	s.rankMu.RUnlock()

	res := rank.Compute(len(docs), out, opts)
	ranks := make(map[int]float64, len(docs))
	for i, d := range docs {
		ranks[d.ID] = res.Scores[i]
	}

	s.rankMu.Lock()
	s.ranks = ranks
	s.rankMu.Unlock()

	s.logger.Debug("ranks recomputed",
		"documents", len(docs),
		"iterations", res.Iterations,
		"converged", res.Converged,
	)
	return res
}

// Ranks returns a copy of the current scores by document id.
func (s *Session) Ranks() map[int]float64 {
	s.rankMu.RLock()
	defer s.rankMu.RUnlock()
	return maps.Clone(s.ranks)
}

// RanksByURL returns the current scores keyed by document URL.
func (s *Session) RanksByURL() map[string]float64 {
	ranks := s.Ranks()
	out := make(map[string]float64, len(ranks))
	for id, score := range ranks {
		if d, ok := s.store.Get(id); ok {
			out[d.URL] = score
		}
	}
	return out
}

// Search runs query against the index and resolves the hits to documents,
// best first. It never returns nil.
func (s *Session) Search(q string, limit int) []docstore.Document {
	s.rankMu.RLock()
	ranks := s.ranks
	scored := query.Execute(s.index, ranks, query.Parse(q), limit)
	s.rankMu.RUnlock()

	results := make([]docstore.Document, 0, len(scored))
	for _, sd := range scored {
		if d, ok := s.store.Get(sd.DocID); ok {
			results = append(results, d)
		}
	}
	return results
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() *snapshot.Snapshot {
	s.mu.Lock()
	docs := s.store.All()
	postings := s.index.Postings()
	freqs := s.index.Frequencies()
	edges := s.graph.Edges()
	s.mu.Unlock()

	s.visitedMu.Lock()
	visited := slices.Sorted(maps.Keys(s.visited))
	s.visitedMu.Unlock()

	documents := make(map[int]docstore.Document, len(docs))
	for _, d := range docs {
		documents[d.ID] = d
	}
	return &snapshot.Snapshot{
		Index:           postings,
		Documents:       documents,
		Graph:           edges,
		Visited:         visited,
		TermFrequencies: freqs,
	}
}

// Restore replaces the session state with snap and recomputes ranks. Posting
// entries that point at missing documents are dropped. A nil snap leaves the
// session unchanged.
func (s *Session) Restore(snap *snapshot.Snapshot) {
	if snap == nil {
		return
	}
	docs := make([]docstore.Document, 0, len(snap.Documents))
	for id, d := range snap.Documents {
		d.ID = id
		docs = append(docs, d)
	}

	postings := make(map[string][]int, len(snap.Index))
	dropped := 0
	for term, ids := range snap.Index {
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if _, ok := snap.Documents[id]; ok {
				kept = append(kept, id)
			} else {
				dropped++
			}
		}
		if len(kept) > 0 {
			postings[term] = kept
		}
	}
	if dropped > 0 {
		s.logger.Warn("snapshot postings referenced missing documents", "dropped", dropped)
	}

	s.mu.Lock()
	s.store.Load(docs)
	s.index.Load(postings, snap.TermFrequencies, len(docs))
	if snap.TermFrequencies == nil {
		for _, d := range docs {
			s.index.Recount(d.ID, d.IndexText())
		}
	}
	s.graph.Load(snap.Graph)
	s.mu.Unlock()

	visited := make(map[string]struct{}, len(snap.Visited))
	for _, u := range snap.Visited {
		visited[u] = struct{}{}
	}
	s.visitedMu.Lock()
	s.visited = visited
	s.visitedMu.Unlock()

	s.RecomputeRanks()
	s.logger.Info("session restored",
		"documents", len(docs),
		"terms", len(postings),
		"visited", len(visited),
	)
}
