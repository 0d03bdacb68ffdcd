// Package linkgraph records the outbound links discovered on each crawled
// page. An edge says nothing about whether its target was ever fetched.
package linkgraph

import (
	"slices"
	"sync"
)

type Graph struct {
	mu    sync.RWMutex
	edges map[string][]string
	seen  map[string]map[string]struct{}
}

func New() *Graph {
	return &Graph{
		edges: make(map[string][]string),
		seen:  make(map[string]map[string]struct{}),
	}
}

// AddEdges appends the targets of source that are not already recorded,
// keeping first-seen order.
func (g *Graph) AddEdges(source string, targets []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.seen[source]
	if !ok {
		set = make(map[string]struct{}, len(targets))
		g.seen[source] = set
		g.edges[source] = make([]string, 0, len(targets))
	}
	for _, t := range targets {
		if _, dup := set[t]; dup {
			continue
		}
		set[t] = struct{}{}
		g.edges[source] = append(g.edges[source], t)
	}
}

// Outlinks returns a copy of the targets recorded for source.
func (g *Graph) Outlinks(source string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges[source])
}

// Edges returns a deep copy of the whole graph.
func (g *Graph) Edges() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]string, len(g.edges))
	for src, targets := range g.edges {
		out[src] = slices.Clone(targets)
	}
	return out
}

// Load replaces the graph. Duplicate targets per source are collapsed.
func (g *Graph) Load(edges map[string][]string) {
	fresh := New()
	for src, targets := range edges {
		fresh.AddEdges(src, targets)
	}
	g.mu.Lock()
	g.edges = fresh.edges
	g.seen = fresh.seen
	g.mu.Unlock()
}
