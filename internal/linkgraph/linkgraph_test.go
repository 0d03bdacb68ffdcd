package linkgraph

import (
	"reflect"
	"testing"
)

func TestAddEdgesDeduplicates(t *testing.T) {
	g := New()
	g.AddEdges("https://a/", []string{"https://b/", "https://c/", "https://b/"})
	g.AddEdges("https://a/", []string{"https://c/", "https://d/"})

	want := []string{"https://b/", "https://c/", "https://d/"}
	if got := g.Outlinks("https://a/"); !reflect.DeepEqual(got, want) {
		t.Errorf("Outlinks = %v, want %v", got, want)
	}
	if g.Outlinks("https://zzz/") != nil {
		t.Error("unknown source should have no outlinks")
	}
}

func TestEdgesIsACopy(t *testing.T) {
	g := New()
	g.AddEdges("https://a/", []string{"https://b/"})
	edges := g.Edges()
	edges["https://a/"][0] = "mutated"
	if g.Outlinks("https://a/")[0] != "https://b/" {
		t.Error("Edges leaked internal slice")
	}

	h := New()
	h.Load(g.Edges())
	if !reflect.DeepEqual(h.Edges(), g.Edges()) {
		t.Errorf("Load round trip mismatch: %v vs %v", h.Edges(), g.Edges())
	}
}
