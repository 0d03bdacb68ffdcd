package index

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestAddDocumentPostingCompleteness(t *testing.T) {
	idx := NewMemoryIndex()
	texts := []string{
		"Home welcome to the home page",
		"About us and the team",
		"Go crawler home",
	}
	for id, text := range texts {
		idx.AddDocument(id, text)
	}

	for id, text := range texts {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			if !idx.Contains(word, id) {
				t.Errorf("term %q missing doc %d", word, id)
			}
		}
	}
	if idx.DocCount() != 3 {
		t.Errorf("expected 3 docs, got %d", idx.DocCount())
	}
}

func TestSearchSetSemantics(t *testing.T) {
	idx := NewMemoryIndex()
	idx.AddDocument(1, "home home home")
	idx.AddDocument(0, "home")

	got := idx.Search("home")
	want := PostingList{{DocID: 0, Frequency: 1}, {DocID: 1, Frequency: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Search = %v, want %v", got, want)
	}
	if idx.Search("absent") != nil {
		t.Error("expected nil for unknown term")
	}
}

func TestLoadAndRecount(t *testing.T) {
	src := NewMemoryIndex()
	src.AddDocument(0, "a b a")
	src.AddDocument(1, "b c")

	dst := NewMemoryIndex()
	dst.Load(src.Postings(), nil, src.DocCount())
	if got := dst.Search("a")[0].Frequency; got != 1 {
		t.Fatalf("expected placeholder frequency 1, got %d", got)
	}
	dst.Recount(0, "a b a")
	dst.Recount(1, "b c")
	if !reflect.DeepEqual(dst.Frequencies(), src.Frequencies()) {
		t.Errorf("frequencies = %v, want %v", dst.Frequencies(), src.Frequencies())
	}
	if !reflect.DeepEqual(dst.Postings(), src.Postings()) {
		t.Errorf("postings = %v, want %v", dst.Postings(), src.Postings())
	}
}

func BenchmarkAddDocument(b *testing.B) {
	text := strings.Repeat("distributed crawler builds an inverted index over fetched pages ", 20)
	idx := NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.AddDocument(i, text)
	}
}

func BenchmarkSearch(b *testing.B) {
	idx := NewMemoryIndex()
	for i := 0; i < 1000; i++ {
		idx.AddDocument(i, fmt.Sprintf("page %d about crawling topic%d", i, i%10))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Search("crawling")
	}
}
