package session

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/snapshot"
)

func TestMarkVisitedIsCheckAndSet(t *testing.T) {
	s := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkVisited("https://a.example/") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if !s.IsVisited("https://a.example/") || s.VisitedCount() != 1 {
		t.Error("visited set not updated")
	}
}

func TestAddPageConcurrentAssignsDistinctIDs(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddPage(Page{
				URL:      fmt.Sprintf("https://site.example/%d", i),
				Title:    "Page",
				BodyText: fmt.Sprintf("body word%d", i),
			})
		}(i)
	}
	wg.Wait()

	if s.DocumentCount() != 20 {
		t.Fatalf("expected 20 documents, got %d", s.DocumentCount())
	}
	seen := make(map[int]bool)
	for id := 0; id < 20; id++ {
		d, ok := s.Document(id)
		if !ok {
			t.Fatalf("missing id %d", id)
		}
		if seen[d.ID] {
			t.Fatalf("duplicate id %d", d.ID)
		}
		seen[d.ID] = true
		if !s.Index().Contains("page", d.ID) {
			t.Errorf("doc %d not indexed under title term", d.ID)
		}
	}
}

func TestAddPageIndexesAllFields(t *testing.T) {
	s := New()
	doc, added := s.AddPage(Page{
		URL:         "https://a.example/",
		Title:       "Home Page",
		Description: "Welcome Visitors",
		BodyText:    "hello world",
		Links:       []string{"https://b.example/"},
	})
	if !added {
		t.Fatal("expected page to be added")
	}
	for _, term := range []string{"home", "page", "welcome", "visitors", "hello", "world"} {
		if !s.Index().Contains(term, doc.ID) {
			t.Errorf("term %q missing doc %d", term, doc.ID)
		}
	}
	if _, again := s.AddPage(Page{URL: "https://a.example/"}); again {
		t.Error("same URL stored twice")
	}
	if got := s.Outlinks("https://a.example/"); !reflect.DeepEqual(got, []string{"https://b.example/"}) {
		t.Errorf("outlinks = %v", got)
	}
}

func TestRecomputeRanksUsesCrawledEdgesOnly(t *testing.T) {
	s := New()
	s.AddPage(Page{URL: "https://a/", Title: "a", Links: []string{"https://b/", "https://outside/"}})
	s.AddPage(Page{URL: "https://b/", Title: "b", Links: []string{"https://c/"}})
	s.AddPage(Page{URL: "https://c/", Title: "c", Links: []string{"https://a/"}})

	res := s.RecomputeRanks()
	if !res.Converged {
		t.Fatalf("expected convergence, got %+v", res)
	}
	ranks := s.Ranks()
	total := 0.0
	for id, score := range ranks {
		total += score
		if math.Abs(score-1.0/3) > 1e-6 {
			t.Errorf("doc %d score %f, want 1/3 on a cycle", id, score)
		}
	}
	if math.Abs(total-1) > 1e-6 {
		t.Errorf("mass = %f", total)
	}
	if byURL := s.RanksByURL(); len(byURL) != 3 || byURL["https://outside/"] != 0 {
		t.Errorf("RanksByURL = %v", byURL)
	}
}

func TestSearchResolvesDocuments(t *testing.T) {
	s := New()
	s.AddPage(Page{URL: "https://a/", Title: "Go news"})
	s.AddPage(Page{URL: "https://b/", Title: "Go"})
	s.RecomputeRanks()

	got := s.Search("go news", 0)
	if len(got) != 2 || got[0].URL != "https://a/" {
		t.Fatalf("unexpected results %+v", got)
	}
	if empty := s.Search("nothing", 0); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty slice, got %#v", empty)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	src := New()
	src.MarkVisited("https://a/")
	src.MarkVisited("https://b/")
	src.MarkVisited("https://denied/")
	src.AddPage(Page{URL: "https://a/", Title: "Home", Description: "No description", BodyText: "home home", Links: []string{"https://b/"}})
	src.AddPage(Page{URL: "https://b/", Title: "About", Description: "team", BodyText: "about us", Links: []string{"https://a/", "https://x/"}})
	src.RecomputeRanks()

	snap := src.Snapshot()
	dst := New()
	dst.Restore(snap)

	if !reflect.DeepEqual(dst.Snapshot(), snap) {
		t.Errorf("restored snapshot differs\n got: %+v\nwant: %+v", dst.Snapshot(), snap)
	}
	if !reflect.DeepEqual(dst.Ranks(), src.Ranks()) {
		t.Errorf("ranks differ: %v vs %v", dst.Ranks(), src.Ranks())
	}
	if dst.MarkVisited("https://denied/") {
		t.Error("visited set not restored")
	}
	doc, _ := dst.AddPage(Page{URL: "https://c/", Title: "new"})
	if doc.ID != 2 {
		t.Errorf("next id after restore = %d, want 2", doc.ID)
	}
}

func TestRestoreWithoutFrequencies(t *testing.T) {
	src := New()
	src.AddPage(Page{URL: "https://a/", Title: "go go", BodyText: "crawler"})
	snap := src.Snapshot()
	want := snap.TermFrequencies
	snap.TermFrequencies = nil

	dst := New()
	dst.Restore(snap)
	if got := dst.Index().Frequencies(); !reflect.DeepEqual(got, want) {
		t.Errorf("recounted frequencies = %v, want %v", got, want)
	}
}

func TestRestoreDropsDanglingPostings(t *testing.T) {
	snap := &snapshot.Snapshot{
		Index: map[string][]int{"go": {0, 7}, "ghost": {9}},
		Documents: map[int]docstore.Document{
			0: {ID: 0, URL: "https://a/", Title: "go"},
		},
		Visited: []string{"https://a/"},
	}
	s := New()
	s.Restore(snap)

	if got := s.Index().Search("go"); len(got) != 1 || got[0].DocID != 0 {
		t.Errorf("postings for go = %v, want only doc 0", got)
	}
	if got := s.Index().Search("ghost"); got != nil {
		t.Errorf("postings for ghost = %v, want none", got)
	}
	if got := s.Search("go ghost", 0); len(got) != 1 {
		t.Errorf("search returned %d documents, want 1", len(got))
	}
}

func TestRestoreNilIsNoop(t *testing.T) {
	s := New()
	s.AddPage(Page{URL: "https://a/", Title: "x"})
	s.Restore(nil)
	if s.DocumentCount() != 1 {
		t.Error("nil restore changed state")
	}
}
