// Package docstore owns the crawled documents. Ids are assigned from the
// store's length at insertion time, so they grow by one per stored page.
package docstore

import (
	"sort"
	"sync"
)

// Document is the metadata kept for one indexed page.
type Document struct {
	ID          int    `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	BodyText    string `json:"bodyText"`
}

// IndexText is the text fed to the inverted index for d.
func (d Document) IndexText() string {
	return d.Title + " " + d.Description + " " + d.BodyText
}

type Store struct {
	mu    sync.RWMutex
	docs  map[int]Document
	byURL map[string]int
	next  int
}

func New() *Store {
	return &Store{
		docs:  make(map[int]Document),
		byURL: make(map[string]int),
	}
}

// Add stores a new document and returns it with its assigned id. A URL that
// is already stored returns the existing document and false.
func (s *Store) Add(url, title, description, body string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[url]; ok {
		return s.docs[id], false
	}
	doc := Document{
		ID:          s.next,
		URL:         url,
		Title:       title,
		Description: description,
		BodyText:    body,
	}
	s.docs[doc.ID] = doc
	s.byURL[url] = doc.ID
	s.next++
	return doc, true
}

func (s *Store) Get(id int) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	return d, ok
}

// IDByURL returns the id of the document stored for url.
func (s *Store) IDByURL(url string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	return id, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// All returns every document ordered by id.
func (s *Store) All() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load replaces the store with docs. The next id continues after the largest
// loaded id so restored stores never reuse one.
func (s *Store) Load(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[int]Document, len(docs))
	s.byURL = make(map[string]int, len(docs))
	s.next = 0
	for _, d := range docs {
		s.docs[d.ID] = d
		s.byURL[d.URL] = d.ID
		if d.ID >= s.next {
			s.next = d.ID + 1
		}
	}
}
