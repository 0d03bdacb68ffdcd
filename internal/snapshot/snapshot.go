// Package snapshot persists the crawl session (index, documents, link graph
// and visited set) as one JSON record. The file backend is the default;
// Postgres and SQLite keep the same record in a single-row table.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
)

// Snapshot is the persisted form of a session. TermFrequencies is optional;
// when it is absent frequencies are recounted from the documents on load.
type Snapshot struct {
	Index           map[string][]int          `json:"index"`
	Documents       map[int]docstore.Document `json:"documents"`
	Graph           map[string][]string       `json:"graph"`
	Visited         []string                  `json:"visited"`
	TermFrequencies map[string]map[int]int    `json:"termFrequencies,omitempty"`
}

// Store loads and saves snapshots. Load returns nil, nil when nothing has
// been saved yet.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Encode serialises snap, filling nil collections so readers always see
// JSON objects and arrays rather than null.
func Encode(snap *Snapshot) ([]byte, error) {
	out := *snap
	if out.Index == nil {
		out.Index = map[string][]int{}
	}
	if out.Documents == nil {
		out.Documents = map[int]docstore.Document{}
	}
	if out.Graph == nil {
		out.Graph = map[string][]string{}
	}
	if out.Visited == nil {
		out.Visited = []string{}
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// retryable keeps database saves from retrying once the caller gave up.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
