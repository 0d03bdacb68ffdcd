package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	fail    bool
	batches [][]kafka.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e kafka.Event) error {
	return f.PublishBatch(ctx, []kafka.Event{e})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestFlushPublishesBufferedEvents(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 10, time.Hour)
	for i := 0; i < 3; i++ {
		bc.TrackCrawl(analytics.CrawlEvent{Host: "a.example", Outcome: "indexed"})
	}
	bc.Flush(context.Background())

	if pub.total() != 3 {
		t.Fatalf("published %d events, want 3", pub.total())
	}
	if bc.BufferLen() != 0 {
		t.Errorf("buffer not emptied: %d", bc.BufferLen())
	}
	if key := pub.batches[0][0].Key; key != "a.example" {
		t.Errorf("event key = %q", key)
	}
}

func TestFailedFlushRequeuesWithCap(t *testing.T) {
	pub := &fakePublisher{fail: true}
	bc := NewBatchCollector(pub, 2, time.Hour)
	bc.mu.Lock()
	for i := 0; i < 10; i++ {
		bc.buffer = append(bc.buffer, kafka.Event{Key: "k"})
	}
	bc.mu.Unlock()

	bc.Flush(context.Background())
	if got := bc.BufferLen(); got != 6 {
		t.Fatalf("buffer after failed flush = %d, want 6", got)
	}

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()
	bc.Flush(context.Background())
	if pub.total() != 6 || bc.BufferLen() != 0 {
		t.Errorf("retry published %d, buffer %d", pub.total(), bc.BufferLen())
	}
}

func TestStartFlushesOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track("k", "v")
	cancel()
	bc.Close()
	if pub.total() != 1 {
		t.Errorf("expected final flush to publish 1 event, got %d", pub.total())
	}
}
