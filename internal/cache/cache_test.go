package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value")
	}
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute)
	ctx := context.Background()
	var calls int
	compute := func() ([]docstore.Document, error) {
		calls++
		return []docstore.Document{{ID: 1, URL: "https://a.test/"}}, nil
	}

	if _, hit, err := c.GetOrCompute(ctx, "go crawler", 50, compute); err != nil || hit {
		t.Fatalf("first lookup: hit=%v err=%v", hit, err)
	}
	docs, hit, err := c.GetOrCompute(ctx, "Crawler GO go", 50, compute)
	if err != nil || !hit {
		t.Fatalf("second lookup: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if len(docs) != 1 || docs[0].URL != "https://a.test/" {
		t.Errorf("cached docs = %+v", docs)
	}
	s := c.Stats()
	if !s.Enabled || s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "q", 50, func() ([]docstore.Document, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get(context.Background(), "q", 50); ok {
		t.Error("failed computation should not be cached")
	}
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute)
	ctx := context.Background()
	c.Set(ctx, "a", 50, []docstore.Document{})
	c.Set(ctx, "b", 50, []docstore.Document{})
	backend.data["other:key"] = "x"

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if len(backend.data) != 1 {
		t.Errorf("backend has %d keys, want only the unrelated one", len(backend.data))
	}
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var c *QueryCache
	var calls atomic.Int32
	for range 2 {
		_, hit, err := c.GetOrCompute(context.Background(), "q", 50, func() ([]docstore.Document, error) {
			calls.Add(1)
			return nil, nil
		})
		if err != nil || hit {
			t.Fatalf("hit=%v err=%v", hit, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("compute called %d times, want 2", calls.Load())
	}
	if err := c.Invalidate(context.Background()); err != nil {
		t.Error(err)
	}
	if c.Stats().Enabled {
		t.Error("nil cache should report disabled")
	}
}

func TestKeyNormalisation(t *testing.T) {
	if buildKey("b a a", 50) != buildKey("A  B", 50) {
		t.Error("term order and case should not change the key")
	}
	if buildKey("a", 50) == buildKey("a", 10) {
		t.Error("limit should be part of the key")
	}
}
