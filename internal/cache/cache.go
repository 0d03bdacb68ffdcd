// Package cache keeps search results in Redis keyed by the normalised query.
// Concurrent misses for the same key share one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/tokenizer"
	pkgredis "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of pkg/redis.Client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// QueryCache is safe to use as a nil pointer, in which case every lookup
// computes directly.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int) ([]docstore.Document, bool) {
	key := buildKey(query, limit)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var docs []docstore.Document
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return docs, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, docs []docstore.Document) {
	key := buildKey(query, limit)
	data, err := json.Marshal(docs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for query or runs compute and
// caches its result. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	compute func() ([]docstore.Document, error),
) ([]docstore.Document, bool, error) {
	if c == nil {
		docs, err := compute()
		return docs, false, err
	}
	if docs, ok := c.Get(ctx, query, limit); ok {
		return docs, true, nil
	}
	key := buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		docs, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, docs)
		return docs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]docstore.Document), false, nil
}

// Invalidate drops every cached result. Called after each crawl run since
// new documents and ranks change every answer.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{Enabled: true, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// buildKey hashes the sorted distinct terms, so "b a a" and "A B" share a key.
func buildKey(query string, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func normalizeQuery(query string) string {
	terms := tokenizer.DistinctTerms(query)
	sort.Strings(terms)
	return strings.Join(terms, ",")
}
