package cache

import (
	"context"
	"regexp"
	"strings"
)

var (
	normSpace = regexp.MustCompile(`\s+`)
	normPunct = regexp.MustCompile(`[?!.]+$`)
)

// NormalizeQuery canonicalises query text so trivially different phrasings
// share one cache slot.
func NormalizeQuery(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	s = normSpace.ReplaceAllString(s, " ")
	s = normPunct.ReplaceAllString(s, "")
	return s
}

// QueryStore is the storage behind the query-result cache. The in-memory LRU
// and the redis backend both satisfy it.
type QueryStore interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

// memoryStore adapts LRU to QueryStore.
type memoryStore struct {
	lru *LRU
}

func (m *memoryStore) Get(_ context.Context, key string) (interface{}, bool) {
	return m.lru.Get(key)
}

func (m *memoryStore) Set(_ context.Context, key string, value interface{}) error {
	m.lru.Set(key, value)
	return nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.lru.Clear()
	return nil
}

func (m *memoryStore) Stats(_ context.Context) map[string]interface{} {
	return m.lru.Stats()
}

// QueryCache caches complete query responses keyed by normalised query text.
type QueryCache struct {
	store QueryStore
}

// NewQueryCache wraps a store with query normalisation.
func NewQueryCache(store QueryStore) *QueryCache {
	return &QueryCache{store: store}
}

// Get returns the cached response for query, if any.
func (q *QueryCache) Get(ctx context.Context, query string) (interface{}, bool) {
	return q.store.Get(ctx, NormalizeQuery(query))
}

// Set stores the response for query.
func (q *QueryCache) Set(ctx context.Context, query string, value interface{}) error {
	return q.store.Set(ctx, NormalizeQuery(query), value)
}

// Clear drops all cached responses.
func (q *QueryCache) Clear(ctx context.Context) error {
	return q.store.Clear(ctx)
}

// Stats reports the underlying store's counters.
func (q *QueryCache) Stats(ctx context.Context) map[string]interface{} {
	return q.store.Stats(ctx)
}
