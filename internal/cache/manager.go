package cache

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/socialecho/config"
)

// Manager owns the three cache classes and the background sweep that evicts
// expired entries the lazy path never touched.
type Manager struct {
	Query *QueryCache
	Posts *LRU
	AI    *LRU

	local  []*LRU
	cancel context.CancelFunc
	logger *log.Logger
}

// NewManager builds the cache classes from config and starts the sweeper.
// When redis is configured and reachable the query cache lives there;
// otherwise it falls back to local memory.
func NewManager(cfg config.CacheConfig, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}

	queryLRU := NewLRU(cfg.QueryMaxSize, cfg.QueryTTL)
	m := &Manager{
		Posts:  NewLRU(cfg.PostMaxSize, cfg.PostTTL),
		AI:     NewLRU(cfg.AIMaxSize, cfg.AITTL),
		local:  []*LRU{queryLRU},
		logger: logger,
	}

	var store QueryStore = &memoryStore{lru: queryLRU}
	if cfg.Redis.Addr != "" {
		rs := NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.QueryTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rs.Ping(ctx)
		cancel()
		if err != nil {
			logger.Printf("redis unreachable, using in-memory query cache: %v", err)
			_ = rs.Close()
		} else {
			store = rs
			m.local = m.local[:0]
		}
	}
	m.Query = NewQueryCache(store)
	m.local = append(m.local, m.Posts, m.AI)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.sweep(ctx, cfg.SweepInterval)
	return m
}

func (m *Manager) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := 0
			for _, c := range m.local {
				removed += c.CleanupExpired()
			}
			if removed > 0 {
				m.logger.Printf("swept %d expired entries", removed)
			}
		}
	}
}

// Stats reports per-class cache statistics.
func (m *Manager) Stats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"query": m.Query.Stats(ctx),
		"posts": m.Posts.Stats(),
		"ai":    m.AI.Stats(),
	}
}

// ClearAll empties every cache class.
func (m *Manager) ClearAll(ctx context.Context) {
	_ = m.Query.Clear(ctx)
	m.Posts.Clear()
	m.AI.Clear()
}

// Close stops the sweeper.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}
