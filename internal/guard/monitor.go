package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

const (
	blockedEventCap       = 1000
	suspiciousWindow      = 24 * time.Hour
	suspiciousBlockCount  = 10
	suspiciousViolationCt = 5
)

// BlockedEvent records one rejected query.
type BlockedEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Reason    string    `json:"reason"`
	ClientIP  string    `json:"client_ip,omitempty"`
	QueryHash string    `json:"query_hash"`
}

// Monitor tracks blocked queries and rate-limit violations per client so the
// server can flag suspicious IPs. All state is in-memory and best-effort.
type Monitor struct {
	logger *log.Logger

	mu         sync.Mutex
	blocked    []BlockedEvent
	byIP       map[string][]BlockedEvent
	violations map[string]int
	now        func() time.Time
}

// NewMonitor creates a security monitor.
func NewMonitor(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(log.Writer(), "[SECURITY] ", log.LstdFlags)
	}
	return &Monitor{
		logger:     logger,
		byIP:       make(map[string][]BlockedEvent),
		violations: make(map[string]int),
		now:        time.Now,
	}
}

// LogBlockedQuery records a rejected query, keeping the most recent 1000
// events and a rolling 24h window per client.
func (m *Monitor) LogBlockedQuery(query, reason, clientIP string) {
	truncated := query
	if len(truncated) > 100 {
		truncated = truncated[:100]
	}
	sum := sha256.Sum256([]byte(query))
	event := BlockedEvent{
		Timestamp: m.now().UTC(),
		Query:     truncated,
		Reason:    reason,
		ClientIP:  clientIP,
		QueryHash: hex.EncodeToString(sum[:])[:16],
	}

	m.mu.Lock()
	m.blocked = append(m.blocked, event)
	if len(m.blocked) > blockedEventCap {
		m.blocked = m.blocked[len(m.blocked)-blockedEventCap:]
	}
	if clientIP != "" {
		cutoff := m.now().Add(-suspiciousWindow)
		events := append(m.byIP[clientIP], event)
		pruned := events[:0]
		for _, e := range events {
			if e.Timestamp.After(cutoff) {
				pruned = append(pruned, e)
			}
		}
		m.byIP[clientIP] = pruned
	}
	m.mu.Unlock()

	m.logger.Printf("blocked suspicious query from %s: %s", clientIP, reason)
}

// LogRateLimitViolation counts a rate-limit rejection for the client.
func (m *Monitor) LogRateLimitViolation(clientIP string) {
	m.mu.Lock()
	m.violations[clientIP]++
	m.mu.Unlock()
	m.logger.Printf("rate limit violation from %s", clientIP)
}

// IsSuspicious flags a client with more than 10 blocked queries in the last
// 24h or more than 5 rate-limit violations.
func (m *Monitor) IsSuspicious(clientIP string) bool {
	if clientIP == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-suspiciousWindow)
	recent := 0
	for _, e := range m.byIP[clientIP] {
		if e.Timestamp.After(cutoff) {
			recent++
		}
	}
	if recent > suspiciousBlockCount {
		return true
	}
	return m.violations[clientIP] > suspiciousViolationCt
}

// Stats summarises monitoring state for the security endpoint.
func (m *Monitor) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	violations := 0
	for _, v := range m.violations {
		violations += v
	}
	hourAgo := m.now().Add(-time.Hour)
	recent := 0
	for _, e := range m.blocked {
		if e.Timestamp.After(hourAgo) {
			recent++
		}
	}
	return map[string]interface{}{
		"total_blocked_queries": len(m.blocked),
		"suspicious_ips":        len(m.byIP),
		"rate_limit_violations": violations,
		"recent_blocks":         recent,
	}
}
