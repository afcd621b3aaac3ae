package guard

import (
	"strings"
	"testing"
	"time"
)

func TestMonitorFlagsRepeatedBlocks(t *testing.T) {
	m := NewMonitor(nil)
	if m.IsSuspicious("1.2.3.4") {
		t.Fatalf("fresh client should not be suspicious")
	}

	for i := 0; i < 11; i++ {
		m.LogBlockedQuery("bad query", "dangerous content", "1.2.3.4")
	}
	if !m.IsSuspicious("1.2.3.4") {
		t.Fatalf("client with 11 blocks should be suspicious")
	}
	if m.IsSuspicious("5.6.7.8") {
		t.Fatalf("other client should be unaffected")
	}
}

func TestMonitorFlagsRateLimitViolations(t *testing.T) {
	m := NewMonitor(nil)
	for i := 0; i < 6; i++ {
		m.LogRateLimitViolation("9.9.9.9")
	}
	if !m.IsSuspicious("9.9.9.9") {
		t.Fatalf("client with 6 violations should be suspicious")
	}
}

func TestMonitorOldBlocksExpire(t *testing.T) {
	m := NewMonitor(nil)
	base := time.Now()
	m.now = func() time.Time { return base }

	for i := 0; i < 11; i++ {
		m.LogBlockedQuery("bad", "reason", "1.1.1.1")
	}

	m.now = func() time.Time { return base.Add(25 * time.Hour) }
	if m.IsSuspicious("1.1.1.1") {
		t.Fatalf("day-old blocks should not count")
	}
}

func TestMonitorTruncatesAndHashes(t *testing.T) {
	m := NewMonitor(nil)
	m.LogBlockedQuery(strings.Repeat("a", 300), "too long", "2.2.2.2")

	m.mu.Lock()
	event := m.blocked[0]
	m.mu.Unlock()

	if len(event.Query) != 100 {
		t.Fatalf("query not truncated: %d", len(event.Query))
	}
	if len(event.QueryHash) != 16 {
		t.Fatalf("hash length = %d, want 16", len(event.QueryHash))
	}
}

func TestMonitorStats(t *testing.T) {
	m := NewMonitor(nil)
	m.LogBlockedQuery("bad", "reason", "3.3.3.3")
	m.LogRateLimitViolation("3.3.3.3")

	stats := m.Stats()
	if stats["total_blocked_queries"].(int) != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if stats["rate_limit_violations"].(int) != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
