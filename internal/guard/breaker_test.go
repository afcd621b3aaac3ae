package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Hour)
	boom := errors.New("boom")
	fail := func(ctx context.Context) error { return boom }

	for i := 0; i < 3; i++ {
		if err := b.Do(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("state = %q, want open", b.State())
	}
	if err := b.Do(context.Background(), fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestBreakerRecovers(t *testing.T) {
	b := NewBreaker("test", 1, 20*time.Millisecond)
	boom := errors.New("boom")

	if err := b.Do(context.Background(), func(ctx context.Context) error { return boom }); err == nil {
		t.Fatalf("expected failure")
	}
	if b.State() != "open" {
		t.Fatalf("state = %q, want open", b.State())
	}

	time.Sleep(30 * time.Millisecond)
	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("probe call should succeed: %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("state = %q, want closed", b.State())
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("test", 2, time.Hour)
	boom := errors.New("boom")

	_ = b.Do(context.Background(), func(ctx context.Context) error { return boom })
	_ = b.Do(context.Background(), func(ctx context.Context) error { return nil })
	_ = b.Do(context.Background(), func(ctx context.Context) error { return boom })

	if b.State() != "closed" {
		t.Fatalf("non-consecutive failures should not trip: state = %q", b.State())
	}
}

func TestBreakerGroup(t *testing.T) {
	g := NewBreakerGroup(5, time.Minute, "llm", "search")
	if g.Get("llm") == nil || g.Get("search") == nil {
		t.Fatalf("expected named breakers")
	}
	if g.Get("missing") != nil {
		t.Fatalf("unknown name should return nil")
	}

	states := g.States()
	if states["llm"] != "closed" || states["search"] != "closed" {
		t.Fatalf("unexpected states: %#v", states)
	}
}
