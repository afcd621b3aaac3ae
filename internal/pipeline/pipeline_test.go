package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/socialecho/internal/enrich"
	"github.com/mohammad-safakhou/socialecho/models"
	"github.com/mohammad-safakhou/socialecho/provider"
)

// routingProvider answers each prompt kind with a canned response.
type routingProvider struct {
	sentiment string
}

func (r *routingProvider) Complete(_ context.Context, messages []provider.Message, _ float64, _ int) (string, error) {
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "Summarize this social media post"):
		return "A concise summary of the post.", nil
	case strings.Contains(prompt, "Analyze the sentiment"):
		if r.sentiment != "" {
			return r.sentiment, nil
		}
		return "neutral", nil
	default:
		return "", nil
	}
}

func (r *routingProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func newTestPipeline(sentiment string) *Pipeline {
	enricher := enrich.NewClient(&routingProvider{sentiment: sentiment}, nil, nil)
	return New(enricher, nil)
}

func post(id, content string, engagement float64, age time.Duration) *models.Post {
	return &models.Post{
		ID:         id,
		Source:     models.SourceReddit,
		Content:    content,
		Author:     "u/tester",
		CreatedAt:  time.Now().Add(-age),
		Engagement: engagement,
	}
}

// gatedProvider holds the summary response until the sentiment prompt has
// also arrived, so it only completes when both calls run in parallel.
type gatedProvider struct {
	sentimentStarted chan struct{}
}

func (g *gatedProvider) Complete(_ context.Context, messages []provider.Message, _ float64, _ int) (string, error) {
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "Summarize this social media post"):
		select {
		case <-g.sentimentStarted:
			return "A concise summary of the post.", nil
		case <-time.After(2 * time.Second):
			return "", context.DeadlineExceeded
		}
	case strings.Contains(prompt, "Analyze the sentiment"):
		close(g.sentimentStarted)
		return "positive", nil
	default:
		return "", nil
	}
}

func (g *gatedProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func TestEnrichOneRunsCallsConcurrently(t *testing.T) {
	enricher := enrich.NewClient(&gatedProvider{sentimentStarted: make(chan struct{})}, nil, nil)
	p := New(enricher, nil)

	target := post("1", "Go generics are finally here and they work well", 10, time.Hour)
	p.enrichOne(context.Background(), target, &models.ProcessedQuery{OriginalQuery: "go generics"})

	if target.Summary == nil || *target.Summary != "A concise summary of the post." {
		t.Fatalf("summary call did not overlap the sentiment call: %#v", target.Summary)
	}
	if target.Sentiment != "positive" {
		t.Fatalf("sentiment = %q", target.Sentiment)
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	a := Fingerprint("Check this out https://example.com/post #golang @someone")
	b := Fingerprint("check   this out  ")
	if a != b {
		t.Fatalf("fingerprints differ: %q vs %q", a, b)
	}
}

func TestDeduplicateKeepsFirst(t *testing.T) {
	posts := []*models.Post{
		post("1", "Go generics are finally here and they work well", 10, time.Hour),
		post("2", "Go generics are finally here and they work well https://t.co/xyz", 99, time.Hour),
		post("3", "Completely different discussion about databases here", 5, time.Hour),
	}
	out := Deduplicate(posts)
	if len(out) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(out))
	}
	if out[0].ID != "1" || out[1].ID != "3" {
		t.Fatalf("unexpected survivors: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	posts := []*models.Post{
		post("1", "First post with enough words to matter in tests", 1, time.Hour),
		post("2", "Second post with different content entirely here", 1, time.Hour),
	}
	once := Deduplicate(posts)
	twice := Deduplicate(once)
	if len(once) != len(twice) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(once), len(twice))
	}
}

func TestIsQuality(t *testing.T) {
	cases := []struct {
		name string
		p    *models.Post
		want bool
	}{
		{"good", post("1", "A thoughtful discussion about software design tradeoffs", 5, time.Hour), true},
		{"too short", post("2", "short one", 5, time.Hour), false},
		{"negative engagement", post("3", "A thoughtful discussion about software design tradeoffs", -1, time.Hour), false},
		{"only links and tags", post("4", "https://a.com https://b.com @user #tag #tag2 more", 5, time.Hour), false},
	}
	for _, tc := range cases {
		if got := IsQuality(tc.p); got != tc.want {
			t.Fatalf("%s: IsQuality = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRankOrdersByScore(t *testing.T) {
	p := newTestPipeline("")
	high := post("high", strings.Repeat("engaging content ", 40), 100, time.Hour)
	low := post("low", "barely any content here to speak of at all", 1, 200*time.Hour)
	ranked := p.Rank([]*models.Post{low, high})

	if ranked[0].ID != "high" {
		t.Fatalf("expected high-engagement post first, got %s", ranked[0].ID)
	}
	for _, r := range ranked {
		if r.RelevanceScore == nil {
			t.Fatalf("post %s missing relevance score", r.ID)
		}
		if *r.RelevanceScore < 0 || *r.RelevanceScore > 1 {
			t.Fatalf("post %s score out of range: %v", r.ID, *r.RelevanceScore)
		}
	}
}

func TestRankStableForEqualScores(t *testing.T) {
	p := newTestPipeline("")
	now := time.Now()
	a := post("a", "identical content for stability checking purposes", 10, 0)
	b := post("b", "identical content for stability checking purposes", 10, 0)
	a.CreatedAt, b.CreatedAt = now, now

	ranked := p.Rank([]*models.Post{a, b})
	if ranked[0].ID != "a" || ranked[1].ID != "b" {
		t.Fatalf("equal scores reordered: %s, %s", ranked[0].ID, ranked[1].ID)
	}
}

func TestProcessEndToEnd(t *testing.T) {
	p := newTestPipeline("positive")
	query := &models.ProcessedQuery{
		OriginalQuery: "what do people think about go",
		Filters:       map[string]string{"time_range": "week"},
	}
	posts := []*models.Post{
		post("1", "Go has been great for our backend services, highly recommend it", 50, 2*time.Hour),
		post("2", "Go has been great for our backend services, highly recommend it", 50, 2*time.Hour),
		post("3", "meh", 1, time.Hour),
		post("4", "We migrated from another stack and the tooling made the team faster", 20, 48*time.Hour),
	}

	out := p.Process(context.Background(), posts, query, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 posts after dedup and quality, got %d", len(out))
	}
	for _, o := range out {
		if o.ID == "2" || o.ID == "3" {
			t.Fatalf("post %s should have been filtered", o.ID)
		}
		if o.Summary == nil {
			t.Fatalf("post %s not summarised", o.ID)
		}
		if o.Sentiment != "positive" {
			t.Fatalf("post %s sentiment = %q", o.ID, o.Sentiment)
		}
		if o.RelevanceScore == nil {
			t.Fatalf("post %s missing relevance score", o.ID)
		}
	}
}

func TestProcessEmptyAfterFiltering(t *testing.T) {
	p := newTestPipeline("")
	query := &models.ProcessedQuery{OriginalQuery: "q", Filters: map[string]string{}}
	out := p.Process(context.Background(), []*models.Post{post("1", "tiny", 1, time.Hour)}, query, 10)
	if len(out) != 0 {
		t.Fatalf("expected no posts, got %d", len(out))
	}
}

func TestProcessTruncatesToMax(t *testing.T) {
	p := newTestPipeline("")
	query := &models.ProcessedQuery{OriginalQuery: "q", Filters: map[string]string{}}
	var posts []*models.Post
	for i := 0; i < 8; i++ {
		posts = append(posts, post(string(rune('a'+i)),
			strings.Repeat("word ", 10)+string(rune('a'+i)), float64(i), time.Hour))
	}
	out := p.Process(context.Background(), posts, query, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(out))
	}
}

func TestSentimentFilterKeepsAllWhenEmptyResult(t *testing.T) {
	posts := []*models.Post{
		{ID: "1", Sentiment: "negative"},
		{ID: "2", Sentiment: "neutral"},
	}
	out := filterSentiment(posts, "positive")
	if len(out) != 2 {
		t.Fatalf("over-strict filter should fall back to all posts, got %d", len(out))
	}
	out = filterSentiment(posts, "negative")
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("unexpected filter result: %#v", out)
	}
}
