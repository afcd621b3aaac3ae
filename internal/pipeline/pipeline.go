// Package pipeline refines raw fetched posts into a ranked answer set:
// deduplication, quality filtering, bounded-concurrency AI enrichment, then
// weighted ranking.
package pipeline

import (
	"context"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mohammad-safakhou/socialecho/internal/enrich"
	"github.com/mohammad-safakhou/socialecho/models"
)

const (
	enrichConcurrency = 5
	minQualityLen     = 20
	minMeaningfulWord = 5
	fingerprintLen    = 100
	freshnessWindowHr = 168 // one week
)

var (
	urlPattern     = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	mentionPattern = regexp.MustCompile(`[@#]\w+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Pipeline processes fetched posts for one query.
type Pipeline struct {
	enricher *enrich.Client
	logger   *log.Logger
	now      func() time.Time
}

// New creates a processing pipeline.
func New(enricher *enrich.Client, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{enricher: enricher, logger: logger, now: time.Now}
}

// Process runs the full refinement chain and returns at most maxPosts ranked
// posts. A panic anywhere in the chain degrades to the raw input truncated to
// maxPosts; a bad batch must never take down the request.
func (p *Pipeline) Process(ctx context.Context, posts []*models.Post, query *models.ProcessedQuery, maxPosts int) (out []*models.Post) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("pipeline panic, returning unprocessed posts: %v", r)
			if len(posts) > maxPosts {
				posts = posts[:maxPosts]
			}
			out = posts
		}
	}()

	deduped := Deduplicate(posts)
	filtered := FilterQuality(deduped)
	if len(filtered) == 0 {
		return []*models.Post{}
	}

	enriched := p.enrichAll(ctx, filtered, query)
	if query.SentimentFilter != "" && query.SentimentFilter != "any" {
		enriched = filterSentiment(enriched, query.SentimentFilter)
	}
	ranked := p.Rank(enriched)

	if len(ranked) > maxPosts {
		ranked = ranked[:maxPosts]
	}
	p.logger.Printf("processed %d -> %d posts", len(posts), len(ranked))
	return ranked
}

// Deduplicate removes posts whose normalised content fingerprint repeats.
// First occurrence wins, order is preserved.
func Deduplicate(posts []*models.Post) []*models.Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]*models.Post, 0, len(posts))
	for _, post := range posts {
		fp := Fingerprint(post.Content)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, post)
	}
	return out
}

// Fingerprint normalises content for duplicate detection: URLs, mentions and
// hashtags stripped, whitespace collapsed, lowercased, capped.
func Fingerprint(content string) string {
	s := urlPattern.ReplaceAllString(content, "")
	s = mentionPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > fingerprintLen {
		s = s[:fingerprintLen]
	}
	return s
}

// FilterQuality drops posts that are too short, have negative engagement, or
// carry too few meaningful words.
func FilterQuality(posts []*models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	for _, post := range posts {
		if IsQuality(post) {
			out = append(out, post)
		}
	}
	return out
}

// IsQuality reports whether one post passes the quality gates.
func IsQuality(post *models.Post) bool {
	content := strings.TrimSpace(post.Content)
	if len(content) < minQualityLen {
		return false
	}
	if post.Engagement < 0 {
		return false
	}
	meaningful := 0
	for _, word := range strings.Fields(content) {
		if strings.HasPrefix(word, "http") || strings.HasPrefix(word, "@") || strings.HasPrefix(word, "#") {
			continue
		}
		meaningful++
	}
	return meaningful >= minMeaningfulWord
}

// enrichAll summarises and scores sentiment for every post under a
// concurrency cap. Enrichment is best effort: a post whose calls fail keeps
// its place unenriched. Output order matches input order.
func (p *Pipeline) enrichAll(ctx context.Context, posts []*models.Post, query *models.ProcessedQuery) []*models.Post {
	sem := semaphore.NewWeighted(enrichConcurrency)
	var wg sync.WaitGroup
	out := make([]*models.Post, len(posts))

	for i, post := range posts {
		out[i] = post
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context gone; remaining posts stay unenriched.
			break
		}
		wg.Add(1)
		go func(i int, post *models.Post) {
			defer wg.Done()
			defer sem.Release(1)
			p.enrichOne(ctx, post, query)
		}(i, post)
	}
	wg.Wait()
	return out
}

// enrichOne runs the summary and sentiment calls for one post in parallel.
func (p *Pipeline) enrichOne(ctx context.Context, post *models.Post, query *models.ProcessedQuery) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if summary, err := p.enricher.Summarize(ctx, post.Content, query.OriginalQuery); err == nil {
			post.Summary = &summary
		} else {
			p.logger.Printf("summarize failed for %s: %v", post.ID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if sentiment, err := p.enricher.Sentiment(ctx, post.Content); err == nil {
			post.Sentiment = sentiment
		} else {
			post.Sentiment = "neutral"
		}
	}()
	wg.Wait()
}

func filterSentiment(posts []*models.Post, want string) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	for _, post := range posts {
		if post.Sentiment == want {
			out = append(out, post)
		}
	}
	// An over-strict filter that removes everything is worse than no filter.
	if len(out) == 0 {
		return posts
	}
	return out
}

// Rank attaches a weighted relevance score to each post and sorts descending.
// The sort is stable so equal scores keep fetch order.
func (p *Pipeline) Rank(posts []*models.Post) []*models.Post {
	if len(posts) == 0 {
		return posts
	}

	maxEngagement := 0.0
	for _, post := range posts {
		if post.Engagement > maxEngagement {
			maxEngagement = post.Engagement
		}
	}

	now := p.now()
	for _, post := range posts {
		score := p.score(post, maxEngagement, now)
		post.RelevanceScore = &score
	}

	ranked := make([]*models.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].RelevanceScore > *ranked[j].RelevanceScore
	})
	return ranked
}

func (p *Pipeline) score(post *models.Post, maxEngagement float64, now time.Time) float64 {
	score := 0.0

	if maxEngagement > 0 {
		score += 0.4 * (post.Engagement / maxEngagement)
	}

	ageHours := now.Sub(post.CreatedAt).Hours()
	score += 0.2 * math.Max(0, 1-ageHours/freshnessWindowHr)

	score += 0.2 * math.Min(1, float64(len(post.Content))/500)

	switch post.Sentiment {
	case "positive":
		score += 0.10
	case "neutral":
		score += 0.05
	}

	if post.Source == models.SourceReddit {
		score += 0.05
	}
	return score
}
