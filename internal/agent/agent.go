// Package agent orchestrates one query end to end: understanding, parallel
// source search, pipeline refinement and response assembly, streamed to a
// ResponseHandler as it happens.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/socialecho/internal/cache"
	"github.com/mohammad-safakhou/socialecho/internal/pipeline"
	"github.com/mohammad-safakhou/socialecho/internal/query"
	"github.com/mohammad-safakhou/socialecho/internal/semantic"
	"github.com/mohammad-safakhou/socialecho/models"
)

const (
	maxRankedPosts  = 10
	maxDisplayPosts = 5
	displayLen      = 300
)

// Searcher is one content source.
type Searcher interface {
	Search(ctx context.Context, q *models.ProcessedQuery) (*models.SearchResult, error)
}

// EchoAgent answers social media questions.
type EchoAgent struct {
	processor *query.Processor
	reddit    Searcher
	twitter   Searcher
	pipeline  *pipeline.Pipeline
	semantic  *semantic.Client
	posts     *cache.LRU
	logger    *log.Logger
	tracer    trace.Tracer
}

// New creates the agent. sem may be nil to skip semantic scoring; posts may
// be nil to disable source-result caching.
func New(processor *query.Processor, reddit, twitter Searcher, pl *pipeline.Pipeline, sem *semantic.Client, posts *cache.LRU, logger *log.Logger) *EchoAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	return &EchoAgent{
		processor: processor,
		reddit:    reddit,
		twitter:   twitter,
		pipeline:  pl,
		semantic:  sem,
		posts:     posts,
		logger:    logger,
		tracer:    otel.Tracer("socialecho/agent"),
	}
}

// Assist processes one user query and streams progress to handler. The
// returned error mirrors what handler.OnError already received; callers that
// only consume the stream may ignore it.
func (a *EchoAgent) Assist(ctx context.Context, userQuery string, handler ResponseHandler) (err error) {
	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "agent.assist",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	a.logger.Printf("[%s] assisting: %q", runID, userQuery)

	emit := func(typ, content string, data interface{}) {
		handler.OnEvent(Event{Type: typ, Content: content, Data: data, Timestamp: time.Now()})
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("[%s] panic: %v", runID, r)
			emit(EventProcessingError, "An internal error occurred while processing your query.", nil)
			handler.OnError("INTERNAL_ERROR", fmt.Sprint(r))
			err = fmt.Errorf("assist panic: %v", r)
		}
	}()

	emit(EventQueryAnalysis, "Analyzing your query...", nil)
	pq := a.processor.Process(ctx, userQuery)
	emit(EventQueryIntent, "", pq)

	emit(EventSearch, "Searching social media...", nil)
	posts := a.search(ctx, pq)

	if len(posts) == 0 {
		emit(EventNoResults, "No posts found for your query. Try different keywords or a wider time range.", nil)
		handler.OnComplete("No results found.")
		return nil
	}

	emit(EventProcessing, fmt.Sprintf("Processing %d posts...", len(posts)), nil)
	ranked := a.pipeline.Process(ctx, posts, pq, maxRankedPosts)

	// Semantic scores ride alongside the weighted ranking; they annotate the
	// response without changing its order.
	if a.semantic != nil && len(ranked) > 0 {
		a.semantic.ScorePosts(ctx, ranked, pq.OriginalQuery)
	}

	if reddit := bySource(ranked, models.SourceReddit); len(reddit) > 0 {
		emit(EventRedditPosts, "", head(reddit, maxDisplayPosts))
	}
	if twitter := bySource(ranked, models.SourceTwitter); len(twitter) > 0 {
		emit(EventTwitterPosts, "", head(twitter, maxDisplayPosts))
	}

	final := a.render(pq, ranked)
	emit(EventFinalResponse, final, nil)
	handler.OnComplete(final)
	span.SetAttributes(attribute.Int("posts.ranked", len(ranked)))
	return nil
}

// search fans out to the selected sources concurrently. A failed source logs
// and contributes nothing; the other source's results still flow.
func (a *EchoAgent) search(ctx context.Context, pq *models.ProcessedQuery) []*models.Post {
	sources := make(map[models.Source]Searcher)
	if pq.SearchReddit && a.reddit != nil {
		sources[models.SourceReddit] = a.reddit
	}
	if pq.SearchTwitter && a.twitter != nil {
		sources[models.SourceTwitter] = a.twitter
	}

	var (
		mu    sync.Mutex
		posts []*models.Post
		wg    sync.WaitGroup
	)
	for name, src := range sources {
		wg.Add(1)
		go func(name models.Source, src Searcher) {
			defer wg.Done()
			found := a.searchOne(ctx, name, src, pq)
			mu.Lock()
			posts = append(posts, found...)
			mu.Unlock()
		}(name, src)
	}
	wg.Wait()
	return posts
}

func (a *EchoAgent) searchOne(ctx context.Context, name models.Source, src Searcher, pq *models.ProcessedQuery) []*models.Post {
	cacheKey := string(name) + ":" + cache.NormalizeQuery(pq.OriginalQuery)
	if a.posts != nil {
		if cached, ok := a.posts.Get(cacheKey); ok {
			if found, ok := cached.([]*models.Post); ok {
				return found
			}
		}
	}

	res, err := src.Search(ctx, pq)
	if err != nil {
		a.logger.Printf("%s search failed: %v", name, err)
		return nil
	}
	if a.posts != nil {
		a.posts.Set(cacheKey, res.Posts)
	}
	return res.Posts
}

// render assembles the final markdown answer from the top ranked posts.
func (a *EchoAgent) render(pq *models.ProcessedQuery, ranked []*models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Results for: %s\n\n", pq.OriginalQuery)
	fmt.Fprintf(&b, "Found %d relevant posts", len(ranked))
	if tr := pq.TimeRange(); tr != "" {
		fmt.Fprintf(&b, " from the past %s", tr)
	}
	b.WriteString(".\n\n")

	for i, post := range head(ranked, maxDisplayPosts) {
		fmt.Fprintf(&b, "### %d. %s (%s)\n", i+1, post.Author, post.Source)
		if post.Summary != nil && *post.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", *post.Summary)
		} else {
			fmt.Fprintf(&b, "%s\n\n", post.DisplayContent(displayLen))
		}
		fmt.Fprintf(&b, "- %s | %s", post.EngagementDisplay(), post.TimeDisplay())
		if post.Sentiment != "" {
			fmt.Fprintf(&b, " | sentiment: %s", post.Sentiment)
		}
		b.WriteString("\n")
		if post.URL != "" {
			fmt.Fprintf(&b, "- %s\n", post.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func bySource(posts []*models.Post, source models.Source) []*models.Post {
	var out []*models.Post
	for _, p := range posts {
		if p.Source == source {
			out = append(out, p)
		}
	}
	return out
}

func head(posts []*models.Post, n int) []*models.Post {
	if len(posts) > n {
		return posts[:n]
	}
	return posts
}
