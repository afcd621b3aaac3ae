// Package query turns free-text questions into structured search intents.
// The model does the understanding; a deterministic keyword fallback keeps
// the system answering when it cannot.
package query

import (
	"context"
	"log"
	"strings"

	"github.com/mohammad-safakhou/socialecho/internal/enrich"
	"github.com/mohammad-safakhou/socialecho/models"
)

const maxKeywords = 5

var keywordStopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

var validSentiments = map[string]struct{}{
	"positive": {}, "negative": {}, "neutral": {},
}

var validTimeRanges = map[string]struct{}{
	"day": {}, "week": {}, "month": {}, "year": {},
}

// Processor derives a ProcessedQuery from user text.
type Processor struct {
	enricher *enrich.Client
	logger   *log.Logger
}

// NewProcessor creates a query processor.
func NewProcessor(enricher *enrich.Client, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(log.Writer(), "[QUERY] ", log.LstdFlags)
	}
	return &Processor{enricher: enricher, logger: logger}
}

// Process analyses the query with the model, normalising its output; when the
// model call fails the deterministic fallback takes over.
func (p *Processor) Process(ctx context.Context, query string) *models.ProcessedQuery {
	analysis, err := p.enricher.AnalyzeQuery(ctx, query)
	if err != nil {
		p.logger.Printf("analysis failed, using fallback: %v", err)
		return Fallback(query)
	}

	pq := &models.ProcessedQuery{
		OriginalQuery:   query,
		Keywords:        filterKeywords(analysis.Keywords),
		SearchReddit:    analysis.SearchReddit,
		SearchTwitter:   analysis.SearchTwitter,
		Filters:         map[string]string{},
		Intent:          analysis.Intent,
		SentimentFilter: normalizeSentiment(analysis.SentimentFilter),
	}

	if sub := normalizeSubreddit(analysis.Subreddit); sub != "" {
		pq.Filters["subreddit"] = sub
	}
	pq.Filters["time_range"] = normalizeTimeRange(analysis.TimeRange)

	// A query that searches nowhere answers nothing.
	if !pq.SearchReddit && !pq.SearchTwitter {
		pq.SearchReddit = true
		pq.SearchTwitter = true
	}
	if len(pq.Keywords) == 0 {
		pq.Keywords = fallbackKeywords(query)
	}
	if pq.Intent == "" {
		pq.Intent = DetectQueryType(query)
	}
	return pq
}

// Fallback builds a ProcessedQuery without any model call. Source selection
// reads platform mentions out of the raw text; keywords are the longest
// non-trivial tokens.
func Fallback(query string) *models.ProcessedQuery {
	lower := strings.ToLower(query)
	mentionsReddit := strings.Contains(lower, "reddit") || strings.Contains(lower, "subreddit")
	mentionsTwitter := strings.Contains(lower, "twitter") || strings.Contains(lower, "tweet")

	pq := &models.ProcessedQuery{
		OriginalQuery:   query,
		Keywords:        fallbackKeywords(query),
		SearchReddit:    mentionsReddit || !mentionsTwitter,
		SearchTwitter:   mentionsTwitter || !mentionsReddit,
		Filters:         map[string]string{"time_range": "week"},
		Intent:          DetectQueryType(query),
		SentimentFilter: "any",
	}

	for _, word := range strings.Fields(lower) {
		if strings.HasPrefix(word, "r/") && len(word) > 2 {
			pq.Filters["subreddit"] = strings.Trim(word[2:], ".,!?")
			break
		}
	}
	return pq
}

// DetectQueryType classifies the query into a coarse intent bucket from
// keyword cues alone.
func DetectQueryType(query string) string {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "sentiment", "feel", "opinion", "think about", "reaction"):
		return "sentiment_analysis"
	case containsAny(lower, "trending", "viral", "popular", "hot"):
		return "trending_content"
	case containsAny(lower, "news", "latest", "breaking", "update"):
		return "news_search"
	case containsAny(lower, "discussion", "debate", "thread", "conversation"):
		return "discussion_search"
	default:
		return "general_search"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func fallbackKeywords(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) <= 2 {
			continue
		}
		if _, stop := keywordStopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) >= maxKeywords {
			break
		}
	}
	return keywords
}

func filterKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if len(kw) <= 2 {
			continue
		}
		if _, stop := keywordStopWords[kw]; stop {
			continue
		}
		out = append(out, kw)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

func normalizeSentiment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := validSentiments[s]; ok {
		return s
	}
	return "any"
}

func normalizeTimeRange(tr string) string {
	tr = strings.ToLower(strings.TrimSpace(tr))
	if _, ok := validTimeRanges[tr]; ok {
		return tr
	}
	return "week"
}

func normalizeSubreddit(sub string) string {
	sub = strings.TrimSpace(sub)
	sub = strings.TrimPrefix(sub, "/")
	sub = strings.TrimPrefix(sub, "r/")
	return strings.ReplaceAll(sub, "/", "")
}
