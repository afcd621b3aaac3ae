package models

import (
	"fmt"
	"time"
)

// Source identifies which platform a post came from.
type Source string

const (
	SourceReddit  Source = "Reddit"
	SourceTwitter Source = "Twitter"
)

// Post is the unified record for one social media item. Source adapters create
// posts at fetch time; the pipeline mutates the enrichment fields in place. A
// post lives only for the duration of one query's processing.
type Post struct {
	ID         string                 `json:"id"`
	Source     Source                 `json:"source"`
	Content    string                 `json:"content"`
	Author     string                 `json:"author"`
	CreatedAt  time.Time              `json:"created_at"`
	URL        string                 `json:"url"`
	Engagement float64                `json:"engagement_score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Enrichment fields, populated progressively by the pipeline.
	Summary        *string  `json:"summary,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`

	// Semantic ranking attaches an independent embedding-cosine signal. It is
	// never merged into RelevanceScore; callers read whichever they need.
	SemanticScore *float64               `json:"semantic_score,omitempty"`
	SemanticMeta  map[string]interface{} `json:"semantic_metadata,omitempty"`
}

// DisplayContent returns the content truncated for rendering.
func (p *Post) DisplayContent(maxLen int) string {
	if len(p.Content) <= maxLen {
		return p.Content
	}
	return p.Content[:maxLen] + "..."
}

// EngagementDisplay formats the raw engagement signals per source.
func (p *Post) EngagementDisplay() string {
	switch p.Source {
	case SourceReddit:
		return fmt.Sprintf("^ %v | comments %v", p.meta("score"), p.meta("num_comments"))
	case SourceTwitter:
		return fmt.Sprintf("likes %v | retweets %v | replies %v", p.meta("likes"), p.meta("retweets"), p.meta("replies"))
	default:
		return fmt.Sprintf("score: %.1f", p.Engagement)
	}
}

// TimeDisplay renders the post age in a compact human form.
func (p *Post) TimeDisplay() string {
	diff := time.Since(p.CreatedAt)
	switch {
	case diff >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	case diff >= time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff >= time.Minute:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	default:
		return "just now"
	}
}

func (p *Post) meta(key string) interface{} {
	if p.Metadata == nil {
		return 0
	}
	v, ok := p.Metadata[key]
	if !ok {
		return 0
	}
	return v
}

// ProcessedQuery is the structured search intent derived from free text. It is
// created once by the query processor and immutable afterwards.
type ProcessedQuery struct {
	OriginalQuery   string            `json:"original_query"`
	Keywords        []string          `json:"keywords"`
	SearchReddit    bool              `json:"search_reddit"`
	SearchTwitter   bool              `json:"search_twitter"`
	Filters         map[string]string `json:"filters"`
	Intent          string            `json:"intent"`
	SentimentFilter string            `json:"sentiment_filter"`
}

// Subreddit returns the subreddit filter, empty when absent.
func (q *ProcessedQuery) Subreddit() string { return q.Filters["subreddit"] }

// TimeRange returns the time range filter, defaulting to "week".
func (q *ProcessedQuery) TimeRange() string {
	if tr, ok := q.Filters["time_range"]; ok && tr != "" {
		return tr
	}
	return "week"
}

// SearchResult wraps one source's fetch outcome.
type SearchResult struct {
	Posts      []*Post       `json:"posts"`
	TotalFound int           `json:"total_found"`
	Source     Source        `json:"source"`
	QueryTime  time.Duration `json:"query_time"`
}

// TimeRangeCutoff converts a time range name to its lower-bound instant.
// Unknown ranges fall back to one week.
func TimeRangeCutoff(timeRange string, now time.Time) time.Time {
	switch timeRange {
	case "day":
		return now.Add(-24 * time.Hour)
	case "month":
		return now.Add(-30 * 24 * time.Hour)
	case "year":
		return now.Add(-365 * 24 * time.Hour)
	default: // week
		return now.Add(-7 * 24 * time.Hour)
	}
}
