// Package enrich wraps the LLM for the per-query and per-post analysis
// tasks. Every operation absorbs upstream failures into a documented fallback
// value; errors never propagate past this layer unless the caller opts in by
// inspecting them.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/provider"
)

const (
	summaryContentCap   = 1000
	sentimentContentCap = 500
	rankContentCap      = 200

	// SummaryUnavailable is the sentinel returned when summarisation fails.
	SummaryUnavailable = "Summary unavailable"
)

// QueryAnalysis is the structured object the model is prompted to emit for
// query understanding.
type QueryAnalysis struct {
	Keywords        []string `json:"keywords"`
	SearchReddit    bool     `json:"search_reddit"`
	SearchTwitter   bool     `json:"search_twitter"`
	Subreddit       string   `json:"subreddit"`
	TimeRange       string   `json:"time_range"`
	Intent          string   `json:"intent"`
	SentimentFilter string   `json:"sentiment_filter"`
}

// Client performs LLM enrichment calls through a provider, guarded by a
// circuit breaker for the llm dependency class.
type Client struct {
	provider    provider.Provider
	breaker     *guard.Breaker
	logger      *log.Logger
	temperature float64
}

// NewClient creates an enrichment client. breaker may be nil in tests.
func NewClient(p provider.Provider, breaker *guard.Breaker, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENRICH] ", log.LstdFlags)
	}
	return &Client{provider: p, breaker: breaker, logger: logger, temperature: 0.3}
}

func (c *Client) complete(ctx context.Context, messages []provider.Message, temperature float64, maxTokens int) (string, error) {
	if c.breaker == nil {
		return c.provider.Complete(ctx, messages, temperature, maxTokens)
	}
	var out string
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.provider.Complete(ctx, messages, temperature, maxTokens)
		return err
	})
	return out, err
}

// AnalyzeQuery asks the model for structured search parameters. The caller
// applies the deterministic fallback on error.
func (c *Client) AnalyzeQuery(ctx context.Context, query string) (QueryAnalysis, error) {
	prompt := fmt.Sprintf(`Analyze this user query and extract search information:
Query: %q

Respond ONLY with a JSON object of this shape:
{
  "keywords": ["list", "of", "search", "keywords"],
  "search_reddit": true,
  "search_twitter": true,
  "subreddit": "specific_subreddit_if_mentioned_or_empty",
  "time_range": "day|week|month|year",
  "intent": "brief description of what the user wants",
  "sentiment_filter": "positive|negative|neutral|any"
}

Guidelines:
- Extract 3-5 relevant keywords for searching
- Default to searching both Reddit and Twitter unless one is specifically mentioned
- Default time_range to "week" unless specified
- Only include a subreddit if specifically mentioned`, query)

	messages := []provider.Message{
		{Role: "system", Content: "You are an expert at analyzing search queries. Always respond with valid JSON."},
		{Role: "user", Content: prompt},
	}

	raw, err := c.complete(ctx, messages, c.temperature, 500)
	if err != nil {
		return QueryAnalysis{}, fmt.Errorf("query analysis: %w", err)
	}

	var analysis QueryAnalysis
	if err := json.Unmarshal([]byte(StripFences(raw)), &analysis); err != nil {
		return QueryAnalysis{}, fmt.Errorf("query analysis parse: %w", err)
	}
	return analysis, nil
}

// Summarize produces a 1-2 sentence summary of the post relative to the
// query. On any failure it returns SummaryUnavailable with the error.
func (c *Client) Summarize(ctx context.Context, content, query string) (string, error) {
	prompt := fmt.Sprintf(`Summarize this social media post in relation to the user's query.

User Query: %q
Post Content: %q

Provide a 1-2 sentence summary that explains how this post relates to the
query and captures its main point. Keep it concise and relevant.`, query, truncate(content, summaryContentCap))

	messages := []provider.Message{
		{Role: "system", Content: "You are an expert at summarizing social media content. Be concise and relevant."},
		{Role: "user", Content: prompt},
	}

	summary, err := c.complete(ctx, messages, 0.4, 150)
	if err != nil {
		c.logger.Printf("summary failed: %v", err)
		return SummaryUnavailable, err
	}
	return strings.TrimSpace(summary), nil
}

// Sentiment classifies content as positive, negative or neutral. Any other
// model output, or a failure, coerces to neutral.
func (c *Client) Sentiment(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(`Analyze the sentiment of this content and respond with only one word:

Content: %q

Respond with exactly one of: positive, negative, neutral`, truncate(content, sentimentContentCap))

	messages := []provider.Message{
		{Role: "system", Content: "You are a sentiment analysis expert. Respond with only one word."},
		{Role: "user", Content: prompt},
	}

	raw, err := c.complete(ctx, messages, 0.1, 10)
	if err != nil {
		c.logger.Printf("sentiment failed: %v", err)
		return "neutral", err
	}
	sentiment := strings.ToLower(strings.TrimSpace(raw))
	switch sentiment {
	case "positive", "negative", "neutral":
		return sentiment, nil
	default:
		return "neutral", nil
	}
}

// RankRelevance scores every post's content against the query in a single
// batched call. Whenever the parsed score count does not match the input
// count the whole result is discarded and every post gets 0.5.
func (c *Client) RankRelevance(ctx context.Context, contents []string, query string) []float64 {
	if len(contents) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, content := range contents {
		fmt.Fprintf(&sb, "Post %d: %s\n\n", i+1, truncate(content, rankContentCap))
	}
	prompt := fmt.Sprintf(`Rate the relevance of each post to the user's query on a scale of 0.0 to 1.0.

Query: %q

Posts:
%s
Respond with only the scores separated by commas, like: 0.8, 0.6, 0.9, 0.3`, query, sb.String())

	messages := []provider.Message{
		{Role: "system", Content: "You are an expert at rating content relevance. Respond only with comma-separated scores."},
		{Role: "user", Content: prompt},
	}

	raw, err := c.complete(ctx, messages, 0.2, 100)
	if err != nil {
		c.logger.Printf("relevance ranking failed: %v", err)
		return uniformScores(len(contents))
	}

	parts := strings.Split(strings.TrimSpace(raw), ",")
	scores := make([]float64, 0, len(parts))
	for _, part := range parts {
		score, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return uniformScores(len(contents))
		}
		scores = append(scores, score)
	}
	if len(scores) != len(contents) {
		c.logger.Printf("relevance score count mismatch: %d vs %d", len(scores), len(contents))
		return uniformScores(len(contents))
	}
	return scores
}

func uniformScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 0.5
	}
	return scores
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
