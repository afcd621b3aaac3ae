// Package reddit fetches forum posts and comment threads through the
// Pushshift search API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/models"
)

const minContentLen = 10

// Client searches Reddit via Pushshift.
type Client struct {
	baseURL    string
	maxResults int
	minScore   int
	breaker    *guard.Breaker
	logger     *log.Logger
	httpClient *http.Client
}

// NewClient creates a Reddit search client. breaker may be nil.
func NewClient(baseURL string, maxResults, minScore int, timeout time.Duration, breaker *guard.Breaker, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.pushshift.io"
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[REDDIT] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		minScore:   minScore,
		breaker:    breaker,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type submission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Subreddit   string  `json:"subreddit"`
}

type comment struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
}

// Search runs a keyword search against Pushshift submissions, applying the
// subreddit and time-range filters from the processed query.
func (c *Client) Search(ctx context.Context, query *models.ProcessedQuery) (*models.SearchResult, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("q", strings.Join(query.Keywords, " "))
	params.Set("size", strconv.Itoa(c.maxResults))
	params.Set("sort", "desc")
	params.Set("sort_type", "score")
	params.Set("after", strconv.FormatInt(models.TimeRangeCutoff(query.TimeRange(), time.Now()).Unix(), 10))
	if sub := query.Subreddit(); sub != "" {
		params.Set("subreddit", sub)
	}

	var subs []submission
	err := c.do(ctx, "/reddit/search/submission/?"+params.Encode(), &subs)
	if err != nil {
		return nil, fmt.Errorf("reddit search failed: %w", err)
	}

	posts := make([]*models.Post, 0, len(subs))
	for _, s := range subs {
		if s.Score < c.minScore {
			continue
		}
		content := s.Title
		if s.Selftext != "" {
			content = s.Title + "\n\n" + s.Selftext
		}
		if len(strings.TrimSpace(content)) < minContentLen {
			continue
		}
		posts = append(posts, &models.Post{
			ID:         s.ID,
			Source:     models.SourceReddit,
			Content:    content,
			Author:     "u/" + s.Author,
			CreatedAt:  time.Unix(int64(s.CreatedUTC), 0),
			URL:        "https://reddit.com" + s.Permalink,
			Engagement: float64(s.Score) + 0.5*float64(s.NumComments),
			Metadata: map[string]interface{}{
				"subreddit":    s.Subreddit,
				"score":        s.Score,
				"num_comments": s.NumComments,
				"title":        s.Title,
			},
		})
	}

	c.logger.Printf("found %d posts for %q", len(posts), query.OriginalQuery)
	return &models.SearchResult{
		Posts:      posts,
		TotalFound: len(posts),
		Source:     models.SourceReddit,
		QueryTime:  time.Since(start),
	}, nil
}

// Comments fetches the highest-scored comments on one submission.
func (c *Client) Comments(ctx context.Context, postID string, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("link_id", postID)
	params.Set("size", strconv.Itoa(limit))
	params.Set("sort", "desc")
	params.Set("sort_type", "score")

	var comments []comment
	err := c.do(ctx, "/reddit/search/comment/?"+params.Encode(), &comments)
	if err != nil {
		return nil, fmt.Errorf("reddit comments failed: %w", err)
	}

	posts := make([]*models.Post, 0, len(comments))
	for _, cm := range comments {
		body := strings.TrimSpace(cm.Body)
		if len(body) < minContentLen || body == "[deleted]" || body == "[removed]" {
			continue
		}
		posts = append(posts, &models.Post{
			ID:         cm.ID,
			Source:     models.SourceReddit,
			Content:    body,
			Author:     "u/" + cm.Author,
			CreatedAt:  time.Unix(int64(cm.CreatedUTC), 0),
			URL:        "https://reddit.com" + cm.Permalink,
			Engagement: float64(cm.Score),
			Metadata: map[string]interface{}{
				"subreddit": cm.Subreddit,
				"score":     cm.Score,
				"parent_id": postID,
			},
		})
	}
	return posts, nil
}

func (c *Client) do(ctx context.Context, path string, out interface{}) error {
	fetch := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "socialecho/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status: %d", resp.StatusCode)
		}

		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to parse response data: %w", err)
		}
		return nil
	}

	if c.breaker == nil {
		return fetch(ctx)
	}
	return c.breaker.Do(ctx, fetch)
}
