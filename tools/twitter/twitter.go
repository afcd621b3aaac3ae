// Package twitter fetches microblog posts. Two fetch paths exist: a web
// search baseline through the Serper API, and an optional scraper subprocess
// that yields real engagement numbers when its binary is installed.
package twitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/models"
)

const serperURL = "https://google.serper.dev/search"

// Client searches Twitter content.
type Client struct {
	serperAPIKey   string
	scraperBinary  string
	maxResults     int
	scraperTimeout time.Duration
	breaker        *guard.Breaker
	logger         *log.Logger
	httpClient     *http.Client

	// Test hooks.
	runScraper        func(ctx context.Context, args []string) ([]byte, error)
	serperURLOverride string
}

// NewClient creates a Twitter search client. breaker may be nil. An empty
// scraperBinary disables the subprocess path.
func NewClient(serperAPIKey, scraperBinary string, maxResults int, timeout, scraperTimeout time.Duration, breaker *guard.Breaker, logger *log.Logger) *Client {
	if maxResults <= 0 {
		maxResults = 10
	}
	if scraperTimeout <= 0 {
		scraperTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[TWITTER] ", log.LstdFlags)
	}
	c := &Client{
		serperAPIKey:   serperAPIKey,
		scraperBinary:  scraperBinary,
		maxResults:     maxResults,
		scraperTimeout: scraperTimeout,
		breaker:        breaker,
		logger:         logger,
		httpClient:     &http.Client{Timeout: timeout},
	}
	c.runScraper = c.execScraper
	return c
}

// Search runs the baseline web search and falls back to the scraper
// subprocess only when serper errors or comes back empty.
func (c *Client) Search(ctx context.Context, query *models.ProcessedQuery) (*models.SearchResult, error) {
	start := time.Now()

	posts, err := c.searchSerper(ctx, query)
	if err != nil {
		c.logger.Printf("serper search failed: %v", err)
		posts = nil
	}

	if len(posts) == 0 && c.scraperBinary != "" {
		scraped, serr := c.searchScraper(ctx, query)
		if serr != nil {
			c.logger.Printf("scraper fallback failed: %v", serr)
		} else {
			posts = scraped
		}
	}

	if posts == nil && err != nil {
		return nil, fmt.Errorf("twitter search failed: %w", err)
	}

	c.logger.Printf("found %d posts for %q", len(posts), query.OriginalQuery)
	return &models.SearchResult{
		Posts:      posts,
		TotalFound: len(posts),
		Source:     models.SourceTwitter,
		QueryTime:  time.Since(start),
	}, nil
}

func (c *Client) endpoint() string {
	if c.serperURLOverride != "" {
		return c.serperURLOverride
	}
	return serperURL
}

func (c *Client) searchSerper(ctx context.Context, query *models.ProcessedQuery) ([]*models.Post, error) {
	if c.serperAPIKey == "" {
		return nil, fmt.Errorf("serper api key not configured")
	}

	payload := map[string]interface{}{
		"q":   strings.Join(query.Keywords, " ") + " site:twitter.com",
		"num": c.maxResults,
		"gl":  "us",
		"hl":  "en",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var posts []*models.Post
	fetch := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.serperAPIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status: %d", resp.StatusCode)
		}

		var serperResp struct {
			Organic []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
				Link    string `json:"link"`
			} `json:"organic"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&serperResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		now := time.Now()
		for i, r := range serperResp.Organic {
			if i >= c.maxResults {
				break
			}
			content := r.Title
			if r.Snippet != "" {
				content = r.Title + "\n" + r.Snippet
			}
			posts = append(posts, &models.Post{
				ID:         fmt.Sprintf("serper-%d", i),
				Source:     models.SourceTwitter,
				Content:    content,
				Author:     authorFromLink(r.Link),
				CreatedAt:  now,
				URL:        r.Link,
				Engagement: 1.0,
				Metadata: map[string]interface{}{
					"source_method": "serper",
					"title":         r.Title,
					"snippet":       r.Snippet,
				},
			})
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Do(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// authorFromLink pulls the handle out of a twitter.com/<user>/status/... URL.
func authorFromLink(link string) string {
	for _, host := range []string{"twitter.com/", "x.com/"} {
		idx := strings.Index(link, host)
		if idx < 0 {
			continue
		}
		rest := link[idx+len(host):]
		if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
			rest = rest[:cut]
		}
		if rest != "" && rest != "search" && rest != "hashtag" {
			return "@" + rest
		}
	}
	return "@unknown"
}

type scrapedTweet struct {
	ID      string    `json:"id"`
	Content string    `json:"rawContent"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
	Likes   int       `json:"likeCount"`
	RTs     int       `json:"retweetCount"`
	Replies int       `json:"replyCount"`
	User    struct {
		Username  string `json:"username"`
		Followers int    `json:"followersCount"`
		Verified  bool   `json:"verified"`
	} `json:"user"`
}

func (c *Client) searchScraper(ctx context.Context, query *models.ProcessedQuery) ([]*models.Post, error) {
	since := models.TimeRangeCutoff(query.TimeRange(), time.Now()).Format("2006-01-02")
	search := fmt.Sprintf("%q since:%s min_faves:1", strings.Join(query.Keywords, " "), since)
	args := []string{
		"--jsonl",
		"--max-results", fmt.Sprintf("%d", c.maxResults),
		"twitter-search", search,
	}
	out, err := c.runScraper(ctx, args)
	if err != nil {
		return nil, err
	}
	return c.parseScraperOutput(out, c.maxResults), nil
}

// execScraper runs the scraper binary with a hard timeout; a hung scrape is
// killed rather than waited on.
func (c *Client) execScraper(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.scraperTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.scraperBinary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("scraper timed out after %s", c.scraperTimeout)
		}
		return nil, fmt.Errorf("scraper failed: %w", err)
	}
	return stdout.Bytes(), nil
}

func (c *Client) parseScraperOutput(out []byte, limit int) []*models.Post {
	var posts []*models.Post
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var t scrapedTweet
		if err := json.Unmarshal(line, &t); err != nil {
			continue
		}
		// Retweets duplicate the original content.
		if strings.HasPrefix(t.Content, "RT @") {
			continue
		}
		posts = append(posts, &models.Post{
			ID:         t.ID,
			Source:     models.SourceTwitter,
			Content:    t.Content,
			Author:     "@" + t.User.Username,
			CreatedAt:  t.Date,
			URL:        t.URL,
			Engagement: float64(t.Likes) + 2*float64(t.RTs) + 1.5*float64(t.Replies),
			Metadata: map[string]interface{}{
				"source_method":  "scraper",
				"likes":          t.Likes,
				"retweets":       t.RTs,
				"replies":        t.Replies,
				"user_followers": t.User.Followers,
				"user_verified":  t.User.Verified,
			},
		})
		if len(posts) >= limit {
			break
		}
	}
	return posts
}

// UserTweets fetches one user's recent tweets through the scraper.
func (c *Client) UserTweets(ctx context.Context, username string, limit int) ([]*models.Post, error) {
	if c.scraperBinary == "" {
		return nil, fmt.Errorf("scraper not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	username = strings.TrimPrefix(username, "@")
	args := []string{
		"--jsonl",
		"--max-results", fmt.Sprintf("%d", limit),
		"twitter-user", username,
	}
	out, err := c.runScraper(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("user tweets fetch failed: %w", err)
	}
	return c.parseScraperOutput(out, limit), nil
}
