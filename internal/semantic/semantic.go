// Package semantic wraps an embeddings API for similarity-based relevance.
// Everything here degrades gracefully: embedding failures leave inputs
// untouched and keyword extraction always has a pure local fallback.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/models"
)

const embedContentCap = 500

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {},
	"she": {}, "it": {}, "we": {}, "they": {},
}

// Embedder generates one vector per input text, in input order.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Client talks to a Jina-style embeddings endpoint, or delegates to any
// Embedder (such as the LLM provider's embeddings endpoint).
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	embedder   Embedder
	breaker    *guard.Breaker
	logger     *log.Logger
	httpClient *http.Client
}

// NewClient creates a semantic relevance client. breaker may be nil.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, breaker *guard.Breaker, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}
	if model == "" {
		model = "jina-embeddings-v3"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEMANTIC] ", log.LstdFlags)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		breaker:    breaker,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewFromEmbedder builds a semantic client on an existing Embedder instead of
// a dedicated embeddings endpoint. breaker may be nil.
func NewFromEmbedder(e Embedder, breaker *guard.Breaker, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEMANTIC] ", log.LstdFlags)
	}
	return &Client{
		embedder: e,
		breaker:  breaker,
		logger:   logger,
	}
}

// EmbedMany generates one vector per input text, in input order.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	backend := c.embed
	if c.embedder != nil {
		backend = c.embedder.CreateEmbedding
	}
	if c.breaker == nil {
		return backend(ctx, texts)
	}
	var vecs [][]float32
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		vecs, err = backend(ctx, texts)
		return err
	})
	return vecs, err
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"model":           c.model,
		"input":           texts,
		"encoding_format": "float",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var embResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(embResp.Data))
	for i, d := range embResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Similarity computes cosine similarity between two texts, remapped from
// [-1,1] to [0,1]. Any failure yields 0.
func (c *Client) Similarity(ctx context.Context, a, b string) float64 {
	vecs, err := c.EmbedMany(ctx, []string{a, b})
	if err != nil || len(vecs) != 2 {
		return 0
	}
	return Cosine(vecs[0], vecs[1])
}

// Cosine returns the cosine similarity of two vectors remapped to [0,1].
// Zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (sim + 1) / 2
}

// ScorePosts embeds the query and all post contents in one batch and
// attaches the per-post cosine score as SemanticScore. Order is untouched.
// Any embedding-count mismatch leaves all posts unscored.
func (c *Client) ScorePosts(ctx context.Context, posts []*models.Post, query string) {
	if len(posts) == 0 {
		return
	}

	texts := make([]string, 0, len(posts)+1)
	texts = append(texts, query)
	for _, p := range posts {
		texts = append(texts, truncate(p.Content, embedContentCap))
	}

	vecs, err := c.EmbedMany(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		c.logger.Printf("embedding count mismatch, leaving posts unscored: %v", err)
		return
	}

	queryVec := vecs[0]
	for i, p := range posts {
		score := Cosine(queryVec, vecs[i+1])
		p.SemanticScore = &score
	}
}

// RankByRelevance scores posts semantically and returns them sorted
// descending by SemanticScore. When scoring fails the original order comes
// back unchanged.
func (c *Client) RankByRelevance(ctx context.Context, posts []*models.Post, query string) []*models.Post {
	if len(posts) == 0 {
		return posts
	}
	c.ScorePosts(ctx, posts, query)

	ranked := make([]*models.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return deref(ranked[i].SemanticScore) > deref(ranked[j].SemanticScore)
	})
	return ranked
}

// EnhancePost attaches semantic relevance and extracted keywords to one
// post's metadata. Failures leave the post untouched.
func (c *Client) EnhancePost(ctx context.Context, post *models.Post, query string) *models.Post {
	relevance := c.Similarity(ctx, post.Content, query)
	keywords := c.ExtractKeywords(ctx, post.Content, 5)

	if post.SemanticMeta == nil {
		post.SemanticMeta = make(map[string]interface{})
	}
	post.SemanticMeta["relevance_score"] = relevance
	post.SemanticMeta["extracted_keywords"] = keywords
	post.SemanticScore = &relevance
	return post
}

// ExtractKeywords returns up to k keywords from text. A provider-side
// reranker would go here; the local frequency extractor is the portable path
// and the fallback on any failure.
func (c *Client) ExtractKeywords(ctx context.Context, text string, k int) []string {
	return localKeywords(text, k)
}

// localKeywords is the pure fallback: lowercase alphabetic tokens longer
// than 3 chars, stop words removed, ranked by frequency.
func localKeywords(text string, k int) []string {
	freq := make(map[string]int)
	order := make([]string, 0)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) <= 3 || !isAlpha(word) {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, seen := freq[word]; !seen {
			order = append(order, word)
		}
		freq[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > k {
		order = order[:k]
	}
	return order
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
