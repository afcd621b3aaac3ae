package semantic

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/socialecho/models"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: Cosine = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLocalKeywords(t *testing.T) {
	text := "kubernetes kubernetes deployment deployment deployment with some small the words"
	got := localKeywords(text, 3)
	if len(got) == 0 || got[0] != "deployment" {
		t.Fatalf("most frequent keyword should rank first: %#v", got)
	}
	for _, kw := range got {
		if len(kw) <= 3 {
			t.Fatalf("short word leaked through: %q", kw)
		}
	}
}

// embeddingServer returns fixed vectors in request order.
func embeddingServer(t *testing.T, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i := range req.Input {
			if i < len(vectors) {
				resp.Data = append(resp.Data, datum{Embedding: vectors[i]})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestScorePostsAttachesScores(t *testing.T) {
	// Query vector, then one close and one distant post vector.
	srv := embeddingServer(t, [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}})
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", time.Second, nil, nil)
	posts := []*models.Post{
		{ID: "close", Content: "about the same topic"},
		{ID: "far", Content: "something else entirely"},
	}
	c.ScorePosts(context.Background(), posts, "the topic")

	if posts[0].SemanticScore == nil || posts[1].SemanticScore == nil {
		t.Fatalf("scores not attached")
	}
	if *posts[0].SemanticScore <= *posts[1].SemanticScore {
		t.Fatalf("close post should score higher: %v vs %v",
			*posts[0].SemanticScore, *posts[1].SemanticScore)
	}
}

type stubEmbedder struct {
	vectors [][]float32
	calls   int
}

func (s *stubEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	return s.vectors[:len(texts)], nil
}

func TestNewFromEmbedderScoresPosts(t *testing.T) {
	emb := &stubEmbedder{vectors: [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}}
	c := NewFromEmbedder(emb, nil, nil)

	posts := []*models.Post{
		{ID: "close", Content: "about the same topic"},
		{ID: "far", Content: "something else entirely"},
	}
	c.ScorePosts(context.Background(), posts, "the topic")

	if emb.calls != 1 {
		t.Fatalf("embedder calls = %d, want 1 batch", emb.calls)
	}
	if posts[0].SemanticScore == nil || posts[1].SemanticScore == nil {
		t.Fatalf("scores not attached")
	}
	if *posts[0].SemanticScore <= *posts[1].SemanticScore {
		t.Fatalf("close post should score higher: %v vs %v",
			*posts[0].SemanticScore, *posts[1].SemanticScore)
	}
}

func TestRankByRelevanceSorts(t *testing.T) {
	srv := embeddingServer(t, [][]float32{{1, 0}, {0, 1}, {1, 0}})
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", time.Second, nil, nil)
	posts := []*models.Post{
		{ID: "far", Content: "unrelated"},
		{ID: "close", Content: "on topic"},
	}
	ranked := c.RankByRelevance(context.Background(), posts, "query")
	if ranked[0].ID != "close" {
		t.Fatalf("expected semantic sort, got %s first", ranked[0].ID)
	}
}

func TestRankByRelevanceMismatchKeepsOrder(t *testing.T) {
	// Server returns fewer vectors than requested.
	srv := embeddingServer(t, [][]float32{{1, 0}})
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", time.Second, nil, nil)
	posts := []*models.Post{
		{ID: "a", Content: "first"},
		{ID: "b", Content: "second"},
	}
	ranked := c.RankByRelevance(context.Background(), posts, "query")
	if ranked[0].ID != "a" || ranked[1].ID != "b" {
		t.Fatalf("mismatch should keep original order: %s, %s", ranked[0].ID, ranked[1].ID)
	}
	if posts[0].SemanticScore != nil {
		t.Fatalf("mismatch should leave posts unscored")
	}
}

func TestEmbedManyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", time.Second, nil, nil)
	if _, err := c.EmbedMany(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error on 500")
	}
}
