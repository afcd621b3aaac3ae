package fireworks_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/socialecho/provider"
)

func TestComplete(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", "", time.Second)
	out, err := c.Complete(context.Background(), []provider.Message{
		{Role: "user", Content: "hello"},
	}, 0.3, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("out = %q", out)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["model"] != "test-model" {
		t.Fatalf("request body = %#v", gotBody)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", "", time.Second)
	if _, err := c.Complete(context.Background(), nil, 0, 0); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestCreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
				{"embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "test-model", "embed-model", time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %#v", vecs)
	}
}

func TestCreateEmbeddingRequiresModel(t *testing.T) {
	c := NewClient("key", "http://unused", "test-model", "", time.Second)
	if _, err := c.CreateEmbedding(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error without embedding model")
	}
}
