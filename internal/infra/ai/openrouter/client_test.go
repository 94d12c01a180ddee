package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// chatBackend fakes the completion endpoint. reply decides the assistant
// content for a given user message; status forces an HTTP error code.
type chatBackend struct {
	hits   atomic.Int64
	status int
	reply  func(userContent string) string
}

func (b *chatBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)

		if b.status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(b.status)
			fmt.Fprint(w, `{"error": {"message": "nope", "type": "invalid_request_error"}}`)
			return
		}

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		user := ""
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}

		content := "OK"
		if b.reply != nil {
			content = b.reply(user)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices": [{"message": {"role": "assistant", "content": %q}}]}`, content)
	}
}

func newTestClient(t *testing.T, backend *chatBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return New("test-key", Config{BaseURL: srv.URL})
}

func TestIdenticalRequestIsServedFromCache(t *testing.T) {
	backend := &chatBackend{}
	c := newTestClient(t, backend)
	ctx := context.Background()

	first, err := c.AnalyzeFood(ctx, "un plat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.AnalyzeFood(ctx, "un plat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := backend.hits.Load(); got != 1 {
		t.Fatalf("expected exactly 1 network call, got %d", got)
	}
	if len(first.Ingredients) != len(second.Ingredients) {
		t.Fatalf("cached response diverged: %+v vs %+v", first, second)
	}
	if c.CacheSize() != 1 {
		t.Fatalf("expected cache size 1, got %d", c.CacheSize())
	}
}

func TestDifferentPayloadIsACacheMiss(t *testing.T) {
	backend := &chatBackend{}
	c := newTestClient(t, backend)
	ctx := context.Background()

	if _, err := c.AnalyzeFood(ctx, "couscous"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.AnalyzeFood(ctx, "tajine"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := backend.hits.Load(); got != 2 {
		t.Fatalf("expected 2 network calls, got %d", got)
	}
}

func TestCacheEvictsFirstInsertedBeyondCap(t *testing.T) {
	backend := &chatBackend{}
	c := newTestClient(t, backend)
	ctx := context.Background()

	for i := 0; i < cacheLimit+1; i++ {
		if _, err := c.AnalyzeFood(ctx, fmt.Sprintf("plat numéro %d", i)); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if c.CacheSize() != cacheLimit {
		t.Fatalf("expected cache capped at %d, got %d", cacheLimit, c.CacheSize())
	}

	before := backend.hits.Load()

	// Entry 1 was the second inserted and must still be cached.
	if _, err := c.AnalyzeFood(ctx, "plat numéro 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.hits.Load() != before {
		t.Fatalf("second-inserted entry should still be cached")
	}

	// Entry 0 was the first inserted: evicted, so this goes to the network.
	if _, err := c.AnalyzeFood(ctx, "plat numéro 0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.hits.Load() != before+1 {
		t.Fatalf("first-inserted entry should have been evicted")
	}
}

func TestStatusCodeClassification(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{http.StatusTooManyRequests, "Limite de requêtes atteinte (429)"},
		{http.StatusUnauthorized, "Clé API invalide ou expirée"},
		{http.StatusForbidden, "Accès refusé. Vérifie ta clé API."},
		{http.StatusNotFound, "Modèle ou endpoint introuvable (404)"},
		{http.StatusInternalServerError, "Erreur API: 500"},
	}

	for _, tc := range cases {
		backend := &chatBackend{status: tc.status}
		c := newTestClient(t, backend)

		_, err := c.AnalyzeFood(context.Background(), "plat")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("status %d: got %q, want substring %q", tc.status, err.Error(), tc.want)
		}
		if c.CacheSize() != 0 {
			t.Fatalf("status %d: failed responses must not be cached", tc.status)
		}
	}
}

func TestTestConnection(t *testing.T) {
	backend := &chatBackend{reply: func(string) string { return "Ok, je suis là" }}
	c := newTestClient(t, backend)
	if !c.TestConnection(context.Background()) {
		t.Fatalf("expected true when reply contains ok")
	}

	backend2 := &chatBackend{reply: func(string) string { return "Bonjour" }}
	c2 := newTestClient(t, backend2)
	if c2.TestConnection(context.Background()) {
		t.Fatalf("expected false when reply lacks ok")
	}

	// Dead endpoint: false, never a panic or error.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c3 := New("test-key", Config{BaseURL: srv.URL})
	if c3.TestConnection(context.Background()) {
		t.Fatalf("expected false on network failure")
	}
}

func TestCheckQuotaBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/key" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer header, got %q", got)
		}
		fmt.Fprint(w, `{"usage": {"remaining": 40, "limit": 50, "reset_time": "2025-01-01"}}`)
	}))
	defer srv.Close()

	c := New("test-key", Config{BaseURL: srv.URL})
	q := c.CheckQuota(context.Background())
	if q.Remaining != 40 || q.Limit != 50 || q.ResetTime != "2025-01-01" {
		t.Fatalf("unexpected quota: %+v", q)
	}

	srv.Close()
	if q := c.CheckQuota(context.Background()); q.Remaining != 0 || q.Limit != 0 || q.ResetTime != "" {
		t.Fatalf("expected zero quota on failure, got %+v", q)
	}
}
