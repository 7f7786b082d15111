package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProvider_Generate(t *testing.T) {
	var gotAuth string
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer server.Close()

	p := NewHTTPProvider("secret-key", server.URL, "test/model", "")
	reply, err := p.Generate(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "hello back" {
		t.Fatalf("expected content from first choice, got %q", reply)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotModel != "test/model" {
		t.Fatalf("expected default model in request, got %q", gotModel)
	}
}

func TestHTTPProvider_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("k", server.URL, "", "")
	_, err := p.Generate(context.Background(), "hello", "")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestHTTPProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("k", server.URL, "", "")
	if _, err := p.Generate(context.Background(), "hello", ""); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}

func TestScriptedProvider_RepeatsLastReply(t *testing.T) {
	p := &ScriptedProvider{Replies: []string{"one", "two"}}
	ctx := context.Background()

	for _, want := range []string{"one", "two", "two"} {
		got, err := p.Generate(ctx, "x", "")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if p.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", p.Calls())
	}
}
