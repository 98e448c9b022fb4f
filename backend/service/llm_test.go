package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contrlabs/costcontrl/backend/config"
)

func newTestLLM(url string, retries int) *LLMClient {
	c := NewLLMClient(&config.LLMConfig{BaseURL: url + "/", Model: "gpt-test", MaxRetries: retries, TimeoutSeconds: 5}, "sk-test")
	c.backoff = time.Millisecond
	return c
}

func TestLLMClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("Expected bearer API key")
		}

		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-test" {
			t.Errorf("Expected model gpt-test, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "opis" {
			t.Errorf("Unexpected messages %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("Expected json_object response format")
		}
		if req.MaxTokens != 4000 || req.Temperature != 0.15 {
			t.Errorf("Unexpected sampling params %d %v", req.MaxTokens, req.Temperature)
		}

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"items\":[]}"}}]}`))
	}))
	defer server.Close()

	out, err := newTestLLM(server.URL, 0).Complete(context.Background(), CompletionRequest{
		System: "sys", User: "opis", Temperature: 0.15, MaxTokens: 4000, JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != `{"items":[]}` {
		t.Errorf("Unexpected content %q", out)
	}
}

func TestLLMClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	out, err := newTestLLM(server.URL, 2).Complete(context.Background(), CompletionRequest{User: "x"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("Expected ok, got %q", out)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestLLMClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := newTestLLM(server.URL, 3).Complete(context.Background(), CompletionRequest{User: "x"}); err == nil {
		t.Fatal("Expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestLLMClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := newTestLLM(server.URL, 0).Complete(context.Background(), CompletionRequest{User: "x"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")

	if got := retryAfter(resp, time.Second, 10*time.Second); got != 3*time.Second {
		t.Errorf("Expected 3s, got %s", got)
	}
	if got := retryAfter(resp, time.Second, 2*time.Second); got != 2*time.Second {
		t.Errorf("Expected cap of 2s, got %s", got)
	}
	if got := retryAfter(nil, time.Second, 0); got != time.Second {
		t.Errorf("Expected fallback 1s, got %s", got)
	}
}
