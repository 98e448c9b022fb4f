package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contrlabs/costcontrl/backend/config"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestNewMineruService(t *testing.T) {
	cfg := &config.MineruConfig{
		APIURL:       "https://api.mineru.test",
		APIToken:     "test-token",
		ModelVersion: "vlm",
	}

	svc := NewMineruService(cfg)
	if svc.config != cfg {
		t.Error("Expected config to be set")
	}
	if svc.httpClient == nil {
		t.Error("Expected httpClient to be set")
	}
	if svc.waiters == nil {
		t.Error("Expected waiters map to be initialized")
	}
}

func TestMineruServiceCreateTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/extract/task" {
			t.Errorf("Expected /extract/task, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("Expected Authorization header")
		}

		response := MineruTaskResponse{Code: 0, Message: "success"}
		response.Data.TaskID = "task-123"
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, APIToken: "test-token", ModelVersion: "vlm"})
	resp, err := svc.CreateTask(context.Background(), "http://example.com/test.pdf", "data-123")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Data.TaskID != "task-123" {
		t.Errorf("Expected task ID 'task-123', got '%s'", resp.Data.TaskID)
	}
}

func TestMineruServiceCreateTaskWithCallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody MineruTaskRequest
		json.NewDecoder(r.Body).Decode(&reqBody)

		if reqBody.Callback != "http://callback.test" {
			t.Errorf("Expected callback URL, got '%s'", reqBody.Callback)
		}
		if reqBody.Seed != "test-seed" {
			t.Errorf("Expected seed, got '%s'", reqBody.Seed)
		}

		response := MineruTaskResponse{Code: 0}
		response.Data.TaskID = "task-456"
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{
		APIURL:      server.URL,
		APIToken:    "test-token",
		CallbackURL: "http://callback.test",
		Seed:        "test-seed",
	})
	if _, err := svc.CreateTask(context.Background(), "http://example.com/test.pdf", "data-123"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestMineruServiceAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error code", `{"code":1,"msg":"API error"}`},
		{"invalid json", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, APIToken: "t"})
			if _, err := svc.CreateTask(context.Background(), "u", "d"); err == nil {
				t.Error("Expected CreateTask error")
			}
			if _, err := svc.GetTaskStatus(context.Background(), "task"); err == nil {
				t.Error("Expected GetTaskStatus error")
			}
		})
	}
}

func TestMineruServiceNetworkError(t *testing.T) {
	svc := NewMineruService(&config.MineruConfig{
		APIURL:   "http://invalid-host-that-does-not-exist:9999",
		APIToken: "test-token",
	})

	if _, err := svc.CreateTask(context.Background(), "u", "d"); err == nil {
		t.Error("Expected error for network failure")
	}
	if _, err := svc.GetTaskStatus(context.Background(), "task-123"); err == nil {
		t.Error("Expected error for network failure")
	}
}

func TestMineruServiceVerifyCallback(t *testing.T) {
	svc := NewMineruService(&config.MineruConfig{Seed: "test-seed"})

	hash := sha256.Sum256([]byte("test-uid" + "test-seed" + "test-content"))
	valid := hex.EncodeToString(hash[:])

	if !svc.VerifyCallback(valid, "test-content", "test-uid") {
		t.Error("Expected true for matching checksum")
	}
	if svc.VerifyCallback("invalid-checksum", "test-content", "test-uid") {
		t.Error("Expected false for invalid checksum")
	}
	if svc.VerifyCallback(valid, "tampered", "test-uid") {
		t.Error("Expected false for tampered content")
	}
}

func TestMineruServiceFetchZipAndExtractMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
		wantErr  bool
	}{
		{"full.md preferred", map[string]string{"a/other.md": "other", "a/full.md": "# Pełny"}, "# Pełny", false},
		{"any markdown", map[string]string{"a/page.md": "strona", "a/layout.json": "{}"}, "strona", false},
		{"no markdown", map[string]string{"a/layout.json": "{}"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildZip(t, tt.files)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(data)
			}))
			defer server.Close()

			svc := NewMineruService(&config.MineruConfig{})
			got, err := svc.FetchZipAndExtractMarkdown(context.Background(), server.URL)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMineruServiceFetchZipInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a zip file"))
	}))
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{})
	if _, err := svc.FetchZipAndExtractMarkdown(context.Background(), server.URL); err == nil {
		t.Error("Expected error for invalid ZIP")
	}
}

func newFakeMineru(t *testing.T, finalState string, polls *int32) *httptest.Server {
	t.Helper()
	zipData := buildZip(t, map[string]string{"out/full.md": "# Opis techniczny"})

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/extract/task":
			resp := MineruTaskResponse{}
			resp.Data.TaskID = "task-1"
			json.NewEncoder(w).Encode(resp)
		case r.URL.Path == "/extract/task/task-1":
			n := atomic.AddInt32(polls, 1)
			resp := MineruTaskStatusResponse{}
			resp.Data.TaskID = "task-1"
			if n < 2 {
				resp.Data.State = "running"
			} else {
				resp.Data.State = finalState
				resp.Data.FullZipURL = server.URL + "/result.zip"
				resp.Data.ErrorMsg = "bad pdf"
			}
			json.NewEncoder(w).Encode(resp)
		case r.URL.Path == "/result.zip":
			w.Write(zipData)
		default:
			http.NotFound(w, r)
		}
	}))
	return server
}

func TestMineruServiceExtractPolls(t *testing.T) {
	var polls int32
	server := newFakeMineru(t, "done", &polls)
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, PollIntervalSeconds: 1})
	res, err := svc.Extract(context.Background(), "http://files.test/rzut.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Text() != "# Opis techniczny" {
		t.Errorf("Unexpected text %q", res.Text())
	}
	if _, ok := svc.waiters["task-1"]; ok {
		t.Error("Expected waiter to be removed after Extract")
	}
}

func TestMineruServiceExtractFailedTask(t *testing.T) {
	var polls int32
	server := newFakeMineru(t, "failed", &polls)
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, PollIntervalSeconds: 1})
	if _, err := svc.Extract(context.Background(), "http://files.test/rzut.pdf"); err == nil {
		t.Error("Expected error for failed task")
	}
}

func TestMineruServiceExtractWokenByNotify(t *testing.T) {
	var polls int32
	server := newFakeMineru(t, "done", &polls)
	defer server.Close()

	// Poll interval far beyond the test deadline: only Notify can drive progress.
	svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, PollIntervalSeconds: 3600})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Extract(context.Background(), "http://files.test/rzut.pdf")
		done <- err
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("Extract was not woken by Notify")
		case <-time.After(20 * time.Millisecond):
			svc.Notify("task-1")
		}
	}
}

func TestMineruServiceExtractContextCancelled(t *testing.T) {
	var polls int32
	server := newFakeMineru(t, "done", &polls)
	defer server.Close()

	svc := NewMineruService(&config.MineruConfig{APIURL: server.URL, PollIntervalSeconds: 3600})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := svc.Extract(ctx, "http://files.test/rzut.pdf"); err == nil {
		t.Error("Expected error when context expires")
	}
}

func TestMineruServiceNotifyUnknownTask(t *testing.T) {
	svc := NewMineruService(&config.MineruConfig{})
	if svc.Notify("missing") {
		t.Error("Expected false for unknown task")
	}
}
