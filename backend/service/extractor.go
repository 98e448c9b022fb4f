package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contrlabs/costcontrl/backend/config"
)

// ErrEmptyExtraction is returned when the service answered but produced no text.
var ErrEmptyExtraction = errors.New("extraction returned no text")

// ExtractResult is the text recovered from one document.
type ExtractResult struct {
	Markdown string `json:"markdown,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Text prefers markdown over raw content.
func (r ExtractResult) Text() string {
	if r.Markdown != "" {
		return r.Markdown
	}
	return r.Content
}

// Extractor turns a file locator into text.
type Extractor interface {
	Extract(ctx context.Context, fileURL string) (ExtractResult, error)
}

// HTTPExtractor calls a document-to-markdown service over HTTP.
type HTTPExtractor struct {
	config     *config.ExtractionConfig
	httpClient *http.Client
}

type extractRequest struct {
	FilePath string `json:"file_path"`
}

type extractResponse struct {
	Success bool          `json:"success"`
	Result  ExtractResult `json:"result"`
	Error   string        `json:"error,omitempty"`
}

func NewHTTPExtractor(cfg *config.ExtractionConfig) *HTTPExtractor {
	return &HTTPExtractor{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Extract posts the file locator and returns the extracted text.
func (s *HTTPExtractor) Extract(ctx context.Context, fileURL string) (ExtractResult, error) {
	jsonData, err := json.Marshal(extractRequest{FilePath: fileURL})
	if err != nil {
		return ExtractResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return ExtractResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExtractResult{}, fmt.Errorf("extraction http %d: %s", resp.StatusCode, string(body))
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return ExtractResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if !result.Success {
		if result.Error == "" {
			result.Error = "tool call failed"
		}
		return ExtractResult{}, fmt.Errorf("extraction error: %s", result.Error)
	}
	if result.Result.Text() == "" {
		return ExtractResult{}, ErrEmptyExtraction
	}

	return result.Result, nil
}
