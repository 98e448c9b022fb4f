package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/google/uuid"
)

// MineruService drives the MinerU batch extraction API. It satisfies Extractor
// by creating a task and waiting for it, woken either by the poll ticker or by
// a verified callback.
type MineruService struct {
	config     *config.MineruConfig
	httpClient *http.Client

	mu      sync.Mutex
	waiters map[string]chan struct{}
}

// MineruTaskRequest represents the request to create an extraction task
type MineruTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
	Callback     string `json:"callback,omitempty"`
	Seed         string `json:"seed,omitempty"`
	DataID       string `json:"data_id,omitempty"`
}

// MineruTaskResponse represents the response from task creation
type MineruTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// MineruTaskStatusResponse represents the task status query response
type MineruTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID          string `json:"task_id"`
		DataID          string `json:"data_id"`
		State           string `json:"state"` // pending, running, done, failed, converting
		FullZipURL      string `json:"full_zip_url,omitempty"`
		ErrorMsg        string `json:"err_msg,omitempty"`
		ExtractProgress struct {
			ExtractedPages int `json:"extracted_pages"`
			TotalPages     int `json:"total_pages"`
		} `json:"extract_progress,omitempty"`
	} `json:"data"`
}

// MineruCallbackContent is the JSON document carried in a callback's content field.
type MineruCallbackContent struct {
	TaskID   string `json:"task_id"`
	DataID   string `json:"data_id"`
	State    string `json:"state"`
	ErrorMsg string `json:"err_msg"`
}

func NewMineruService(cfg *config.MineruConfig) *MineruService {
	return &MineruService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		waiters: make(map[string]chan struct{}),
	}
}

// CreateTask creates a new extraction task
func (s *MineruService) CreateTask(ctx context.Context, fileURL, dataID string) (*MineruTaskResponse, error) {
	reqBody := MineruTaskRequest{
		URL:          fileURL,
		ModelVersion: s.config.ModelVersion,
		DataID:       dataID,
	}

	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var result MineruTaskResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *MineruService) GetTaskStatus(ctx context.Context, taskID string) (*MineruTaskStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "mineru status response", "task_id", taskID, "body", string(body))

	var result MineruTaskStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

func (s *MineruService) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// VerifyCallback verifies the callback checksum
func (s *MineruService) VerifyCallback(checksum, content string, uid string) bool {
	// Checksum = SHA256(uid + seed + content)
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// Notify wakes the Extract call waiting on taskID. It reports whether anyone
// was waiting.
func (s *MineruService) Notify(taskID string) bool {
	s.mu.Lock()
	ch, ok := s.waiters[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

func (s *MineruService) register(taskID string) chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.waiters[taskID] = ch
	s.mu.Unlock()
	return ch
}

func (s *MineruService) unregister(taskID string) {
	s.mu.Lock()
	delete(s.waiters, taskID)
	s.mu.Unlock()
}

// Extract creates a task for fileURL and blocks until it finishes, fails, or
// ctx is done.
func (s *MineruService) Extract(ctx context.Context, fileURL string) (ExtractResult, error) {
	resp, err := s.CreateTask(ctx, fileURL, uuid.NewString())
	if err != nil {
		return ExtractResult{}, err
	}
	taskID := resp.Data.TaskID
	logger.Info(ctx, "mineru task created", "task_id", taskID)

	wake := s.register(taskID)
	defer s.unregister(taskID)

	interval := time.Duration(s.config.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExtractResult{}, fmt.Errorf("mineru task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		case <-wake:
		}

		status, err := s.GetTaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ExtractResult{}, fmt.Errorf("mineru task %s: %w", taskID, ctx.Err())
			}
			logger.Warn(ctx, "mineru poll failed", "task_id", taskID, "error", err)
			continue
		}

		switch status.Data.State {
		case "done":
			if status.Data.FullZipURL == "" {
				return ExtractResult{}, ErrEmptyExtraction
			}
			md, err := s.FetchZipAndExtractMarkdown(ctx, status.Data.FullZipURL)
			if err != nil {
				return ExtractResult{}, err
			}
			return ExtractResult{Markdown: md}, nil
		case "failed":
			return ExtractResult{}, fmt.Errorf("mineru task %s failed: %s", taskID, status.Data.ErrorMsg)
		case "running":
			if status.Data.ExtractProgress.TotalPages > 0 {
				logger.Debug(ctx, "mineru progress", "task_id", taskID,
					"pages", status.Data.ExtractProgress.ExtractedPages,
					"total", status.Data.ExtractProgress.TotalPages)
			}
		}
	}
}

// FetchZipAndExtractMarkdown downloads the result archive and returns full.md,
// or the first markdown file found when full.md is absent.
func (s *MineruService) FetchZipAndExtractMarkdown(ctx context.Context, zipURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download ZIP: %w", err)
	}
	defer resp.Body.Close()

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP: %w", err)
	}

	var fallback *zip.File
	for _, file := range zipReader.File {
		if strings.HasSuffix(file.Name, "full.md") {
			return readZipFile(file)
		}
		if fallback == nil && strings.HasSuffix(file.Name, ".md") {
			fallback = file
		}
	}
	if fallback != nil {
		return readZipFile(fallback)
	}

	return "", errors.New("no markdown file found in ZIP")
}

func readZipFile(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	return string(content), nil
}
