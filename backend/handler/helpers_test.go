package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/estimation"
	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

func newTestStore(t *testing.T) *service.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := service.OpenDatabase(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	if err := service.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return service.NewStore(db)
}

func createProject(t *testing.T, store *service.Store, userID string) *model.Project {
	t.Helper()
	p := &model.Project{UserID: userID, Name: "Budynek biurowy"}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

// completedProject creates a project holding a finished estimate.
func completedProject(t *testing.T, store *service.Store, userID string, items ...model.LineItem) *model.Project {
	t.Helper()
	ctx := context.Background()
	p := createProject(t, store, userID)
	if err := store.MarkProcessing(ctx, p.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if _, err := store.ReplaceLineItems(ctx, p.ID, userID, items); err != nil {
		t.Fatalf("ReplaceLineItems: %v", err)
	}
	return p
}

// asUser stands in for the auth middleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("username", userID)
		c.Next()
	}
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	onUpload func()
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if s.onUpload != nil {
		s.onUpload()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return nil
}

func (s *fakeStorage) DeleteFiles(_ context.Context, objectNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectNames...)
	return nil
}

type fakeEstimator struct {
	mu       sync.Mutex
	startErr error
	requests []estimation.Request
	executed []string
}

func (e *fakeEstimator) Start(_ context.Context, req estimation.Request) (*estimation.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.startErr != nil {
		return nil, e.startErr
	}
	return &estimation.Job{Project: &model.Project{ID: req.ProjectID}}, nil
}

func (e *fakeEstimator) Execute(ctx context.Context, job *estimation.Job) (*estimation.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, job.Project.ID)
	return &estimation.Result{}, nil
}
