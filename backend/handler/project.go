package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/contrlabs/costcontrl/backend/estimation"
	"github.com/contrlabs/costcontrl/backend/middleware"
	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 100 << 20

// ObjectStorage holds uploaded project documents.
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	DeleteFiles(ctx context.Context, objectNames []string) error
}

// Estimator starts and runs estimates.
type Estimator interface {
	Start(ctx context.Context, req estimation.Request) (*estimation.Job, error)
	Execute(ctx context.Context, job *estimation.Job) (*estimation.Result, error)
}

type ProjectHandler struct {
	store     *service.Store
	storage   ObjectStorage
	estimator Estimator

	runs sync.WaitGroup
}

func NewProjectHandler(store *service.Store, storage ObjectStorage, estimator Estimator) *ProjectHandler {
	return &ProjectHandler{
		store:     store,
		storage:   storage,
		estimator: estimator,
	}
}

// Wait blocks until every estimate started by this handler has finished.
func (h *ProjectHandler) Wait() {
	h.runs.Wait()
}

type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create registers an empty project awaiting uploads
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
		return
	}

	p := &model.Project{
		UserID: middleware.GetUserID(c),
		Name:   strings.TrimSpace(req.Name),
	}
	if err := h.store.CreateProject(c.Request.Context(), p); err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// List returns the current user's projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.store.ListProjects(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get returns a project with its files and line items
func (h *ProjectHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}

	files, err := h.store.ListFiles(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	for i := range files {
		files[i].ExtractedText = ""
	}
	items, err := h.store.ListLineItems(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": p,
		"files":   files,
		"items":   items,
	})
}

// GetStatus returns the estimation status of a project
func (h *ProjectHandler) GetStatus(c *gin.Context) {
	p, err := h.store.GetUserProject(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            p.ID,
		"status":        p.Status,
		"total_cost":    p.TotalCost,
		"error_message": p.ErrorMessage,
		"file_count":    p.FileCount,
		"completed_at":  p.CompletedAt,
	})
}

// Delete removes a project, its rows and its stored documents
func (h *ProjectHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}

	keys, err := h.store.DeleteProject(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	if len(keys) > 0 {
		if err := h.storage.DeleteFiles(ctx, keys); err != nil {
			// Rows are gone; leftover objects only cost storage.
			logger.Warn(ctx, "failed to delete project objects", "project_id", p.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

var uploadContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".txt":  "text/plain; charset=utf-8",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// detectPDF rejects files named .pdf whose header is not a PDF.
func detectPDF(file multipart.File) error {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	detected := http.DetectContentType(buffer[:n])
	if !strings.Contains(detected, "pdf") && detected != "application/octet-stream" {
		return errors.New("file content is not a PDF")
	}
	return nil
}

// UploadFile stores one document and registers it against the project
func (h *ProjectHandler) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	p, err := h.store.GetUserProject(ctx, userID, c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	if p.Status == model.StatusProcessing {
		writeStoreError(c, service.ErrProjectBusy, "Project")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := uploadContentTypes[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type " + ext})
		return
	}
	if ext == ".pdf" {
		if err := detectPDF(file); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
			return
		}
	}

	fileID := uuid.NewString()
	name := filepath.Base(header.Filename)
	objectName := service.ObjectKey(userID, p.ID, fileID, name)
	if err := h.storage.UploadFile(ctx, objectName, file, header.Size, contentType); err != nil {
		logger.Error(ctx, "upload failed", "object", objectName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	f := &model.ProjectFile{
		ID:        fileID,
		ProjectID: p.ID,
		UserID:    userID,
		FileName:  name,
		ObjectKey: objectName,
		FileType:  strings.TrimPrefix(ext, "."),
	}
	if err := h.store.AddFile(ctx, f); err != nil {
		// The project may have started processing while the upload ran.
		if derr := h.storage.DeleteFiles(ctx, []string{objectName}); derr != nil {
			logger.Warn(ctx, "failed to remove rejected upload", "object", objectName, "error", derr)
		}
		writeStoreError(c, err, "Project")
		return
	}

	logger.Info(ctx, "file uploaded", "project_id", p.ID, "file", name, "size", header.Size)
	c.JSON(http.StatusCreated, f)
}

// ListFiles returns the project's documents with their extraction status
func (h *ProjectHandler) ListFiles(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	files, err := h.store.ListFiles(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

type EstimateRequest struct {
	FileID string `json:"fileId"`
}

// Estimate starts the estimation pipeline. Validation happens before the
// response; the run itself continues after the request completes.
func (h *ProjectHandler) Estimate(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}

	var req EstimateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	job, err := h.estimator.Start(ctx, estimation.Request{ProjectID: p.ID, FileID: req.FileID})
	if err != nil {
		if errors.Is(err, service.ErrMissingCredential) {
			logger.Error(ctx, "estimation unavailable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Language model API key is not configured"})
			return
		}
		writeStoreError(c, err, "Project")
		return
	}

	runCtx := context.WithoutCancel(ctx)
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if _, err := h.estimator.Execute(runCtx, job); err != nil {
			logger.Warn(runCtx, "estimation run ended with error", "project_id", p.ID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"id":     p.ID,
		"status": model.StatusProcessing,
	})
}
