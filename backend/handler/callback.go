package handler

import (
	"encoding/json"
	"net/http"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

type CallbackHandler struct {
	mineruService *service.MineruService
	uid           string
}

// NewCallbackHandler accepts a nil service when MinerU is not the configured
// extractor; callbacks are then refused.
func NewCallbackHandler(mineruSvc *service.MineruService, uid string) *CallbackHandler {
	return &CallbackHandler{mineruService: mineruSvc, uid: uid}
}

type CallbackRequest struct {
	Checksum string `json:"checksum" form:"checksum"`
	Content  string `json:"content" form:"content"`
}

// HandleCallback verifies a MinerU completion callback and wakes the
// extraction waiting on its task.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	if h.mineruService == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "MinerU callbacks are not enabled"})
		return
	}

	var req CallbackRequest
	if err := c.ShouldBind(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.mineruService.VerifyCallback(req.Checksum, req.Content, h.uid) {
		logger.Warn(c.Request.Context(), "mineru callback checksum mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid checksum"})
		return
	}

	var content service.MineruCallbackContent
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil || content.TaskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	waiting := h.mineruService.Notify(content.TaskID)
	logger.Info(c.Request.Context(), "mineru callback received",
		"task_id", content.TaskID, "state", content.State, "waiting", waiting)

	c.JSON(http.StatusOK, gin.H{"message": "Callback received", "waiting": waiting})
}
