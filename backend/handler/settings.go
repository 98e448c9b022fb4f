package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/contrlabs/costcontrl/backend/middleware"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

var settingKeyPattern = regexp.MustCompile(`^[A-Z0-9_]{1,128}$`)

// SettingsHandler reads and writes global settings such as the model API key.
type SettingsHandler struct {
	store *service.Store
}

func NewSettingsHandler(store *service.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// maskSecret keeps the last four characters visible.
func maskSecret(v string) string {
	r := []rune(v)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "_KEY") || strings.HasSuffix(key, "_SECRET") || strings.HasSuffix(key, "_TOKEN")
}

func (h *SettingsHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if !settingKeyPattern.MatchString(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid setting key"})
		return
	}

	value, err := h.store.GetSetting(c.Request.Context(), key)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"key": key, "configured": false})
		return
	}
	if err != nil {
		writeStoreError(c, err, "Setting")
		return
	}

	if isSecretKey(key) {
		value = maskSecret(value)
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value, "configured": value != ""})
}

type PutSettingRequest struct {
	Value string `json:"value"`
}

func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	if !settingKeyPattern.MatchString(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid setting key"})
		return
	}
	var req PutSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.SetSetting(ctx, key, strings.TrimSpace(req.Value)); err != nil {
		writeStoreError(c, err, "Setting")
		return
	}
	logger.Info(ctx, "setting updated", "key", key, "by", middleware.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"key": key, "configured": strings.TrimSpace(req.Value) != ""})
}
