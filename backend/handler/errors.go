package handler

import (
	"errors"
	"net/http"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

// writeStoreError maps store sentinels to HTTP responses. Anything else is
// logged and reported as a 500 without details.
func writeStoreError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, service.ErrProjectBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Estimate is being generated, try again when it finishes"})
	case errors.Is(err, service.ErrNotEditable):
		c.JSON(http.StatusConflict, gin.H{"error": "Project has no finished estimate to edit"})
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
