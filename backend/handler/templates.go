package handler

import (
	"net/http"
	"strings"

	"github.com/contrlabs/costcontrl/backend/middleware"
	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

// TemplateHandler serves the price template catalog.
type TemplateHandler struct {
	store *service.Store
}

func NewTemplateHandler(store *service.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.store.ListTemplates(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeStoreError(c, err, "Template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"templates": []model.PriceTemplate{}})
		return
	}
	templates, err := h.store.SearchTemplates(c.Request.Context(), middleware.GetUserID(c), q)
	if err != nil {
		writeStoreError(c, err, "Template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

type AddTemplateRequest struct {
	Category    string  `json:"category" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Unit        string  `json:"unit" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
	Source      string  `json:"source"`
}

func (h *TemplateHandler) Add(c *gin.Context) {
	var req AddTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category, description and unit are required"})
		return
	}
	if req.UnitPrice < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unit price must not be negative"})
		return
	}

	t := &model.PriceTemplate{
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Unit:        strings.TrimSpace(req.Unit),
		UnitPrice:   req.UnitPrice,
		Source:      req.Source,
	}
	if err := h.store.AddTemplate(c.Request.Context(), middleware.GetUserID(c), t); err != nil {
		writeStoreError(c, err, "Template")
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Delete removes a user template; global ones report not found
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteTemplate(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		writeStoreError(c, err, "Template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}
