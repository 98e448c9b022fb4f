package handler

import (
	"net/http"
	"strings"

	"github.com/contrlabs/costcontrl/backend/middleware"
	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

// ItemHandler serves line item edits and the change log.
type ItemHandler struct {
	store *service.Store
}

func NewItemHandler(store *service.Store) *ItemHandler {
	return &ItemHandler{store: store}
}

// List returns a project's line items with their total
func (h *ItemHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	items, err := h.store.ListLineItems(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"total_cost": model.SumTotals(items),
		"currency":   p.Currency,
	})
}

type AddItemRequest struct {
	Category    string           `json:"category" binding:"required"`
	Description string           `json:"description" binding:"required"`
	Unit        string           `json:"unit" binding:"required"`
	Quantity    float64          `json:"quantity"`
	UnitPrice   float64          `json:"unit_price"`
	Note        string           `json:"note"`
	Confidence  model.Confidence `json:"confidence"`
}

// Add appends a user-authored line item
func (h *ItemHandler) Add(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category, description and unit are required"})
		return
	}
	if req.Quantity < 0 || req.UnitPrice < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity and unit price must not be negative"})
		return
	}

	category := strings.TrimSpace(req.Category)
	if b, ok := model.BranchFromCategory(category); ok {
		category = model.PrefixCategory(b, category)
	}

	item, err := h.store.AddLineItem(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), model.LineItem{
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		Unit:        strings.TrimSpace(req.Unit),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Note:        req.Note,
		Confidence:  req.Confidence,
	})
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Update applies a partial edit to one line item
func (h *ItemHandler) Update(c *gin.Context) {
	var patch service.LineItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if (patch.Quantity != nil && *patch.Quantity < 0) || (patch.UnitPrice != nil && *patch.UnitPrice < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity and unit price must not be negative"})
		return
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Description must not be empty"})
		return
	}

	item, err := h.store.UpdateLineItem(c.Request.Context(), middleware.GetUserID(c), c.Param("itemId"), patch)
	if err != nil {
		writeStoreError(c, err, "Item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete removes one line item
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteLineItem(c.Request.Context(), middleware.GetUserID(c), c.Param("itemId")); err != nil {
		writeStoreError(c, err, "Item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// Changes returns the project's edit history, newest first
func (h *ItemHandler) Changes(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.store.GetUserProject(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	changes, err := h.store.ListChanges(ctx, p.ID)
	if err != nil {
		writeStoreError(c, err, "Project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}
