package handler

import (
	"net/http"
	"testing"

	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/gin-gonic/gin"
)

func newItemRouter(h *ItemHandler, userID string) *gin.Engine {
	router := gin.New()
	api := router.Group("/api", asUser(userID))
	api.GET("/projects/:id/items", h.List)
	api.POST("/projects/:id/items", h.Add)
	api.GET("/projects/:id/changes", h.Changes)
	api.PATCH("/items/:itemId", h.Update)
	api.DELETE("/items/:itemId", h.Delete)
	return router
}

func estimateItems() []model.LineItem {
	return []model.LineItem{
		{Category: "[OGOLNOBUDOWLANA] Fundamenty", Description: "Płyta fundamentowa", Unit: "m²", Quantity: 100, UnitPrice: 450, Confidence: model.ConfidenceHigh},
		{Category: "[SANITARNA] Instalacja wod-kan", Description: "Instalacja wod-kan", Unit: "m²", Quantity: 100, UnitPrice: 185, Confidence: model.ConfidenceMedium},
	}
}

type itemList struct {
	Items     []model.LineItem `json:"items"`
	TotalCost float64          `json:"total_cost"`
}

func TestItemHandlerEditFlow(t *testing.T) {
	store := newTestStore(t)
	router := newItemRouter(NewItemHandler(store), "u-1")
	p := completedProject(t, store, "u-1", estimateItems()...)

	w := doJSON(router, "GET", "/api/projects/"+p.ID+"/items", nil)
	var list itemList
	decode(t, w, &list)
	if len(list.Items) != 2 || list.TotalCost != 63500 {
		t.Fatalf("Unexpected items %+v total %v", list.Items, list.TotalCost)
	}

	first := list.Items[0].ID
	w = doJSON(router, "PATCH", "/api/items/"+first, map[string]any{"quantity": 120.5, "note": "wg rzutu"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated model.LineItem
	decode(t, w, &updated)
	if updated.TotalPrice != 54225 || updated.Note != "wg rzutu" {
		t.Errorf("Unexpected updated item: %+v", updated)
	}

	w = doJSON(router, "POST", "/api/projects/"+p.ID+"/items", map[string]any{
		"category":    "[elektryczna] Oświetlenie",
		"description": "Oprawy LED",
		"unit":        "szt.",
		"quantity":    40,
		"unit_price":  250,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var added model.LineItem
	decode(t, w, &added)
	if added.Category != "[ELEKTRYCZNA] Oświetlenie" || added.Position != 3 || added.Confidence != model.ConfidenceMedium {
		t.Errorf("Unexpected added item: %+v", added)
	}

	if w := doJSON(router, "DELETE", "/api/items/"+list.Items[1].ID, nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = doJSON(router, "GET", "/api/projects/"+p.ID+"/items", nil)
	decode(t, w, &list)
	if len(list.Items) != 2 || list.TotalCost != 64225 {
		t.Errorf("Expected 2 items totalling 64225, got %d items totalling %v", len(list.Items), list.TotalCost)
	}

	w = doJSON(router, "GET", "/api/projects/"+p.ID+"/changes", nil)
	var changes struct {
		Changes []model.ChangeLogEntry `json:"changes"`
	}
	decode(t, w, &changes)
	// quantity edit, note, add, delete
	if len(changes.Changes) != 4 {
		t.Errorf("Expected 4 change entries, got %d", len(changes.Changes))
	}
}

func TestItemHandlerValidation(t *testing.T) {
	store := newTestStore(t)
	router := newItemRouter(NewItemHandler(store), "u-1")
	p := completedProject(t, store, "u-1", estimateItems()...)
	items, _ := store.ListLineItems(t.Context(), p.ID)
	id := items[0].ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"negative quantity", "PATCH", "/api/items/" + id, map[string]any{"quantity": -1}},
		{"negative price", "PATCH", "/api/items/" + id, map[string]any{"unit_price": -0.5}},
		{"blank description", "PATCH", "/api/items/" + id, map[string]any{"description": "  "}},
		{"missing unit", "POST", "/api/projects/" + p.ID + "/items", map[string]any{"category": "X", "description": "Y"}},
		{"negative add", "POST", "/api/projects/" + p.ID + "/items", map[string]any{"category": "X", "description": "Y", "unit": "m", "quantity": -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(router, tt.method, tt.path, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestItemHandlerStoreErrors(t *testing.T) {
	store := newTestStore(t)
	router := newItemRouter(NewItemHandler(store), "u-1")
	foreign := completedProject(t, store, "u-2", estimateItems()...)
	foreignItems, _ := store.ListLineItems(t.Context(), foreign.ID)
	draft := createProject(t, store, "u-1")

	busy := completedProject(t, store, "u-1", estimateItems()...)
	busyItems, _ := store.ListLineItems(t.Context(), busy.ID)
	if err := store.MarkProcessing(t.Context(), busy.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
	}{
		{"foreign item", "PATCH", "/api/items/" + foreignItems[0].ID, map[string]any{"quantity": 1}, http.StatusNotFound},
		{"foreign delete", "DELETE", "/api/items/" + foreignItems[0].ID, nil, http.StatusNotFound},
		{"foreign list", "GET", "/api/projects/" + foreign.ID + "/items", nil, http.StatusNotFound},
		{"unknown item", "DELETE", "/api/items/missing", nil, http.StatusNotFound},
		{"project without estimate", "POST", "/api/projects/" + draft.ID + "/items",
			map[string]any{"category": "X", "description": "Y", "unit": "m"}, http.StatusConflict},
		{"project processing", "PATCH", "/api/items/" + busyItems[0].ID, map[string]any{"quantity": 1}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(router, tt.method, tt.path, tt.body); w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
