package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/contrlabs/costcontrl/backend/model"
	"gorm.io/gorm"
)

// LineItemPatch carries the user-editable fields of a line item. Nil fields
// are left unchanged.
type LineItemPatch struct {
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Unit        *string  `json:"unit"`
	Note        *string  `json:"note"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// lockEditable loads the project and rejects edits unless it holds a finished estimate.
func lockEditable(tx *gorm.DB, userID, projectID string) (*model.Project, error) {
	var p model.Project
	if err := tx.First(&p, "id = ?", projectID).Error; err != nil {
		return nil, notFound(err)
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}
	switch p.Status {
	case model.StatusCompleted:
		return &p, nil
	case model.StatusProcessing:
		return nil, ErrProjectBusy
	default:
		return nil, ErrNotEditable
	}
}

func recomputeTotal(tx *gorm.DB, projectID string) (float64, error) {
	var items []model.LineItem
	if err := tx.Where("project_id = ?", projectID).Find(&items).Error; err != nil {
		return 0, err
	}
	total := model.SumTotals(items)
	if err := tx.Model(&model.Project{}).Where("id = ?", projectID).Update("total_cost", total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) userItem(tx *gorm.DB, userID, itemID string) (*model.LineItem, error) {
	var item model.LineItem
	if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
		return nil, notFound(err)
	}
	if item.UserID != userID {
		return nil, ErrNotFound
	}
	return &item, nil
}

// UpdateLineItem applies patch, logs each changed field and recomputes the
// project total.
func (s *Store) UpdateLineItem(ctx context.Context, userID, itemID string, patch LineItemPatch) (*model.LineItem, error) {
	var updated *model.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.userItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if _, err := lockEditable(tx, userID, item.ProjectID); err != nil {
			return err
		}

		var changes []model.ChangeLogEntry
		record := func(field, oldValue, newValue string) {
			action := model.ChangeEdit
			if field == "note" {
				action = model.ChangeNote
			}
			changes = append(changes, model.ChangeLogEntry{
				ProjectID:       item.ProjectID,
				ItemID:          item.ID,
				UserID:          userID,
				Action:          action,
				Field:           field,
				OldValue:        oldValue,
				NewValue:        newValue,
				ItemDescription: item.Description,
			})
		}

		if patch.Quantity != nil && *patch.Quantity != item.Quantity {
			record("quantity", formatNumber(item.Quantity), formatNumber(*patch.Quantity))
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil && *patch.UnitPrice != item.UnitPrice {
			record("unit_price", formatNumber(item.UnitPrice), formatNumber(*patch.UnitPrice))
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.Description != nil && *patch.Description != item.Description {
			record("description", item.Description, *patch.Description)
			item.Description = *patch.Description
		}
		if patch.Category != nil && *patch.Category != item.Category {
			record("category", item.Category, *patch.Category)
			item.Category = *patch.Category
		}
		if patch.Unit != nil && *patch.Unit != item.Unit {
			record("unit", item.Unit, *patch.Unit)
			item.Unit = *patch.Unit
		}
		if patch.Note != nil && *patch.Note != item.Note {
			record("note", item.Note, *patch.Note)
			item.Note = *patch.Note
		}

		if len(changes) == 0 {
			updated = item
			return nil
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := tx.Create(&changes).Error; err != nil {
			return err
		}
		if _, err := recomputeTotal(tx, item.ProjectID); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddLineItem appends a user-authored item at the end of the estimate.
func (s *Store) AddLineItem(ctx context.Context, userID, projectID string, item model.LineItem) (*model.LineItem, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEditable(tx, userID, projectID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.LineItem{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
			return err
		}

		item.ID = ""
		item.ProjectID = projectID
		item.UserID = userID
		item.Position = int(count) + 1
		if !item.Confidence.Valid() {
			item.Confidence = model.ConfidenceMedium
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		entry := model.ChangeLogEntry{
			ProjectID:       projectID,
			ItemID:          item.ID,
			UserID:          userID,
			Action:          model.ChangeAdd,
			NewValue:        fmt.Sprintf("%s %s × %s PLN", formatNumber(item.Quantity), item.Unit, formatNumber(item.UnitPrice)),
			ItemDescription: item.Description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		_, err := recomputeTotal(tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteLineItem removes an item, closes the gap in positions and recomputes
// the project total.
func (s *Store) DeleteLineItem(ctx context.Context, userID, itemID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.userItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		if _, err := lockEditable(tx, userID, item.ProjectID); err != nil {
			return err
		}

		entry := model.ChangeLogEntry{
			ProjectID: item.ProjectID,
			ItemID:    item.ID,
			UserID:    userID,
			Action:    model.ChangeDelete,
			OldValue: fmt.Sprintf("%s %s × %s PLN = %s PLN",
				formatNumber(item.Quantity), item.Unit, formatNumber(item.UnitPrice), formatNumber(item.TotalPrice)),
			ItemDescription: item.Description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.LineItem{}).
			Where("project_id = ? AND position > ?", item.ProjectID, item.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error; err != nil {
			return err
		}
		_, err = recomputeTotal(tx, item.ProjectID)
		return err
	})
}
