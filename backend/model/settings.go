package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppSetting is a global key-value setting.
type AppSetting struct {
	Key   string `gorm:"primaryKey;size:128" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

// ChangeLogEntry records one user edit to a project's line items.
type ChangeLogEntry struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID       string    `gorm:"not null;index" json:"project_id"`
	ItemID          string    `gorm:"index" json:"item_id,omitempty"`
	UserID          string    `gorm:"not null" json:"user_id"`
	Action          string    `gorm:"not null" json:"action"`
	Field           string    `json:"field,omitempty"`
	OldValue        string    `json:"old_value,omitempty"`
	NewValue        string    `json:"new_value,omitempty"`
	ItemDescription string    `json:"item_description,omitempty"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
}

const (
	ChangeEdit   = "edit"
	ChangeAdd    = "add"
	ChangeDelete = "delete"
	ChangeNote   = "note"
)

func (e *ChangeLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return nil
}

// PriceTemplate is a reusable unit price, either global or owned by a user.
type PriceTemplate struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	UserID      string  `gorm:"index" json:"user_id,omitempty"`
	IsGlobal    bool    `gorm:"index" json:"is_global"`
	Category    string  `gorm:"not null;index" json:"category"`
	Description string  `gorm:"not null" json:"description"`
	Unit        string  `gorm:"not null" json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Source      string  `json:"source,omitempty"`
}

func (t *PriceTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
