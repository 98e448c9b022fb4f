package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is one estimate request: a set of uploaded documents and the
// priced line items produced from them.
type Project struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"not null;index" json:"user_id"`
	Name         string     `gorm:"not null" json:"name"`
	FileName     string     `json:"file_name"`
	FileKey      string     `json:"file_key,omitempty"` // legacy single-file upload
	Status       string     `gorm:"not null;index" json:"status"`
	TotalCost    *float64   `json:"total_cost,omitempty"`
	Currency     string     `gorm:"not null;default:PLN" json:"currency"`
	ErrorMessage string     `json:"error_message,omitempty"`
	FileCount    int        `gorm:"not null;default:0" json:"file_count"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Project lifecycle
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusUploading
	}
	if p.Currency == "" {
		p.Currency = "PLN"
	}
	return nil
}

// ProjectFile is a document registered against a project.
type ProjectFile struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID     string    `gorm:"not null;index" json:"project_id"`
	UserID        string    `gorm:"not null" json:"user_id"`
	FileName      string    `gorm:"not null" json:"file_name"`
	ObjectKey     string    `gorm:"not null" json:"object_key"`
	FileType      string    `json:"file_type,omitempty"`
	Status        string    `gorm:"not null" json:"status"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectFile lifecycle
const (
	FileStatusUploaded   = "uploaded"
	FileStatusProcessing = "processing"
	FileStatusAnalyzed   = "analyzed"
	FileStatusError      = "error"
)

func (f *ProjectFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = FileStatusUploaded
	}
	return nil
}
