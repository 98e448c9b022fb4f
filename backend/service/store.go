package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrlabs/costcontrl/backend/model"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrProjectBusy is returned when a project is already being estimated.
	ErrProjectBusy = errors.New("project is processing")
	// ErrNotEditable is returned when line items are edited on a project without a finished estimate.
	ErrNotEditable = errors.New("project has no completed estimate")
)

const (
	maxProjectsListed = 50
	maxChangesListed  = 200
)

// Store persists projects, their files and line items.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateProject inserts a new project in status uploading.
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	p.Status = model.StatusUploading
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// ListProjects returns the user's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(maxProjectsListed).
		Find(&projects).Error
	return projects, err
}

func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetUserProject returns the project only when userID owns it.
func (s *Store) GetUserProject(ctx context.Context, userID, id string) (*model.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

// DeleteProject removes the project with its files, line items and change log,
// returning the object keys of the removed files.
func (s *Store) DeleteProject(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if p.Status == model.StatusProcessing {
			return ErrProjectBusy
		}

		var files []model.ProjectFile
		if err := tx.Where("project_id = ?", id).Find(&files).Error; err != nil {
			return err
		}
		for _, f := range files {
			keys = append(keys, f.ObjectKey)
		}
		if p.FileKey != "" {
			keys = append(keys, p.FileKey)
		}

		for _, m := range []any{&model.LineItem{}, &model.ProjectFile{}, &model.ChangeLogEntry{}} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// MarkProcessing claims the project for a pipeline run. It fails with
// ErrProjectBusy when another run holds it.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND status <> ?", id, model.StatusProcessing).
		Updates(map[string]any{
			"status":        model.StatusProcessing,
			"total_cost":    nil,
			"error_message": "",
			"completed_at":  nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark project processing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetProject(ctx, id); err != nil {
			return err
		}
		return ErrProjectBusy
	}
	return nil
}

// MarkFailed moves the project to error with msg.
func (s *Store) MarkFailed(ctx context.Context, id, msg string) error {
	return s.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        model.StatusError,
			"total_cost":    nil,
			"error_message": msg,
			"completed_at":  nil,
		}).Error
}

// ReplaceLineItems swaps the project's line items for items and completes the
// project, all in one transaction. Positions are assigned 1..n in slice order.
func (s *Store) ReplaceLineItems(ctx context.Context, projectID, userID string, items []model.LineItem) (float64, error) {
	for i := range items {
		items[i].ID = ""
		items[i].ProjectID = projectID
		items[i].UserID = userID
		items[i].Position = i + 1
		items[i].TotalPrice = model.LineTotal(items[i].Quantity, items[i].UnitPrice)
	}
	total := model.SumTotals(items)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(&items, 100).Error; err != nil {
				return err
			}
		}
		now := time.Now()
		return tx.Model(&model.Project{}).Where("id = ?", projectID).Updates(map[string]any{
			"status":        model.StatusCompleted,
			"total_cost":    total,
			"error_message": "",
			"completed_at":  &now,
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write line items: %w", err)
	}
	return total, nil
}

// AddFile registers a file and refreshes the project's file count. It fails
// with ErrProjectBusy while the project is processing; the conditional update
// holds the project row until commit, so a concurrent MarkProcessing either
// runs first or sees the new file.
func (s *Store) AddFile(ctx context.Context, f *model.ProjectFile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Project{}).
			Where("id = ? AND status <> ?", f.ProjectID, model.StatusProcessing).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var p model.Project
			if err := tx.Select("id").First(&p, "id = ?", f.ProjectID).Error; err != nil {
				return notFound(err)
			}
			return ErrProjectBusy
		}

		if err := tx.Create(f).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.ProjectFile{}).Where("project_id = ?", f.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		return tx.Model(&model.Project{}).Where("id = ?", f.ProjectID).Updates(map[string]any{
			"file_count": count,
			"file_name":  f.FileName,
		}).Error
	})
}

// ListFiles returns the project's files in upload order.
func (s *Store) ListFiles(ctx context.Context, projectID string) ([]model.ProjectFile, error) {
	var files []model.ProjectFile
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&files).Error
	return files, err
}

func (s *Store) GetFile(ctx context.Context, id string) (*model.ProjectFile, error) {
	var f model.ProjectFile
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// UpdateFileStatus sets a file's status and, when non-empty, its extracted text.
func (s *Store) UpdateFileStatus(ctx context.Context, fileID, status, extractedText string) error {
	updates := map[string]any{"status": status}
	if extractedText != "" {
		updates["extracted_text"] = extractedText
	}
	return s.db.WithContext(ctx).Model(&model.ProjectFile{}).Where("id = ?", fileID).Updates(updates).Error
}

// ListLineItems returns the project's line items in display order.
func (s *Store) ListLineItems(ctx context.Context, projectID string) ([]model.LineItem, error) {
	var items []model.LineItem
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

// ListChanges returns the project's change log, newest first.
func (s *Store) ListChanges(ctx context.Context, projectID string) ([]model.ChangeLogEntry, error) {
	var entries []model.ChangeLogEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp DESC").
		Limit(maxChangesListed).
		Find(&entries).Error
	return entries, err
}
