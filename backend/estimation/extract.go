package estimation

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"golang.org/x/sync/errgroup"
)

// extractionTarget is one file to extract. FileID is empty for the legacy
// single-file locator, which has no ProjectFile row to update.
type extractionTarget struct {
	FileID    string
	FileName  string
	ObjectKey string
}

// FailedExtractionText is the placeholder substituted for a file whose text
// could not be extracted.
func FailedExtractionText(fileName string) string {
	return fmt.Sprintf("[Nie udało się wyodrębnić tekstu z: %s]", fileName)
}

// targets lists the project's registered files or, when there are none, the
// legacy locator.
func (p *Pipeline) targets(ctx context.Context, job *Job) ([]extractionTarget, error) {
	files, err := p.store.ListFiles(ctx, job.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	out := make([]extractionTarget, 0, len(files))
	for _, f := range files {
		out = append(out, extractionTarget{FileID: f.ID, FileName: f.FileName, ObjectKey: f.ObjectKey})
	}
	if len(out) == 0 && job.LegacyKey != "" {
		name := job.Project.FileName
		if name == "" {
			name = path.Base(job.LegacyKey)
		}
		out = append(out, extractionTarget{FileName: name, ObjectKey: job.LegacyKey})
	}
	return out, nil
}

// ExtractAll extracts every target concurrently and returns one Document per
// target in input order. It fails only when no target produced text.
func (p *Pipeline) ExtractAll(ctx context.Context, job *Job) ([]Document, error) {
	targets, err := p.targets(ctx, job)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoDocuments
	}

	docs := make([]Document, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			docs[i] = p.extractOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, d := range docs {
		if d.Success {
			ok++
		}
	}
	logger.Info(ctx, "extraction finished", "files", len(docs), "succeeded", ok)
	if ok == 0 {
		return docs, ErrNoDocuments
	}
	return docs, nil
}

func (p *Pipeline) extractOne(ctx context.Context, t extractionTarget) Document {
	p.setFileStatus(ctx, t, model.FileStatusProcessing, "")

	text, err := p.fetchText(ctx, t)
	if err != nil {
		logger.Warn(ctx, "extraction failed", "file", t.FileName, "error", err)
		p.setFileStatus(ctx, t, model.FileStatusError, "")
		return Document{FileName: t.FileName, Content: FailedExtractionText(t.FileName)}
	}

	p.setFileStatus(ctx, t, model.FileStatusAnalyzed, truncate(text, p.cfg.ExtractedTextRetention))
	return Document{FileName: t.FileName, Content: text, Success: true}
}

func (p *Pipeline) fetchText(ctx context.Context, t extractionTarget) (string, error) {
	url, err := p.locator.PresignedURL(ctx, t.ObjectKey)
	if err != nil {
		return "", err
	}

	ectx, cancel := context.WithTimeout(ctx, p.cfg.ExtractionTimeout.Duration())
	defer cancel()

	res, err := p.extractor.Extract(ectx, url)
	if err != nil {
		return "", err
	}
	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", service.ErrEmptyExtraction
	}
	return text, nil
}

func (p *Pipeline) setFileStatus(ctx context.Context, t extractionTarget, status, text string) {
	if t.FileID == "" {
		return
	}
	if err := p.store.UpdateFileStatus(ctx, t.FileID, status, text); err != nil {
		logger.Warn(ctx, "failed to update file status", "file_id", t.FileID, "status", status, "error", err)
	}
}
