// Package estimation turns a project's uploaded documents into a priced bill
// of quantities. Stages run in order: extraction, context assembly, building
// characterization, drafting, consolidation, plausibility correction and, when
// nothing else produced items, the parametric fallback.
package estimation

import (
	"context"
	"errors"

	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/service"
)

// ErrNoDocuments is returned when no file yielded any text.
var ErrNoDocuments = errors.New("no documents to analyze")

// Completer is the language model boundary.
type Completer interface {
	Complete(ctx context.Context, req service.CompletionRequest) (string, error)
}

// CompleterFactory builds a Completer bound to an API key.
type CompleterFactory func(apiKey string) Completer

// Locator turns a stored object key into a URL the extractor can fetch.
type Locator interface {
	PresignedURL(ctx context.Context, objectName string) (string, error)
}

// Credentials resolves named secrets.
type Credentials interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// Store is the persistence the pipeline needs.
type Store interface {
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListFiles(ctx context.Context, projectID string) ([]model.ProjectFile, error)
	UpdateFileStatus(ctx context.Context, fileID, status, extractedText string) error
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
	ReplaceLineItems(ctx context.Context, projectID, userID string, items []model.LineItem) (float64, error)
}

// Document is the outcome of extracting one file.
type Document struct {
	FileName string
	Content  string
	Success  bool
}

// Draft is a pipeline-internal line item. Category never carries the branch
// prefix; it is rendered at persistence.
type Draft struct {
	Category    string
	Description string
	Unit        string
	Quantity    float64
	UnitPrice   float64
	Branch      model.Branch
	SourceFile  string
	Confidence  model.Confidence
}

// Total is round(quantity × unitPrice, 2).
func (d Draft) Total() float64 {
	return model.LineTotal(d.Quantity, d.UnitPrice)
}

// SumDrafts adds the rounded totals of items.
func SumDrafts(items []Draft) float64 {
	rows := make([]model.LineItem, len(items))
	for i, d := range items {
		rows[i].TotalPrice = d.Total()
	}
	return model.SumTotals(rows)
}
