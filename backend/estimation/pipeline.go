package estimation

import (
	"context"
	"fmt"
	"strings"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
)

// Pipeline runs estimates for projects.
type Pipeline struct {
	store       Store
	extractor   service.Extractor
	locator     Locator
	credentials Credentials
	newModel    CompleterFactory
	cfg         config.EstimationConfig
}

func NewPipeline(store Store, extractor service.Extractor, locator Locator, credentials Credentials, newModel CompleterFactory, cfg config.EstimationConfig) *Pipeline {
	return &Pipeline{
		store:       store,
		extractor:   extractor,
		locator:     locator,
		credentials: credentials,
		newModel:    newModel,
		cfg:         cfg,
	}
}

// Request triggers an estimate. FileID is a legacy single-file object key,
// used only when the project has no registered files.
type Request struct {
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId,omitempty"`
}

// Job is a started run: the project is already marked processing.
type Job struct {
	Project   *model.Project
	Model     Completer
	LegacyKey string
}

// Result summarizes a finished run.
type Result struct {
	ItemCount    int
	TotalCost    float64
	Consolidated bool
	UsedFallback bool
	Correction   *Correction
}

// Start validates a request and moves the project to processing. Errors from
// Start leave the project untouched: service.ErrNotFound,
// service.ErrProjectBusy and service.ErrMissingCredential.
func (p *Pipeline) Start(ctx context.Context, req Request) (*Job, error) {
	project, err := p.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.Status == model.StatusProcessing {
		return nil, service.ErrProjectBusy
	}

	apiKey, err := p.credentials.Resolve(ctx, service.OpenAIKeySetting)
	if err != nil {
		return nil, err
	}

	if err := p.store.MarkProcessing(ctx, project.ID); err != nil {
		return nil, err
	}
	project.Status = model.StatusProcessing

	return &Job{
		Project:   project,
		Model:     p.newModel(apiKey),
		LegacyKey: legacyKey(project, req.FileID),
	}, nil
}

// legacyKey accepts a caller-supplied object key only inside the project's
// own storage prefix.
func legacyKey(project *model.Project, fileID string) string {
	prefix := project.UserID + "/" + project.ID + "/"
	if fileID != "" && strings.HasPrefix(fileID, prefix) && !strings.Contains(fileID, "..") {
		return fileID
	}
	return project.FileKey
}

// Execute runs every stage of a started job. Any error, including a panic,
// marks the project failed with the error message.
func (p *Pipeline) Execute(ctx context.Context, job *Job) (res *Result, err error) {
	ctx = logger.WithProject(ctx, job.Project.ID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("estimation panicked: %v", r)
		}
		if err != nil {
			logger.Error(ctx, "estimation failed", "error", err)
			if ferr := p.store.MarkFailed(context.WithoutCancel(ctx), job.Project.ID, err.Error()); ferr != nil {
				logger.Error(ctx, "failed to record estimation failure", "error", ferr)
			}
		}
	}()

	return p.estimate(ctx, job)
}

// Run is Start followed by Execute.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	job, err := p.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, job)
}

func (p *Pipeline) estimate(ctx context.Context, job *Job) (*Result, error) {
	logger.Info(ctx, "estimation started")

	docs, err := p.ExtractAll(ctx, job)
	if err != nil {
		return nil, err
	}

	assembled := BuildContext(docs, p.cfg.ContextBudget, p.cfg.TextDocShare)
	characterization := p.Characterize(ctx, job.Model, docs, assembled)
	drafts := p.DraftItems(ctx, job.Model, docs, assembled, characterization)

	res := &Result{}
	items, consolidated := p.Consolidate(ctx, job.Model, drafts, characterization, len(docs))
	res.Consolidated = consolidated

	items, res.Correction = CorrectPlausibility(items, characterization, p.cfg)
	if c := res.Correction; c != nil {
		logger.Warn(ctx, "cost per area below floor, prices rescaled",
			"area", c.Area, "cost_per_area", c.CostPerArea, "factor", c.Factor)
	}

	if len(items) == 0 {
		logger.Warn(ctx, "no items from the model, using parametric fallback")
		items = Fallback(characterization, p.cfg)
		res.UsedFallback = true
	}

	rows := toLineItems(items, firstSource(docs))
	total, err := p.store.ReplaceLineItems(ctx, job.Project.ID, job.Project.UserID, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to save line items: %w", err)
	}

	res.ItemCount = len(rows)
	res.TotalCost = total
	logger.Info(ctx, "estimation completed",
		"items", res.ItemCount, "total_cost", total,
		"consolidated", res.Consolidated, "fallback", res.UsedFallback)
	return res, nil
}

// firstSource is the provenance given to items that name no file.
func firstSource(docs []Document) string {
	for _, d := range docs {
		if d.Success {
			return d.FileName
		}
	}
	if len(docs) > 0 {
		return docs[0].FileName
	}
	return ""
}

func toLineItems(items []Draft, defaultSource string) []model.LineItem {
	rows := make([]model.LineItem, len(items))
	for i, d := range items {
		source := d.SourceFile
		if source == "" {
			source = defaultSource
		}
		rows[i] = model.LineItem{
			Category:    model.PrefixCategory(d.Branch, d.Category),
			Description: d.Description,
			Unit:        d.Unit,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			TotalPrice:  d.Total(),
			SourceFile:  source,
			Confidence:  d.Confidence,
		}
	}
	return rows
}
