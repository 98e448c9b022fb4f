package estimation

import (
	"context"
	"strings"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"golang.org/x/sync/errgroup"
)

// DraftItems produces candidate line items: one call per document for small
// projects, one batched call over the assembled context otherwise. Failed
// calls contribute nothing.
func (p *Pipeline) DraftItems(ctx context.Context, m Completer, docs []Document, assembled, characterization string) []Draft {
	ctx = logger.WithStage(ctx, "drafting")
	system := draftSystem(characterization)

	var drafts []Draft
	if len(docs) <= p.cfg.FewFilesLimit {
		drafts = p.draftPerFile(ctx, m, system, docs)
	} else {
		drafts = p.draftBatch(ctx, m, system, docs, assembled)
	}

	logger.Info(ctx, "drafting finished", "files", len(docs), "items", len(drafts))
	return drafts
}

func (p *Pipeline) draftPerFile(ctx context.Context, m Completer, system string, docs []Document) []Draft {
	results := make([][]Draft, len(docs))
	var g errgroup.Group
	for i, d := range docs {
		if !d.Success {
			continue
		}
		content := truncate(d.Content, p.cfg.PerFileSlice)
		if runeLen(strings.TrimSpace(content)) < p.cfg.MinFileContent {
			logger.Debug(ctx, "skipping short file", "file", d.FileName)
			continue
		}
		g.Go(func() error {
			items, err := p.requestDrafts(ctx, m, service.CompletionRequest{
				System:      system,
				User:        perFilePrompt(d.FileName, content),
				Temperature: 0.15,
				MaxTokens:   4000,
				JSONMode:    true,
			}, d.FileName)
			if err != nil {
				logger.Warn(ctx, "per-file drafting failed", "file", d.FileName, "error", err)
				return nil
			}
			// The file being drafted is the provenance, whatever the model claims.
			for j := range items {
				items[j].SourceFile = d.FileName
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var out []Draft
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (p *Pipeline) draftBatch(ctx context.Context, m Completer, system string, docs []Document, assembled string) []Draft {
	items, err := p.requestDrafts(ctx, m, service.CompletionRequest{
		System:      system,
		User:        batchPrompt(len(docs), truncate(assembled, p.cfg.BatchSlice)),
		Temperature: 0.15,
		MaxTokens:   8000,
		JSONMode:    true,
	}, docs[0].FileName)
	if err != nil {
		logger.Warn(ctx, "batch drafting failed", "error", err)
		return nil
	}
	return items
}

func (p *Pipeline) requestDrafts(ctx context.Context, m Completer, req service.CompletionRequest, defaultSource string) ([]Draft, error) {
	out, err := p.complete(ctx, m, req)
	if err != nil {
		return nil, err
	}
	est, err := decodeEstimate(out)
	if err != nil {
		return nil, err
	}
	items := make([]Draft, 0, len(est.Items))
	for _, raw := range est.Items {
		if d, ok := raw.normalize(defaultSource); ok {
			items = append(items, d)
		}
	}
	return items, nil
}
