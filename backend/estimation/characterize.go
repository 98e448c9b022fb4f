package estimation

import (
	"context"
	"errors"
	"strings"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
)

var errEmptyCompletion = errors.New("model returned an empty response")

// complete runs one model call under the per-call timeout.
func (p *Pipeline) complete(ctx context.Context, m Completer, req service.CompletionRequest) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ModelCallTimeout.Duration())
	defer cancel()

	out, err := m.Complete(cctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}

// Characterize asks the model for the building's key parameters. It never
// fails: any error yields StaticCharacterization.
func (p *Pipeline) Characterize(ctx context.Context, m Completer, docs []Document, assembled string) string {
	ctx = logger.WithStage(ctx, "characterization")
	texts, drawings := ClassifyDocuments(docs)

	out, err := p.complete(ctx, m, service.CompletionRequest{
		System:      characterizationSystem,
		User:        characterizationPrompt(docs, len(texts), len(drawings), truncate(assembled, p.cfg.CharacterizationSlice)),
		Temperature: 0.1,
		MaxTokens:   1500,
	})
	if err != nil {
		logger.Warn(ctx, "characterization failed, using static description", "error", err)
		return StaticCharacterization
	}

	logger.Debug(ctx, "building characterized", "summary", truncate(out, 500))
	return strings.TrimSpace(out)
}
