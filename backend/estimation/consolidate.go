package estimation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/contrlabs/costcontrl/backend/model"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
)

type draftPayload struct {
	ID          int     `json:"id"`
	Branch      string  `json:"branch"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	SourceFile  string  `json:"sourceFile"`
	Confidence  string  `json:"confidence"`
}

// encodeDrafts renders drafts as a JSON array of at most limit runes, dropping
// whole items from the tail. It returns the number of items left out.
func encodeDrafts(drafts []Draft, limit int) (string, int) {
	var sb strings.Builder
	sb.WriteString("[")
	size := 2
	for i, d := range drafts {
		b, err := json.Marshal(draftPayload{
			ID:          i + 1,
			Branch:      string(d.Branch),
			Category:    d.Category,
			Description: d.Description,
			Unit:        d.Unit,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			SourceFile:  d.SourceFile,
			Confidence:  string(d.Confidence),
		})
		if err != nil {
			continue
		}
		n := runeLen(string(b))
		if i > 0 {
			n++
		}
		if size+n > limit {
			sb.WriteString("]")
			return sb.String(), len(drafts) - i
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(b)
		size += n
	}
	sb.WriteString("]")
	return sb.String(), 0
}

// Consolidate asks the model to merge, deduplicate and validate drafts. The
// drafts are returned unchanged, with accepted=false, when the response is
// unusable.
func (p *Pipeline) Consolidate(ctx context.Context, m Completer, drafts []Draft, characterization string, fileCount int) (items []Draft, accepted bool) {
	if len(drafts) == 0 {
		return drafts, false
	}
	ctx = logger.WithStage(ctx, "consolidation")

	payload, omitted := encodeDrafts(drafts, p.cfg.ConsolidationSlice)
	out, err := p.complete(ctx, m, service.CompletionRequest{
		System:      consolidationSystem(characterization),
		User:        consolidationPrompt(len(drafts), fileCount, payload, omitted),
		Temperature: 0.1,
		MaxTokens:   8000,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn(ctx, "consolidation call failed, keeping drafts", "error", err)
		return drafts, false
	}

	merged, err := ApplyConsolidation(out, drafts, p.cfg.MinConsolidatedItems)
	if err != nil {
		logger.Warn(ctx, "consolidation rejected, keeping drafts", "error", err)
		return drafts, false
	}

	logger.Info(ctx, "consolidation accepted", "drafts", len(drafts), "items", len(merged))
	return merged, true
}

// ApplyConsolidation validates a consolidation response against the drafts it
// was built from. Accepted items are sorted by branch, and their confidence
// never exceeds that of the drafts they came from.
func ApplyConsolidation(response string, drafts []Draft, minItems int) ([]Draft, error) {
	est, err := decodeEstimate(response)
	if err != nil {
		return nil, err
	}

	items := make([]Draft, 0, len(est.Items))
	for _, raw := range est.Items {
		d, ok := raw.normalize("")
		if !ok {
			continue
		}
		origins := originsOf(d, raw.Sources, drafts)
		d.Confidence = capConfidence(d.Confidence, origins)
		if d.SourceFile == "" && len(origins) > 0 {
			d.SourceFile = origins[0].SourceFile
		}
		items = append(items, d)
	}

	if len(items) < minItems {
		return nil, fmt.Errorf("consolidation returned %d usable items, need at least %d", len(items), minItems)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Branch.Order() < items[j].Branch.Order()
	})
	return items, nil
}

// originsOf finds the drafts an output item was built from: by its sources
// ids when given, else by matching description.
func originsOf(d Draft, sources []int, drafts []Draft) []Draft {
	var out []Draft
	for _, id := range sources {
		if id >= 1 && id <= len(drafts) {
			out = append(out, drafts[id-1])
		}
	}
	if len(out) > 0 {
		return out
	}
	key := normalizeDescription(d.Description)
	for _, x := range drafts {
		if normalizeDescription(x.Description) == key {
			out = append(out, x)
		}
	}
	return out
}

// capConfidence lowers c to the weakest origin. Items with no origin were
// invented by the consolidation pass and are capped at medium.
func capConfidence(c model.Confidence, origins []Draft) model.Confidence {
	if len(origins) == 0 {
		return model.MinConfidence(c, model.ConfidenceMedium)
	}
	for _, o := range origins {
		c = model.MinConfidence(c, o.Confidence)
	}
	return c
}

func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
