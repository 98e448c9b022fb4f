package estimation

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/contrlabs/costcontrl/backend/model"
)

// number decodes a JSON number or numeric string. Anything else decodes to 0.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(s)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*n = number(v)
		}
		return nil
	}
	if v, err := strconv.ParseFloat(string(b), 64); err == nil {
		*n = number(v)
	}
	return nil
}

// text decodes a JSON string, or the literal form of any other scalar.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	*t = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*t = text(strings.TrimSpace(s))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return nil
	}
	*t = text(b)
	return nil
}

// refs decodes a list of 1-based draft ids, ignoring malformed entries.
type refs []int

func (r *refs) UnmarshalJSON(b []byte) error {
	*r = nil
	var raw []number
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, v := range raw {
		if v >= 1 && float64(v) == float64(int(v)) {
			*r = append(*r, int(v))
		}
	}
	return nil
}

type rawItem struct {
	Category    text   `json:"category"`
	Description text   `json:"description"`
	Unit        text   `json:"unit"`
	Quantity    number `json:"quantity"`
	UnitPrice   number `json:"unitPrice"`
	Branch      text   `json:"branch"`
	SourceFile  text   `json:"sourceFile"`
	Confidence  text   `json:"confidence"`
	Sources     refs   `json:"sources"`
}

// rawEstimate is the envelope every JSON-mode stage answers with. Summary and
// MergeLog are informational only.
type rawEstimate struct {
	Items    []rawItem       `json:"items"`
	Summary  json.RawMessage `json:"summary,omitempty"`
	MergeLog json.RawMessage `json:"mergeLog,omitempty"`
}

// Defaults for fields a model response left empty.
const (
	DefaultCategory    = "Inne"
	DefaultDescription = "Pozycja kosztorysu"
	DefaultUnit        = "kpl."
)

var errNoItems = errors.New("response has no items array")

// decodeEstimate parses a model response. The items key must hold an array.
func decodeEstimate(s string) (*rawEstimate, error) {
	s = stripCodeFence(s)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, err
	}
	items, ok := probe["items"]
	if !ok || len(bytes.TrimSpace(items)) == 0 || bytes.TrimSpace(items)[0] != '[' {
		return nil, errNoItems
	}
	var est rawEstimate
	if err := json.Unmarshal([]byte(s), &est); err != nil {
		return nil, err
	}
	return &est, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// normalize validates one raw item and applies every default. It reports
// false for items carrying neither a description nor a category.
func (r rawItem) normalize(defaultSource string) (Draft, bool) {
	category := string(r.Category)
	description := string(r.Description)
	if category == "" && description == "" {
		return Draft{}, false
	}

	branch, ok := model.ParseBranch(string(r.Branch))
	if prefixed, has := model.BranchFromCategory(category); has && !ok {
		branch, ok = prefixed, true
	}
	category = model.StripCategoryPrefix(category)
	if !ok {
		branch = model.BranchGeneral
	}

	confidence, ok := model.ParseConfidence(string(r.Confidence))
	if !ok {
		confidence = model.ConfidenceMedium
	}

	source := string(r.SourceFile)
	if source == "" {
		source = defaultSource
	}

	return Draft{
		Category:    orDefault(category, DefaultCategory),
		Description: orDefault(description, DefaultDescription),
		Unit:        orDefault(string(r.Unit), DefaultUnit),
		Quantity:    nonNegative(float64(r.Quantity)),
		UnitPrice:   nonNegative(float64(r.UnitPrice)),
		Branch:      branch,
		SourceFile:  source,
		Confidence:  confidence,
	}, true
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
