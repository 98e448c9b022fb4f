package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineItem is one priced row of an estimate.
type LineItem struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string     `gorm:"not null;index" json:"project_id"`
	UserID      string     `gorm:"not null" json:"user_id"`
	Position    int        `gorm:"not null" json:"position"`
	Category    string     `gorm:"not null" json:"category"`
	Description string     `gorm:"not null" json:"description"`
	Unit        string     `gorm:"not null" json:"unit"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TotalPrice  float64    `json:"total_price"`
	SourceFile  string     `json:"source_file,omitempty"`
	Note        string     `json:"note,omitempty"`
	Confidence  Confidence `gorm:"size:8" json:"confidence"`
}

func (li *LineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps TotalPrice derived from quantity and unit price.
func (li *LineItem) BeforeSave(tx *gorm.DB) error {
	li.TotalPrice = LineTotal(li.Quantity, li.UnitPrice)
	return nil
}

// LineTotal is round(quantity × unitPrice, 2).
func LineTotal(quantity, unitPrice float64) float64 {
	total, _ := decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(unitPrice)).
		Round(2).
		Float64()
	return total
}

// SumTotals adds line totals without accumulating float drift.
func SumTotals(items []LineItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.TotalPrice))
	}
	total, _ := sum.Round(2).Float64()
	return total
}

// Confidence is the trust label of a line item: high > medium > low.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Valid reports whether c is one of the three known levels.
func (c Confidence) Valid() bool { return c.rank() > 0 }

// Downgrade lowers confidence by one level; medium and low both end at low.
func (c Confidence) Downgrade() Confidence {
	if c == ConfidenceHigh {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// MinConfidence returns the lower of a and b. Unknown values rank below low.
func MinConfidence(a, b Confidence) Confidence {
	if a.rank() <= b.rank() {
		return a
	}
	return b
}

// ParseConfidence normalizes a model-provided label.
func ParseConfidence(s string) (Confidence, bool) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Branch is the top-level trade grouping of the estimate. Values are the
// labels the estimators (and the model prompts) use.
type Branch string

const (
	BranchGeneral    Branch = "ogolnobudowlana"
	BranchSanitary   Branch = "sanitarna"
	BranchElectrical Branch = "elektryczna"
	BranchSiteWorks  Branch = "zewnetrzna"
)

// Branches lists the taxonomy in canonical sort order.
var Branches = []Branch{BranchGeneral, BranchSanitary, BranchElectrical, BranchSiteWorks}

var branchAliases = map[string]Branch{
	"ogolnobudowlana":      BranchGeneral,
	"ogólnobudowlana":      BranchGeneral,
	"general-construction": BranchGeneral,
	"general":              BranchGeneral,
	"sanitarna":            BranchSanitary,
	"sanitary":             BranchSanitary,
	"elektryczna":          BranchElectrical,
	"electrical":           BranchElectrical,
	"zewnetrzna":           BranchSiteWorks,
	"zewnętrzna":           BranchSiteWorks,
	"site-works":           BranchSiteWorks,
}

// ParseBranch accepts the canonical labels and their English aliases.
func ParseBranch(s string) (Branch, bool) {
	b, ok := branchAliases[strings.ToLower(strings.TrimSpace(s))]
	return b, ok
}

// Label is the upper-case tag used as a category prefix, e.g. "[SANITARNA]".
func (b Branch) Label() string {
	return "[" + strings.ToUpper(string(b)) + "]"
}

// Order is the position of b in the canonical taxonomy, or len(Branches).
func (b Branch) Order() int {
	for i, x := range Branches {
		if x == b {
			return i
		}
	}
	return len(Branches)
}

var categoryPrefix = regexp.MustCompile(`^\s*\[([^\]]+)\]`)

// BranchFromCategory reads the branch tag off a prefixed category label.
func BranchFromCategory(category string) (Branch, bool) {
	m := categoryPrefix.FindStringSubmatch(category)
	if m == nil {
		return "", false
	}
	return ParseBranch(m[1])
}

// StripCategoryPrefix removes a leading bracketed tag from category.
func StripCategoryPrefix(category string) string {
	if loc := categoryPrefix.FindStringIndex(category); loc != nil {
		return strings.TrimSpace(category[loc[1]:])
	}
	return strings.TrimSpace(category)
}

// PrefixCategory tags a category with its branch label, replacing any tag it
// already carries.
func PrefixCategory(b Branch, category string) string {
	return strings.TrimSpace(b.Label() + " " + StripCategoryPrefix(category))
}
