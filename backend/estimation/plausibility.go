package estimation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/contrlabs/costcontrl/backend/config"
)

// areaPattern matches "1200 m²", "1 200 m2", "1.200,5 m²" and "850,75 m²".
// Group 1 is the integer part, possibly with thousands separators; group 2 the
// fraction. The figure must not continue an earlier number, so "2023 120 m²"
// reads as 120.
var areaPattern = regexp.MustCompile(`(?:^|\D)(\d{1,3}(?:[ \x{00A0}.,]\d{3})+|\d+)(?:[.,](\d+))?\s*m(?:²|2|\^2)`)

var floorsPattern = regexp.MustCompile(`(?i)(\d+)\s*-?\s*(?:kondygnac|pięt|pieter|floors?|storeys?|stories)`)

// ParseArea reads the first square-meter figure in text.
func ParseArea(text string) (float64, bool) {
	m := areaPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])
	if m[2] != "" {
		digits += "." + m[2]
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseFloors reads the first floor count in text.
func ParseFloors(text string) (int, bool) {
	m := floorsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Correction describes a plausibility rescale.
type Correction struct {
	Area        float64
	Total       float64
	CostPerArea float64
	Factor      float64
}

// CorrectPlausibility rescales every unit price when the cost per square
// meter implied by characterization is below the configured floor, and
// downgrades every item's confidence. items is not modified; the returned
// Correction is nil when nothing changed.
func CorrectPlausibility(items []Draft, characterization string, cfg config.EstimationConfig) ([]Draft, *Correction) {
	area, ok := ParseArea(characterization)
	if !ok || area <= cfg.PlausibilityMinArea {
		return items, nil
	}
	total := SumDrafts(items)
	if total <= 0 {
		return items, nil
	}
	cpa := total / area
	if cpa >= cfg.CostPerAreaFloor {
		return items, nil
	}

	factor := cfg.CostPerAreaTarget / cpa
	out := make([]Draft, len(items))
	for i, d := range items {
		d.UnitPrice = math.Round(d.UnitPrice * factor)
		d.Confidence = d.Confidence.Downgrade()
		out[i] = d
	}
	return out, &Correction{Area: area, Total: total, CostPerArea: cpa, Factor: factor}
}
