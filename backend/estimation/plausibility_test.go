package estimation

import (
	"testing"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/model"
)

func TestParseArea(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"powierzchnia 1200 m² PUM", 1200, true},
		{"PUM: 1 200 m2", 1200, true},
		{"PUM 1 850,5 m²", 1850.5, true},
		{"ok. 2.400 m^2 użytkowej", 2400, true},
		{"850,75 m²", 850.75, true},
		{"4 kondygnacje, 3000 m² i 200 m²", 3000, true},
		{"Projekt z 2023 120 m² powierzchni", 120, true},
		{"rok 2023, 1 200 m²", 1200, true},
		{"2023 120 m²", 120, true},
		{"brak danych", 0, false},
		{"wysokość 12 m", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseArea(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseArea(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseFloors(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"4 kondygnacje nadziemne", 4, true},
		{"5-piętrowy", 5, true},
		{"2 pietra", 0, false},
		{"6 floors", 6, true},
		{"3 Storeys", 3, true},
		{"0 kondygnacji", 0, false},
		{"parterowy", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseFloors(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseFloors(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCorrectPlausibilityRescales(t *testing.T) {
	cfg := config.DefaultEstimation()
	items := []Draft{
		{Description: "Stropy", Quantity: 1000, UnitPrice: 1500, Confidence: model.ConfidenceHigh},
		{Description: "Ściany", Quantity: 500, UnitPrice: 1000, Confidence: model.ConfidenceMedium},
		{Description: "Dach", Quantity: 1, UnitPrice: 1000000, Confidence: model.ConfidenceLow},
	}

	out, corr := CorrectPlausibility(items, "Budynek biurowy, 1000 m² PUM", cfg)
	if corr == nil {
		t.Fatal("Expected a correction")
	}
	if corr.CostPerArea != 3000 || corr.Factor != 1.5 {
		t.Errorf("Expected cpa 3000 and factor 1.5, got %v %v", corr.CostPerArea, corr.Factor)
	}

	wantPrices := []float64{2250, 1500, 1500000}
	wantConf := []model.Confidence{model.ConfidenceMedium, model.ConfidenceLow, model.ConfidenceLow}
	for i, d := range out {
		if d.UnitPrice != wantPrices[i] {
			t.Errorf("Item %d: expected price %v, got %v", i, wantPrices[i], d.UnitPrice)
		}
		if d.Confidence != wantConf[i] {
			t.Errorf("Item %d: expected confidence %s, got %s", i, wantConf[i], d.Confidence)
		}
	}
	if items[0].UnitPrice != 1500 || items[0].Confidence != model.ConfidenceHigh {
		t.Error("Expected input items to be left untouched")
	}
}

func TestCorrectPlausibilityNoop(t *testing.T) {
	cfg := config.DefaultEstimation()
	cheap := []Draft{{Quantity: 1, UnitPrice: 1000, Confidence: model.ConfidenceHigh}}
	fair := []Draft{{Quantity: 1000, UnitPrice: 4000, Confidence: model.ConfidenceHigh}}

	tests := []struct {
		name             string
		items            []Draft
		characterization string
	}{
		{"no area", cheap, "Budynek wielorodzinny"},
		{"small area", cheap, "Garaż 80 m²"},
		{"area at minimum", cheap, "Garaż 100 m²"},
		{"plausible cost", fair, "Biurowiec 1000 m²"},
		{"empty", nil, "Biurowiec 1000 m²"},
		{"zero total", []Draft{{Quantity: 0, UnitPrice: 100}}, "Biurowiec 1000 m²"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, corr := CorrectPlausibility(tt.items, tt.characterization, cfg)
			if corr != nil {
				t.Fatalf("Expected no correction, got %+v", corr)
			}
			for i := range out {
				if out[i] != tt.items[i] {
					t.Errorf("Expected item %d unchanged", i)
				}
			}
		})
	}
}
