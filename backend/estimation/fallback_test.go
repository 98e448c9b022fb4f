package estimation

import (
	"reflect"
	"testing"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/model"
)

func TestFallbackDefaultBuilding(t *testing.T) {
	items := Fallback(StaticCharacterization, config.DefaultEstimation())

	if len(items) != 34 {
		t.Fatalf("Expected 34 items, got %d", len(items))
	}
	if items[0].Quantity != 240 || items[0].UnitPrice != 75 {
		t.Errorf("Expected earthworks 240 × 75, got %v × %v", items[0].Quantity, items[0].UnitPrice)
	}

	perBranch := map[model.Branch]int{}
	for _, it := range items {
		if it.Confidence != model.ConfidenceLow {
			t.Errorf("%s: expected low confidence, got %s", it.Description, it.Confidence)
		}
		if it.SourceFile != FallbackSource {
			t.Errorf("%s: expected source %q, got %q", it.Description, FallbackSource, it.SourceFile)
		}
		if it.Quantity <= 0 || it.UnitPrice <= 0 {
			t.Errorf("%s: expected positive quantity and price, got %v × %v", it.Description, it.Quantity, it.UnitPrice)
		}
		perBranch[it.Branch]++
	}
	want := map[model.Branch]int{
		model.BranchGeneral:    24,
		model.BranchSanitary:   5,
		model.BranchElectrical: 2,
		model.BranchSiteWorks:  3,
	}
	if !reflect.DeepEqual(perBranch, want) {
		t.Errorf("Expected branch counts %v, got %v", want, perBranch)
	}

	byDesc := map[string]Draft{}
	for _, it := range items {
		byDesc[it.Description] = it
	}
	if d := byDesc["Słupy żelbetowe C30/37"]; d.Quantity != 32 {
		t.Errorf("Expected 32 m³ of columns for 4 floors, got %v", d.Quantity)
	}
	if d := byDesc["Węzeł cieplny / kotłownia"]; d.Quantity != 1 || d.UnitPrice != 60000 {
		t.Errorf("Expected heat node 1 × 60000, got %v × %v", d.Quantity, d.UnitPrice)
	}
	if d := byDesc["Stropy żelbetowe monolityczne gr. 22cm"]; d.Quantity != 1200 {
		t.Errorf("Expected 1200 m² of slabs, got %v", d.Quantity)
	}
}

func TestFallbackUsesCharacterization(t *testing.T) {
	cfg := config.DefaultEstimation()

	items := Fallback("Budynek biurowy 2 400 m², 3 kondygnacje", cfg)
	if items[0].Quantity != 640 {
		t.Errorf("Expected round(800 × 0.8) = 640, got %v", items[0].Quantity)
	}

	// Areas at or below the minimum are treated as unreliable.
	items = Fallback("Altana 40 m², 2 kondygnacje", cfg)
	if items[0].Quantity != 480 {
		t.Errorf("Expected default area over 2 floors (480), got %v", items[0].Quantity)
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	cfg := config.DefaultEstimation()
	a := Fallback("Budynek 1500 m2, 5 pięter", cfg)
	b := Fallback("Budynek 1500 m2, 5 pięter", cfg)
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical output for identical input")
	}
}
