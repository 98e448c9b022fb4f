package estimation

import (
	"errors"
	"testing"

	"github.com/contrlabs/costcontrl/backend/model"
)

func TestDecodeEstimate(t *testing.T) {
	est, err := decodeEstimate("```json\n{\"items\":[{\"description\":\"Tynki\",\"quantity\":\"1 250,5\",\"unitPrice\":55}]}\n```")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(est.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(est.Items))
	}
	if est.Items[0].Quantity != 1250.5 {
		t.Errorf("Expected quantity 1250.5, got %v", est.Items[0].Quantity)
	}

	bad := []string{
		`not json`,
		`{"summary":{}}`,
		`{"items":{"a":1}}`,
		`{"items":null}`,
	}
	for _, s := range bad {
		if _, err := decodeEstimate(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
	if _, err := decodeEstimate(`{"items":"none"}`); !errors.Is(err, errNoItems) {
		t.Errorf("Expected errNoItems, got %v", err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	est, err := decodeEstimate(`{"items":[
		{"description":"Wylewki","quantity":-5,"unitPrice":"abc"},
		{"category":"[SANITARNA] Instalacja wod-kan","unit":"m²","quantity":100,"unitPrice":185,"confidence":"HIGH","sourceFile":"opis.docx"},
		{"category":"[SANITARNA] Wentylacja","branch":"elektryczna"},
		{"unit":"m²","quantity":10}
	]}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	first, ok := est.Items[0].normalize("rzut.pdf")
	if !ok {
		t.Fatal("Expected first item to be kept")
	}
	want := Draft{
		Category:    DefaultCategory,
		Description: "Wylewki",
		Unit:        DefaultUnit,
		Branch:      model.BranchGeneral,
		SourceFile:  "rzut.pdf",
		Confidence:  model.ConfidenceMedium,
	}
	if first != want {
		t.Errorf("Expected %+v, got %+v", want, first)
	}

	second, _ := est.Items[1].normalize("rzut.pdf")
	if second.Branch != model.BranchSanitary || second.Category != "Instalacja wod-kan" {
		t.Errorf("Expected branch from category prefix, got %q %q", second.Branch, second.Category)
	}
	if second.Description != DefaultDescription || second.Confidence != model.ConfidenceHigh || second.SourceFile != "opis.docx" {
		t.Errorf("Unexpected item %+v", second)
	}

	third, _ := est.Items[2].normalize("")
	if third.Branch != model.BranchElectrical || third.Category != "Wentylacja" {
		t.Errorf("Expected explicit branch to win and prefix stripped, got %q %q", third.Branch, third.Category)
	}

	if _, ok := est.Items[3].normalize(""); ok {
		t.Error("Expected item without description and category to be dropped")
	}
}

func TestNumberDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want number
	}{
		{`12.5`, 12.5},
		{`"8,5"`, 8.5},
		{`"1 200"`, 1200},
		{"\"1 200,75\"", 1200.75},
		{`"dużo"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`[1]`, 0},
	}
	for _, tt := range tests {
		var n number
		if err := n.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Errorf("UnmarshalJSON(%s): %v", tt.in, err)
		}
		if n != tt.want {
			t.Errorf("UnmarshalJSON(%s) = %v, want %v", tt.in, n, tt.want)
		}
	}
}
