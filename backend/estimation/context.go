package estimation

import (
	"path/filepath"
	"strings"
)

var textDocExtensions = map[string]bool{
	".docx": true,
	".doc":  true,
	".txt":  true,
	".rtf":  true,
	".odt":  true,
	".xlsx": true,
	".xls":  true,
	".ods":  true,
}

// IsTextDocument reports whether fileName belongs to the structured text family.
// Everything else is treated as a drawing.
func IsTextDocument(fileName string) bool {
	return textDocExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// ClassifyDocuments splits docs into text documents and drawings, keeping order.
func ClassifyDocuments(docs []Document) (texts, drawings []Document) {
	for _, d := range docs {
		if IsTextDocument(d.FileName) {
			texts = append(texts, d)
		} else {
			drawings = append(drawings, d)
		}
	}
	return texts, drawings
}

// Budget is the per-file character allowance of each document class.
type Budget struct {
	PerText    int
	PerDrawing int
}

// AllocateBudget gives text documents share of total when any exist, the rest
// to drawings, split evenly within each class.
func AllocateBudget(total int, share float64, texts, drawings int) Budget {
	textBudget := 0
	if texts > 0 {
		textBudget = int(float64(total) * share)
	}
	drawingBudget := total - textBudget

	var b Budget
	if texts > 0 {
		b.PerText = textBudget / texts
	}
	if drawings > 0 {
		b.PerDrawing = drawingBudget / drawings
	}
	return b
}

// BuildContext renders the bounded prompt context for docs.
func BuildContext(docs []Document, total int, share float64) string {
	texts, drawings := ClassifyDocuments(docs)
	budget := AllocateBudget(total, share, len(texts), len(drawings))

	var sb strings.Builder
	if len(texts) > 0 {
		sb.WriteString("\n\n=== DOKUMENTACJA TEKSTOWA (opisy techniczne, specyfikacje, zestawienia) ===")
		for _, d := range texts {
			sb.WriteString("\n\n--- PLIK: " + d.FileName + " [OPIS TECHNICZNY] ---\n")
			sb.WriteString(truncate(d.Content, budget.PerText))
		}
	}
	if len(drawings) > 0 {
		sb.WriteString("\n\n=== RYSUNKI I RZUTY (tekst odczytany z PDF) ===")
		for _, d := range drawings {
			sb.WriteString("\n\n--- PLIK: " + d.FileName + " [RYSUNEK] ---\n")
			sb.WriteString(truncate(d.Content, budget.PerDrawing))
		}
	}
	return sb.String()
}
