package estimation

import (
	"math"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/model"
)

// FallbackSource marks items produced by the parametric catalog.
const FallbackSource = "fallback"

// dimensions are the derived building measures the catalog is priced from.
type dimensions struct {
	area      float64
	floors    float64
	footprint float64
	perimeter float64
	wallArea  float64
	roofArea  float64
}

// buildingDimensions approximates a rectangular footprint with 30% extra
// perimeter for irregularity and a 3 m storey height.
func buildingDimensions(characterization string, cfg config.EstimationConfig) dimensions {
	area := cfg.FallbackArea
	if a, ok := ParseArea(characterization); ok && a > cfg.FallbackMinArea {
		area = a
	}
	floors := cfg.FallbackFloors
	if f, ok := ParseFloors(characterization); ok {
		floors = f
	}
	if floors < 1 {
		floors = 1
	}

	d := dimensions{area: area, floors: float64(floors)}
	d.footprint = area / d.floors
	d.perimeter = math.Sqrt(d.footprint) * 4 * 1.3
	d.wallArea = d.perimeter * 3 * d.floors
	d.roofArea = d.footprint * 1.15
	return d
}

type catalogRow struct {
	branch      model.Branch
	category    string
	description string
	unit        string
	quantity    func(d dimensions) float64
	unitPrice   func(d dimensions) float64
}

func fixed(v float64) func(dimensions) float64 {
	return func(dimensions) float64 { return v }
}

var fallbackCatalog = []catalogRow{
	{model.BranchGeneral, "Roboty ziemne", "Wykopy fundamentowe mechaniczne z odwozem", "m³",
		func(d dimensions) float64 { return math.Round(d.footprint * 0.8) }, fixed(75)},
	{model.BranchGeneral, "Roboty ziemne", "Zasypki piaskiem z zagęszczeniem", "m³",
		func(d dimensions) float64 { return math.Round(d.footprint * 0.3) }, fixed(95)},

	{model.BranchGeneral, "Fundamenty", "Płyta fundamentowa żelbetowa C30/37 gr. 30cm", "m²",
		func(d dimensions) float64 { return math.Round(d.footprint) }, fixed(450)},
	{model.BranchGeneral, "Fundamenty", "Zbrojenie fundamentów stal BSt500S", "kg",
		func(d dimensions) float64 { return math.Round(d.footprint * 12) }, fixed(8.5)},
	{model.BranchGeneral, "Fundamenty", "Izolacja przeciwwilgociowa fundamentów", "m²",
		func(d dimensions) float64 { return math.Round(d.footprint * 1.3) }, fixed(55)},

	{model.BranchGeneral, "Konstrukcja żelbetowa", "Słupy żelbetowe C30/37", "m³",
		func(d dimensions) float64 { return d.floors * 8 }, fixed(2400)},
	{model.BranchGeneral, "Konstrukcja żelbetowa", "Belki żelbetowe C30/37", "m³",
		func(d dimensions) float64 { return d.floors * 6 }, fixed(2800)},
	{model.BranchGeneral, "Konstrukcja żelbetowa", "Stropy żelbetowe monolityczne gr. 22cm", "m²",
		func(d dimensions) float64 { return math.Round(d.footprint * d.floors) }, fixed(350)},
	{model.BranchGeneral, "Konstrukcja żelbetowa", "Schody żelbetowe", "kpl.",
		func(d dimensions) float64 { return d.floors }, fixed(8500)},

	{model.BranchGeneral, "Ściany nośne i działowe", "Ściany nośne z bloczków silikatowych 24cm", "m²",
		func(d dimensions) float64 { return math.Round(d.wallArea * 0.6) }, fixed(195)},
	{model.BranchGeneral, "Ściany nośne i działowe", "Ściany działowe z bloczków 12cm", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 0.8) }, fixed(130)},

	{model.BranchGeneral, "Dach / Stropodach", "Stropodach, izolacja i papa termozgrzewalna", "m²",
		func(d dimensions) float64 { return math.Round(d.roofArea) }, fixed(280)},
	{model.BranchGeneral, "Dach / Stropodach", "Obróbki blacharskie attyki", "mb",
		func(d dimensions) float64 { return math.Round(d.perimeter) }, fixed(140)},

	{model.BranchGeneral, "Stolarka", "Okna PCV trzyszybowe z montażem", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 0.15) }, fixed(1200)},
	{model.BranchGeneral, "Stolarka", "Drzwi wejściowe do budynku aluminiowe", "szt.",
		fixed(2), fixed(8500)},
	{model.BranchGeneral, "Stolarka", "Drzwi wewnętrzne z ościeżnicą", "szt.",
		func(d dimensions) float64 { return math.Round(d.area / 15) }, fixed(1400)},

	{model.BranchGeneral, "Izolacja termiczna", "Ocieplenie ścian styropian 20cm (ETICS)", "m²",
		func(d dimensions) float64 { return math.Round(d.wallArea * 0.7) }, fixed(220)},
	{model.BranchGeneral, "Izolacja termiczna", "Ocieplenie fundamentów XPS 12cm", "m²",
		func(d dimensions) float64 { return math.Round(d.perimeter * 1.2) }, fixed(130)},

	{model.BranchGeneral, "Tynki i okładziny", "Tynki gipsowe maszynowe", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 2.8) }, fixed(55)},
	{model.BranchGeneral, "Tynki i okładziny", "Gładzie gipsowe + malowanie 2x", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 2.8) }, fixed(45)},
	{model.BranchGeneral, "Tynki i okładziny", "Płytki ceramiczne łazienki", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 0.25) }, fixed(220)},

	{model.BranchGeneral, "Posadzki", "Wylewki samopoziomujące", "m²",
		func(d dimensions) float64 { return math.Round(d.area) }, fixed(65)},
	{model.BranchGeneral, "Posadzki", "Panele podłogowe / parkiet", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 0.6) }, fixed(130)},

	{model.BranchGeneral, "Elewacja", "Tynk silikonowy elewacyjny", "m²",
		func(d dimensions) float64 { return math.Round(d.wallArea * 0.7) }, fixed(45)},

	{model.BranchSanitary, "Instalacja wod-kan", "Instalacja wod-kan kompletna", "m²",
		func(d dimensions) float64 { return math.Round(d.area) }, fixed(185)},
	{model.BranchSanitary, "Instalacja wod-kan", "Biały montaż (umywalki, WC, wanny)", "kpl.",
		func(d dimensions) float64 { return math.Round(d.area / 65) }, fixed(4500)},
	{model.BranchSanitary, "Instalacja CO", "Ogrzewanie podłogowe", "m²",
		func(d dimensions) float64 { return math.Round(d.area) }, fixed(180)},
	{model.BranchSanitary, "Instalacja CO", "Węzeł cieplny / kotłownia", "kpl.",
		fixed(1), func(d dimensions) float64 { return math.Round(d.area * 50) }},
	{model.BranchSanitary, "Wentylacja", "Wentylacja mechaniczna z rekuperacją", "m²",
		func(d dimensions) float64 { return math.Round(d.area) }, fixed(160)},

	{model.BranchElectrical, "Instalacja elektryczna", "Instalacja elektryczna kompletna", "m²",
		func(d dimensions) float64 { return math.Round(d.area) }, fixed(260)},
	{model.BranchElectrical, "Instalacja elektryczna", "Rozdzielnice, tablice, ochrona ppoż.", "kpl.",
		fixed(1), func(d dimensions) float64 { return math.Round(d.area * 35) }},

	{model.BranchSiteWorks, "Zagospodarowanie terenu", "Parking naziemny", "m²",
		func(d dimensions) float64 { return math.Round(d.area * 0.3) }, fixed(250)},
	{model.BranchSiteWorks, "Zagospodarowanie terenu", "Chodniki i dojścia", "m²",
		func(d dimensions) float64 { return math.Round(d.perimeter * 2) }, fixed(180)},
	{model.BranchSiteWorks, "Przyłącza", "Przyłącza mediów komplet", "kpl.",
		fixed(1), fixed(45000)},
}

// Fallback prices the fixed catalog against the area and floor count read
// from characterization. Every item has low confidence.
func Fallback(characterization string, cfg config.EstimationConfig) []Draft {
	d := buildingDimensions(characterization, cfg)
	out := make([]Draft, 0, len(fallbackCatalog))
	for _, row := range fallbackCatalog {
		out = append(out, Draft{
			Category:    row.category,
			Description: row.description,
			Unit:        row.unit,
			Quantity:    row.quantity(d),
			UnitPrice:   row.unitPrice(d),
			Branch:      row.branch,
			SourceFile:  FallbackSource,
			Confidence:  model.ConfidenceLow,
		})
	}
	return out
}
