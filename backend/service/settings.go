package service

import (
	"context"
	"strings"

	"github.com/contrlabs/costcontrl/backend/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTemplateMatches = 20

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var setting model.AppSetting
	if err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		return "", notFound(err)
	}
	return setting.Value, nil
}

// SetSetting inserts or overwrites key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.AppSetting{Key: key, Value: value}).Error
}

// ListTemplates returns global templates followed by the user's own.
func (s *Store) ListTemplates(ctx context.Context, userID string) ([]model.PriceTemplate, error) {
	var templates []model.PriceTemplate
	err := s.db.WithContext(ctx).
		Where("is_global = ?", true).
		Or("user_id = ? AND is_global = ?", userID, false).
		Order("is_global DESC, category ASC, description ASC").
		Find(&templates).Error
	return templates, err
}

// SearchTemplates matches query case-insensitively against description and
// category of the templates visible to the user.
func (s *Store) SearchTemplates(ctx context.Context, userID, query string) ([]model.PriceTemplate, error) {
	all, err := s.ListTemplates(ctx, userID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	matches := make([]model.PriceTemplate, 0, maxTemplateMatches)
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Description), q) || strings.Contains(strings.ToLower(t.Category), q) {
			matches = append(matches, t)
			if len(matches) == maxTemplateMatches {
				break
			}
		}
	}
	return matches, nil
}

// AddTemplate stores a user-owned template.
func (s *Store) AddTemplate(ctx context.Context, userID string, t *model.PriceTemplate) error {
	t.ID = ""
	t.UserID = userID
	t.IsGlobal = false
	if t.Source == "" {
		t.Source = "user"
	}
	return s.db.WithContext(ctx).Create(t).Error
}

// DeleteTemplate removes one of the user's own templates. Global templates
// cannot be removed.
func (s *Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_global = ?", id, userID, false).
		Delete(&model.PriceTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedGlobalTemplates installs the reference price catalog once.
func (s *Store) SeedGlobalTemplates(ctx context.Context) (int, error) {
	seeded := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.PriceTemplate{}).Where("is_global = ?", true).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		templates := GlobalPriceTemplates()
		if err := tx.CreateInBatches(&templates, 100).Error; err != nil {
			return err
		}
		seeded = len(templates)
		return nil
	})
	return seeded, err
}

type templateSeed struct {
	branch      model.Branch
	description string
	unit        string
	price       float64
}

var globalTemplateSeeds = []templateSeed{
	{model.BranchGeneral, "Roboty ziemne, wykopy", "m³", 35},
	{model.BranchGeneral, "Fundamenty żelbetowe", "m³", 1200},
	{model.BranchGeneral, "Ściany nośne murowane (bloczki)", "m²", 280},
	{model.BranchGeneral, "Ściany działowe (g-k podwójne)", "m²", 140},
	{model.BranchGeneral, "Strop żelbetowy monolityczny", "m²", 450},
	{model.BranchGeneral, "Strop prefabrykowany (płyty HC)", "m²", 380},
	{model.BranchGeneral, "Schody żelbetowe", "m²", 900},
	{model.BranchGeneral, "Izolacja termiczna, styropian EPS 15 cm", "m²", 95},
	{model.BranchGeneral, "Izolacja termiczna, wełna mineralna 20 cm", "m²", 120},
	{model.BranchGeneral, "Tynk cementowo-wapienny wewnętrzny", "m²", 55},
	{model.BranchGeneral, "Tynk silikonowy elewacyjny", "m²", 85},
	{model.BranchGeneral, "Wylewka cementowa 5 cm", "m²", 45},
	{model.BranchGeneral, "Posadzka, gres 60x60", "m²", 160},
	{model.BranchGeneral, "Posadzka, panele podłogowe", "m²", 110},
	{model.BranchGeneral, "Malowanie ścian (2x emulsja)", "m²", 28},
	{model.BranchGeneral, "Okna PCV 3-szybowe", "m²", 850},
	{model.BranchGeneral, "Drzwi wewnętrzne z ościeżnicą", "szt.", 1200},
	{model.BranchGeneral, "Drzwi zewnętrzne aluminiowe", "szt.", 4500},
	{model.BranchGeneral, "Dach, więźba drewniana", "m²", 280},
	{model.BranchGeneral, "Dach, pokrycie blachodachówką", "m²", 180},
	{model.BranchGeneral, "Dach, papa termozgrzewalna (stropodach)", "m²", 120},
	{model.BranchGeneral, "Konstrukcja stalowa, słupy i belki", "t", 14000},
	{model.BranchGeneral, "Beton C25/30 z pompą", "m³", 480},
	{model.BranchGeneral, "Zbrojenie, stal B500SP", "t", 5500},

	{model.BranchSanitary, "Instalacja wod-kan, rurociągi PP", "mb", 120},
	{model.BranchSanitary, "Instalacja c.o., rury PEX z grzejnikami", "mb", 180},
	{model.BranchSanitary, "Grzejnik płytowy C22 (900x600)", "szt.", 650},
	{model.BranchSanitary, "Kocioł gazowy kondensacyjny 24 kW", "szt.", 8500},
	{model.BranchSanitary, "Pompa ciepła powietrze-woda 12 kW", "szt.", 38000},
	{model.BranchSanitary, "Wentylacja mechaniczna z rekuperacją", "szt.", 18000},
	{model.BranchSanitary, "Kanalizacja sanitarna PVC Ø160", "mb", 95},
	{model.BranchSanitary, "Kanalizacja deszczowa PVC Ø200", "mb", 110},
	{model.BranchSanitary, "Komplet łazienkowy (WC, umywalka, wanna)", "kpl.", 6500},
	{model.BranchSanitary, "Ogrzewanie podłogowe", "m²", 140},

	{model.BranchElectrical, "Instalacja elektryczna, punkt oświetleniowy", "pkt", 320},
	{model.BranchElectrical, "Instalacja elektryczna, punkt gniazdkowy", "pkt", 280},
	{model.BranchElectrical, "Rozdzielnia główna RG", "szt.", 3500},
	{model.BranchElectrical, "Instalacja odgromowa", "mb", 85},
	{model.BranchElectrical, "Instalacja fotowoltaiczna 10 kWp", "kpl.", 42000},
	{model.BranchElectrical, "Instalacja teletechniczna (LAN, TV)", "pkt", 250},
	{model.BranchElectrical, "System alarmowy i monitoring CCTV", "kpl.", 8000},
	{model.BranchElectrical, "Oświetlenie LED, oprawa natynkowa", "szt.", 180},

	{model.BranchSiteWorks, "Kostka brukowa, chodniki", "m²", 160},
	{model.BranchSiteWorks, "Kostka brukowa, droga dojazdowa", "m²", 200},
	{model.BranchSiteWorks, "Ogrodzenie, panele ogrodzeniowe", "mb", 350},
	{model.BranchSiteWorks, "Brama wjazdowa przesuwna", "szt.", 8000},
	{model.BranchSiteWorks, "Zieleń, trawnik z rolki", "m²", 35},
	{model.BranchSiteWorks, "Przyłącze wodociągowe", "kpl.", 6500},
	{model.BranchSiteWorks, "Przyłącze kanalizacyjne", "kpl.", 8000},
	{model.BranchSiteWorks, "Przyłącze gazowe", "kpl.", 4500},
	{model.BranchSiteWorks, "Przyłącze elektroenergetyczne", "kpl.", 5500},
}

// GlobalPriceTemplates returns the reference catalog as template rows.
func GlobalPriceTemplates() []model.PriceTemplate {
	out := make([]model.PriceTemplate, 0, len(globalTemplateSeeds))
	for _, s := range globalTemplateSeeds {
		out = append(out, model.PriceTemplate{
			IsGlobal:    true,
			Category:    strings.Trim(s.branch.Label(), "[]"),
			Description: s.description,
			Unit:        s.unit,
			UnitPrice:   s.price,
			Source:      "ref-2024",
		})
	}
	return out
}
