package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type seedProvider struct {
	DienstID    string             `json:"dienst_id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	Minimum     float64            `json:"minimum"`
	Stars       int                `json:"stars"`
	TCO         float64            `json:"tco"`
	Scores      map[string]float64 `json:"scores"`
	Strengths   []string           `json:"strengths"`
	Weaknesses  []string           `json:"weaknesses"`
	Description string             `json:"description"`
}

type seedTier struct {
	DienstID string  `json:"dienst_id"`
	Bedrag   float64 `json:"bedrag"`
	TCO      float64 `json:"tco"`
}

type seedFile struct {
	Providers []seedProvider `json:"providers"`
	CostTiers []seedTier     `json:"cost_tiers"`
}

// SeedIfEmpty loads the provider catalog from the JSON seed file when the
// providers table has no rows yet.
func (d *Database) SeedIfEmpty(path string) error {
	count, err := d.CountProviders()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return d.SeedFromFile(path)
}

// SeedFromFile replaces the provider catalog with the seed file contents.
func (d *Database) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read provider seed: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse provider seed: %w", err)
	}
	if len(seed.Providers) == 0 {
		return fmt.Errorf("provider seed %s contains no providers", path)
	}

	providers := make([]Provider, 0, len(seed.Providers))
	for _, sp := range seed.Providers {
		p := Provider{
			DienstID:    sp.DienstID,
			Name:        sp.Name,
			Type:        sp.Type,
			Status:      sp.Status,
			Minimum:     sp.Minimum,
			Stars:       sp.Stars,
			TCO:         sp.TCO,
			Description: sp.Description,
		}
		p.SetScores(sp.Scores)
		p.SetStrengths(sp.Strengths)
		p.SetWeaknesses(sp.Weaknesses)
		providers = append(providers, p)
	}
	tiers := make([]CostTier, 0, len(seed.CostTiers))
	for _, st := range seed.CostTiers {
		tiers = append(tiers, CostTier{DienstID: st.DienstID, Bedrag: st.Bedrag, TCO: st.TCO})
	}

	if err := d.ReplaceProviders(providers, tiers); err != nil {
		return fmt.Errorf("replace providers: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"providers":  len(providers),
		"cost_tiers": len(tiers),
		"seed":       path,
	}).Info("provider catalog seeded")
	return nil
}
