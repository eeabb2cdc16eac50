package store

import (
	"encoding/json"
	"time"

	"beleggingsmatch/internal/matching"
)

// Provider is a persisted investment service offering.
type Provider struct {
	ID             uint   `gorm:"primaryKey"`
	DienstID       string `gorm:"size:64;uniqueIndex"`
	Name           string `gorm:"size:128"`
	Type           string `gorm:"size:32;index"`
	Status         string `gorm:"size:16;index"`
	Minimum        float64
	Stars          int
	TCO            float64
	ScoresJSON     string `gorm:"type:text"`
	StrengthsJSON  string `gorm:"type:text"`
	WeaknessesJSON string `gorm:"type:text"`
	Description    string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetScores persists the criterion score map as JSON.
func (p *Provider) SetScores(scores map[string]float64) {
	if scores == nil {
		p.ScoresJSON = "{}"
		return
	}
	payload, _ := json.Marshal(scores)
	p.ScoresJSON = string(payload)
}

// Scores parses the stored criterion scores.
func (p *Provider) Scores() map[string]float64 {
	scores := make(map[string]float64)
	if p.ScoresJSON != "" {
		_ = json.Unmarshal([]byte(p.ScoresJSON), &scores)
	}
	return scores
}

// SetStrengths persists the strengths list as JSON.
func (p *Provider) SetStrengths(items []string) {
	p.StrengthsJSON = marshalList(items)
}

// Strengths parses the stored strengths list.
func (p *Provider) Strengths() []string {
	return unmarshalList(p.StrengthsJSON)
}

// SetWeaknesses persists the weaknesses list as JSON.
func (p *Provider) SetWeaknesses(items []string) {
	p.WeaknessesJSON = marshalList(items)
}

// Weaknesses parses the stored weaknesses list.
func (p *Provider) Weaknesses() []string {
	return unmarshalList(p.WeaknessesJSON)
}

// ToDomain converts the row into the matching engine's provider type. The TCO
// may be overridden from the cost tiers for a concrete amount.
func (p *Provider) ToDomain(tco float64) matching.Provider {
	if tco <= 0 {
		tco = p.TCO
	}
	return matching.Provider{
		DienstID:    p.DienstID,
		Name:        p.Name,
		Type:        p.Type,
		Status:      p.Status,
		Minimum:     p.Minimum,
		Stars:       p.Stars,
		TCO:         tco,
		Scores:      p.Scores(),
		Strengths:   p.Strengths(),
		Weaknesses:  p.Weaknesses(),
		Description: p.Description,
	}
}

// CostTier holds the total cost of ownership for a provider at a given
// invested amount. Tiers refine the provider's headline TCO.
type CostTier struct {
	ID        uint    `gorm:"primaryKey"`
	DienstID  string  `gorm:"size:64;index"`
	Bedrag    float64 `gorm:"index"`
	TCO       float64
	CreatedAt time.Time
}

// Lead is a captured contact request.
type Lead struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:128"`
	Email           string `gorm:"size:256;index"`
	Phone           string `gorm:"size:64"`
	WantsGuidance   bool
	PreferencesJSON string `gorm:"type:text"`
	MatchesJSON     string `gorm:"type:text"`
	CreatedAt       time.Time
}

// SetPreferences persists the preference record alongside the lead.
func (l *Lead) SetPreferences(prefs matching.Preferences) {
	if prefs == nil {
		l.PreferencesJSON = "{}"
		return
	}
	payload, _ := json.Marshal(prefs)
	l.PreferencesJSON = string(payload)
}

// SetMatches persists the matches shown when the lead converted.
func (l *Lead) SetMatches(matches []matching.Match) {
	if matches == nil {
		l.MatchesJSON = "[]"
		return
	}
	payload, _ := json.Marshal(matches)
	l.MatchesJSON = string(payload)
}

// Report job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ReportJob tracks an asynchronous report generation run.
type ReportJob struct {
	ID              uint   `gorm:"primaryKey"`
	JobID           string `gorm:"size:36;uniqueIndex"`
	Status          string `gorm:"size:16;index"`
	Message         string `gorm:"size:512"`
	ContentHTML     string `gorm:"type:text"`
	PreferencesJSON string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinishedAt      *time.Time
}

func marshalList(items []string) string {
	if items == nil {
		return "[]"
	}
	payload, _ := json.Marshal(items)
	return string(payload)
}

func unmarshalList(raw string) []string {
	var items []string
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	return items
}
