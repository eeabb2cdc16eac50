package api

import (
	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/store"
)

// ScenarioRequest asks which refinement scenario the current matches fall
// into. Older frontends post the record as user_preferences.
type ScenarioRequest struct {
	Matches         []matching.Match     `json:"matches"`
	Preferences     matching.Preferences `json:"preferences"`
	UserPreferences matching.Preferences `json:"user_preferences"`
}

// RecalculateRequest reruns matching after refinement answers. Impacts is an
// ordered list of deltas, one per answered question.
type RecalculateRequest struct {
	OriginalPreferences matching.Preferences `json:"original_preferences"`
	Impacts             []map[string]any     `json:"impacts"`
}

// TextRequest carries a free-text refinement.
type TextRequest struct {
	Text        string               `json:"text"`
	Preferences matching.Preferences `json:"preferences"`
}

// ClarificationRequest resolves one pending clarification choice.
type ClarificationRequest struct {
	ClarificationID string                 `json:"clarification_id"`
	SelectedOption  ai.ClarificationOption `json:"selected_option"`
	Preferences     matching.Preferences   `json:"preferences"`
}

// TextAnalysisDTO echoes the analysis alongside free-text match results.
type TextAnalysisDTO struct {
	Clarifications  []ai.Clarification `json:"clarifications_needed,omitempty"`
	Reasoning       string             `json:"reasoning"`
	SoftPreferences []string           `json:"soft_preferences,omitempty"`
	Confidence      *float64           `json:"confidence,omitempty"`
	SafetyConcern   string             `json:"safety_concern,omitempty"`
}

// LeadRequest is a captured contact request.
type LeadRequest struct {
	Email              string               `json:"email"`
	Name               string               `json:"name"`
	Phone              string               `json:"phone"`
	InterestInGuidance bool                 `json:"interest_in_guidance"`
	Preferences        matching.Preferences `json:"preferences"`
	Matches            []matching.Match     `json:"matches"`
}

// ReportRequest renders the full report for the supplied matches. The
// claude_analysis field is optional prior reasoning woven into the narrative.
type ReportRequest struct {
	UserData       matching.Preferences `json:"user_data"`
	Matches        []matching.Match     `json:"matches"`
	ClaudeAnalysis string               `json:"claude_analysis"`
}

// ReportJobRequest starts an asynchronous report run. Matching is rerun
// server-side from the preferences.
type ReportJobRequest struct {
	Preferences matching.Preferences `json:"preferences"`
}

// ProviderDTO is the catalog view of one investment service.
type ProviderDTO struct {
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

func providerDTO(p store.Provider) ProviderDTO {
	return ProviderDTO{
		DienstID:    p.DienstID,
		Name:        p.Name,
		Type:        p.Type,
		Status:      p.Status,
		Minimum:     p.Minimum,
		Stars:       p.Stars,
		TCO:         p.TCO,
		Scores:      p.Scores(),
		Strengths:   p.Strengths(),
		Weaknesses:  p.Weaknesses(),
		Description: p.Description,
	}
}

func analysisDTO(analysis ai.TextAnalysis) *TextAnalysisDTO {
	return &TextAnalysisDTO{
		Clarifications:  analysis.Clarifications,
		Reasoning:       analysis.Reasoning,
		SoftPreferences: analysis.SoftPreferences,
		Confidence:      analysis.Confidence,
		SafetyConcern:   analysis.SafetyConcern,
	}
}

// emptyMatches keeps match lists rendering as [] instead of null.
func emptyMatches(matches []matching.Match) []matching.Match {
	if matches == nil {
		return []matching.Match{}
	}
	return matches
}
