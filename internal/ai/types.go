package ai

import (
	"strings"

	"beleggingsmatch/internal/matching"
)

// TextAnalysis is the structured result of analyzing a free-text refinement.
type TextAnalysis struct {
	PreferenceUpdates map[string]any  `json:"preference_updates"`
	SoftPreferences   []string        `json:"soft_preferences"`
	Clarifications    []Clarification `json:"clarifications_needed"`
	Reasoning         string          `json:"reasoning"`
	Confidence        *float64        `json:"confidence,omitempty"`
	SafetyConcern     string          `json:"safety_concern,omitempty"`
}

// NeedsClarification reports whether the analysis requires user input before
// preferences can be applied.
func (a TextAnalysis) NeedsClarification() bool {
	return len(a.Clarifications) > 0
}

// Clarification is a follow-up question the user must answer before the
// analysis can be applied.
type Clarification struct {
	Question string                `json:"question"`
	Options  []ClarificationOption `json:"options"`
}

// ClarificationOption is one selectable answer to a clarification.
type ClarificationOption struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// Clarification actions.
const (
	ActionBoostSpecific  = "boost_specific"
	ActionAdjustCriteria = "adjust_criteria"
	ActionCancel         = "cancel"
)

// Insights summarizes a match set for the results screen.
type Insights struct {
	KeyInsight       string `json:"key_insight"`
	TradeOffs        string `json:"trade_offs"`
	PriorityAnalysis string `json:"priority_analysis"`
}

// InsightInput feeds insight generation.
type InsightInput struct {
	Preferences matching.Preferences
	Matches     []matching.Match
}

// ReportInput feeds report narrative generation. Notes carry catalog
// enrichment lines the builder wants woven into the narrative.
type ReportInput struct {
	Preferences matching.Preferences
	Matches     []matching.Match
	Notes       []string
}

// preference keys the analysis may emit, mapped to their canonical form
var prefKeyAliases = map[string]string{
	"kosten":            "kosten_belangrijkheid",
	"duurzaamheid":      "duurzaamheid_belangrijkheid",
	"begeleiding":       "begeleiding_belangrijkheid",
	"functionaliteiten": "functionaliteiten_belangrijkheid",
	"rendement":         "rendement_belangrijkheid",
}

// sanitizeAnalysis canonicalizes keys, validates importance values, clamps
// confidence and drops malformed entries in place.
func sanitizeAnalysis(analysis *TextAnalysis) {
	if analysis == nil {
		return
	}
	updates := make(map[string]any, len(analysis.PreferenceUpdates))
	for key, value := range analysis.PreferenceUpdates {
		key = strings.TrimSpace(strings.ToLower(key))
		if canonical, ok := prefKeyAliases[key]; ok {
			key = canonical
		}
		if strings.HasSuffix(key, "_belangrijkheid") {
			level, ok := value.(string)
			if !ok || !matching.ValidImportance(strings.TrimSpace(level)) {
				continue
			}
			updates[key] = strings.TrimSpace(level)
			continue
		}
		switch key {
		case "type_dienst", "min_rating", "bedrag":
			updates[key] = value
		}
	}
	analysis.PreferenceUpdates = updates

	var soft []string
	for _, pref := range analysis.SoftPreferences {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		parts := strings.SplitN(pref, ":", 2)
		switch parts[0] {
		case "boost_banks", "exclude_banks", "include_banks":
			if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
				soft = append(soft, pref)
			}
		}
	}
	analysis.SoftPreferences = soft

	var clarifications []Clarification
	for _, cl := range analysis.Clarifications {
		cl.Question = strings.TrimSpace(cl.Question)
		if cl.Question == "" {
			continue
		}
		var options []ClarificationOption
		for _, opt := range cl.Options {
			opt.Action = strings.TrimSpace(strings.ToLower(opt.Action))
			switch opt.Action {
			case ActionBoostSpecific, ActionAdjustCriteria, ActionCancel:
				options = append(options, opt)
			}
		}
		if len(options) == 0 {
			continue
		}
		cl.Options = options
		clarifications = append(clarifications, cl)
	}
	analysis.Clarifications = clarifications

	analysis.Reasoning = strings.TrimSpace(analysis.Reasoning)
	analysis.SafetyConcern = strings.TrimSpace(analysis.SafetyConcern)
	if analysis.Confidence != nil {
		val := clampFloat(*analysis.Confidence, 0, 1)
		analysis.Confidence = &val
	}
}

// SoftPreferenceTargets splits the soft preference list into boost, exclude
// and include name references.
func SoftPreferenceTargets(prefs []string) (boost, exclude, include []string) {
	for _, pref := range prefs {
		parts := strings.SplitN(pref, ":", 2)
		if len(parts) != 2 {
			continue
		}
		target := strings.TrimSpace(parts[1])
		switch parts[0] {
		case "boost_banks":
			boost = append(boost, target)
		case "exclude_banks":
			exclude = append(exclude, target)
		case "include_banks":
			include = append(include, target)
		}
	}
	return boost, exclude, include
}
