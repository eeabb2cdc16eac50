package matching

import (
	"math"
	"strconv"
	"strings"
)

// Criteria scored for every provider. Preference keys are the criterion name
// with a _belangrijkheid suffix.
var Criteria = []string{"kosten", "duurzaamheid", "begeleiding", "functionaliteiten", "rendement"}

// Importance levels accepted for the *_belangrijkheid preferences.
const (
	HeelBelangrijk = "heel_belangrijk"
	ZeerBelangrijk = "zeer_belangrijk"
	Belangrijk     = "belangrijk"
	GeenVoorkeur   = "geen_voorkeur"
	NietBelangrijk = "niet_belangrijk"
)

// Provider is a scoreable investment service.
type Provider struct {
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

// Details carries the scoring breakdown returned alongside every match.
type Details struct {
	Scores       map[string]float64 `json:"scores"`
	Weights      map[string]float64 `json:"gewichten"`
	TotalScore   float64            `json:"total_score"`
	TCO          float64            `json:"tco"`
	Minimum      float64            `json:"minimum"`
	BoostApplied bool               `json:"boost_applied,omitempty"`
}

// Match is a ranked provider result.
type Match struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MatchScore  int      `json:"matchScore"`
	Rating      int      `json:"rating"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Description string   `json:"description,omitempty"`
	Details     Details  `json:"details"`
}

// Result is the outcome of one matching run.
type Result struct {
	Matches    []Match `json:"matches"`
	TotalFound int     `json:"total_found"`
}

// Preferences is the flat answer record produced by the wizard and mutated by
// refinement. Values are strings, numbers or booleans.
type Preferences map[string]any

// String returns the preference as a trimmed string.
func (p Preferences) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Float returns the preference as a float64, or 0 when absent or unparseable.
func (p Preferences) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

// Bool reports whether the preference is truthy.
func (p Preferences) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	case float64:
		return v != 0
	}
	return false
}

// Strings returns the preference as a string slice.
func (p Preferences) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	}
	return nil
}

// Clone returns a shallow copy so adjustments never mutate the caller's map.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ValidImportance reports whether value is a known importance level.
func ValidImportance(value string) bool {
	switch value {
	case HeelBelangrijk, ZeerBelangrijk, Belangrijk, GeenVoorkeur, NietBelangrijk:
		return true
	}
	return false
}

func clampScore(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
