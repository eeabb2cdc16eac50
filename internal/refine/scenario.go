package refine

import (
	"fmt"

	"beleggingsmatch/internal/matching"
)

// Scenario classifies the current match set and drives which refinement
// questions are asked.
type Scenario string

const (
	// ScenarioCloseRace: the top two scores are within closeRaceGap points.
	ScenarioCloseRace Scenario = "close_race"
	// ScenarioLowScores: even the best match scores below the threshold.
	ScenarioLowScores Scenario = "low_scores"
	// ScenarioPriorityMiss: a criterion the user marked as highly important
	// scores poorly at the top match. Detectable only when score details are
	// present.
	ScenarioPriorityMiss Scenario = "priority_miss"
	// ScenarioRefinement: nothing stands out; offer generic fine-tuning.
	ScenarioRefinement Scenario = "refinement"
)

const (
	closeRaceGap      = 5
	lowScoreThreshold = 75
	priorityMissScore = 6
)

// DetectScenario picks the scenario for the current matches. Precedence:
// close_race, then low_scores, then priority_miss, then refinement.
func DetectScenario(matches []matching.Match, prefs matching.Preferences) Scenario {
	if len(matches) == 0 {
		return ScenarioLowScores
	}
	if len(matches) >= 2 && matches[0].MatchScore-matches[1].MatchScore <= closeRaceGap {
		return ScenarioCloseRace
	}
	if matches[0].MatchScore < lowScoreThreshold {
		return ScenarioLowScores
	}
	if crit := missedPriority(matches[0], prefs); crit != "" {
		return ScenarioPriorityMiss
	}
	return ScenarioRefinement
}

// ScenarioReport is the wire view of a detected scenario, carrying the
// numbers that triggered it.
type ScenarioReport struct {
	Type            Scenario `json:"type"`
	Urgency         string   `json:"urgency"`
	Summary         string   `json:"scenario"`
	ScoreDiff       *int     `json:"score_diff,omitempty"`
	TopScore        *int     `json:"top_score,omitempty"`
	MissedCriterion string   `json:"missed_criterion,omitempty"`
}

// DescribeScenario runs DetectScenario and annotates the outcome for the
// scenario endpoint, so server and client always agree on the classification.
func DescribeScenario(matches []matching.Match, prefs matching.Preferences) ScenarioReport {
	report := ScenarioReport{Type: DetectScenario(matches, prefs)}
	switch report.Type {
	case ScenarioCloseRace:
		diff := matches[0].MatchScore - matches[1].MatchScore
		report.Urgency = "high"
		report.ScoreDiff = &diff
		report.Summary = fmt.Sprintf("Close race: %d%% vs %d%%", matches[0].MatchScore, matches[1].MatchScore)
	case ScenarioLowScores:
		report.Urgency = "medium"
		if len(matches) == 0 {
			report.Summary = "Geen matches gevonden"
			break
		}
		top := matches[0].MatchScore
		report.TopScore = &top
		report.Summary = fmt.Sprintf("Lage scores: beste match scoort %d%%", top)
	case ScenarioPriorityMiss:
		crit := missedPriority(matches[0], prefs)
		report.Urgency = "high"
		report.MissedCriterion = crit
		report.Summary = fmt.Sprintf("Prioriteit gemist: %s scoort %.1f", crit, matches[0].Details.Scores[crit])
	default:
		report.Urgency = "low"
		report.Summary = "Goede matches - verfijning mogelijk"
	}
	return report
}

// missedPriority returns the first highly important criterion that scores
// below priorityMissScore at the given match, or empty when none does.
func missedPriority(top matching.Match, prefs matching.Preferences) string {
	if len(top.Details.Scores) == 0 {
		return ""
	}
	for _, crit := range matching.Criteria {
		switch prefs.String(crit + "_belangrijkheid") {
		case matching.HeelBelangrijk, matching.ZeerBelangrijk:
			if score, ok := top.Details.Scores[crit]; ok && score < priorityMissScore {
				return crit
			}
		}
	}
	return ""
}
