package refine

import (
	"fmt"
	"math"

	"beleggingsmatch/internal/matching"
)

// Impact is one effect an answered refinement option has on the next
// matching run. Impacts flatten onto the wire as a plain adjustment map.
type Impact interface {
	apply(adjustments map[string]any)
}

// WeightAdjustment multiplies the weight of one criterion.
type WeightAdjustment struct {
	Criterion  string
	Multiplier float64
}

func (w WeightAdjustment) apply(adjustments map[string]any) {
	adjustments["weight_"+w.Criterion] = w.Multiplier
}

// MatchPreference boosts one specific provider.
type MatchPreference struct {
	ID string
}

func (m MatchPreference) apply(adjustments map[string]any) {
	adjustments["preferred_match"] = m.ID
}

// Directive kinds steering the flow rather than the weights.
const (
	DirectiveRestartWizard     = "restart_wizard"
	DirectiveLowerThresholds   = "lower_thresholds"
	DirectiveExpandScope       = "expand_scope"
	DirectiveMaintainStandards = "maintain_standards"
	DirectiveBoostSimilar      = "boost_similar_attributes"
	DirectiveReduceSimilar     = "reduce_similar_attributes"
	DirectiveNeutral           = "neutral"
)

// ControlDirective requests a flow-level change.
type ControlDirective struct {
	Kind string
}

func (d ControlDirective) apply(adjustments map[string]any) {
	adjustments[d.Kind] = true
}

// Flatten merges impacts into the wire-format adjustment map.
func Flatten(impacts ...Impact) map[string]any {
	adjustments := make(map[string]any, len(impacts))
	for _, impact := range impacts {
		if impact != nil {
			impact.apply(adjustments)
		}
	}
	return adjustments
}

// Option is one selectable answer to a refinement question.
type Option struct {
	ID      string
	Label   string
	Impacts []Impact
}

// Question is a scenario-specific refinement question.
type Question struct {
	ID       string
	Scenario Scenario
	Text     string
	Options  []Option
}

// tco differences below this are not worth a cost question
const tcoQuestionGap = 0.002

// GenerateQuestions builds the question set for a scenario. The set is what
// the gating in the controller applies to: every question must be answered
// before a recalculation is sent.
func GenerateQuestions(scenario Scenario, matches []matching.Match, prefs matching.Preferences) []Question {
	switch scenario {
	case ScenarioCloseRace:
		return closeRaceQuestions(matches)
	case ScenarioLowScores:
		return lowScoreQuestions()
	case ScenarioPriorityMiss:
		return priorityMissQuestions(matches, prefs)
	default:
		return refinementQuestions(matches)
	}
}

func closeRaceQuestions(matches []matching.Match) []Question {
	var questions []Question
	if len(matches) < 2 {
		return refinementQuestions(matches)
	}
	first, second := matches[0], matches[1]

	if math.Abs(first.Details.TCO-second.Details.TCO) > tcoQuestionGap {
		questions = append(questions, Question{
			ID:       "cost_vs_quality",
			Scenario: ScenarioCloseRace,
			Text:     "Uw topmatches verschillen vooral in kosten. Wat geeft de doorslag?",
			Options: []Option{
				{ID: "lowest_cost", Label: "De laagste kosten", Impacts: []Impact{
					WeightAdjustment{Criterion: "kosten", Multiplier: 1.5},
				}},
				{ID: "best_service", Label: "De beste begeleiding, ook als dat meer kost", Impacts: []Impact{
					WeightAdjustment{Criterion: "begeleiding", Multiplier: 1.5},
					WeightAdjustment{Criterion: "kosten", Multiplier: 0.8},
				}},
				{ID: "no_preference", Label: "Geen voorkeur", Impacts: []Impact{
					ControlDirective{Kind: DirectiveNeutral},
				}},
			},
		})
	}

	questions = append(questions, Question{
		ID:       "preferred_match",
		Scenario: ScenarioCloseRace,
		Text:     fmt.Sprintf("%s en %s liggen dicht bij elkaar. Welke spreekt u het meest aan?", first.Name, second.Name),
		Options: []Option{
			{ID: "prefer_first", Label: first.Name, Impacts: []Impact{MatchPreference{ID: first.ID}}},
			{ID: "prefer_second", Label: second.Name, Impacts: []Impact{MatchPreference{ID: second.ID}}},
			{ID: "no_preference", Label: "Geen voorkeur", Impacts: []Impact{ControlDirective{Kind: DirectiveNeutral}}},
		},
	})
	return questions
}

func lowScoreQuestions() []Question {
	return []Question{{
		ID:       "criteria_flexibility",
		Scenario: ScenarioLowScores,
		Text:     "Geen enkele dienst past echt goed bij uw eisen. Wat wilt u doen?",
		Options: []Option{
			{ID: "broaden", Label: "Versoepel mijn eisen en toon meer diensten", Impacts: []Impact{
				ControlDirective{Kind: DirectiveLowerThresholds},
			}},
			{ID: "keep", Label: "Houd vast aan mijn eisen", Impacts: []Impact{
				ControlDirective{Kind: DirectiveMaintainStandards},
			}},
			{ID: "restart", Label: "Begin opnieuw met de vragenlijst", Impacts: []Impact{
				ControlDirective{Kind: DirectiveRestartWizard},
			}},
		},
	}}
}

func priorityMissQuestions(matches []matching.Match, prefs matching.Preferences) []Question {
	crit := ""
	if len(matches) > 0 {
		crit = missedPriority(matches[0], prefs)
	}
	if crit == "" {
		return refinementQuestions(matches)
	}
	return []Question{{
		ID:       "priority_tradeoff",
		Scenario: ScenarioPriorityMiss,
		Text:     fmt.Sprintf("Uw beste match scoort matig op %s, terwijl u dat belangrijk vindt. Hoe zwaar weegt dat?", crit),
		Options: []Option{
			{ID: "weigh_heavier", Label: "Laat dit zwaarder meewegen", Impacts: []Impact{
				WeightAdjustment{Criterion: crit, Multiplier: 1.5},
			}},
			{ID: "accept", Label: "Ik accepteer dit compromis", Impacts: []Impact{
				ControlDirective{Kind: DirectiveNeutral},
			}},
		},
	}}
}

func refinementQuestions(matches []matching.Match) []Question {
	text := "Wilt u de resultaten nog verder aanscherpen?"
	if len(matches) > 0 && len(matches[0].Strengths) > 0 {
		text = fmt.Sprintf("Uw beste match blinkt uit in: %s. Hoe belangrijk is dat profiel voor u?", matches[0].Strengths[0])
	}
	return []Question{{
		ID:       "strength_validation",
		Scenario: ScenarioRefinement,
		Text:     text,
		Options: []Option{
			{ID: "more_like_this", Label: "Heel belangrijk, meer zoals deze", Impacts: []Impact{
				ControlDirective{Kind: DirectiveBoostSimilar},
			}},
			{ID: "neutral", Label: "Maakt me niet zoveel uit", Impacts: []Impact{
				ControlDirective{Kind: DirectiveNeutral},
			}},
			{ID: "less_like_this", Label: "Liever juist een ander profiel", Impacts: []Impact{
				ControlDirective{Kind: DirectiveReduceSimilar},
			}},
		},
	}}
}
