package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/client"
	"beleggingsmatch/internal/matching"
)

type fakeService struct {
	recalcResult client.MatchResult
	recalcErr    error
	recalcCalls  int
	impacts      []map[string]any

	textOutcome client.TextOutcome
	textErr     error

	clarifyResult client.ClarificationResult
	clarifyErr    error
	clarifyCalls  int
}

func (f *fakeService) Recalculate(_ context.Context, _ matching.Preferences, impacts []map[string]any) (client.MatchResult, error) {
	f.recalcCalls++
	f.impacts = impacts
	return f.recalcResult, f.recalcErr
}

func (f *fakeService) ProcessText(_ context.Context, _ string, _ matching.Preferences) (client.TextOutcome, error) {
	return f.textOutcome, f.textErr
}

func (f *fakeService) ProcessClarification(_ context.Context, _ string, _ ai.ClarificationOption, _ matching.Preferences) (client.ClarificationResult, error) {
	f.clarifyCalls++
	return f.clarifyResult, f.clarifyErr
}

func (f *fakeService) mergedImpacts() map[string]any {
	merged := make(map[string]any)
	for _, delta := range f.impacts {
		for key, value := range delta {
			merged[key] = value
		}
	}
	return merged
}

func matchesWithScores(scores ...int) []matching.Match {
	matches := make([]matching.Match, 0, len(scores))
	for i, score := range scores {
		matches = append(matches, matching.Match{
			ID:         string(rune('a' + i)),
			Name:       "Dienst " + string(rune('A'+i)),
			MatchScore: score,
		})
	}
	return matches
}

func TestDetectScenario(t *testing.T) {
	tests := []struct {
		name     string
		matches  []matching.Match
		prefs    matching.Preferences
		expected Scenario
	}{
		{"close race on small gap", matchesWithScores(80, 78), nil, ScenarioCloseRace},
		{"close race on exact gap", matchesWithScores(90, 85), nil, ScenarioCloseRace},
		{"close race wins over low scores", matchesWithScores(60, 55), nil, ScenarioCloseRace},
		{"low scores", matchesWithScores(72, 60), nil, ScenarioLowScores},
		{"refinement when healthy", matchesWithScores(90, 70), nil, ScenarioRefinement},
		{"empty set counts as low", nil, nil, ScenarioLowScores},
		{"single strong match", matchesWithScores(92), nil, ScenarioRefinement},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetectScenario(tc.matches, tc.prefs))
		})
	}

	t.Run("priority miss needs details and high importance", func(t *testing.T) {
		matches := matchesWithScores(90, 70)
		matches[0].Details.Scores = map[string]float64{"begeleiding": 4, "kosten": 9}
		prefs := matching.Preferences{"begeleiding_belangrijkheid": matching.HeelBelangrijk}
		assert.Equal(t, ScenarioPriorityMiss, DetectScenario(matches, prefs))

		// without details the same preferences fall back to refinement
		assert.Equal(t, ScenarioRefinement, DetectScenario(matchesWithScores(90, 70), prefs))
	})
}

func TestDescribeScenario(t *testing.T) {
	t.Run("close race carries the score gap", func(t *testing.T) {
		report := DescribeScenario(matchesWithScores(85, 83), nil)
		assert.Equal(t, ScenarioCloseRace, report.Type)
		assert.Equal(t, "high", report.Urgency)
		require.NotNil(t, report.ScoreDiff)
		assert.Equal(t, 2, *report.ScoreDiff)
		assert.Contains(t, report.Summary, "85%")
	})

	t.Run("low scores carry the top score", func(t *testing.T) {
		report := DescribeScenario(matchesWithScores(64, 50), nil)
		assert.Equal(t, ScenarioLowScores, report.Type)
		require.NotNil(t, report.TopScore)
		assert.Equal(t, 64, *report.TopScore)
	})

	t.Run("empty set reports no matches", func(t *testing.T) {
		report := DescribeScenario(nil, nil)
		assert.Equal(t, ScenarioLowScores, report.Type)
		assert.Nil(t, report.TopScore)
		assert.NotEmpty(t, report.Summary)
	})

	t.Run("priority miss names the criterion", func(t *testing.T) {
		matches := matchesWithScores(90, 70)
		matches[0].Details.Scores = map[string]float64{"kosten": 4}
		prefs := matching.Preferences{"kosten_belangrijkheid": matching.HeelBelangrijk}
		report := DescribeScenario(matches, prefs)
		assert.Equal(t, ScenarioPriorityMiss, report.Type)
		assert.Equal(t, "kosten", report.MissedCriterion)
	})

	t.Run("refinement is low urgency", func(t *testing.T) {
		report := DescribeScenario(matchesWithScores(90, 70), nil)
		assert.Equal(t, ScenarioRefinement, report.Type)
		assert.Equal(t, "low", report.Urgency)
	})
}

func TestGatingBlocksPartialRounds(t *testing.T) {
	service := &fakeService{}
	ctrl := NewController(service, matching.Preferences{})
	scenario := ctrl.Begin(matchesWithScores(88, 85))
	require.Equal(t, ScenarioCloseRace, scenario)
	require.NotEmpty(t, ctrl.Questions())

	_, err := ctrl.Apply(context.Background())
	require.ErrorIs(t, err, ErrUnanswered)
	assert.Zero(t, service.recalcCalls, "partial rounds must never reach the service")

	// answer all but the last question: still gated
	questions := ctrl.Questions()
	for _, q := range questions[:len(questions)-1] {
		require.NoError(t, ctrl.Answer(q.ID, q.Options[0].ID))
	}
	if len(questions) > 1 {
		_, err = ctrl.Apply(context.Background())
		require.ErrorIs(t, err, ErrUnanswered)
		assert.Zero(t, service.recalcCalls)
	}
}

func TestApplySendsOneDeltaPerQuestion(t *testing.T) {
	service := &fakeService{recalcResult: client.MatchResult{Matches: matchesWithScores(91, 80), TotalFound: 2}}
	prefs := matching.Preferences{"kosten_belangrijkheid": matching.Belangrijk}
	ctrl := NewController(service, prefs)
	require.Equal(t, ScenarioLowScores, ctrl.Begin(matchesWithScores(72, 60)))

	require.NoError(t, ctrl.Answer("criteria_flexibility", "broaden"))
	outcome, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, service.recalcCalls)
	require.Len(t, service.impacts, 1)
	assert.Equal(t, true, service.impacts[0][DirectiveLowerThresholds])
	assert.Len(t, outcome.Matches, 2)
	assert.True(t, outcome.Preferences.Bool("lower_thresholds"), "local preferences follow the adjustment")
}

func TestApplyWeightAdjustment(t *testing.T) {
	service := &fakeService{recalcResult: client.MatchResult{Matches: matchesWithScores(90), TotalFound: 1}}
	matches := matchesWithScores(90, 70)
	matches[0].Details.Scores = map[string]float64{"begeleiding": 4}
	prefs := matching.Preferences{"begeleiding_belangrijkheid": matching.ZeerBelangrijk}
	ctrl := NewController(service, prefs)

	require.Equal(t, ScenarioPriorityMiss, ctrl.Begin(matches))
	require.NoError(t, ctrl.Answer("priority_tradeoff", "weigh_heavier"))
	outcome, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, service.mergedImpacts()["weight_begeleiding"], 0.001)
	assert.Equal(t, matching.HeelBelangrijk, outcome.Preferences.String("begeleiding_belangrijkheid"))
}

func TestApplyPrefersServerModifiedPreferences(t *testing.T) {
	service := &fakeService{recalcResult: client.MatchResult{
		Matches:             matchesWithScores(90),
		TotalFound:          1,
		ModifiedPreferences: matching.Preferences{"kosten_belangrijkheid": matching.HeelBelangrijk},
	}}
	ctrl := NewController(service, matching.Preferences{"kosten_belangrijkheid": matching.Belangrijk})
	ctrl.Begin(matchesWithScores(90, 70))
	require.NoError(t, ctrl.Answer("strength_validation", "neutral"))

	outcome, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, matching.HeelBelangrijk, outcome.Preferences.String("kosten_belangrijkheid"))
}

func TestApplyRestartWizard(t *testing.T) {
	service := &fakeService{recalcResult: client.MatchResult{Action: DirectiveRestartWizard}}
	ctrl := NewController(service, matching.Preferences{})
	require.Equal(t, ScenarioLowScores, ctrl.Begin(matchesWithScores(72, 50)))

	require.NoError(t, ctrl.Answer("criteria_flexibility", "restart"))
	outcome, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.RestartWizard)
	assert.Empty(t, outcome.Matches)
}

func TestApplySurfacesFailure(t *testing.T) {
	service := &fakeService{recalcErr: errors.New("service onbereikbaar")}
	ctrl := NewController(service, matching.Preferences{"kosten_belangrijkheid": matching.Belangrijk})
	ctrl.Begin(matchesWithScores(72, 60))
	require.NoError(t, ctrl.Answer("criteria_flexibility", "keep"))

	_, err := ctrl.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onbereikbaar")
	// the failure must not silently mutate preferences
	assert.Equal(t, matching.Belangrijk, ctrl.Preferences().String("kosten_belangrijkheid"))
}

func TestProcessTextClarificationRound(t *testing.T) {
	service := &fakeService{textOutcome: client.TextOutcome{
		Success: true,
		TextAnalysis: &client.TextAnalysisEcho{
			Reasoning: "duurzaam kan op meerdere criteria slaan",
			Clarifications: []ai.Clarification{{
				Question: "Wat bedoelt u met duurzaam?",
				Options: []ai.ClarificationOption{
					{Label: "Duurzaamheid zwaarder wegen", Action: ai.ActionAdjustCriteria, Target: "duurzaamheid"},
					{Label: "Laat maar", Action: ai.ActionCancel},
				},
			}},
		},
	}}
	ctrl := NewController(service, matching.Preferences{})

	result, err := ctrl.ProcessText(context.Background(), "ik wil graag duurzaam beleggen")
	require.NoError(t, err)
	assert.False(t, result.Applied, "clarification round must not apply changes")
	require.Len(t, result.Clarifications, 1)

	service.clarifyResult = client.ClarificationResult{
		Success:    true,
		Matches:    matchesWithScores(89, 77),
		TotalFound: 2,
	}
	applied, err := ctrl.ResolveClarification(context.Background(), "q1", result.Clarifications[0].Options[0])
	require.NoError(t, err)
	assert.True(t, applied.Applied)
	assert.Equal(t, 1, service.clarifyCalls)
	assert.Equal(t, matching.HeelBelangrijk, ctrl.Preferences().String("duurzaamheid_belangrijkheid"))
}

func TestResolveClarificationCancelIsLocal(t *testing.T) {
	service := &fakeService{}
	ctrl := NewController(service, matching.Preferences{"type_dienst": "doe_het_zelf"})

	result, err := ctrl.ResolveClarification(context.Background(), "q1", ai.ClarificationOption{Action: ai.ActionCancel})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Zero(t, service.clarifyCalls, "cancel must not hit the service")
}

func TestProcessTextFailureChangesNothing(t *testing.T) {
	service := &fakeService{textErr: errors.New("analyse mislukt")}
	prefs := matching.Preferences{"type_dienst": "doe_het_zelf"}
	ctrl := NewController(service, prefs)

	_, err := ctrl.ProcessText(context.Background(), "goedkoop beleggen")
	require.Error(t, err)
	assert.Equal(t, "doe_het_zelf", ctrl.Preferences().String("type_dienst"))
}

func TestOrderingPreservedThroughRefinement(t *testing.T) {
	service := &fakeService{recalcResult: client.MatchResult{Matches: matchesWithScores(95, 82, 71), TotalFound: 3}}
	ctrl := NewController(service, matching.Preferences{})
	ctrl.Begin(matchesWithScores(90, 70))
	require.NoError(t, ctrl.Answer("strength_validation", "more_like_this"))

	outcome, err := ctrl.Apply(context.Background())
	require.NoError(t, err)
	for i := 1; i < len(outcome.Matches); i++ {
		assert.LessOrEqual(t, outcome.Matches[i].MatchScore, outcome.Matches[i-1].MatchScore)
	}
	assert.Equal(t, true, service.mergedImpacts()[DirectiveBoostSimilar])
}
