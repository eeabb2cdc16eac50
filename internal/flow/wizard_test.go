package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beleggingsmatch/internal/client"
	"beleggingsmatch/internal/matching"
)

type fakeMatcher struct {
	result client.MatchResult
	err    error
	calls  int
	prefs  matching.Preferences
}

func (f *fakeMatcher) Match(_ context.Context, prefs matching.Preferences) (client.MatchResult, error) {
	f.calls++
	f.prefs = prefs.Clone()
	return f.result, f.err
}

func validAnswers() []any {
	return []any{
		"doe_het_zelf",
		float64(25000),
		matching.HeelBelangrijk,
		matching.GeenVoorkeur,
		matching.Belangrijk,
		float64(3),
	}
}

func completeWizard(t *testing.T, w *Wizard) {
	t.Helper()
	for _, answer := range validAnswers() {
		w.Answer(context.Background(), answer)
	}
}

func TestWizardCompleteness(t *testing.T) {
	matcher := &fakeMatcher{result: client.MatchResult{Matches: []matching.Match{{ID: "x", MatchScore: 90}}, TotalFound: 1}}
	store := NewMemoryStore()
	w := NewWizard(matcher, store, nil)

	questions := DefaultQuestions()
	completeWizard(t, w)

	require.Equal(t, PhaseSubmitted, w.Phase())
	prefs := w.Preferences()
	assert.Len(t, prefs, len(questions), "one key per question, no duplicates")
	for _, q := range questions {
		assert.Contains(t, prefs, q.ID)
	}
	assert.Equal(t, 1, matcher.calls)

	stored, ok := store.Preferences()
	require.True(t, ok, "preferences must be written to the store on submit")
	assert.Equal(t, "doe_het_zelf", stored.String("type_dienst"))
	_, ok = store.Matches()
	assert.True(t, ok, "matches must be written to the store on submit")
}

func TestInvalidAnswerIsSilentNoOp(t *testing.T) {
	matcher := &fakeMatcher{}
	w := NewWizard(matcher, NewMemoryStore(), nil)

	w.Answer(context.Background(), "fietsen_kopen")
	assert.Equal(t, 0, w.Step(), "invalid answer must not advance")
	assert.Empty(t, w.Preferences())

	w.Answer(context.Background(), "doe_het_zelf")
	assert.Equal(t, 1, w.Step())

	// slider answer outside the domain
	w.Answer(context.Background(), float64(-5))
	assert.Equal(t, 1, w.Step())
}

func TestBackRecallsSavedAnswer(t *testing.T) {
	w := NewWizard(&fakeMatcher{}, NewMemoryStore(), nil)
	w.Answer(context.Background(), "samen_beleggen")
	require.Equal(t, 1, w.Step())

	w.Back()
	assert.Equal(t, 0, w.Step())
	value, ok := w.Value("type_dienst")
	require.True(t, ok)
	assert.Equal(t, "samen_beleggen", value)

	// answering again overwrites
	w.Answer(context.Background(), "doe_het_zelf")
	value, _ = w.Value("type_dienst")
	assert.Equal(t, "doe_het_zelf", value)
}

func TestFallbackOnInitialMatchFailure(t *testing.T) {
	matcher := &fakeMatcher{err: errors.New("connection refused")}
	store := NewMemoryStore()
	w := NewWizard(matcher, store, nil)

	completeWizard(t, w)

	require.Equal(t, PhaseSubmitted, w.Phase(), "failure path must still reach submitted")
	assert.True(t, w.UsedFallback())

	matches, total := w.Matches()
	require.Len(t, matches, 3)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Nova Invest", matches[0].Name)
	assert.Equal(t, 85, matches[0].MatchScore)
	assert.Equal(t, "GreenCap", matches[1].Name)
	assert.Equal(t, 70, matches[1].MatchScore)
	assert.Equal(t, "Fortex", matches[2].Name)
	assert.Equal(t, 60, matches[2].MatchScore)

	stored, ok := store.Matches()
	require.True(t, ok)
	assert.Equal(t, "Nova Invest", stored[0].Name)
}

func TestCancelledSubmissionFallsBack(t *testing.T) {
	matcher := &fakeMatcher{err: context.Canceled}
	w := NewWizard(matcher, NewMemoryStore(), nil)
	completeWizard(t, w)

	assert.Equal(t, PhaseSubmitted, w.Phase())
	assert.True(t, w.UsedFallback())
}

func TestDuplicateSubmitIgnored(t *testing.T) {
	matcher := &fakeMatcher{result: client.MatchResult{Matches: []matching.Match{{ID: "x"}}, TotalFound: 1}}
	w := NewWizard(matcher, NewMemoryStore(), nil)
	completeWizard(t, w)
	require.Equal(t, 1, matcher.calls)

	// extra answers after submission must not resubmit
	w.Answer(context.Background(), "doe_het_zelf")
	assert.Equal(t, 1, matcher.calls)
	assert.Equal(t, PhaseSubmitted, w.Phase())
}

func TestRestartClearsEverything(t *testing.T) {
	matcher := &fakeMatcher{result: client.MatchResult{Matches: []matching.Match{{ID: "x"}}, TotalFound: 1}}
	store := NewMemoryStore()
	w := NewWizard(matcher, store, nil)
	completeWizard(t, w)
	require.Equal(t, PhaseSubmitted, w.Phase())

	w.Restart()
	assert.Equal(t, PhaseAnswering, w.Phase())
	assert.Equal(t, 0, w.Step())
	assert.Empty(t, w.Preferences())
	_, ok := store.Preferences()
	assert.False(t, ok, "restart must clear the store")
}
