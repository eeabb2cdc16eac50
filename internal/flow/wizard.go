package flow

import (
	"context"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/client"
	"beleggingsmatch/internal/matching"
)

// Phase is the wizard's lifecycle state. Answering carries the step index.
type Phase int

const (
	PhaseAnswering Phase = iota
	PhaseSubmitting
	PhaseSubmitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseAnswering:
		return "answering"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Matcher is the slice of the match client the wizard needs.
type Matcher interface {
	Match(ctx context.Context, prefs matching.Preferences) (client.MatchResult, error)
}

// Wizard drives the user through the fixed question sequence and produces a
// complete preference record. All methods run on one goroutine; the flow is
// strictly sequential.
type Wizard struct {
	questions    []QuestionSpec
	store        Store
	matcher      Matcher
	prefs        matching.Preferences
	step         int
	phase        Phase
	matches      []matching.Match
	totalFound   int
	usedFallback bool
	log          *logrus.Entry
}

// NewWizard starts a fresh session: the store is cleared and answering
// begins at the first question.
func NewWizard(matcher Matcher, store Store, questions []QuestionSpec) *Wizard {
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}
	store.Clear()
	return &Wizard{
		questions: questions,
		store:     store,
		matcher:   matcher,
		prefs:     make(matching.Preferences, len(questions)),
		log:       logrus.WithField("component", "wizard"),
	}
}

// Phase returns the current lifecycle state.
func (w *Wizard) Phase() Phase {
	return w.phase
}

// Step returns the active question index.
func (w *Wizard) Step() int {
	return w.step
}

// Current returns the active question, if the wizard is still answering.
func (w *Wizard) Current() (QuestionSpec, bool) {
	if w.phase != PhaseAnswering || w.step >= len(w.questions) {
		return QuestionSpec{}, false
	}
	return w.questions[w.step], true
}

// Value returns the stored answer for a question, for redisplay after Back.
func (w *Wizard) Value(questionID string) (any, bool) {
	value, ok := w.prefs[questionID]
	return value, ok
}

// Preferences returns a copy of the record accumulated so far.
func (w *Wizard) Preferences() matching.Preferences {
	return w.prefs.Clone()
}

// Matches returns the result list once the wizard has submitted.
func (w *Wizard) Matches() ([]matching.Match, int) {
	return w.matches, w.totalFound
}

// UsedFallback reports whether the shown matches are the canned fallback.
func (w *Wizard) UsedFallback() bool {
	return w.usedFallback
}

// Back returns to the previous question. The saved answer stays in the
// record for redisplay.
func (w *Wizard) Back() {
	if w.phase == PhaseAnswering && w.step > 0 {
		w.step--
	}
}

// Answer records the answer for the current question and advances. An
// invalid answer is ignored with a warning; there is no error surface for
// it. Answering the final question submits the record through the matcher;
// submission failure substitutes the fallback list, so the flow always
// reaches Submitted. Cancel a slow submission by cancelling ctx.
func (w *Wizard) Answer(ctx context.Context, value any) {
	if w.phase != PhaseAnswering {
		w.log.WithField("phase", w.phase.String()).Warn("answer ignored outside answering phase")
		return
	}
	question := w.questions[w.step]
	if !question.Valid(value) {
		w.log.WithFields(logrus.Fields{
			"question": question.ID,
			"value":    value,
		}).Warn("invalid answer ignored")
		return
	}

	w.prefs[question.ID] = value
	if w.step < len(w.questions)-1 {
		w.step++
		return
	}
	w.submit(ctx)
}

func (w *Wizard) submit(ctx context.Context) {
	w.phase = PhaseSubmitting
	w.log.WithField("questions", len(w.questions)).Info("submitting preferences")

	result, err := w.matcher.Match(ctx, w.prefs)
	if err != nil {
		// the user is never stranded on the initial match: show the canned
		// list and continue
		w.log.WithError(err).Warn("initial match failed, using fallback list")
		w.phase = PhaseFailed
		result = client.FallbackMatches()
		w.usedFallback = true
	}

	w.matches = result.Matches
	w.totalFound = result.TotalFound
	w.phase = PhaseSubmitted
	w.store.SavePreferences(w.prefs)
	w.store.SaveMatches(w.matches)
}

// Restart discards the session and returns to the first question, clearing
// the store. Used when a recalculation answers with restart_wizard.
func (w *Wizard) Restart() {
	w.store.Clear()
	w.prefs = make(matching.Preferences, len(w.questions))
	w.step = 0
	w.phase = PhaseAnswering
	w.matches = nil
	w.totalFound = 0
	w.usedFallback = false
	w.log.Info("wizard restarted")
}
