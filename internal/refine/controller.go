package refine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/client"
	"beleggingsmatch/internal/matching"
)

// ErrUnanswered is returned when a recalculation is requested while
// refinement questions are still open. Partial answers are never sent.
var ErrUnanswered = errors.New("refinement questions still unanswered")

// MatchService is the slice of the match client the controller needs.
type MatchService interface {
	Recalculate(ctx context.Context, prefs matching.Preferences, impacts []map[string]any) (client.MatchResult, error)
	ProcessText(ctx context.Context, text string, prefs matching.Preferences) (client.TextOutcome, error)
	ProcessClarification(ctx context.Context, clarificationID string, option ai.ClarificationOption, prefs matching.Preferences) (client.ClarificationResult, error)
}

// Outcome is the result of applying a refinement round.
type Outcome struct {
	Matches     []matching.Match
	TotalFound  int
	Preferences matching.Preferences
	// RestartWizard is set when the user chose to redo the questionnaire;
	// the caller resets the wizard and clears stored preferences.
	RestartWizard bool
}

// Controller runs iterative refinement rounds over the current match set.
type Controller struct {
	service   MatchService
	prefs     matching.Preferences
	questions []Question
	answers   map[string]string
	log       *logrus.Entry
}

func NewController(service MatchService, prefs matching.Preferences) *Controller {
	return &Controller{
		service: service,
		prefs:   prefs.Clone(),
		answers: make(map[string]string),
		log:     logrus.WithField("component", "refine"),
	}
}

// Preferences returns the current preference record.
func (c *Controller) Preferences() matching.Preferences {
	return c.prefs.Clone()
}

// Begin detects the scenario for the given matches and generates the
// question set for this round, clearing previous answers.
func (c *Controller) Begin(matches []matching.Match) Scenario {
	scenario := DetectScenario(matches, c.prefs)
	c.questions = GenerateQuestions(scenario, matches, c.prefs)
	c.answers = make(map[string]string)
	c.log.WithFields(logrus.Fields{
		"scenario":  scenario,
		"questions": len(c.questions),
	}).Info("refinement round started")
	return scenario
}

// Questions returns this round's questions.
func (c *Controller) Questions() []Question {
	return c.questions
}

// Answer records the chosen option for a question.
func (c *Controller) Answer(questionID, optionID string) error {
	for _, q := range c.questions {
		if q.ID != questionID {
			continue
		}
		for _, opt := range q.Options {
			if opt.ID == optionID {
				c.answers[questionID] = optionID
				return nil
			}
		}
		return fmt.Errorf("question %s has no option %s", questionID, optionID)
	}
	return fmt.Errorf("unknown question %s", questionID)
}

// Pending returns the questions that still lack an answer.
func (c *Controller) Pending() []Question {
	var pending []Question
	for _, q := range c.questions {
		if _, ok := c.answers[q.ID]; !ok {
			pending = append(pending, q)
		}
	}
	return pending
}

// Apply submits one impact delta per answered question in a single
// recalculation. It refuses to send partial rounds. Service failures are
// returned to the caller untouched; the previous matches stay on screen.
func (c *Controller) Apply(ctx context.Context) (Outcome, error) {
	if len(c.questions) == 0 {
		return Outcome{}, errors.New("no refinement round active")
	}
	if len(c.Pending()) > 0 {
		return Outcome{}, ErrUnanswered
	}

	impacts := make([]map[string]any, 0, len(c.questions))
	for _, q := range c.questions {
		optionID := c.answers[q.ID]
		for _, opt := range q.Options {
			if opt.ID == optionID {
				impacts = append(impacts, Flatten(opt.Impacts...))
			}
		}
	}

	result, err := c.service.Recalculate(ctx, c.prefs, impacts)
	if err != nil {
		return Outcome{}, fmt.Errorf("recalculate matches: %w", err)
	}
	if result.Action == DirectiveRestartWizard {
		c.questions = nil
		c.answers = make(map[string]string)
		return Outcome{RestartWizard: true}, nil
	}

	if len(result.ModifiedPreferences) > 0 {
		c.prefs = result.ModifiedPreferences.Clone()
	} else {
		// server did not echo the record; mirror the adjustments locally
		merged := make(map[string]any)
		for _, delta := range impacts {
			for key, value := range delta {
				merged[key] = value
			}
		}
		updated, _, _ := matching.ApplyAdjustments(c.prefs, merged)
		c.prefs = updated
	}
	c.questions = nil
	c.answers = make(map[string]string)

	return Outcome{
		Matches:     result.Matches,
		TotalFound:  result.TotalFound,
		Preferences: c.prefs.Clone(),
	}, nil
}
