package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/matching"
)

// TextResult is the outcome of a free-text refinement. When Clarifications
// is non-empty nothing has been applied yet; the caller renders the chooser
// and resolves it through ResolveClarification.
type TextResult struct {
	Applied        bool
	Matches        []matching.Match
	TotalFound     int
	Preferences    matching.Preferences
	Clarifications []ai.Clarification
	Reasoning      string
	SafetyConcern  string
}

// ProcessText sends free text for analysis. Either the analysis applies
// directly and new matches come back, or a clarification round opens.
// Failures surface to the caller; nothing changes locally.
func (c *Controller) ProcessText(ctx context.Context, text string) (TextResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TextResult{}, errors.New("empty refinement text")
	}

	outcome, err := c.service.ProcessText(ctx, text, c.prefs)
	if err != nil {
		return TextResult{}, fmt.Errorf("process text: %w", err)
	}

	result := TextResult{}
	if outcome.TextAnalysis != nil {
		result.Reasoning = outcome.TextAnalysis.Reasoning
		result.SafetyConcern = outcome.TextAnalysis.SafetyConcern
	}
	if outcome.NeedsClarification() {
		result.Clarifications = outcome.TextAnalysis.Clarifications
		return result, nil
	}
	if outcome.NewMatches == nil {
		return TextResult{}, errors.New("text processing returned neither matches nor clarifications")
	}

	if outcome.PreferencesChanged && len(outcome.UpdatedPreferences) > 0 {
		c.prefs = outcome.UpdatedPreferences.Clone()
	}
	result.Applied = true
	result.Matches = outcome.NewMatches
	result.TotalFound = outcome.TotalFound
	result.Preferences = c.prefs.Clone()
	return result, nil
}

// ResolveClarification answers one pending clarification and applies the
// resulting matches. A cancel choice leaves the current state untouched.
func (c *Controller) ResolveClarification(ctx context.Context, clarificationID string, option ai.ClarificationOption) (TextResult, error) {
	if option.Action == ai.ActionCancel {
		return TextResult{Preferences: c.prefs.Clone()}, nil
	}

	clarified, err := c.service.ProcessClarification(ctx, clarificationID, option, c.prefs)
	if err != nil {
		return TextResult{}, fmt.Errorf("process clarification: %w", err)
	}

	if option.Action == ai.ActionAdjustCriteria && option.Target != "" {
		key := option.Target + "_belangrijkheid"
		updated := c.prefs.Clone()
		updated[key] = matching.HeelBelangrijk
		c.prefs = updated
	}

	return TextResult{
		Applied:     true,
		Matches:     clarified.Matches,
		TotalFound:  clarified.TotalFound,
		Preferences: c.prefs.Clone(),
	}, nil
}
