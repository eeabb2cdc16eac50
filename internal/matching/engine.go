package matching

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Cost gates applied when the kosten preference is strict. TCO is a yearly
// fraction of the invested amount.
const (
	tcoStrictLimit  = 0.015
	tcoRelaxedLimit = 0.022
)

const topMatches = 3

// SoftPreferences steer matching without changing the weighted score model.
// Entries hold provider ids (already resolved from free-text names).
type SoftPreferences struct {
	Boost   []string
	Exclude []string
	Include []string
}

// Engine ranks providers against a preference record.
type Engine struct {
	log *logrus.Entry
}

func NewEngine() *Engine {
	return &Engine{log: logrus.WithField("component", "matching")}
}

// Match filters and scores the providers, returning the top matches sorted by
// score descending. Equal inputs always produce identical output; ties are
// broken on dienst id.
func (e *Engine) Match(prefs Preferences, providers []Provider, soft SoftPreferences) Result {
	relaxed := prefs.Bool("lower_thresholds")
	wantType := prefs.String("type_dienst")
	bedrag := prefs.Float("bedrag")
	minRating := int(prefs.Float("min_rating"))
	preferredID := prefs.String("preferred_match")

	weights := e.weights(prefs)

	var scored []Match
	for _, p := range providers {
		if !e.eligible(p, wantType, bedrag, minRating, relaxed, soft) {
			continue
		}
		if e.costGated(p, prefs.String("kosten_belangrijkheid"), relaxed) {
			continue
		}
		scored = append(scored, e.score(p, weights, soft, preferredID))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		return scored[i].ID < scored[j].ID
	})

	total := len(scored)
	if len(scored) > topMatches {
		scored = scored[:topMatches]
	}

	e.log.WithFields(logrus.Fields{
		"type_dienst": wantType,
		"total_found": total,
		"returned":    len(scored),
		"relaxed":     relaxed,
	}).Info("matching complete")

	return Result{Matches: scored, TotalFound: total}
}

func (e *Engine) eligible(p Provider, wantType string, bedrag float64, minRating int, relaxed bool, soft SoftPreferences) bool {
	if !strings.EqualFold(p.Status, "active") {
		return false
	}
	if wantType != "" && !strings.EqualFold(p.Type, wantType) {
		return false
	}
	if !relaxed && bedrag > 0 && p.Minimum > bedrag {
		return false
	}
	if minRating > 0 && p.Stars < minRating {
		return false
	}
	if containsFold(soft.Exclude, p.DienstID) {
		return false
	}
	if len(soft.Include) > 0 && !containsFold(soft.Include, p.DienstID) {
		return false
	}
	return true
}

func (e *Engine) costGated(p Provider, kostenLevel string, relaxed bool) bool {
	if relaxed || p.TCO <= 0 {
		return false
	}
	switch kostenLevel {
	case ZeerBelangrijk, HeelBelangrijk:
		return p.TCO >= tcoStrictLimit
	case Belangrijk:
		return p.TCO >= tcoRelaxedLimit
	}
	return false
}

// weights derives normalized criterion weights from the *_belangrijkheid
// preferences.
func (e *Engine) weights(prefs Preferences) map[string]float64 {
	raw := make(map[string]float64, len(Criteria))
	var sum float64
	for _, crit := range Criteria {
		w := WeightFor(prefs.String(crit + "_belangrijkheid"))
		raw[crit] = w
		sum += w
	}
	if sum <= 0 {
		return raw
	}
	for crit, w := range raw {
		raw[crit] = w / sum
	}
	return raw
}

func (e *Engine) score(p Provider, weights map[string]float64, soft SoftPreferences, preferredID string) Match {
	var total float64
	scores := make(map[string]float64, len(Criteria))
	for _, crit := range Criteria {
		s := p.Scores[crit]
		scores[crit] = s
		total += weights[crit] * s
	}

	// weighted 0-10 total scaled to percent, then bonuses on top
	score := total * 10
	switch {
	case p.TCO > 0 && p.TCO < tcoStrictLimit:
		score += 10
	case p.TCO > 0 && p.TCO < tcoRelaxedLimit:
		score += 5
	}
	if p.Stars >= 4 {
		score += 5
	}

	boosted := false
	if containsFold(soft.Boost, p.DienstID) || (preferredID != "" && strings.EqualFold(preferredID, p.DienstID)) {
		score += 15
		boosted = true
	}

	return Match{
		ID:          p.DienstID,
		Name:        p.Name,
		MatchScore:  clampScore(score),
		Rating:      p.Stars,
		Strengths:   p.Strengths,
		Weaknesses:  p.Weaknesses,
		Description: p.Description,
		Details: Details{
			Scores:       scores,
			Weights:      weights,
			TotalScore:   total,
			TCO:          p.TCO,
			Minimum:      p.Minimum,
			BoostApplied: boosted,
		},
	}
}

func containsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
