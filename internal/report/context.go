package report

import (
	"fmt"
	"time"

	"beleggingsmatch/internal/matching"
)

// Priority is one criterion the user marked as important, with how well the
// top match serves it.
type Priority struct {
	Criterion string
	Level     string
	Score     float64
	Band      string
}

// Context is everything the report template needs.
type Context struct {
	Preferences matching.Preferences
	Matches     []matching.Match
	Priorities  []Priority
	CloseRace   bool
	Patterns    []string
	Narrative   string
	Notes       []string
	GeneratedAt time.Time
}

// score bands for how well a priority is served
func band(score float64) string {
	switch {
	case score >= 8:
		return "uitstekend"
	case score >= 6:
		return "goed"
	case score >= 4:
		return "gemiddeld"
	default:
		return "matig"
	}
}

// BuildContext derives priorities, close-race detection and result patterns
// from the preferences and matches.
func BuildContext(prefs matching.Preferences, matches []matching.Match) Context {
	ctx := Context{
		Preferences: prefs,
		Matches:     matches,
		GeneratedAt: time.Now(),
	}

	var topScores map[string]float64
	if len(matches) > 0 {
		topScores = matches[0].Details.Scores
	}
	for _, crit := range matching.Criteria {
		level := prefs.String(crit + "_belangrijkheid")
		switch level {
		case matching.HeelBelangrijk, matching.ZeerBelangrijk, matching.Belangrijk:
			score := topScores[crit]
			ctx.Priorities = append(ctx.Priorities, Priority{
				Criterion: crit,
				Level:     level,
				Score:     score,
				Band:      band(score),
			})
		}
	}

	if len(matches) >= 2 {
		gap := matches[0].MatchScore - matches[1].MatchScore
		ctx.CloseRace = gap <= 5
		if ctx.CloseRace {
			ctx.Patterns = append(ctx.Patterns,
				fmt.Sprintf("%s en %s scoren vrijwel gelijk; uw persoonlijke voorkeur mag de doorslag geven.",
					matches[0].Name, matches[1].Name))
		}
	}
	if len(matches) > 0 {
		top := matches[0]
		if top.Details.BoostApplied {
			ctx.Patterns = append(ctx.Patterns,
				fmt.Sprintf("%s staat mede bovenaan door uw uitgesproken voorkeur voor deze aanbieder.", top.Name))
		}
		if top.Details.TCO > 0 && top.Details.TCO < 0.015 {
			ctx.Patterns = append(ctx.Patterns,
				fmt.Sprintf("De jaarlijkse kosten van %s (%.2f%%) liggen onder het marktgemiddelde.", top.Name, top.Details.TCO*100))
		}
		if top.MatchScore < 75 {
			ctx.Patterns = append(ctx.Patterns,
				"Geen van de diensten past uitstekend; overweeg uw criteria te versoepelen.")
		}
	}
	return ctx
}
