package client

import "beleggingsmatch/internal/matching"

// FallbackMatches is shown when the initial wizard submission cannot reach
// the matching service. Refinement never substitutes this list; its failures
// are surfaced instead.
func FallbackMatches() MatchResult {
	matches := []matching.Match{
		{
			ID:         "nova_invest",
			Name:       "Nova Invest",
			MatchScore: 85,
			Rating:     4,
			Strengths:  []string{"Breed aanbod", "Scherpe tarieven"},
			Weaknesses: []string{"Beperkte persoonlijke begeleiding"},
		},
		{
			ID:         "greencap",
			Name:       "GreenCap",
			MatchScore: 70,
			Rating:     4,
			Strengths:  []string{"Duurzame portefeuilles"},
			Weaknesses: []string{"Kosten boven gemiddelde"},
		},
		{
			ID:         "fortex",
			Name:       "Fortex",
			MatchScore: 60,
			Rating:     3,
			Strengths:  []string{"Eenvoudige instap"},
			Weaknesses: []string{"Beperkte analysetools"},
		},
	}
	return MatchResult{Matches: matches, TotalFound: len(matches)}
}
