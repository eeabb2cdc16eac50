package ai

import (
	"context"
	"fmt"
	"strings"

	"beleggingsmatch/internal/matching"
)

// Heuristic is the rule-based analyzer used when the API is unavailable. It
// recognizes common Dutch phrasings and produces conservative results.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Enabled() bool {
	return h != nil
}

type keywordRule struct {
	terms []string
	key   string
	value string
}

var analysisRules = []keywordRule{
	{[]string{"goedkoop", "lage kosten", "zo min mogelijk kosten", "kosten belangrijk"}, "kosten_belangrijkheid", matching.HeelBelangrijk},
	{[]string{"kosten maken niet uit", "kosten niet belangrijk", "prijs maakt niet uit"}, "kosten_belangrijkheid", matching.NietBelangrijk},
	{[]string{"duurzaam", "groen beleggen", "esg", "milieu"}, "duurzaamheid_belangrijkheid", matching.HeelBelangrijk},
	{[]string{"begeleiding", "persoonlijk advies", "adviseur", "hulp bij"}, "begeleiding_belangrijkheid", matching.ZeerBelangrijk},
	{[]string{"rendement", "zoveel mogelijk winst", "hoog rendement"}, "rendement_belangrijkheid", matching.ZeerBelangrijk},
	{[]string{"goede app", "handige tools", "platform"}, "functionaliteiten_belangrijkheid", matching.Belangrijk},
}

var typeRules = []keywordRule{
	{[]string{"zelf beleggen", "zelf doen", "zelf kiezen"}, "type_dienst", "doe_het_zelf"},
	{[]string{"laten beleggen", "uit handen", "vermogensbeheer", "samen beleggen"}, "type_dienst", "samen_beleggen"},
	{[]string{"pensioen"}, "type_dienst", "pensioensparen"},
}

var safetyTerms = []string{
	"geleend geld", "lenen om te beleggen", "alles inzetten", "al mijn spaargeld",
	"hypotheek verhogen", "krediet",
}

// AnalyzeText applies keyword rules. When nothing matches it asks one generic
// clarification instead of failing, so the refinement flow stays usable
// without the API.
func (h *Heuristic) AnalyzeText(_ context.Context, text string, _ matching.Preferences) (TextAnalysis, error) {
	lowered := strings.ToLower(text)
	updates := make(map[string]any)

	// negation rules are listed after their positive counterparts and win
	for _, rule := range analysisRules {
		for _, term := range rule.terms {
			if strings.Contains(lowered, term) {
				updates[rule.key] = rule.value
				break
			}
		}
	}
	for _, rule := range typeRules {
		for _, term := range rule.terms {
			if strings.Contains(lowered, term) {
				updates[rule.key] = rule.value
				break
			}
		}
	}

	var safety string
	for _, term := range safetyTerms {
		if strings.Contains(lowered, term) {
			safety = "De tekst wijst op beleggen met geleend of onmisbaar geld. Beleg alleen geld dat u kunt missen."
			break
		}
	}

	confidence := 0.4
	analysis := TextAnalysis{
		PreferenceUpdates: updates,
		Reasoning:         "Afgeleid met trefwoordregels omdat de tekstanalyse-service niet beschikbaar was.",
		Confidence:        &confidence,
		SafetyConcern:     safety,
	}
	if len(updates) == 0 && safety == "" {
		analysis.Clarifications = []Clarification{{
			Question: "We konden uw wens niet automatisch vertalen. Wat is voor u het belangrijkst?",
			Options: []ClarificationOption{
				{Label: "Lage kosten", Action: ActionAdjustCriteria, Target: "kosten"},
				{Label: "Persoonlijke begeleiding", Action: ActionAdjustCriteria, Target: "begeleiding"},
				{Label: "Duurzaamheid", Action: ActionAdjustCriteria, Target: "duurzaamheid"},
				{Label: "Laat maar", Action: ActionCancel},
			},
		}}
	}
	return analysis, nil
}

// Insights builds the fallback insight texts from the match set itself.
func (h *Heuristic) Insights(_ context.Context, input InsightInput) (Insights, error) {
	if len(input.Matches) == 0 {
		return Insights{
			KeyInsight:       "Er zijn nog geen matches om te duiden; pas uw voorkeuren aan voor een nieuw resultaat.",
			TradeOffs:        "Zonder matches zijn er geen afwegingen te maken.",
			PriorityAnalysis: "Vul de vragenlijst aan zodat we uw prioriteiten kunnen wegen.",
		}, nil
	}

	top := input.Matches[0]
	insights := Insights{
		KeyInsight: fmt.Sprintf("%s sluit met een score van %d%% het best aan op uw voorkeuren.", top.Name, top.MatchScore),
	}

	if len(input.Matches) > 1 {
		second := input.Matches[1]
		gap := top.MatchScore - second.MatchScore
		if gap <= 5 {
			insights.TradeOffs = fmt.Sprintf("%s en %s liggen dicht bij elkaar; het verschil zit vooral in kosten (%.2f%% tegenover %.2f%%).",
				top.Name, second.Name, top.Details.TCO*100, second.Details.TCO*100)
		} else {
			insights.TradeOffs = fmt.Sprintf("%s staat %d punten voor op %s, vooral dankzij de criteria die u zwaar laat wegen.",
				top.Name, gap, second.Name)
		}
	} else {
		insights.TradeOffs = "Er is maar één passende dienst gevonden; verbreden van uw criteria levert meer vergelijking op."
	}

	if priorities := topPriorities(input.Preferences); len(priorities) > 0 {
		insights.PriorityAnalysis = fmt.Sprintf("U legt het meeste gewicht op %s; de volgorde hierboven volgt die nadruk.",
			strings.Join(priorities, " en "))
	} else {
		insights.PriorityAnalysis = "U heeft geen uitgesproken prioriteiten opgegeven; de diensten zijn gelijkmatig gewogen."
	}
	return insights, nil
}

// Report writes the template narrative used when the API is unavailable.
func (h *Heuristic) Report(_ context.Context, input ReportInput) (string, error) {
	builder := &strings.Builder{}

	profile := "een belegger"
	switch input.Preferences.String("type_dienst") {
	case "doe_het_zelf":
		profile = "een zelfstandige belegger die graag de touwtjes in handen houdt"
	case "samen_beleggen":
		profile = "een belegger die het beheer liever uitbesteedt"
	case "pensioensparen":
		profile = "een spaarder die gericht vermogen opbouwt voor het pensioen"
	}
	fmt.Fprintf(builder, "Uit uw antwoorden komt het beeld naar voren van %s.", profile)
	if priorities := topPriorities(input.Preferences); len(priorities) > 0 {
		fmt.Fprintf(builder, " Daarbij wegen %s voor u het zwaarst.", strings.Join(priorities, " en "))
	}
	builder.WriteString("\n\n")

	if len(input.Matches) > 0 {
		top := input.Matches[0]
		fmt.Fprintf(builder, "%s komt met een matchscore van %d%% als beste uit de vergelijking.", top.Name, top.MatchScore)
		if len(top.Strengths) > 0 {
			fmt.Fprintf(builder, " Sterke punten: %s.", strings.Join(top.Strengths, ", "))
		}
		builder.WriteString("\n\n")
		if len(input.Matches) > 1 {
			fmt.Fprintf(builder, "Nummer twee, %s, blijft een redelijk alternatief wanneer u andere accenten legt.", input.Matches[1].Name)
			builder.WriteString("\n\n")
		}
	}

	builder.WriteString("Vergelijk de genoemde diensten op de punten die u belangrijk vindt en vraag waar nodig een kennismakingsgesprek aan voordat u instapt.")
	return builder.String(), nil
}

func topPriorities(prefs matching.Preferences) []string {
	var priorities []string
	for _, crit := range matching.Criteria {
		switch prefs.String(crit + "_belangrijkheid") {
		case matching.HeelBelangrijk, matching.ZeerBelangrijk:
			priorities = append(priorities, crit)
		}
	}
	if len(priorities) > 3 {
		priorities = priorities[:3]
	}
	return priorities
}
