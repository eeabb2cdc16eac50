package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"beleggingsmatch/internal/matching"
)

const analysisSystemPrompt = "Je bent een analyst voor een beleggingsvergelijker. " +
	"Antwoord uitsluitend met een strikt JSON-object met de sleutels preference_updates, " +
	"soft_preferences, clarifications_needed, reasoning, confidence en safety_concern. " +
	"preference_updates bevat alleen bekende voorkeuren (type_dienst, bedrag, min_rating of " +
	"*_belangrijkheid met waarde heel_belangrijk, zeer_belangrijk, belangrijk, geen_voorkeur " +
	"of niet_belangrijk). soft_preferences is een lijst van strings als boost_banks:<naam>, " +
	"exclude_banks:<naam> of include_banks:<naam>. Vraag via clarifications_needed door " +
	"wanneer de tekst meerduidig is: elke clarification heeft question en options met label, " +
	"action (boost_specific, adjust_criteria of cancel) en optioneel target. Vul " +
	"safety_concern alleen wanneer de tekst op financieel risicovol gedrag wijst, zoals " +
	"beleggen met geleend geld. confidence is een decimaal tussen 0 en 1. " +
	"Geef niets buiten het JSON-object."

const insightsSystemPrompt = "Je bent een beleggingsadviseur die matchresultaten duidt. " +
	"Antwoord uitsluitend met een strikt JSON-object met de sleutels key_insight, trade_offs " +
	"en priority_analysis, elk een of twee Nederlandse zinnen. Wees concreet over scores en " +
	"kosten, noem geen JSON of techniek, en geef niets buiten het object."

const reportSystemPrompt = "Je schrijft het persoonlijke adviesgedeelte van een " +
	"beleggingsrapport in het Nederlands. Schrijf vier korte alinea's zonder kopjes: het " +
	"profiel van de gebruiker, waarom de topmatch past, welke afwegingen tussen de matches " +
	"spelen, en een concrete volgende stap. Geen opsommingstekens, geen JSON."

func buildAnalysisPrompt(text string, prefs matching.Preferences) string {
	builder := &strings.Builder{}
	builder.WriteString("Huidige voorkeuren:\n")
	writePreferences(builder, prefs)
	fmt.Fprintf(builder, "\nTekst van de gebruiker:\n%s\n", text)
	builder.WriteString("\nLeid hieruit de gewenste aanpassingen af. Raak voorkeuren die de tekst niet noemt niet aan.\n")
	return builder.String()
}

func buildInsightsPrompt(input InsightInput) string {
	builder := &strings.Builder{}
	builder.WriteString("Voorkeuren:\n")
	writePreferences(builder, input.Preferences)
	builder.WriteString("\nMatches:\n")
	writeMatches(builder, input.Matches)
	return builder.String()
}

func buildReportPrompt(input ReportInput) string {
	builder := &strings.Builder{}
	builder.WriteString("Voorkeuren:\n")
	writePreferences(builder, input.Preferences)
	builder.WriteString("\nMatches:\n")
	writeMatches(builder, input.Matches)
	for _, note := range input.Notes {
		if strings.TrimSpace(note) != "" {
			fmt.Fprintf(builder, "Context: %s\n", strings.TrimSpace(note))
		}
	}
	return builder.String()
}

func writePreferences(builder *strings.Builder, prefs matching.Preferences) {
	payload, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		builder.WriteString("(geen)\n")
		return
	}
	builder.Write(payload)
	builder.WriteString("\n")
}

func writeMatches(builder *strings.Builder, matches []matching.Match) {
	if len(matches) == 0 {
		builder.WriteString("(geen)\n")
		return
	}
	for i, m := range matches {
		fmt.Fprintf(builder, "%d. %s — score %d, %d sterren, kosten %.2f%% per jaar\n",
			i+1, m.Name, m.MatchScore, m.Rating, m.Details.TCO*100)
		if len(m.Strengths) > 0 {
			fmt.Fprintf(builder, "   Sterk: %s\n", strings.Join(m.Strengths, "; "))
		}
		if len(m.Weaknesses) > 0 {
			fmt.Fprintf(builder, "   Zwak: %s\n", strings.Join(m.Weaknesses, "; "))
		}
	}
}
