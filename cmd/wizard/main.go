package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/client"
	"beleggingsmatch/internal/flow"
	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/refine"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("load .env file")
	}

	defaultServer := strings.TrimSpace(os.Getenv("BELEGGINGSMATCH_SERVER"))
	if defaultServer == "" {
		defaultServer = "http://localhost:3000"
	}

	var (
		serverURL  = flag.String("server", defaultServer, "Base URL of the matching backend")
		reportPath = flag.String("report", "beleggingsrapport.html", "Path to write the generated report")
	)
	flag.Parse()

	logrus.SetLevel(logrus.WarnLevel)

	app := &app{
		client:     client.New(client.Config{BaseURL: *serverURL}),
		store:      flow.NewMemoryStore(),
		reader:     bufio.NewScanner(os.Stdin),
		reportPath: *reportPath,
	}
	if err := app.run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fout:", err)
		os.Exit(1)
	}
}

type app struct {
	client     *client.Client
	store      *flow.MemoryStore
	reader     *bufio.Scanner
	reportPath string

	matches    []matching.Match
	totalFound int
	prefs      matching.Preferences
}

func (a *app) run(ctx context.Context) error {
	fmt.Println("BeleggingsMatch — vind de beleggingsdienst die bij u past")
	fmt.Println()

	if err := a.runWizard(ctx); err != nil {
		return err
	}
	a.showMatches()
	a.showInsights(ctx)

	for {
		fmt.Println()
		fmt.Println("[1] verfijn met vragen  [2] vrije tekst  [3] rapport  [4] contact  [5] klaar")
		switch a.readLine("keuze") {
		case "1":
			if err := a.refineRound(ctx); err != nil {
				fmt.Println("verfijnen mislukt:", err)
			}
		case "2":
			if err := a.freeText(ctx); err != nil {
				fmt.Println("tekstanalyse mislukt:", err)
			}
		case "3":
			if err := a.fetchReport(ctx); err != nil {
				fmt.Println("rapport mislukt:", err)
			}
		case "4":
			if err := a.captureLead(ctx); err != nil {
				fmt.Println("versturen mislukt:", err)
			}
		case "5", "q", "":
			fmt.Println("Tot ziens.")
			return nil
		}
	}
}

func (a *app) runWizard(ctx context.Context) error {
	wizard := flow.NewWizard(a.client, a.store, flow.DefaultQuestions())

	for wizard.Phase() == flow.PhaseAnswering {
		q, ok := wizard.Current()
		if !ok {
			break
		}
		answer, back := a.askQuestion(q)
		if back {
			wizard.Back()
			continue
		}
		wizard.Answer(ctx, answer)
	}

	if wizard.UsedFallback() {
		fmt.Println()
		fmt.Println("De matchingservice was niet bereikbaar; dit zijn indicatieve resultaten.")
	}

	a.matches, a.totalFound = wizard.Matches()
	a.prefs = wizard.Preferences()
	return nil
}

// askQuestion renders one wizard question and reads a valid answer. The
// second return is true when the user wants the previous question back.
func (a *app) askQuestion(q flow.QuestionSpec) (any, bool) {
	fmt.Println()
	fmt.Println(q.Prompt)

	switch q.Kind {
	case flow.KindChoice:
		for i, opt := range q.Options {
			fmt.Printf("  [%d] %s\n", i+1, opt.Label)
		}
		for {
			raw := a.readLine("antwoord (of 'terug')")
			if raw == "terug" {
				return nil, true
			}
			if idx, err := strconv.Atoi(raw); err == nil && idx >= 1 && idx <= len(q.Options) {
				return q.Options[idx-1].Value, false
			}
			fmt.Println("Kies een nummer uit de lijst.")
		}
	case flow.KindSlider:
		for {
			raw := a.readLine("bedrag in euro's (of 'terug')")
			if raw == "terug" {
				return nil, true
			}
			amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				fmt.Println("Voer een bedrag in.")
				continue
			}
			snapped := flow.PositionToAmount(flow.AmountToPosition(flow.ClampAmount(amount)))
			if snapped != amount {
				fmt.Printf("Afgerond naar € %.0f\n", snapped)
			}
			return snapped, false
		}
	case flow.KindRating:
		for {
			raw := a.readLine(fmt.Sprintf("cijfer %d-%d (of 'terug')", int(q.Min), int(q.Max)))
			if raw == "terug" {
				return nil, true
			}
			if rating, err := strconv.Atoi(raw); err == nil && q.Valid(float64(rating)) {
				return float64(rating), false
			}
			fmt.Println("Ongeldige waarde.")
		}
	}
	return nil, false
}

func (a *app) showMatches() {
	fmt.Println()
	if len(a.matches) == 0 {
		fmt.Println("Geen passende diensten gevonden. Overweeg uw criteria te versoepelen.")
		return
	}
	fmt.Printf("Uw beste matches (%d gevonden):\n", a.totalFound)
	for i, m := range a.matches {
		fmt.Printf("  %d. %s — score %d%%, beoordeling %d/5\n", i+1, m.Name, m.MatchScore, m.Rating)
		if len(m.Strengths) > 0 {
			fmt.Printf("     + %s\n", strings.Join(m.Strengths, ", "))
		}
		if len(m.Weaknesses) > 0 {
			fmt.Printf("     - %s\n", strings.Join(m.Weaknesses, ", "))
		}
	}
}

func (a *app) showInsights(ctx context.Context) {
	if len(a.matches) == 0 {
		return
	}
	insights, err := a.client.Insights(ctx, a.prefs, a.matches)
	if err != nil {
		return
	}
	fmt.Println()
	if insights.KeyInsight != "" {
		fmt.Println("Inzicht:", insights.KeyInsight)
	}
	if insights.TradeOffs != "" {
		fmt.Println("Afweging:", insights.TradeOffs)
	}
}

func (a *app) refineRound(ctx context.Context) error {
	if len(a.matches) == 0 {
		return errors.New("geen matches om te verfijnen")
	}

	ctrl := refine.NewController(a.client, a.prefs)
	ctrl.Begin(a.matches)

	for _, q := range ctrl.Questions() {
		fmt.Println()
		fmt.Println(q.Text)
		for i, opt := range q.Options {
			fmt.Printf("  [%d] %s\n", i+1, opt.Label)
		}
		for {
			raw := a.readLine("antwoord")
			idx, err := strconv.Atoi(raw)
			if err != nil || idx < 1 || idx > len(q.Options) {
				fmt.Println("Kies een nummer uit de lijst.")
				continue
			}
			if err := ctrl.Answer(q.ID, q.Options[idx-1].ID); err != nil {
				return err
			}
			break
		}
	}

	outcome, err := ctrl.Apply(ctx)
	if err != nil {
		return err
	}
	if outcome.RestartWizard {
		fmt.Println()
		fmt.Println("We beginnen opnieuw met de vragenlijst.")
		if err := a.runWizard(ctx); err != nil {
			return err
		}
		a.showMatches()
		return nil
	}

	a.matches = outcome.Matches
	a.totalFound = outcome.TotalFound
	a.prefs = outcome.Preferences
	a.showMatches()
	return nil
}

func (a *app) freeText(ctx context.Context) error {
	fmt.Println()
	fmt.Println("Beschrijf in uw eigen woorden wat u belangrijk vindt:")
	text := a.readLine("tekst")
	if text == "" {
		return nil
	}

	ctrl := refine.NewController(a.client, a.prefs)
	result, err := ctrl.ProcessText(ctx, text)
	if err != nil {
		return err
	}
	if result.SafetyConcern != "" {
		fmt.Println()
		fmt.Println("Let op:", result.SafetyConcern)
	}

	for i, clarification := range result.Clarifications {
		fmt.Println()
		fmt.Println(clarification.Question)
		for j, opt := range clarification.Options {
			fmt.Printf("  [%d] %s\n", j+1, opt.Label)
		}
		raw := a.readLine("antwoord")
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil || idx < 1 || idx > len(clarification.Options) {
			continue
		}
		option := clarification.Options[idx-1]
		resolved, resolveErr := ctrl.ResolveClarification(ctx, fmt.Sprintf("cl_%d", i), option)
		if resolveErr != nil {
			return resolveErr
		}
		if option.Action == ai.ActionCancel {
			continue
		}
		result = resolved
	}

	if result.Applied {
		a.matches = result.Matches
		a.totalFound = result.TotalFound
		a.prefs = result.Preferences
		if result.Reasoning != "" {
			fmt.Println()
			fmt.Println(result.Reasoning)
		}
		a.showMatches()
	}
	return nil
}

func (a *app) fetchReport(ctx context.Context) error {
	if len(a.matches) == 0 {
		return errors.New("geen matches voor een rapport")
	}

	result, err := a.client.GenerateReport(ctx, a.prefs, a.matches, "")
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.reportPath, []byte(result.Content), 0o644); err != nil {
		return fmt.Errorf("rapport opslaan: %w", err)
	}
	fmt.Println("Rapport opgeslagen in", a.reportPath)
	if result.URL != "" {
		fmt.Println("Online versie:", result.URL)
	}
	return nil
}

func (a *app) captureLead(ctx context.Context) error {
	fmt.Println()
	email := a.readLine("e-mailadres")
	name := a.readLine("naam")
	guidance := strings.EqualFold(a.readLine("interesse in begeleiding? (ja/nee)"), "ja")

	err := a.client.SubmitLead(ctx, client.Lead{
		Email:              email,
		Name:               name,
		InterestInGuidance: guidance,
		Preferences:        a.prefs,
	})
	if err != nil {
		return err
	}
	fmt.Println("Bedankt! We nemen contact met u op.")
	return nil
}

func (a *app) readLine(prompt string) string {
	fmt.Printf("%s> ", prompt)
	if !a.reader.Scan() {
		return ""
	}
	return strings.TrimSpace(a.reader.Text())
}
