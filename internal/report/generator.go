package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/matching"
)

// Describer supplies the optional longer provider description used to enrich
// the report. Missing enrichment never blocks generation.
type Describer interface {
	Describe(dienstID string) string
}

// Generator renders the personal investment report as a standalone HTML
// document. PDF rendering is not available; callers serve the HTML with a
// download disposition instead.
type Generator struct {
	analyzer  ai.Analyzer
	describer Describer
	tmpl      *template.Template
	log       *logrus.Entry
}

func NewGenerator(analyzer ai.Analyzer, describer Describer) *Generator {
	return &Generator{
		analyzer:  analyzer,
		describer: describer,
		tmpl:      template.Must(template.New("report").Parse(reportTemplate)),
		log:       logrus.WithField("component", "report"),
	}
}

// Narrative produces the narrative text only, using the supplied analysis
// reasoning as extra context when present.
func (g *Generator) Narrative(ctx context.Context, prefs matching.Preferences, matches []matching.Match, analysis string) (string, error) {
	input := ai.ReportInput{Preferences: prefs, Matches: matches}
	if strings.TrimSpace(analysis) != "" {
		input.Notes = append(input.Notes, "Eerdere analyse: "+analysis)
	}
	input.Notes = append(input.Notes, g.enrichment(matches)...)

	narrative, err := g.analyzer.Report(ctx, input)
	if err != nil {
		return "", fmt.Errorf("report narrative: %w", err)
	}
	return narrative, nil
}

// Generate builds the context, asks for the narrative and renders the full
// HTML document.
func (g *Generator) Generate(ctx context.Context, prefs matching.Preferences, matches []matching.Match, analysis string) (string, error) {
	narrative, err := g.Narrative(ctx, prefs, matches, analysis)
	if err != nil {
		return "", err
	}

	reportCtx := BuildContext(prefs, matches)
	reportCtx.Narrative = narrative
	reportCtx.Notes = g.enrichment(matches)

	return g.Render(reportCtx)
}

// Render fills the HTML template with a prepared context.
func (g *Generator) Render(reportCtx Context) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, templateData(reportCtx)); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// enrichment fetches longer provider descriptions, best-effort.
func (g *Generator) enrichment(matches []matching.Match) []string {
	if g.describer == nil {
		return nil
	}
	var notes []string
	for _, m := range matches {
		if desc := strings.TrimSpace(g.describer.Describe(m.ID)); desc != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", m.Name, desc))
		}
	}
	return notes
}

type reportMatch struct {
	Rank       int
	Name       string
	Score      int
	Rating     int
	TCO        string
	Strengths  []string
	Weaknesses []string
}

type reportView struct {
	GeneratedAt string
	TypeDienst  string
	Bedrag      string
	Priorities  []Priority
	Matches     []reportMatch
	Patterns    []string
	Paragraphs  []string
	Notes       []string
}

var typeLabels = map[string]string{
	"doe_het_zelf":   "Zelf beleggen",
	"samen_beleggen": "Laten beleggen",
	"pensioensparen": "Pensioensparen",
}

func templateData(reportCtx Context) reportView {
	view := reportView{
		GeneratedAt: reportCtx.GeneratedAt.Format("2 January 2006"),
		Patterns:    reportCtx.Patterns,
		Priorities:  reportCtx.Priorities,
		Notes:       reportCtx.Notes,
	}

	if label, ok := typeLabels[reportCtx.Preferences.String("type_dienst")]; ok {
		view.TypeDienst = label
	} else {
		view.TypeDienst = "Beleggen"
	}
	if bedrag := reportCtx.Preferences.Float("bedrag"); bedrag > 0 {
		view.Bedrag = fmt.Sprintf("€ %.0f", bedrag)
	}

	for i, m := range reportCtx.Matches {
		rm := reportMatch{
			Rank:       i + 1,
			Name:       m.Name,
			Score:      m.MatchScore,
			Rating:     m.Rating,
			Strengths:  m.Strengths,
			Weaknesses: m.Weaknesses,
		}
		if m.Details.TCO > 0 {
			rm.TCO = fmt.Sprintf("%.2f%% per jaar", m.Details.TCO*100)
		}
		view.Matches = append(view.Matches, rm)
	}

	for _, para := range strings.Split(reportCtx.Narrative, "\n\n") {
		if trimmed := strings.TrimSpace(para); trimmed != "" {
			view.Paragraphs = append(view.Paragraphs, trimmed)
		}
	}
	return view
}

const reportTemplate = `<!DOCTYPE html>
<html lang="nl">
<head>
<meta charset="utf-8">
<title>Uw persoonlijke beleggingsrapport</title>
<style>
body { font-family: Georgia, serif; color: #1f2933; max-width: 760px; margin: 2rem auto; line-height: 1.6; }
h1 { color: #0b4f6c; border-bottom: 2px solid #0b4f6c; padding-bottom: .3rem; }
h2 { color: #0b4f6c; margin-top: 2rem; }
.meta { color: #616e7c; font-size: .9rem; }
.match { border: 1px solid #d3dce6; border-radius: 8px; padding: 1rem 1.2rem; margin: 1rem 0; }
.match h3 { margin: 0 0 .3rem; }
.score { font-weight: bold; color: #0b4f6c; }
.band-uitstekend { color: #1b7a43; } .band-goed { color: #3f7d20; }
.band-gemiddeld { color: #b7791f; } .band-matig { color: #b03030; }
ul { margin: .3rem 0 .3rem 1.2rem; }
.pattern { background: #f0f4f8; border-left: 4px solid #0b4f6c; padding: .5rem .8rem; margin: .5rem 0; }
</style>
</head>
<body>
<h1>Uw persoonlijke beleggingsrapport</h1>
<p class="meta">Opgesteld op {{.GeneratedAt}} — {{.TypeDienst}}{{if .Bedrag}} — {{.Bedrag}}{{end}}</p>

{{if .Paragraphs}}<h2>Persoonlijk advies</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{end}}

{{if .Priorities}}<h2>Uw prioriteiten</h2>
<ul>
{{range .Priorities}}<li><strong>{{.Criterion}}</strong> ({{.Level}}): uw beste match scoort hier <span class="band-{{.Band}}">{{.Band}}</span></li>
{{end}}</ul>{{end}}

<h2>Uw beste matches</h2>
{{range .Matches}}<div class="match">
<h3>{{.Rank}}. {{.Name}} — <span class="score">{{.Score}}%</span></h3>
{{if .TCO}}<p>Kosten: {{.TCO}} — Beoordeling: {{.Rating}}/5</p>{{end}}
{{if .Strengths}}<p>Sterke punten:</p><ul>{{range .Strengths}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Weaknesses}}<p>Aandachtspunten:</p><ul>{{range .Weaknesses}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>
{{end}}

{{if .Patterns}}<h2>Wat opvalt</h2>
{{range .Patterns}}<div class="pattern">{{.}}</div>
{{end}}{{end}}

{{if .Notes}}<h2>Over de aanbieders</h2>
{{range .Notes}}<p>{{.}}</p>
{{end}}{{end}}

<p class="meta">Dit rapport is informatief en geen persoonlijk financieel advies.</p>
</body>
</html>
`
