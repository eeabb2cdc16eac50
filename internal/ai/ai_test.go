package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"beleggingsmatch/internal/matching"
)

func TestNormalizeJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced block", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", "Hier is de analyse: {\"a\":1} hopelijk helpt dit", `{"a":1}`},
		{"empty", "   ", ""},
		{"no object at all", "geen json hier", "geen json hier"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeJSONBlock(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestSanitizeAnalysis(t *testing.T) {
	confidence := 3.5
	analysis := TextAnalysis{
		PreferenceUpdates: map[string]any{
			"kosten":                     "heel_belangrijk",
			"KOSTEN":                     "heel_belangrijk",
			"rendement":                  "superbelangrijk",
			"type_dienst":                "doe_het_zelf",
			"onbekend_veld":              "x",
			"bedrag":                     float64(5000),
			"begeleiding_belangrijkheid": "zeer_belangrijk",
		},
		SoftPreferences: []string{
			"boost_banks:Helderbank",
			"exclude_banks:",
			"iets_anders:Fortex",
			"  ",
		},
		Clarifications: []Clarification{
			{Question: "", Options: []ClarificationOption{{Label: "a", Action: ActionCancel}}},
			{Question: "Wat telt zwaarder?", Options: []ClarificationOption{
				{Label: "kosten", Action: "ADJUST_CRITERIA", Target: "kosten"},
				{Label: "onzin", Action: "explode"},
			}},
		},
		Confidence: &confidence,
	}

	sanitizeAnalysis(&analysis)

	if got := analysis.PreferenceUpdates["kosten_belangrijkheid"]; got != "heel_belangrijk" {
		t.Fatalf("alias not canonicalized: %v", got)
	}
	if _, ok := analysis.PreferenceUpdates["rendement_belangrijkheid"]; ok {
		t.Fatal("invalid importance level must be dropped")
	}
	if _, ok := analysis.PreferenceUpdates["onbekend_veld"]; ok {
		t.Fatal("unknown keys must be dropped")
	}
	if got := analysis.PreferenceUpdates["type_dienst"]; got != "doe_het_zelf" {
		t.Fatalf("type_dienst lost: %v", got)
	}
	if len(analysis.SoftPreferences) != 1 || analysis.SoftPreferences[0] != "boost_banks:Helderbank" {
		t.Fatalf("unexpected soft preferences %v", analysis.SoftPreferences)
	}
	if len(analysis.Clarifications) != 1 {
		t.Fatalf("expected 1 surviving clarification, got %d", len(analysis.Clarifications))
	}
	if len(analysis.Clarifications[0].Options) != 1 || analysis.Clarifications[0].Options[0].Action != ActionAdjustCriteria {
		t.Fatalf("unexpected clarification options %+v", analysis.Clarifications[0].Options)
	}
	if *analysis.Confidence != 1 {
		t.Fatalf("confidence not clamped: %v", *analysis.Confidence)
	}
}

func TestSoftPreferenceTargets(t *testing.T) {
	boost, exclude, include := SoftPreferenceTargets([]string{
		"boost_banks:Helderbank",
		"exclude_banks:Fortex",
		"include_banks:GroenKapitaal",
		"malformed",
	})
	if len(boost) != 1 || boost[0] != "Helderbank" {
		t.Fatalf("boost %v", boost)
	}
	if len(exclude) != 1 || exclude[0] != "Fortex" {
		t.Fatalf("exclude %v", exclude)
	}
	if len(include) != 1 || include[0] != "GroenKapitaal" {
		t.Fatalf("include %v", include)
	}
}

func TestHeuristicAnalyzeText(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name          string
		text          string
		key           string
		value         string
		clarification bool
		safety        bool
	}{
		{name: "cost keyword", text: "ik wil lage kosten", key: "kosten_belangrijkheid", value: matching.HeelBelangrijk},
		{name: "negation wins", text: "lage kosten? nee hoor, kosten maken niet uit", key: "kosten_belangrijkheid", value: matching.NietBelangrijk},
		{name: "sustainability", text: "graag groen beleggen", key: "duurzaamheid_belangrijkheid", value: matching.HeelBelangrijk},
		{name: "service type", text: "ik wil het uit handen geven", key: "type_dienst", value: "samen_beleggen"},
		{name: "unclear", text: "blabla", clarification: true},
		{name: "safety", text: "ik wil met geleend geld beleggen", safety: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			analysis, err := h.AnalyzeText(context.Background(), tc.text, nil)
			if err != nil {
				t.Fatalf("analyze: %v", err)
			}
			if tc.clarification != analysis.NeedsClarification() {
				t.Fatalf("clarification mismatch: %+v", analysis)
			}
			if tc.safety && analysis.SafetyConcern == "" {
				t.Fatal("expected a safety concern")
			}
			if tc.key != "" {
				if got := analysis.PreferenceUpdates[tc.key]; got != tc.value {
					t.Fatalf("expected %s=%s, got %v", tc.key, tc.value, got)
				}
			}
		})
	}
}

func TestHeuristicInsightsCloseRace(t *testing.T) {
	h := NewHeuristic()
	insights, err := h.Insights(context.Background(), InsightInput{
		Preferences: matching.Preferences{"kosten_belangrijkheid": matching.HeelBelangrijk},
		Matches: []matching.Match{
			{Name: "Helderbank", MatchScore: 84, Details: matching.Details{TCO: 0.012}},
			{Name: "GroenKapitaal", MatchScore: 82, Details: matching.Details{TCO: 0.014}},
		},
	})
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if insights.KeyInsight == "" || insights.TradeOffs == "" || insights.PriorityAnalysis == "" {
		t.Fatalf("incomplete insights %+v", insights)
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Enabled() bool { return true }
func (failingAnalyzer) AnalyzeText(context.Context, string, matching.Preferences) (TextAnalysis, error) {
	return TextAnalysis{}, errors.New("boom")
}
func (failingAnalyzer) Insights(context.Context, InsightInput) (Insights, error) {
	return Insights{}, errors.New("boom")
}
func (failingAnalyzer) Report(context.Context, ReportInput) (string, error) {
	return "", errors.New("boom")
}

func TestChainFallsBackOnPrimaryError(t *testing.T) {
	chain := WithFallback(failingAnalyzer{}, NewHeuristic())

	analysis, err := chain.AnalyzeText(context.Background(), "lage kosten graag", nil)
	if err != nil {
		t.Fatalf("chain analyze: %v", err)
	}
	if analysis.PreferenceUpdates["kosten_belangrijkheid"] != matching.HeelBelangrijk {
		t.Fatalf("fallback result not used: %+v", analysis)
	}

	narrative, err := chain.Report(context.Background(), ReportInput{
		Matches: []matching.Match{{Name: "Helderbank", MatchScore: 80}},
	})
	if err != nil {
		t.Fatalf("chain report: %v", err)
	}
	if narrative == "" {
		t.Fatal("expected a fallback narrative")
	}
}

func TestClientAnalyzeTextParsesAndCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "```json\n{\"preference_updates\":{\"kosten\":\"heel_belangrijk\"},\"reasoning\":\"kosten genoemd\"}\n```"},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	prefs := matching.Preferences{"bedrag": float64(1000)}
	analysis, err := client.AnalyzeText(context.Background(), "lage kosten", prefs)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.PreferenceUpdates["kosten_belangrijkheid"] != "heel_belangrijk" {
		t.Fatalf("alias not applied: %+v", analysis.PreferenceUpdates)
	}

	if _, err := client.AnalyzeText(context.Background(), "lage kosten", prefs); err != nil {
		t.Fatalf("cached analyze: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestClientSurfacesNonRetryableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.AnalyzeText(context.Background(), "tekst", nil); err == nil {
		t.Fatal("expected an error for status 400")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
