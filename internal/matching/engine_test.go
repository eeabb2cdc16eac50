package matching

import (
	"reflect"
	"testing"
)

func testProviders() []Provider {
	return []Provider{
		{
			DienstID: "helderbank_zelf", Name: "Helderbank", Type: "doe_het_zelf",
			Status: "active", Minimum: 0, Stars: 4, TCO: 0.012,
			Scores: map[string]float64{"kosten": 9, "duurzaamheid": 6, "begeleiding": 4, "functionaliteiten": 8, "rendement": 7},
		},
		{
			DienstID: "groenkapitaal_samen", Name: "GroenKapitaal", Type: "samen_beleggen",
			Status: "active", Minimum: 10000, Stars: 5, TCO: 0.018,
			Scores: map[string]float64{"kosten": 6, "duurzaamheid": 9, "begeleiding": 8, "functionaliteiten": 6, "rendement": 7},
		},
		{
			DienstID: "vermogenswijs_zelf", Name: "Vermogenswijs", Type: "doe_het_zelf",
			Status: "active", Minimum: 500, Stars: 3, TCO: 0.024,
			Scores: map[string]float64{"kosten": 5, "duurzaamheid": 5, "begeleiding": 7, "functionaliteiten": 7, "rendement": 8},
		},
		{
			DienstID: "stilgelegd_zelf", Name: "Stilgelegd", Type: "doe_het_zelf",
			Status: "inactive", Stars: 5, TCO: 0.010,
			Scores: map[string]float64{"kosten": 10, "duurzaamheid": 10, "begeleiding": 10, "functionaliteiten": 10, "rendement": 10},
		},
	}
}

func TestMatchFilters(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name  string
		prefs Preferences
		want  []string
	}{
		{
			"type filter drops other categories",
			Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(1000)},
			[]string{"helderbank_zelf", "vermogenswijs_zelf"},
		},
		{
			"minimum amount filter",
			Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(200)},
			[]string{"helderbank_zelf"},
		},
		{
			"strict cost gate drops expensive providers",
			Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(1000), "kosten_belangrijkheid": ZeerBelangrijk},
			[]string{"helderbank_zelf"},
		},
		{
			"lower thresholds relaxes amount and cost gates",
			Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(200), "kosten_belangrijkheid": ZeerBelangrijk, "lower_thresholds": true},
			[]string{"helderbank_zelf", "vermogenswijs_zelf"},
		},
		{
			"min rating filter",
			Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(1000), "min_rating": float64(4)},
			[]string{"helderbank_zelf"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Match(tc.prefs, testProviders(), SoftPreferences{})
			got := matchIDs(result.Matches)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
			if result.TotalFound != len(tc.want) {
				t.Fatalf("expected total_found %d got %d", len(tc.want), result.TotalFound)
			}
		})
	}
}

func TestMatchOrderingAndDeterminism(t *testing.T) {
	engine := NewEngine()
	prefs := Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(5000)}

	first := engine.Match(prefs, testProviders(), SoftPreferences{})
	second := engine.Match(prefs, testProviders(), SoftPreferences{})
	if !reflect.DeepEqual(first, second) {
		t.Fatal("matching is not deterministic for equal inputs")
	}
	for i := 1; i < len(first.Matches); i++ {
		if first.Matches[i].MatchScore > first.Matches[i-1].MatchScore {
			t.Fatalf("matches not sorted descending at index %d", i)
		}
	}
}

func TestMatchSoftPreferences(t *testing.T) {
	engine := NewEngine()
	prefs := Preferences{"type_dienst": "doe_het_zelf", "bedrag": float64(5000)}

	t.Run("boost raises score and flags details", func(t *testing.T) {
		plain := engine.Match(prefs, testProviders(), SoftPreferences{})
		boosted := engine.Match(prefs, testProviders(), SoftPreferences{Boost: []string{"vermogenswijs_zelf"}})
		if scoreOf(boosted, "vermogenswijs_zelf") != scoreOf(plain, "vermogenswijs_zelf")+15 {
			t.Fatal("boost did not add 15 points")
		}
		for _, m := range boosted.Matches {
			if m.ID == "vermogenswijs_zelf" && !m.Details.BoostApplied {
				t.Fatal("boost_applied flag missing")
			}
		}
	})

	t.Run("exclude removes provider", func(t *testing.T) {
		result := engine.Match(prefs, testProviders(), SoftPreferences{Exclude: []string{"helderbank_zelf"}})
		if containsFold(matchIDs(result.Matches), "helderbank_zelf") {
			t.Fatal("excluded provider still present")
		}
	})

	t.Run("include keeps only listed providers", func(t *testing.T) {
		result := engine.Match(prefs, testProviders(), SoftPreferences{Include: []string{"helderbank_zelf"}})
		if want := []string{"helderbank_zelf"}; !reflect.DeepEqual(matchIDs(result.Matches), want) {
			t.Fatalf("expected %v got %v", want, matchIDs(result.Matches))
		}
	})
}

func TestScoreClamped(t *testing.T) {
	engine := NewEngine()
	providers := []Provider{{
		DienstID: "max", Name: "Max", Type: "doe_het_zelf", Status: "active",
		Stars: 5, TCO: 0.010,
		Scores: map[string]float64{"kosten": 10, "duurzaamheid": 10, "begeleiding": 10, "functionaliteiten": 10, "rendement": 10},
	}}
	result := engine.Match(Preferences{"type_dienst": "doe_het_zelf"}, providers, SoftPreferences{Boost: []string{"max"}})
	if got := result.Matches[0].MatchScore; got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}

func matchIDs(matches []Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	return ids
}

func scoreOf(result Result, id string) int {
	for _, m := range result.Matches {
		if m.ID == id {
			return m.MatchScore
		}
	}
	return -1
}
