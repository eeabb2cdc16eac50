package flow

import (
	"beleggingsmatch/internal/matching"
)

// QuestionKind selects the answer widget and validity rule.
type QuestionKind int

const (
	// KindChoice accepts one of the enumerated option values.
	KindChoice QuestionKind = iota
	// KindSlider accepts an amount in the hybrid slider's domain.
	KindSlider
	// KindRating accepts an integer star count within [Min, Max].
	KindRating
)

// ChoiceOption is one selectable answer for a choice question.
type ChoiceOption struct {
	Value string
	Label string
}

// QuestionSpec describes one wizard question. IDs double as preference keys
// and are unique within the wizard.
type QuestionSpec struct {
	ID      string
	Prompt  string
	Kind    QuestionKind
	Options []ChoiceOption
	Min     float64
	Max     float64
}

// Valid reports whether the answer satisfies the question's domain.
func (q QuestionSpec) Valid(answer any) bool {
	switch q.Kind {
	case KindChoice:
		value, ok := answer.(string)
		if !ok {
			return false
		}
		for _, opt := range q.Options {
			if opt.Value == value {
				return true
			}
		}
		return false
	case KindSlider:
		value, ok := toNumber(answer)
		return ok && value >= q.Min && value <= q.Max
	case KindRating:
		value, ok := toNumber(answer)
		return ok && value == float64(int(value)) && value >= q.Min && value <= q.Max
	}
	return false
}

func toNumber(answer any) (float64, bool) {
	switch v := answer.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

var importanceOptions = []ChoiceOption{
	{Value: matching.HeelBelangrijk, Label: "Heel belangrijk"},
	{Value: matching.ZeerBelangrijk, Label: "Zeer belangrijk"},
	{Value: matching.Belangrijk, Label: "Belangrijk"},
	{Value: matching.GeenVoorkeur, Label: "Geen voorkeur"},
	{Value: matching.NietBelangrijk, Label: "Niet belangrijk"},
}

// DefaultQuestions is the fixed ordered wizard question list.
func DefaultQuestions() []QuestionSpec {
	return []QuestionSpec{
		{
			ID:     "type_dienst",
			Prompt: "Hoe wilt u beleggen?",
			Kind:   KindChoice,
			Options: []ChoiceOption{
				{Value: "doe_het_zelf", Label: "Zelf beleggen"},
				{Value: "samen_beleggen", Label: "Laten beleggen"},
				{Value: "pensioensparen", Label: "Pensioensparen"},
			},
		},
		{
			ID:     "bedrag",
			Prompt: "Welk bedrag wilt u beleggen?",
			Kind:   KindSlider,
			Min:    0,
			Max:    amountMax,
		},
		{
			ID:      "kosten_belangrijkheid",
			Prompt:  "Hoe belangrijk zijn lage kosten voor u?",
			Kind:    KindChoice,
			Options: importanceOptions,
		},
		{
			ID:      "begeleiding_belangrijkheid",
			Prompt:  "Hoe belangrijk is persoonlijke begeleiding?",
			Kind:    KindChoice,
			Options: importanceOptions,
		},
		{
			ID:      "duurzaamheid_belangrijkheid",
			Prompt:  "Hoe belangrijk is duurzaam beleggen?",
			Kind:    KindChoice,
			Options: importanceOptions,
		},
		{
			ID:     "min_rating",
			Prompt: "Welke minimale beoordeling moet een dienst hebben?",
			Kind:   KindRating,
			Min:    0,
			Max:    5,
		},
	}
}
