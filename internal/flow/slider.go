package flow

import "math"

// Amount slider: positions 0-20 map linearly to 0-1000, positions 20-100
// logarithmically to 1000-1000000. Low amounts get fine control, high
// amounts coarse control.
const (
	sliderLinearMax   = 20.0
	sliderPositionMax = 100.0
	amountLinearMax   = 1000.0
	amountMax         = 1000000.0
)

// AmountToPosition computes the slider position for an amount.
func AmountToPosition(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	if amount > amountMax {
		amount = amountMax
	}
	if amount <= amountLinearMax {
		return amount / amountLinearMax * sliderLinearMax
	}
	logSpan := math.Log(amountMax) - math.Log(amountLinearMax)
	return sliderLinearMax + (math.Log(amount)-math.Log(amountLinearMax))/logSpan*(sliderPositionMax-sliderLinearMax)
}

// PositionToAmount computes the amount for a slider position. Linear-range
// values snap to a clean grid (5/10/25 steps depending on magnitude); the
// logarithmic range rounds to the nearest 100.
func PositionToAmount(position float64) float64 {
	if position <= 0 {
		return 0
	}
	if position > sliderPositionMax {
		position = sliderPositionMax
	}
	if position <= sliderLinearMax {
		raw := position / sliderLinearMax * amountLinearMax
		return snapLinear(raw)
	}
	logSpan := math.Log(amountMax) - math.Log(amountLinearMax)
	value := math.Exp(math.Log(amountLinearMax) + (position-sliderLinearMax)/(sliderPositionMax-sliderLinearMax)*logSpan)
	return math.Round(value/100) * 100
}

// ClampAmount bounds a directly entered amount to the slider's domain.
// Direct entry bypasses the snapping; the equivalent position comes from
// AmountToPosition, so round-tripping through the slider is lossy by design.
func ClampAmount(amount float64) float64 {
	if amount < 0 {
		return 0
	}
	if amount > amountMax {
		return amountMax
	}
	return amount
}

func snapLinear(raw float64) float64 {
	switch {
	case raw <= 50:
		return math.Round(raw/5) * 5
	case raw <= 200:
		return math.Round(raw/10) * 10
	default:
		return math.Round(raw/25) * 25
	}
}
