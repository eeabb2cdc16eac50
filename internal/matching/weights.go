package matching

// importanceWeights maps an importance level to its relative weight before
// normalization.
var importanceWeights = map[string]float64{
	HeelBelangrijk: 0.40,
	ZeerBelangrijk: 0.30,
	Belangrijk:     0.20,
	GeenVoorkeur:   0.05,
	NietBelangrijk: 0.02,
}

const defaultWeight = 0.05

// WeightFor returns the unnormalized weight for an importance level.
func WeightFor(level string) float64 {
	if w, ok := importanceWeights[level]; ok {
		return w
	}
	return defaultWeight
}

// ImportanceForMultiplier translates a refinement weight multiplier into the
// importance level it implies. Multipliers in the dead zone leave the current
// level untouched.
func ImportanceForMultiplier(multiplier float64, current string) string {
	switch {
	case multiplier > 1.3:
		return HeelBelangrijk
	case multiplier > 1.1:
		return ZeerBelangrijk
	case multiplier < 0.8:
		return NietBelangrijk
	case multiplier < 0.9:
		return GeenVoorkeur
	}
	return current
}

// ApplyAdjustments folds a flat adjustment map (weight_* multipliers, control
// directives, preferred_match) into a copy of the preferences. It returns the
// adjusted preferences together with the preferred match id, if any, and
// whether a wizard restart was requested.
func ApplyAdjustments(prefs Preferences, adjustments map[string]any) (Preferences, string, bool) {
	out := prefs.Clone()
	preferred := ""
	restart := false

	for key, raw := range adjustments {
		switch key {
		case "restart_wizard":
			if truthy(raw) {
				restart = true
			}
		case "lower_thresholds", "expand_scope":
			if truthy(raw) {
				out["lower_thresholds"] = true
			}
		case "maintain_standards", "neutral":
			// explicit no-ops from refinement answers
		case "preferred_match":
			if s, ok := raw.(string); ok {
				preferred = s
			}
		case "boost_similar_attributes", "reduce_similar_attributes", "neutral_similar_attributes":
			out[key] = truthy(raw)
		default:
			crit, ok := weightKey(key)
			if !ok {
				continue
			}
			mult := toFloat(raw)
			if mult <= 0 {
				continue
			}
			prefKey := crit + "_belangrijkheid"
			out[prefKey] = ImportanceForMultiplier(mult, out.String(prefKey))
		}
	}
	return out, preferred, restart
}

func weightKey(key string) (string, bool) {
	const prefix = "weight_"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", false
	}
	crit := key[len(prefix):]
	for _, known := range Criteria {
		if crit == known {
			return crit, true
		}
	}
	return "", false
}

func truthy(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	case float64:
		return v != 0
	}
	return false
}

func toFloat(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
