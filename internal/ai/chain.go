package ai

import (
	"context"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/metrics"
)

type analyzerChain struct {
	primary  Analyzer
	fallback Analyzer
}

// WithFallback returns an analyzer that first tries the primary implementation
// and falls back when the primary is unavailable or fails.
func WithFallback(primary, fallback Analyzer) Analyzer {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &analyzerChain{primary: primary, fallback: fallback}
}

func (c *analyzerChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	return c.fallback != nil && c.fallback.Enabled()
}

func (c *analyzerChain) AnalyzeText(ctx context.Context, text string, prefs matching.Preferences) (TextAnalysis, error) {
	if c == nil {
		return TextAnalysis{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		analysis, err := c.primary.AnalyzeText(ctx, text, prefs)
		if err == nil {
			return analysis, nil
		}
		c.noteFallback("analyze_text", err)
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.AnalyzeText(ctx, text, prefs)
	}
	return TextAnalysis{}, ErrDisabled
}

func (c *analyzerChain) Insights(ctx context.Context, input InsightInput) (Insights, error) {
	if c == nil {
		return Insights{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		insights, err := c.primary.Insights(ctx, input)
		if err == nil {
			return insights, nil
		}
		c.noteFallback("insights", err)
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Insights(ctx, input)
	}
	return Insights{}, ErrDisabled
}

func (c *analyzerChain) Report(ctx context.Context, input ReportInput) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		narrative, err := c.primary.Report(ctx, input)
		if err == nil {
			return narrative, nil
		}
		c.noteFallback("report", err)
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Report(ctx, input)
	}
	return "", ErrDisabled
}

func (c *analyzerChain) noteFallback(operation string, err error) {
	metrics.AIFallbacks.WithLabelValues(operation).Inc()
	logrus.WithError(err).WithField("operation", operation).Warn("ai primary failed, using fallback")
}
