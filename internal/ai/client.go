package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/matching"
)

// Analyzer exposes the AI-backed operations: free-text preference analysis,
// match insights and report narratives.
type Analyzer interface {
	Enabled() bool
	AnalyzeText(ctx context.Context, text string, prefs matching.Preferences) (TextAnalysis, error)
	Insights(ctx context.Context, input InsightInput) (Insights, error)
	Report(ctx context.Context, input ReportInput) (string, error)
}

// Config holds Anthropic API configuration parameters.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	CacheSize int
}

var ErrDisabled = errors.New("ai analyzer disabled")

const (
	anthropicVersion = "2023-06-01"
	defaultModel     = "claude-3-5-sonnet-20241022"
	defaultBaseURL   = "https://api.anthropic.com/v1"

	aiMaxRetries     = 3
	aiInitialBackoff = 2 * time.Second
	aiMaxBackoff     = 10 * time.Second
)

// Client implements Analyzer against the Anthropic Messages API.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	model         string
	baseURL       string
	maxTokens     int
	analysisCache *lru.Cache[string, TextAnalysis]
}

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New[string, TextAnalysis](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("analysis cache: %w", err)
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		apiKey:        strings.TrimSpace(cfg.APIKey),
		model:         cfg.Model,
		baseURL:       cfg.BaseURL,
		maxTokens:     cfg.MaxTokens,
		analysisCache: cache,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// AnalyzeText extracts preference updates from a free-text refinement.
// Results are cached on the text plus the current preference record, so
// repeating an identical request costs no API call.
func (c *Client) AnalyzeText(ctx context.Context, text string, prefs matching.Preferences) (TextAnalysis, error) {
	if !c.Enabled() {
		return TextAnalysis{}, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return TextAnalysis{}, errors.New("empty text")
	}

	key := analysisCacheKey(text, prefs)
	if cached, ok := c.analysisCache.Get(key); ok {
		return cached, nil
	}

	raw, err := c.complete(ctx, analysisSystemPrompt, buildAnalysisPrompt(text, prefs))
	if err != nil {
		return TextAnalysis{}, err
	}

	var analysis TextAnalysis
	if err := json.Unmarshal([]byte(normalizeJSONBlock(raw)), &analysis); err != nil {
		return TextAnalysis{}, fmt.Errorf("parse analysis response: %w", err)
	}
	sanitizeAnalysis(&analysis)
	if len(analysis.PreferenceUpdates) == 0 && len(analysis.SoftPreferences) == 0 &&
		!analysis.NeedsClarification() && analysis.SafetyConcern == "" {
		return TextAnalysis{}, errors.New("analysis extracted nothing usable")
	}

	c.analysisCache.Add(key, analysis)
	return analysis, nil
}

// Insights generates the match insights block.
func (c *Client) Insights(ctx context.Context, input InsightInput) (Insights, error) {
	if !c.Enabled() {
		return Insights{}, ErrDisabled
	}
	raw, err := c.complete(ctx, insightsSystemPrompt, buildInsightsPrompt(input))
	if err != nil {
		return Insights{}, err
	}
	var insights Insights
	if err := json.Unmarshal([]byte(normalizeJSONBlock(raw)), &insights); err != nil {
		return Insights{}, fmt.Errorf("parse insights response: %w", err)
	}
	insights.KeyInsight = strings.TrimSpace(insights.KeyInsight)
	insights.TradeOffs = strings.TrimSpace(insights.TradeOffs)
	insights.PriorityAnalysis = strings.TrimSpace(insights.PriorityAnalysis)
	if insights.KeyInsight == "" {
		return Insights{}, errors.New("insights missing key_insight")
	}
	return insights, nil
}

// Report generates the personal report narrative.
func (c *Client) Report(ctx context.Context, input ReportInput) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	narrative, err := c.complete(ctx, reportSystemPrompt, buildReportPrompt(input))
	if err != nil {
		return "", err
	}
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", errors.New("empty report narrative")
	}
	return narrative, nil
}

// complete posts one user message and returns the text reply, retrying
// transient API failures with exponential backoff.
func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	backoff := aiInitialBackoff
	var lastErr error
	for attempt := 0; attempt <= aiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > aiMaxBackoff {
				backoff = aiMaxBackoff
			}
		}

		text, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		logrus.WithError(err).WithField("attempt", attempt+1).Warn("anthropic request retry")
	}
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", shouldRetryStatus(resp.StatusCode), fmt.Errorf("anthropic status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	for _, block := range decoded.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, false, nil
		}
	}
	return "", false, errors.New("anthropic empty response")
}

func shouldRetryStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, 529:
		return true
	}
	return false
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func analysisCacheKey(text string, prefs matching.Preferences) string {
	payload, _ := json.Marshal(prefs)
	sum := sha256.Sum256(append([]byte(text+"\x00"), payload...))
	return hex.EncodeToString(sum[:])
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
