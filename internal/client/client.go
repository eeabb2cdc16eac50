package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/matching"
)

// ErrStale marks a response that arrived after a newer request was issued
// for the same logical step. Callers drop the result and keep whatever the
// newer request returns.
var ErrStale = errors.New("stale response discarded")

// APIError is a non-2xx reply from the matching service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Config holds the matching service connection parameters.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	ReportTimeout time.Duration
}

// Client talks to the matching service. Every matching call is tagged with a
// monotonically increasing sequence number; responses that come back after a
// newer call started are reported as stale.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	timeout       time.Duration
	reportTimeout time.Duration
	seq           atomic.Uint64
	log           *logrus.Entry
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = 30 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		reportTimeout: cfg.ReportTimeout,
		log:           logrus.WithField("component", "matchclient"),
	}
}

// MatchResult is the common match list payload. Action is set when the
// server redirects the flow instead of matching (restart_wizard), and
// ModifiedPreferences echoes the record after server-side adjustments.
type MatchResult struct {
	Matches             []matching.Match
	TotalFound          int
	Action              string
	ModifiedPreferences matching.Preferences
}

// TextAnalysisEcho is the analysis summary returned with free-text matching.
type TextAnalysisEcho struct {
	Clarifications  []ai.Clarification `json:"clarifications_needed,omitempty"`
	Reasoning       string             `json:"reasoning"`
	SoftPreferences []string           `json:"soft_preferences,omitempty"`
	Confidence      *float64           `json:"confidence,omitempty"`
	SafetyConcern   string             `json:"safety_concern,omitempty"`
}

// TextOutcome is the result of free-text processing. When the analysis needs
// clarification, Clarifications is non-empty and nothing has been applied.
type TextOutcome struct {
	Success            bool                 `json:"success"`
	TextAnalysis       *TextAnalysisEcho    `json:"textAnalysis,omitempty"`
	NewMatches         []matching.Match     `json:"newMatches,omitempty"`
	TotalFound         int                  `json:"total_found,omitempty"`
	UpdatedPreferences matching.Preferences `json:"updatedPreferences,omitempty"`
	PreferencesChanged bool                 `json:"preferencesChanged,omitempty"`
	Error              string               `json:"error,omitempty"`
}

// NeedsClarification reports whether a clarification round must run before
// any match changes apply.
func (o TextOutcome) NeedsClarification() bool {
	return o.TextAnalysis != nil && len(o.TextAnalysis.Clarifications) > 0
}

// ClarificationResult is the reply to a resolved clarification.
type ClarificationResult struct {
	Success       bool             `json:"success"`
	Matches       []matching.Match `json:"matches,omitempty"`
	TotalFound    int              `json:"total_found,omitempty"`
	AppliedFilter string           `json:"appliedFilter,omitempty"`
	FilterActive  bool             `json:"filterActive,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// ReportResult is a generated report.
type ReportResult struct {
	Content     string
	URL         string
	GeneratedAt string
}

// ReportJob is the handle of an asynchronous report run.
type ReportJob struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ReportStatus is the state of a report job, with content once completed.
type ReportStatus struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
}

// Lead is the contact payload captured after results are shown.
type Lead struct {
	Email              string               `json:"email"`
	Name               string               `json:"name"`
	Phone              string               `json:"phone,omitempty"`
	InterestInGuidance bool                 `json:"interest_in_guidance"`
	Preferences        matching.Preferences `json:"preferences"`
}

type matchEnvelope struct {
	Success             bool                 `json:"success"`
	Matches             []matching.Match     `json:"matches"`
	TotalFound          int                  `json:"total_found"`
	Action              string               `json:"action"`
	ModifiedPreferences matching.Preferences `json:"modified_preferences"`
	Error               string               `json:"error"`
}

// Match submits the wizard preferences and returns the ranked matches. The
// preference record crosses the wire flat, not wrapped in an envelope. A
// missing or malformed matches array is an error like any transport failure,
// so the caller's fallback policy covers all three cases at once.
func (c *Client) Match(ctx context.Context, prefs matching.Preferences) (MatchResult, error) {
	if prefs == nil {
		prefs = matching.Preferences{}
	}
	var resp matchEnvelope
	err := c.postSequenced(ctx, "/match-diensten", prefs, c.timeout, &resp)
	if err != nil {
		return MatchResult{}, err
	}
	if !resp.Success || resp.Matches == nil {
		return MatchResult{}, envelopeError(resp.Error, "matching failed")
	}
	return MatchResult{Matches: resp.Matches, TotalFound: resp.TotalFound}, nil
}

// Recalculate reruns matching with the merged impact deltas of one
// refinement round, one delta per answered question.
func (c *Client) Recalculate(ctx context.Context, prefs matching.Preferences, impacts []map[string]any) (MatchResult, error) {
	payload := map[string]any{"original_preferences": prefs, "impacts": impacts}
	var resp matchEnvelope
	err := c.postSequenced(ctx, "/recalculate-matches", payload, c.timeout, &resp)
	if err != nil {
		return MatchResult{}, err
	}
	if !resp.Success {
		return MatchResult{}, envelopeError(resp.Error, "recalculation failed")
	}
	if resp.Action != "" {
		return MatchResult{Action: resp.Action}, nil
	}
	if resp.Matches == nil {
		return MatchResult{}, envelopeError(resp.Error, "recalculation returned no matches")
	}
	return MatchResult{
		Matches:             resp.Matches,
		TotalFound:          resp.TotalFound,
		ModifiedPreferences: resp.ModifiedPreferences,
	}, nil
}

// ProcessText sends a free-text refinement for analysis and rematching.
func (c *Client) ProcessText(ctx context.Context, text string, prefs matching.Preferences) (TextOutcome, error) {
	var outcome TextOutcome
	payload := map[string]any{"text": text, "preferences": prefs}
	err := c.postSequenced(ctx, "/process-text-and-match", payload, c.timeout, &outcome)
	if err != nil {
		return TextOutcome{}, err
	}
	if !outcome.Success {
		return TextOutcome{}, envelopeError(outcome.Error, "text processing failed")
	}
	return outcome, nil
}

// ProcessClarification resolves one pending clarification choice.
func (c *Client) ProcessClarification(ctx context.Context, clarificationID string, option ai.ClarificationOption, prefs matching.Preferences) (ClarificationResult, error) {
	payload := map[string]any{
		"clarification_id": clarificationID,
		"selected_option":  option,
		"preferences":      prefs,
	}
	var result ClarificationResult
	err := c.postSequenced(ctx, "/process-clarification", payload, c.timeout, &result)
	if err != nil {
		return ClarificationResult{}, err
	}
	if !result.Success {
		return ClarificationResult{}, envelopeError(result.Error, "clarification failed")
	}
	return result, nil
}

// Insights fetches the insight block for the current results. The wire shape
// splats the preferences at the top level with matches alongside.
func (c *Client) Insights(ctx context.Context, prefs matching.Preferences, matches []matching.Match) (ai.Insights, error) {
	payload := make(map[string]any, len(prefs)+1)
	for key, value := range prefs {
		payload[key] = value
	}
	payload["matches"] = matches

	var resp struct {
		Success  bool        `json:"success"`
		Insights ai.Insights `json:"insights"`
		Error    string      `json:"error"`
	}
	if err := c.post(ctx, "/generate-ai-insights", payload, c.timeout, &resp); err != nil {
		return ai.Insights{}, err
	}
	if !resp.Success {
		return ai.Insights{}, envelopeError(resp.Error, "insights generation failed")
	}
	return resp.Insights, nil
}

// SubmitLead stores a contact request.
func (c *Client) SubmitLead(ctx context.Context, lead Lead) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/submit-lead", lead, c.timeout, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("lead submission returned status %q", resp.Status)
	}
	return nil
}

// GenerateReport renders the full report for the current matches. The
// analysis argument is optional prior AI reasoning woven into the narrative.
func (c *Client) GenerateReport(ctx context.Context, userData matching.Preferences, matches []matching.Match, analysis string) (ReportResult, error) {
	payload := map[string]any{
		"user_data":       userData,
		"matches":         matches,
		"claude_analysis": analysis,
	}
	var resp struct {
		Success       bool   `json:"success"`
		ReportContent string `json:"report_content"`
		ReportURL     string `json:"report_url"`
		GeneratedAt   string `json:"generated_at"`
		Error         string `json:"error"`
	}
	if err := c.post(ctx, "/generate-ai-report", payload, c.reportTimeout, &resp); err != nil {
		return ReportResult{}, err
	}
	if !resp.Success {
		return ReportResult{}, envelopeError(resp.Error, "report generation failed")
	}
	return ReportResult{Content: resp.ReportContent, URL: resp.ReportURL, GeneratedAt: resp.GeneratedAt}, nil
}

// StartReportJob starts an asynchronous report run on the server.
func (c *Client) StartReportJob(ctx context.Context, prefs matching.Preferences) (ReportJob, error) {
	var job ReportJob
	payload := map[string]any{"preferences": prefs}
	if err := c.post(ctx, "/api/reports/jobs", payload, c.timeout, &job); err != nil {
		return ReportJob{}, err
	}
	return job, nil
}

// ReportJobStatus fetches the state of a report job.
func (c *Client) ReportJobStatus(ctx context.Context, jobID string) (ReportStatus, error) {
	var status ReportStatus
	if err := c.get(ctx, "/api/reports/jobs/"+jobID, c.timeout, &status); err != nil {
		return ReportStatus{}, err
	}
	return status, nil
}

func envelopeError(message, fallback string) error {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return errors.New(message)
}

// postSequenced issues a POST tagged with a fresh sequence number and drops
// the response when a newer sequenced request started in the meantime.
func (c *Client) postSequenced(ctx context.Context, path string, payload any, timeout time.Duration, out any) error {
	seq := c.seq.Add(1)
	if err := c.post(ctx, path, payload, timeout, out); err != nil {
		return err
	}
	if c.seq.Load() != seq {
		c.log.WithFields(logrus.Fields{"path": path, "seq": seq}).Debug("dropping stale response")
		return ErrStale
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), timeout, out)
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, timeout, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
