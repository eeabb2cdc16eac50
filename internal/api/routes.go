package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"beleggingsmatch/internal/ai"
	"beleggingsmatch/internal/catalog"
	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/metrics"
	"beleggingsmatch/internal/refine"
	"beleggingsmatch/internal/report"
	"beleggingsmatch/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SeedPath       string
	AllowedOrigins []string
	SilentDB       bool
	AIConfig       ai.Config
	DisableAI      bool
}

// Server wires HTTP handlers with persistence, matching and report
// generation.
type Server struct {
	db             *store.Database
	engine         *matching.Engine
	catalog        *catalog.Service
	analyzer       ai.Analyzer
	reports        *report.Generator
	allowedOrigins []string
	reportNotifier *ReportNotifier
	jobMu          sync.Mutex
	activeJob      *reportJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.SeedPath) != "" {
		if err := db.SeedIfEmpty(cfg.SeedPath); err != nil {
			return nil, fmt.Errorf("seed providers: %w", err)
		}
	}

	catalogSvc := catalog.NewService(db)
	if err := catalogSvc.Reload(); err != nil {
		return nil, fmt.Errorf("load provider catalog: %w", err)
	}

	heuristic := ai.NewHeuristic()
	var analyzer ai.Analyzer = heuristic
	if cfg.DisableAI {
		logrus.Info("AI analyzer disabled via configuration, heuristic only")
	} else if client, err := ai.NewClient(cfg.AIConfig); err == nil {
		analyzer = ai.WithFallback(client, heuristic)
		logrus.WithField("model", cfg.AIConfig.Model).Info("AI analyzer enabled")
	} else if errors.Is(err, ai.ErrDisabled) {
		logrus.Info("AI analyzer has no API key, heuristic only")
	} else {
		return nil, fmt.Errorf("ai client: %w", err)
	}

	return &Server{
		db:             db,
		engine:         matching.NewEngine(),
		catalog:        catalogSvc,
		analyzer:       analyzer,
		reports:        report.NewGenerator(analyzer, catalogSvc),
		allowedOrigins: cfg.AllowedOrigins,
		reportNotifier: NewReportNotifier(),
	}, nil
}

// Router configures gin routes. The match endpoints are registered both bare
// and under /api so older frontends keep working.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/reports", s.handleReportStream)

	for _, group := range []*gin.RouterGroup{r.Group(""), r.Group("/api")} {
		group.POST("/match-diensten", s.handleMatch)
		group.POST("/recalculate-matches", s.handleRecalculate)
		group.POST("/process-text-and-match", s.handleTextAndMatch)
		group.POST("/process-clarification", s.handleClarification)
		group.POST("/generate-ai-insights", s.handleInsights)
		group.POST("/detect-scenario", s.handleDetectScenario)
		group.POST("/submit-lead", s.handleSubmitLead)
		group.POST("/generate-ai-report", s.handleGenerateReport)
	}

	r.POST("/reports/generate-report", s.handleReportDownload)

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/banks", s.handleListBanks)
		api.GET("/banks/:id", s.handleGetBank)
		api.POST("/reports/jobs", s.handleStartReportJob)
		api.GET("/reports/jobs/:id", s.handleReportJobStatus)
		api.GET("/reports/jobs/:id/download", s.handleReportJobDownload)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"providers":  s.catalog.Count(),
		"ai_enabled": s.analyzer.Enabled(),
	})
}

func (s *Server) handleListBanks(c *gin.Context) {
	rows := s.catalog.Providers()
	providers := make([]ProviderDTO, 0, len(rows))
	for _, row := range rows {
		providers = append(providers, providerDTO(row))
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers, "total": len(providers)})
}

func (s *Server) handleGetBank(c *gin.Context) {
	row, ok := s.catalog.Get(c.Param("id"))
	if !ok {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("unknown dienst %q", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, providerDTO(row))
}

func (s *Server) handleMatch(c *gin.Context) {
	timer := startMatchTimer()

	prefs, err := decodePreferences(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.runMatch(prefs)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	metrics.MatchRequests.WithLabelValues("match-diensten").Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"matches":            emptyMatches(result.Matches),
		"total_found":        result.TotalFound,
		"processing_time_ms": timer.ElapsedMs(),
	})
}

// decodePreferences reads the flat preference record the wizard posts.
// Bodies that wrap the record under a preferences key are unwrapped, so
// clients built against the older shape keep working.
func decodePreferences(c *gin.Context) (matching.Preferences, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	prefs := matching.Preferences{}
	if err := json.Unmarshal(body, &prefs); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if wrapped, ok := prefs["preferences"].(map[string]any); ok && len(prefs) == 1 {
		prefs = matching.Preferences(wrapped)
	}
	if len(prefs) == 0 {
		return nil, errors.New("preferences are required")
	}
	return prefs, nil
}

func (s *Server) handleDetectScenario(c *gin.Context) {
	var req ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	prefs := req.Preferences
	if len(prefs) == 0 {
		prefs = req.UserPreferences
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"scenario": refine.DescribeScenario(req.Matches, prefs),
	})
}

func (s *Server) handleRecalculate(c *gin.Context) {
	var req RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.OriginalPreferences) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("original_preferences are required"))
		return
	}

	merged := req.OriginalPreferences.Clone()
	for _, delta := range req.Impacts {
		adjusted, preferred, restart := matching.ApplyAdjustments(merged, delta)
		if restart {
			logrus.Info("refinement requested a wizard restart")
			c.JSON(http.StatusOK, gin.H{"success": true, "action": "restart_wizard"})
			return
		}
		merged = adjusted
		if preferred != "" {
			merged["preferred_match"] = preferred
		}
	}

	result, err := s.runMatch(merged)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	metrics.MatchRequests.WithLabelValues("recalculate-matches").Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"matches":              emptyMatches(result.Matches),
		"total_found":          result.TotalFound,
		"modified_preferences": merged,
	})
}

func (s *Server) handleTextAndMatch(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	analysis, err := s.analyzer.AnalyzeText(c.Request.Context(), req.Text, req.Preferences)
	if err != nil {
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("text analysis: %w", err))
		return
	}

	if analysis.NeedsClarification() {
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"textAnalysis": analysisDTO(analysis),
		})
		return
	}

	updated, changed := s.applyAnalysis(req.Preferences, analysis)

	result, err := s.runMatch(updated)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	metrics.MatchRequests.WithLabelValues("process-text-and-match").Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"textAnalysis":       analysisDTO(analysis),
		"newMatches":         emptyMatches(result.Matches),
		"total_found":        result.TotalFound,
		"updatedPreferences": updated,
		"preferencesChanged": changed,
	})
}

func (s *Server) handleClarification(c *gin.Context) {
	var req ClarificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	prefs := req.Preferences.Clone()
	appliedFilter := ""
	filterActive := false

	switch req.SelectedOption.Action {
	case ai.ActionBoostSpecific:
		match, ok := s.catalog.Resolve(req.SelectedOption.Target)
		if !ok {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown provider %q", req.SelectedOption.Target))
			return
		}
		prefs["boost_diensten"] = appendUnique(prefs.Strings("boost_diensten"), match.DienstID)
		appliedFilter = "voorkeur voor " + match.Name
		filterActive = true
	case ai.ActionAdjustCriteria:
		target := strings.TrimSpace(req.SelectedOption.Target)
		if !isCriterion(target) {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown criterion %q", target))
			return
		}
		prefs[target+"_belangrijkheid"] = matching.HeelBelangrijk
		appliedFilter = target + " zwaarder meegewogen"
	case ai.ActionCancel:
		// nothing changes, return the current matches
	default:
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown clarification action %q", req.SelectedOption.Action))
		return
	}

	result, err := s.runMatch(prefs)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	metrics.MatchRequests.WithLabelValues("process-clarification").Inc()

	logrus.WithFields(logrus.Fields{
		"clarification_id": req.ClarificationID,
		"action":           req.SelectedOption.Action,
	}).Info("clarification resolved")

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"matches":       emptyMatches(result.Matches),
		"total_found":   result.TotalFound,
		"appliedFilter": appliedFilter,
		"filterActive":  filterActive,
	})
}

// handleInsights accepts the preferences splatted at the top level with the
// matches alongside, so the body is decoded by hand.
func (s *Server) handleInsights(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
		return
	}

	var matchPart struct {
		Matches []matching.Match `json:"matches"`
	}
	if err := json.Unmarshal(body, &matchPart); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	prefs := matching.Preferences{}
	if err := json.Unmarshal(body, &prefs); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	delete(prefs, "matches")

	matches := matchPart.Matches
	if len(matches) == 0 {
		result, err := s.runMatch(prefs)
		if err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		matches = result.Matches
	}

	insights, err := s.analyzer.Insights(c.Request.Context(), ai.InsightInput{
		Preferences: prefs,
		Matches:     matches,
	})
	if err != nil {
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("generate insights: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "insights": insights})
}

func (s *Server) handleSubmitLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid email address: %w", err))
		return
	}

	lead := &store.Lead{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		WantsGuidance: req.InterestInGuidance,
	}
	lead.SetPreferences(req.Preferences)
	lead.SetMatches(req.Matches)

	if err := s.db.SaveLead(lead); err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("save lead: %w", err))
		return
	}
	metrics.LeadsCaptured.Inc()

	logrus.WithFields(logrus.Fields{
		"lead_id":  lead.ID,
		"guidance": lead.WantsGuidance,
	}).Info("lead captured")

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// runMatch loads the catalog for the requested amount and runs the engine,
// including the similar-attributes second pass when refinement asked for it.
func (s *Server) runMatch(prefs matching.Preferences) (matching.Result, error) {
	timer := startMatchTimer()
	defer timer.observe()

	providers, err := s.db.ProvidersForMatching(prefs.Float("bedrag"))
	if err != nil {
		return matching.Result{}, fmt.Errorf("load providers: %w", err)
	}

	soft := matching.SoftPreferences{
		Boost:   prefs.Strings("boost_diensten"),
		Exclude: prefs.Strings("exclude_diensten"),
		Include: prefs.Strings("include_diensten"),
	}

	result := s.engine.Match(prefs, providers, soft)

	boostSimilar := prefs.Bool("boost_similar_attributes")
	reduceSimilar := prefs.Bool("reduce_similar_attributes")
	if (boostSimilar || reduceSimilar) && len(result.Matches) > 0 {
		top := result.Matches[0]
		for _, p := range providers {
			if p.DienstID == top.ID {
				continue
			}
			if sharesStrength(p.Strengths, top.Strengths) == boostSimilar {
				soft.Boost = appendUnique(soft.Boost, p.DienstID)
			}
		}
		result = s.engine.Match(prefs, providers, soft)
	}

	return result, nil
}

// applyAnalysis folds text analysis output into the preference record and
// resolves soft bank references against the catalog.
func (s *Server) applyAnalysis(prefs matching.Preferences, analysis ai.TextAnalysis) (matching.Preferences, bool) {
	updated := prefs.Clone()
	changed := false

	for key, value := range analysis.PreferenceUpdates {
		if updated[key] != value {
			updated[key] = value
			changed = true
		}
	}

	boost, exclude, include := ai.SoftPreferenceTargets(analysis.SoftPreferences)
	for _, pair := range []struct {
		key   string
		names []string
	}{
		{"boost_diensten", boost},
		{"exclude_diensten", exclude},
		{"include_diensten", include},
	} {
		ids := s.catalog.ResolveAll(pair.names)
		if len(ids) == 0 {
			continue
		}
		current := updated.Strings(pair.key)
		for _, id := range ids {
			current = appendUnique(current, id)
		}
		updated[pair.key] = current
		changed = true
	}

	return updated, changed
}

func (s *Server) handleReportStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("report websocket upgrade failed")
		return
	}

	client := s.reportNotifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("report websocket connected")
	defer s.reportNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("report websocket closed")
			} else {
				logrus.WithError(err).Warn("report websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// matchTimer measures one matching request, both for the processing_time_ms
// field in the response and for the duration histogram.
type matchTimer struct {
	start time.Time
}

func startMatchTimer() matchTimer {
	return matchTimer{start: time.Now()}
}

func (t matchTimer) ElapsedMs() int64 {
	return time.Since(t.start).Milliseconds()
}

func (t matchTimer) observe() {
	metrics.MatchDuration.Observe(time.Since(t.start).Seconds())
}

func appendUnique(items []string, value string) []string {
	for _, item := range items {
		if strings.EqualFold(item, value) {
			return items
		}
	}
	return append(items, value)
}

func sharesStrength(a, b []string) bool {
	for _, left := range a {
		for _, right := range b {
			if strings.EqualFold(strings.TrimSpace(left), strings.TrimSpace(right)) {
				return true
			}
		}
	}
	return false
}

func isCriterion(name string) bool {
	for _, crit := range matching.Criteria {
		if crit == name {
			return true
		}
	}
	return false
}
