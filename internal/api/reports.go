package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"beleggingsmatch/internal/matching"
	"beleggingsmatch/internal/metrics"
	"beleggingsmatch/internal/store"
)

const reportJobTimeout = 2 * time.Minute

// reportJob tracks the state of a running report generation.
type reportJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
}

// handleGenerateReport renders the report synchronously and stores it so the
// returned URL can serve it again later.
func (s *Server) handleGenerateReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Matches) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("matches are required"))
		return
	}

	content, err := s.reports.Generate(c.Request.Context(), req.UserData, req.Matches, req.ClaudeAnalysis)
	if err != nil {
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("generate report: %w", err))
		return
	}

	reportURL := ""
	if jobID, err := s.storeCompletedReport(req.UserData, content); err != nil {
		logrus.WithError(err).Warn("persist generated report")
	} else {
		reportURL = "/api/reports/jobs/" + jobID + "/download"
	}
	metrics.ReportJobs.WithLabelValues(store.JobCompleted).Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"report_content": content,
		"report_url":     reportURL,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReportDownload renders the report and serves it directly as an HTML
// attachment.
func (s *Server) handleReportDownload(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Matches) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("matches are required"))
		return
	}

	content, err := s.reports.Generate(c.Request.Context(), req.UserData, req.Matches, req.ClaudeAnalysis)
	if err != nil {
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("generate report: %w", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="beleggingsrapport.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(content))
}

func (s *Server) handleStartReportJob(c *gin.Context) {
	var req ReportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Preferences) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("preferences are required"))
		return
	}

	s.jobMu.Lock()
	job, err := s.startReportJob(req.Preferences)
	s.jobMu.Unlock()
	if err != nil {
		s.renderError(c, http.StatusConflict, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.id, "status": store.JobPending})
}

func (s *Server) handleReportJobStatus(c *gin.Context) {
	job, err := s.db.GetReportJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("unknown report job %q", c.Param("id")))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	resp := gin.H{"job_id": job.JobID, "status": job.Status}
	if job.Message != "" {
		resp["message"] = job.Message
	}
	if job.Status == store.JobCompleted {
		resp["content"] = job.ContentHTML
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReportJobDownload(c *gin.Context) {
	job, err := s.db.GetReportJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("unknown report job %q", c.Param("id")))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if job.Status != store.JobCompleted {
		s.renderError(c, http.StatusConflict, fmt.Errorf("report job is %s", job.Status))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="beleggingsrapport.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(job.ContentHTML))
}

// startReportJob launches a new asynchronous report run. The caller must
// hold s.jobMu prior to invoking this function.
func (s *Server) startReportJob(prefs matching.Preferences) (*reportJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("report job already running")
	}

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportJobTimeout)
	job := &reportJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
	}

	if _, err := s.db.CreateReportJob(job.id, string(prefsJSON)); err != nil {
		job.cancel()
		return nil, fmt.Errorf("create report job: %w", err)
	}

	s.activeJob = job
	go s.runReportJob(ctx, job, prefs)
	return job, nil
}

func (s *Server) runReportJob(ctx context.Context, job *reportJob, prefs matching.Preferences) {
	log := logrus.WithField("job_id", job.id)
	finishStatus := store.JobCompleted
	finishMessage := ""

	defer func() {
		job.cancel()
		metrics.ReportJobs.WithLabelValues(finishStatus).Inc()
		s.reportNotifier.Broadcast(ReportEvent{
			Type:    "finished",
			JobID:   job.id,
			Status:  finishStatus,
			Message: finishMessage,
		})
		log.WithFields(logrus.Fields{
			"status":   finishStatus,
			"duration": time.Since(job.startedAt),
		}).Info("report job finished")

		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	if err := s.db.UpdateReportJob(job.id, store.JobRunning, "", ""); err != nil {
		log.WithError(err).Warn("mark report job running")
	}
	s.reportNotifier.Broadcast(ReportEvent{Type: "started", JobID: job.id, Status: store.JobRunning})

	result, err := s.runMatch(prefs)
	if err != nil {
		finishStatus, finishMessage = s.failReportJob(job.id, fmt.Errorf("matching: %w", err))
		return
	}
	if len(result.Matches) == 0 {
		finishStatus, finishMessage = s.failReportJob(job.id, errors.New("no matches for the given preferences"))
		return
	}

	s.reportNotifier.Broadcast(ReportEvent{
		Type:    "progress",
		JobID:   job.id,
		Status:  store.JobRunning,
		Message: fmt.Sprintf("matching gereed, %d diensten gevonden", result.TotalFound),
	})

	content, err := s.reports.Generate(ctx, prefs, result.Matches, "")
	if err != nil {
		finishStatus, finishMessage = s.failReportJob(job.id, fmt.Errorf("generate report: %w", err))
		return
	}

	if err := s.db.UpdateReportJob(job.id, store.JobCompleted, "", content); err != nil {
		log.WithError(err).Error("store completed report")
		finishStatus, finishMessage = store.JobFailed, "report could not be stored"
		return
	}
}

func (s *Server) failReportJob(jobID string, cause error) (string, string) {
	logrus.WithError(cause).WithField("job_id", jobID).Error("report job failed")
	message := cause.Error()
	if err := s.db.UpdateReportJob(jobID, store.JobFailed, message, ""); err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Warn("mark report job failed")
	}
	return store.JobFailed, message
}

// storeCompletedReport persists a synchronously generated report under a
// fresh job id so it stays downloadable.
func (s *Server) storeCompletedReport(prefs matching.Preferences, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty report content")
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return "", err
	}
	jobID := uuid.NewString()
	if _, err := s.db.CreateReportJob(jobID, string(prefsJSON)); err != nil {
		return "", err
	}
	if err := s.db.UpdateReportJob(jobID, store.JobCompleted, "", content); err != nil {
		return "", err
	}
	return jobID, nil
}
