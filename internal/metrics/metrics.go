package metrics

import "github.com/prometheus/client_golang/prometheus"

// MatchRequests counts matching runs per endpoint.
var MatchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "beleggingsmatch_match_requests_total",
	Help: "Number of matching runs, labeled by the endpoint that triggered them.",
}, []string{"endpoint"})

// MatchDuration observes end-to-end matching latency in seconds.
var MatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "beleggingsmatch_match_duration_seconds",
	Help:    "Latency of a full matching run.",
	Buckets: prometheus.DefBuckets,
})

// AIFallbacks counts primary analyzer failures per operation.
var AIFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "beleggingsmatch_ai_fallback_total",
	Help: "Times the heuristic fallback replaced the AI analyzer.",
}, []string{"operation"})

// LeadsCaptured counts stored leads.
var LeadsCaptured = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "beleggingsmatch_leads_total",
	Help: "Number of leads captured.",
})

// ReportJobs counts report jobs per terminal status.
var ReportJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "beleggingsmatch_report_jobs_total",
	Help: "Report generation jobs, labeled by outcome.",
}, []string{"status"})

// Init registers all collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(
		MatchRequests,
		MatchDuration,
		AIFallbacks,
		LeadsCaptured,
		ReportJobs,
	)
}
