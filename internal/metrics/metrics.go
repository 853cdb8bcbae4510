// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartcare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heartcare_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Assessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartcare_assessments_total",
			Help: "Total number of scored assessments by risk level",
		},
		[]string{"risk_level"},
	)

	RiskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heartcare_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	Screenings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartcare_screenings_total",
			Help: "Total number of screening rule outcomes",
		},
		[]string{"outcome"},
	)
)

// ObserveRequest records one served HTTP request.
// route is the chi route pattern so IDs never become label values.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAssessment records the outcome of a scored assessment.
func ObserveAssessment(a *domain.Assessment) {
	if a == nil || a.Status != domain.StatusScored {
		return
	}
	Assessments.WithLabelValues(string(a.RiskLevel)).Inc()
	RiskScore.Observe(float64(a.RiskScore))
	for _, s := range a.Screenings {
		Screenings.WithLabelValues(strings.TrimPrefix(s.SubRuleRef, ".")).Inc()
	}
}
