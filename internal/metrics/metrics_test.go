package metrics

import (
	"testing"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveAssessment(t *testing.T) {
	before := value(t, Assessments.WithLabelValues("High"))
	reviews := value(t, Screenings.WithLabelValues("review"))

	ObserveAssessment(&domain.Assessment{
		Status:    domain.StatusScored,
		RiskScore: 80,
		RiskLevel: domain.RiskHigh,
		Screenings: []domain.RuleResult{
			{RuleID: "a", SubRuleRef: domain.RuleOutcomeReview},
			{RuleID: "b", SubRuleRef: domain.RuleOutcomePass},
		},
	})

	if got := value(t, Assessments.WithLabelValues("High")); got != before+1 {
		t.Errorf("expected High counter %v, got %v", before+1, got)
	}
	if got := value(t, Screenings.WithLabelValues("review")); got != reviews+1 {
		t.Errorf("expected review counter %v, got %v", reviews+1, got)
	}
}

func TestObserveAssessmentSkipsPending(t *testing.T) {
	before := value(t, Assessments.WithLabelValues(""))

	ObserveAssessment(&domain.Assessment{Status: domain.StatusPending})
	ObserveAssessment(nil)

	if got := value(t, Assessments.WithLabelValues("")); got != before {
		t.Errorf("pending assessments must not be counted, got %v", got)
	}
}

func TestObserveRequest(t *testing.T) {
	before := value(t, HTTPRequests.WithLabelValues("GET", "/health", "200"))
	ObserveRequest("GET", "/health", 200, 0)
	if got := value(t, HTTPRequests.WithLabelValues("GET", "/health", "200")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}
