package main

import (
	"fmt"
	"io"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// Confusion tracks benchmark outcomes. Positive means heart disease.
type Confusion struct {
	TruePositives  int64
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64

	Errors    int64
	LatencyMs int64
	Processed int64
}

func (c *Confusion) add(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TruePositives++
	case predicted && !actual:
		c.FalsePositives++
	case !predicted && !actual:
		c.TrueNegatives++
	default:
		c.FalseNegatives++
	}
}

func (c *Confusion) total() int64 {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is TP / (TP + FP).
func (c *Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is TP / (TP + FN).
func (c *Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (c *Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is the share of correct predictions.
func (c *Confusion) Accuracy() float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.total())
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// predicts reports whether a level counts as a positive prediction.
func predicts(level domain.RiskLevel, threshold domain.RiskLevel) bool {
	if threshold == domain.RiskModerate {
		return level == domain.RiskModerate || level == domain.RiskHigh
	}
	return level == domain.RiskHigh
}

func printResults(w io.Writer, c *Confusion, threshold domain.RiskLevel, duration time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "BENCHMARK RESULTS")
	fmt.Fprintf(w, "   Positive prediction:  %s or above\n", threshold)
	fmt.Fprintf(w, "   Total Processed:      %d\n", c.Processed)
	fmt.Fprintf(w, "   Heart Disease:        %d\n", c.TruePositives+c.FalseNegatives)
	fmt.Fprintf(w, "   No Heart Disease:     %d\n", c.TrueNegatives+c.FalsePositives)
	fmt.Fprintf(w, "   Errors:               %d\n", c.Errors)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "CONFUSION MATRIX")
	fmt.Fprintln(w, "                        Predicted")
	fmt.Fprintln(w, "                     Risk      No risk")
	fmt.Fprintln(w, "              +----------+----------+")
	fmt.Fprintf(w, "   Actual  HD  | %8d | %8d |  (TP, FN)\n", c.TruePositives, c.FalseNegatives)
	fmt.Fprintln(w, "              +----------+----------+")
	fmt.Fprintf(w, "          NHD  | %8d | %8d |  (FP, TN)\n", c.FalsePositives, c.TrueNegatives)
	fmt.Fprintln(w, "              +----------+----------+")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "DETECTION METRICS")
	fmt.Fprintf(w, "   Precision:  %.4f\n", c.Precision())
	fmt.Fprintf(w, "   Recall:     %.4f\n", c.Recall())
	fmt.Fprintf(w, "   F1-Score:   %.4f\n", c.F1())
	fmt.Fprintf(w, "   Accuracy:   %.4f\n", c.Accuracy())

	fmt.Fprintln(w)
	fmt.Fprintln(w, "PERFORMANCE")
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if c.Processed > 0 && duration > 0 {
		fmt.Fprintf(w, "   Avg Latency:      %.2f ms\n", float64(c.LatencyMs)/float64(c.Processed))
		fmt.Fprintf(w, "   Throughput:       %.2f rows/sec\n", float64(c.Processed)/duration.Seconds())
	}
	fmt.Fprintln(w)
}
