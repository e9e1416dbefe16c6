package retrieval

import (
	"fmt"
	"math"
)

// Metric selects the distance function used by SearchNearest. Results are
// always ordered by ascending distance, so inner product is negated the way
// pgvector's <#> operator does it.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricInner     Metric = "inner"
)

// ParseMetric validates a metric name from configuration or a request.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricEuclidean, MetricInner:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown distance metric %q (want cosine, euclidean or inner)", s)
}

// distance computes the chosen distance between two equal-length vectors.
// Lower is closer for every metric.
func distance(metric Metric, a, b []float32) float64 {
	var dot, aSq, bSq, diffSq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aSq += x * x
		bSq += y * y
		d := x - y
		diffSq += d * d
	}

	switch metric {
	case MetricEuclidean:
		return math.Sqrt(diffSq)
	case MetricInner:
		return -dot
	default: // cosine
		denom := math.Sqrt(aSq) * math.Sqrt(bSq)
		if denom == 0 {
			return 1
		}
		return 1 - dot/denom
	}
}
