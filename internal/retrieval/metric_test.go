package retrieval

import (
	"math"
	"testing"
)

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"cosine", "euclidean", "inner"} {
		m, err := ParseMetric(name)
		if err != nil {
			t.Errorf("ParseMetric(%q): %v", name, err)
		}
		if string(m) != name {
			t.Errorf("ParseMetric(%q) = %q", name, m)
		}
	}
	if _, err := ParseMetric("manhattan"); err == nil {
		t.Error("ParseMetric accepted unknown metric")
	}
}

func TestDistance_Cosine(t *testing.T) {
	a := []float32{1, 0}
	if d := distance(MetricCosine, a, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("identical vectors: %f, want 0", d)
	}
	if d := distance(MetricCosine, a, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors: %f, want 1", d)
	}
	if d := distance(MetricCosine, a, []float32{-1, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("opposite vectors: %f, want 2", d)
	}
	// Zero vector has no direction; treated as maximally dissimilar.
	if d := distance(MetricCosine, a, []float32{0, 0}); math.Abs(d-1) > 1e-9 {
		t.Errorf("zero vector: %f, want 1", d)
	}
}

func TestDistance_Euclidean(t *testing.T) {
	d := distance(MetricEuclidean, []float32{0, 0}, []float32{3, 4})
	if math.Abs(d-5) > 1e-6 {
		t.Errorf("distance = %f, want 5", d)
	}
}

func TestDistance_Inner(t *testing.T) {
	// More aligned vectors must score as closer (smaller distance).
	q := []float32{1, 1}
	near := distance(MetricInner, q, []float32{2, 2})
	far := distance(MetricInner, q, []float32{0.1, 0.1})
	if near >= far {
		t.Errorf("near=%f far=%f, want near < far", near, far)
	}
}
