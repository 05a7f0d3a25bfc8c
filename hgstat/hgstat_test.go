package hgstat

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
)

func TestDTW(t *testing.T) {
	tests := []struct {
		a, b     []float64
		expected float64
	}{
		{[]float64{1, 2, 3}, []float64{1, 2, 2, 3}, 0},
		{[]float64{0, 0}, []float64{1}, 2},
		{[]float64{1, 5, 2}, []float64{1, 5, 2}, 0},
		{[]float64{0, 1, 2}, []float64{2, 1, 0}, 4},
	}
	for i, test := range tests {
		if actual := DTW(test.a, test.b); math.Abs(actual-test.expected) > 1e-9 {
			t.Errorf("test %d: expected %f but got %f", i, test.expected, actual)
		}
		if actual := FastDTW(test.a, test.b, 1); math.Abs(actual-test.expected) > 1e-9 {
			t.Errorf("test %d (fast): expected %f but got %f", i, test.expected, actual)
		}
	}
	if !math.IsInf(DTW(nil, []float64{1}), 1) {
		t.Error("expected infinite distance for an empty sequence")
	}
}

func TestFastDTW(t *testing.T) {
	rng := rand.New(rand.NewSource(1337))
	for i := 0; i < 10; i++ {
		a := make([]float64, 30+rng.Intn(20))
		b := make([]float64, 30+rng.Intn(20))
		for j := range a {
			a[j] = rng.NormFloat64()
		}
		for j := range b {
			b[j] = rng.NormFloat64()
		}
		exact := DTW(a, b)
		approx := FastDTW(a, b, 1)
		if approx < exact-1e-9 {
			t.Errorf("approximation %f below exact distance %f", approx, exact)
		}
		if wide := FastDTW(a, b, 100); math.Abs(wide-exact) > 1e-9 {
			t.Errorf("wide radius: expected %f but got %f", exact, wide)
		}
	}
}

func TestFastDTWNarrowWindow(t *testing.T) {
	// At half resolution the path is (0,0) (0,1) (0,2) (1,2) (2,2).
	// With radius 1 its window leaves out (4,0) and (5,1), which
	// the exact path of cost 2 passes through.
	a := []float64{0, 0, 0, 0, 0, 1}
	b := []float64{0, 1, 1, 1, 0, 0}
	if actual := DTW(a, b); actual != 2 {
		t.Errorf("exact: expected 2 but got %f", actual)
	}
	if actual := FastDTW(a, b, 1); actual != 4 {
		t.Errorf("radius 1: expected 4 but got %f", actual)
	}
}

func TestDTWExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		a := make([]float64, 1+rng.Intn(5))
		b := make([]float64, 1+rng.Intn(5))
		for j := range a {
			a[j] = float64(rng.Intn(5))
		}
		for j := range b {
			b[j] = float64(rng.Intn(5))
		}
		expected := warpPathMin(a, b, len(a)-1, len(b)-1)
		if actual := DTW(a, b); actual != expected {
			t.Errorf("DTW(%v, %v): expected %f but got %f", a, b, expected, actual)
		}
	}
}

// warpPathMin enumerates every warp path ending at (i, j)
// and returns the lowest total cost.
func warpPathMin(a, b []float64, i, j int) float64 {
	cost := math.Abs(a[i] - b[j])
	if i == 0 && j == 0 {
		return cost
	}
	best := math.Inf(1)
	if i > 0 {
		best = math.Min(best, warpPathMin(a, b, i-1, j))
	}
	if j > 0 {
		best = math.Min(best, warpPathMin(a, b, i, j-1))
	}
	if i > 0 && j > 0 {
		best = math.Min(best, warpPathMin(a, b, i-1, j-1))
	}
	return cost + best
}

func TestSpherical(t *testing.T) {
	w := &hgdata.Windows{SeqLen: 2, Dim: 3, Data: []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 1.0000001,
	}}
	res, err := Spherical(w)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{0, math.Pi / 2, math.Pi / 2, math.Pi / 2, 0, 0, 0, 0}
	if res.SeqLen != 2 || res.Dim != 2 || len(res.Data) != len(expected) {
		t.Fatalf("unexpected shape %v", res.Shape())
	}
	for i, x := range expected {
		if math.Abs(res.Data[i]-x) > 1e-9 {
			t.Errorf("component %d: expected %f but got %f", i, x, res.Data[i])
		}
	}
	if _, err := Spherical(&hgdata.Windows{SeqLen: 1, Dim: 2}); !errors.Is(err, hgdata.ErrShapeMismatch) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSplitHalves(t *testing.T) {
	w := &hgdata.Windows{SeqLen: 4, Dim: 1, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	first, second, err := SplitHalves(w)
	if err != nil {
		t.Fatal(err)
	}
	if !equalFloats(first.Data, []float64{1, 2, 5, 6}) ||
		!equalFloats(second.Data, []float64{3, 4, 7, 8}) {
		t.Errorf("unexpected halves: %v, %v", first.Data, second.Data)
	}
	if _, _, err := SplitHalves(&hgdata.Windows{SeqLen: 3, Dim: 1}); err == nil {
		t.Error("expected error for odd window length")
	}
}

func TestWindowMetrics(t *testing.T) {
	label := &hgdata.Windows{SeqLen: 2, Dim: 1, Data: []float64{0, 0, 1, 1}}
	est := &hgdata.Windows{SeqLen: 2, Dim: 1, Data: []float64{3, 4, 9, 9}}
	dist, err := EuclideanMetric(label, est)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dist-5) > 1e-9 {
		t.Errorf("expected Euclidean distance 5 but got %f", dist)
	}
	dtw, err := DTWMetric(label, est)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dtw-7) > 1e-9 {
		t.Errorf("expected DTW 7 but got %f", dtw)
	}

	short := &hgdata.Windows{SeqLen: 2, Dim: 1, Data: []float64{0, 0}}
	if _, err := DTWMetric(label, short); !errors.Is(err, hgdata.ErrShapeMismatch) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLevenshtein(t *testing.T) {
	if d := Levenshtein("kitten", "sitting"); d != 3 {
		t.Errorf("expected 3 but got %d", d)
	}
	if d := LevenshteinSeq([]float64{0.1, 0.2, 0.3}, []float64{0.1, 0.3}, 0.1); d != 1 {
		t.Errorf("expected 1 but got %d", d)
	}
	if d := LevenshteinSeq([]float64{-1, 2}, []float64{-1.04, 2.03}, 0.1); d != 0 {
		t.Errorf("expected 0 but got %d", d)
	}
}

func TestAccF1(t *testing.T) {
	labels := []int{0, 1, 2, 2}
	scores := [][]float64{
		{0.9, 0.05, 0.05},
		{0.1, 0.3, 0.6},
		{0.2, 0.2, 0.6},
		{0, 0, 1},
	}
	acc, f1, err := AccF1(labels, scores)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(acc-0.75) > 1e-9 {
		t.Errorf("expected accuracy 0.75 but got %f", acc)
	}
	if math.Abs(f1-0.6) > 1e-9 {
		t.Errorf("expected F1 0.6 but got %f", f1)
	}

	res, err := NewResults(labels, Predict(scores))
	if err != nil {
		t.Fatal(err)
	}
	expected := [][]float64{{1, 0, 0}, {0, 0, 1}, {0, 0, 2}}
	for i, row := range expected {
		for j, x := range row {
			if res.Confusion.At(i, j) != x {
				t.Errorf("confusion (%d, %d): expected %f but got %f", i, j, x,
					res.Confusion.At(i, j))
			}
		}
	}

	if _, _, err := AccF1([]int{1}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestAccF1Dual(t *testing.T) {
	labels := [][]int{{0, 1}, {2, 2}}
	wrong := [][]float64{{0, 1, 0}, {0, 1, 0}}
	outputs := []DualScores{
		{wrong, {{0.9, 0.05, 0.05}, {0.1, 0.3, 0.6}}},
		{wrong, {{0.2, 0.2, 0.6}, {0, 0, 1}}},
	}
	acc, f1, err := AccF1Dual(labels, outputs)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(acc-0.75) > 1e-9 {
		t.Errorf("expected accuracy 0.75 but got %f", acc)
	}
	if math.Abs(f1-0.6) > 1e-9 {
		t.Errorf("expected F1 0.6 but got %f", f1)
	}
	if _, _, err := AccF1Dual(labels, outputs[:1]); err == nil {
		t.Error("expected batch count mismatch error")
	}
}

func TestAccF1Tasks(t *testing.T) {
	acc, f1, err := AccF1Tasks([]int{0, 2}, [][]float64{{0.1, 0.9}, {0.2, 0.7}}, 2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(acc-2.0/3) > 1e-9 || math.Abs(f1-2.0/3) > 1e-9 {
		t.Errorf("unexpected results: acc=%f f1=%f", acc, f1)
	}
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, x := range a {
		if x != b[i] {
			return false
		}
	}
	return true
}
