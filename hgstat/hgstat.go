// Package hgstat computes evaluation statistics for
// reconstructed gaze and head sequences.
package hgstat

import (
	"fmt"
	"math"

	"github.com/agnivade/levenshtein"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"gonum.org/v1/gonum/floats"
)

// DefaultRadius is the FastDTW radius used by DTWMetric.
const DefaultRadius = 1

// Spherical converts windows of 3-D direction vectors to
// windows of (theta, phi) angles, with theta = atan2(y, x)
// and phi = acos(z).
//
// The z component is clipped to [-1, 1] so that vectors
// slightly longer than one still have an angle.
func Spherical(w *hgdata.Windows) (*hgdata.Windows, error) {
	if w.Dim != 3 {
		return nil, fmt.Errorf("spherical coordinates: %w: dimension %d, expected 3",
			hgdata.ErrShapeMismatch, w.Dim)
	}
	res := &hgdata.Windows{SeqLen: w.SeqLen, Dim: 2}
	for i := 0; i < len(w.Data); i += 3 {
		x, y, z := w.Data[i], w.Data[i+1], w.Data[i+2]
		z = math.Max(-1, math.Min(1, z))
		res.Data = append(res.Data, math.Atan2(y, x), math.Acos(z))
	}
	return res, nil
}

// SplitHalves splits every window into its first and
// second half of time steps.
//
// It separates reconstructions holding the gaze rows of a
// window followed by its head rows.
func SplitHalves(w *hgdata.Windows) (first, second *hgdata.Windows, err error) {
	if w.SeqLen%2 != 0 {
		return nil, nil, fmt.Errorf("split halves: odd window length %d", w.SeqLen)
	}
	half := w.SeqLen / 2
	first = hgdata.NewWindows(half, w.Dim)
	second = hgdata.NewWindows(half, w.Dim)
	for i := 0; i < w.Len(); i++ {
		window := w.Window(i)
		first.AppendWindow(window[:half*w.Dim])
		second.AppendWindow(window[half*w.Dim:])
	}
	return first, second, nil
}

// DTWMetric computes the FastDTW distance between the
// flattened first windows of label and est.
//
// Only the first window is compared; this is the metric
// that experiments have been reported with.
func DTWMetric(label, est *hgdata.Windows) (float64, error) {
	a, b, err := firstWindows(label, est)
	if err != nil {
		return 0, err
	}
	return FastDTW(a, b, DefaultRadius), nil
}

// EuclideanMetric computes the Euclidean distance between
// the flattened first windows of label and est.
func EuclideanMetric(label, est *hgdata.Windows) (float64, error) {
	a, b, err := firstWindows(label, est)
	if err != nil {
		return 0, err
	}
	return floats.Distance(a, b, 2), nil
}

func firstWindows(label, est *hgdata.Windows) (a, b []float64, err error) {
	if label.Shape() != est.Shape() {
		return nil, nil, fmt.Errorf("%w: label %v, estimate %v", hgdata.ErrShapeMismatch,
			label.Shape(), est.Shape())
	}
	if label.Len() == 0 {
		return nil, nil, fmt.Errorf("no windows to compare")
	}
	return label.Window(0), est.Window(0), nil
}

// Levenshtein computes the edit distance between two
// strings.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// LevenshteinSeq computes the edit distance between two
// sequences after quantizing each value to a multiple of
// step.
func LevenshteinSeq(a, b []float64, step float64) int {
	if step <= 0 {
		panic("quantization step must be positive")
	}
	symbols := map[int64]rune{}
	encode := func(seq []float64) string {
		runes := make([]rune, len(seq))
		for i, x := range seq {
			q := int64(math.Round(x / step))
			r, ok := symbols[q]
			if !ok {
				// Private use area, so every symbol is a valid rune.
				r = rune(0xE000 + len(symbols))
				symbols[q] = r
			}
			runes[i] = r
		}
		return string(runes)
	}
	return Levenshtein(encode(a), encode(b))
}
