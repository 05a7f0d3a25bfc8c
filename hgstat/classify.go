package hgstat

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Predict returns the arg-max class of every score row.
func Predict(scores [][]float64) []int {
	res := make([]int, len(scores))
	for i, row := range scores {
		res[i] = floats.MaxIdx(row)
	}
	return res
}

// AccF1 computes the accuracy and macro-averaged F1 score
// of arg-max predictions.
func AccF1(labels []int, scores [][]float64) (acc, f1 float64, err error) {
	res, err := NewResults(labels, Predict(scores))
	if err != nil {
		return 0, 0, err
	}
	return res.Accuracy(), res.MacroF1(), nil
}

// DualScores holds the per-class scores of both heads of a
// two-headed classifier for one batch.
type DualScores [2][][]float64

// AccF1Dual is like AccF1, but takes batched labels and
// two-headed outputs, scoring the second head only.
func AccF1Dual(labels [][]int, outputs []DualScores) (acc, f1 float64, err error) {
	if len(labels) != len(outputs) {
		return 0, 0, fmt.Errorf("dual results: %d label batches but %d outputs",
			len(labels), len(outputs))
	}
	var allLabels []int
	var scores [][]float64
	for i, batch := range labels {
		allLabels = append(allLabels, batch...)
		scores = append(scores, outputs[i][1]...)
	}
	return AccF1(allLabels, scores)
}

// Results is a confusion matrix over a set of classes.
type Results struct {
	// Classes are the sorted labels of the matrix rows and
	// columns.
	Classes []int

	// Confusion has true classes as rows and predicted
	// classes as columns.
	Confusion *mat.Dense
}

// NewResults tallies labels against predictions.
//
// The classes are every value seen in either list.
func NewResults(labels, predicted []int) (*Results, error) {
	if len(labels) != len(predicted) {
		return nil, fmt.Errorf("results: %d labels but %d predictions", len(labels),
			len(predicted))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("results: no samples")
	}
	seen := map[int]bool{}
	for i, l := range labels {
		seen[l] = true
		seen[predicted[i]] = true
	}
	res := &Results{}
	for c := range seen {
		res.Classes = append(res.Classes, c)
	}
	sort.Ints(res.Classes)
	index := map[int]int{}
	for i, c := range res.Classes {
		index[c] = i
	}
	res.Confusion = mat.NewDense(len(res.Classes), len(res.Classes), nil)
	for i, l := range labels {
		r, c := index[l], index[predicted[i]]
		res.Confusion.Set(r, c, res.Confusion.At(r, c)+1)
	}
	return res, nil
}

// Accuracy returns the fraction of correct predictions.
func (r *Results) Accuracy() float64 {
	return mat.Trace(r.Confusion) / mat.Sum(r.Confusion)
}

// MacroF1 returns the unweighted mean of the per-class F1
// scores.
// A class with no true or predicted samples scores 0.
func (r *Results) MacroF1() float64 {
	n := len(r.Classes)
	var sum float64
	for i := 0; i < n; i++ {
		tp := r.Confusion.At(i, i)
		fn := floats.Sum(mat.Row(nil, i, r.Confusion)) - tp
		fp := floats.Sum(mat.Col(nil, i, r.Confusion)) - tp
		if denom := 2*tp + fp + fn; denom > 0 {
			sum += 2 * tp / denom
		}
	}
	return sum / float64(n)
}

// AccF1Tasks scores multi-task detection outputs.
//
// A label of 0 means no task is present: each of the
// numTasks outputs is a negative sample, predicted
// positive if it exceeds threshold.
// A label k > 0 means task k is present: output k-1 is a
// single positive sample.
// The result is the accuracy and macro F1 over all the
// resulting binary samples.
func AccF1Tasks(labels []int, outputs [][]float64, numTasks int,
	threshold float64) (acc, f1 float64, err error) {
	if len(labels) != len(outputs) {
		return 0, 0, fmt.Errorf("task results: %d labels but %d outputs", len(labels),
			len(outputs))
	}
	var truth, predicted []int
	positive := func(x float64) int {
		if x > threshold {
			return 1
		}
		return 0
	}
	for i, l := range labels {
		if l == 0 {
			for j := 0; j < numTasks; j++ {
				truth = append(truth, 0)
				predicted = append(predicted, positive(outputs[i][j]))
			}
		} else {
			truth = append(truth, 1)
			predicted = append(predicted, positive(outputs[i][l-1]))
		}
	}
	res, err := NewResults(truth, predicted)
	if err != nil {
		return 0, 0, err
	}
	return res.Accuracy(), res.MacroF1(), nil
}
