package hgsgd

import "github.com/unixpickle/anydiff"

// A Transformer rewrites raw gradients into update
// directions, as Adam does.
//
// It may work in place and return its argument. Callers
// must not hold on to a result past the next call, and a
// Transformer must not keep its input.
// Successive gradients are expected to cover the same
// variables.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Batch is a packed group of samples, produced by a
// Fetcher and consumed by a Gradienter.
type Batch interface{}

// A Fetcher packs a SampleList into a Batch.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes the gradient of a Batch's cost.
// It may reuse the same Grad across calls.
type Gradienter interface {
	Gradient(b Batch) anydiff.Grad
}

// A Rater gives the learning rate at a point in training,
// measured in (possibly fractional) epochs.
type Rater interface {
	Rate(epoch float64) float64
}

// A SampleList is a shuffleable list of training samples.
type SampleList interface {
	Len() int
	Swap(i, j int)

	// Slice returns a shallow copy of samples i to j.
	Slice(i, j int) SampleList
}

// A Coster computes a one-component differentiable cost
// for a Batch.
type Coster interface {
	TotalCost(b Batch) anydiff.Res
}
