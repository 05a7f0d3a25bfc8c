package hgnet

import "github.com/unixpickle/anydiff"

// A Cost measures how far reconstructions are from their
// targets.
//
// The desired and actual inputs are packed batches of n
// equally-long vectors.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// ElementwiseSE is an unreduced squared error.
// Its output has one component per input component.
type ElementwiseSE struct{}

// Cost computes (desired-actual)^2 for every component.
// The batch size is not used.
func (e ElementwiseSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	return anydiff.Square(anydiff.Sub(desired, actual))
}

// SumSE reduces a whole batch to its total squared error
// divided by Divisor.
//
// A Divisor equal to the number of components gives the
// mean squared error. A Divisor of 0 is treated as 1.
type SumSE struct {
	Divisor float64
}

// Cost computes the scaled total.
// The result has one component.
func (s SumSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	total := anydiff.Sum(ElementwiseSE{}.Cost(desired, actual, n))
	divisor := s.Divisor
	if divisor == 0 {
		divisor = 1
	}
	return anydiff.Scale(total, total.Output().Creator().MakeNumeric(1/divisor))
}
