// Package hgsgd provides mini-batch stochastic gradient
// descent for training hgnet models.
package hgsgd

import (
	"errors"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
)

// ErrEmptySamples is returned when SGD is run without any
// samples.
var ErrEmptySamples = errors.New("cannot run SGD with empty sample list")

// SGD performs stochastic gradient descent.
type SGD struct {
	// Fetcher packs sub-lists of Samples into Batches.
	Fetcher Fetcher

	// Gradienter is used to compute initial, untransformed
	// gradients for each mini-batch.
	Gradienter Gradienter

	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer Transformer

	// Samples is the list of training samples to use for
	// training.
	// It will be shuffled and re-shuffled as needed.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// StatusFunc, if non-nil, is called before every
	// iteration with the next mini-batch.
	StatusFunc func(b Batch)

	// BatchSize is the mini-batch size.
	// If it is 0, then the entire sample list is used at
	// every iteration.
	BatchSize int

	// Rand is used for shuffling.
	// If it is nil, the global source is used.
	Rand *rand.Rand

	// NumProcessed keeps track of the number of samples that
	// have been passed to Gradienter so far.
	// It is used to compute the epoch for Rater.
	NumProcessed int
}

// Run runs SGD until done is closed.
func (s *SGD) Run(done <-chan struct{}) error {
	for {
		if err := s.RunEpoch(done); err != nil {
			return err
		}
		if isClosed(done) {
			return nil
		}
	}
}

// RunEpoch shuffles the samples and performs one pass over
// them.
// The pass ends early, without an error, if done is
// closed.
func (s *SGD) RunEpoch(done <-chan struct{}) error {
	if s.Samples.Len() == 0 {
		return ErrEmptySamples
	}
	Shuffle(s.Samples, s.Rand)
	for idx := 0; idx < s.Samples.Len(); {
		if isClosed(done) {
			return nil
		}
		batchSize := s.batchSize(s.Samples.Len() - idx)
		sub := s.Samples.Slice(idx, idx+batchSize)
		idx += batchSize

		batch, err := s.Fetcher.Fetch(sub)
		if err != nil {
			return essentials.AddCtx("SGD", err)
		}

		if s.StatusFunc != nil {
			s.StatusFunc(batch)
			if isClosed(done) {
				return nil
			}
		}

		s.Step(batch, batchSize)
	}
	return nil
}

// Step applies one update for a fetched batch containing
// n samples.
func (s *SGD) Step(batch Batch, n int) {
	grad := s.Gradienter.Gradient(batch)
	if s.Transformer != nil {
		grad = s.Transformer.Transform(grad)
	}

	epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
	scaleGrad(grad, -s.Rater.Rate(epoch))
	grad.AddToVars()

	s.NumProcessed += n
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	}
	return s.BatchSize
}

func isClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, v := range g {
		g.Scale(v.Creator().MakeNumeric(s))
		return
	}
}
