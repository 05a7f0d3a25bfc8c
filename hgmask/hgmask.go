// Package hgmask implements the span masking policy used
// to corrupt windows before reconstruction.
package hgmask

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
)

// SpanProb is the success probability of the geometric
// distribution that span lengths are drawn from.
const SpanProb = 0.2

// SpanMask picks goal distinct positions in [0, seqLen-1)
// by masking random spans.
//
// Span lengths follow a geometric distribution with
// success probability p, truncated to maxGram.
// A span never extends onto the last position, and a span
// is only started at a position that is not yet masked.
// The positions are returned in increasing order.
func SpanMask(rng *rand.Rand, seqLen, maxGram int, p float64, goal int) []int {
	if goal > seqLen-1 {
		goal = seqLen - 1
	}
	weights := spanWeights(maxGram, p)
	masked := map[int]bool{}
	for len(masked) < goal {
		n := sampleSpan(rng, weights)
		if remaining := goal - len(masked); n > remaining {
			n = remaining
		}
		anchor := rng.Intn(seqLen)
		if masked[anchor] {
			continue
		}
		end := anchor + n
		if end > seqLen-1 {
			end = seqLen - 1
		}
		for i := anchor; i < end; i++ {
			masked[i] = true
		}
	}
	res := make([]int, 0, len(masked))
	for i := range masked {
		res = append(res, i)
	}
	sort.Ints(res)
	return res
}

func spanWeights(maxGram int, p float64) []float64 {
	weights := make([]float64, maxGram)
	var sum float64
	for i := range weights {
		weights[i] = p * math.Pow(1-p, float64(i))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func sampleSpan(rng *rand.Rand, weights []float64) int {
	x := rng.Float64()
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i + 1
		}
	}
	return len(weights)
}

// A Masker corrupts windows of a time series.
type Masker struct {
	// Ratio is the fraction of positions to mask.
	Ratio float64

	// MaxGram is the longest masked span.
	MaxGram int

	// MaskProb is the probability that the masked rows are
	// set to zero.
	MaskProb float64

	// ReplaceProb is the probability that masked rows are
	// replaced with uniform noise when they were not
	// zeroed.
	ReplaceProb float64
}

// NewMasker creates a Masker from a mask config.
func NewMasker(cfg *hgconf.MaskConfig) *Masker {
	return &Masker{
		Ratio:       cfg.MaskRatio,
		MaxGram:     cfg.MaxGram,
		MaskProb:    cfg.MaskProb,
		ReplaceProb: cfg.ReplaceProb,
	}
}

// Validate checks the masking parameters.
func (m *Masker) Validate() error {
	if m.Ratio <= 0 || m.Ratio >= 1 {
		return errors.New("mask ratio must be in (0, 1)")
	}
	if m.MaxGram <= 0 {
		return errors.New("max gram must be positive")
	}
	if m.MaskProb < 0 || m.MaskProb > 1 || m.ReplaceProb < 0 || m.ReplaceProb > 1 {
		return errors.New("mask and replace probabilities must be in [0, 1]")
	}
	return nil
}

// NumPredict returns the number of positions masked in a
// window of seqLen steps.
func (m *Masker) NumPredict(seqLen int) int {
	n := int(math.Round(float64(seqLen) * m.Ratio))
	if n < 1 {
		n = 1
	}
	if n > seqLen-1 {
		n = seqLen - 1
	}
	return n
}

// A Masked is a window after masking.
type Masked struct {
	// Input is the corrupted SeqLen x Dim window.
	Input []float64

	// Positions are the masked time steps, in order.
	Positions []int

	// Target holds the original rows at Positions, packed
	// as len(Positions) x Dim.
	Target []float64
}

// Mask corrupts a packed seqLen x dim window.
// The window itself is not modified.
func (m *Masker) Mask(rng *rand.Rand, window []float64, seqLen, dim int) *Masked {
	if len(window) != seqLen*dim {
		panic("window size does not match seqLen*dim")
	}
	positions := SpanMask(rng, seqLen, m.MaxGram, SpanProb, m.NumPredict(seqLen))

	input := append([]float64{}, window...)
	if rng.Float64() < m.MaskProb {
		for _, pos := range positions {
			row := input[pos*dim : (pos+1)*dim]
			for i := range row {
				row[i] = 0
			}
		}
	} else if rng.Float64() < m.ReplaceProb {
		for _, pos := range positions {
			row := input[pos*dim : (pos+1)*dim]
			for i := range row {
				row[i] = rng.Float64()
			}
		}
	}

	target := make([]float64, 0, len(positions)*dim)
	for _, pos := range positions {
		target = append(target, window[pos*dim:(pos+1)*dim]...)
	}
	return &Masked{Input: input, Positions: positions, Target: target}
}
