package hgsgd

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A PostShuffler is notified after its list has been
// shuffled.
type PostShuffler interface {
	PostShuffle()
}

// Shuffle shuffles a list of samples.
// If r is nil, the global source is used.
// If the list implements PostShuffler, then PostShuffle
// is called after the shuffle completes.
func Shuffle(s SampleList, r *rand.Rand) {
	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
	if p, ok := s.(PostShuffler); ok {
		p.PostShuffle()
	}
}

// CosterGrad computes the gradient of a Coster's total
// cost for a batch with respect to params.
// It also returns the cost itself.
func CosterGrad(c Coster, b Batch, params []*anydiff.Var) (anydiff.Grad, anyvec.Numeric) {
	grad := anydiff.NewGrad(params...)
	cost := c.TotalCost(b)
	if len(grad) > 0 {
		upstream := cost.Output().Creator().MakeVector(1)
		upstream.AddScalar(cost.Output().Creator().MakeNumeric(1))
		cost.Propagate(upstream, grad)
	}
	return grad, anyvec.Sum(cost.Output())
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}
