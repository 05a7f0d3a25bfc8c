package hgsgd

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Default Adam hyperparameters.
const (
	DefaultBeta1   = 0.9
	DefaultBeta2   = 0.999
	DefaultEpsilon = 1e-8
)

// Adam rescales gradients by running estimates of their
// first and second moments (Kingma and Ba, 2014).
//
// The returned step for every component is
//
//	m / (1 - Beta1^t) / (sqrt(v / (1 - Beta2^t)) + Epsilon)
//
// Zero fields use the defaults above.
type Adam struct {
	Beta1   float64
	Beta2   float64
	Epsilon float64

	moments map[*anydiff.Var]*adamMoments
	steps   int
}

type adamMoments struct {
	mean   anyvec.Vector
	square anyvec.Vector
}

// Transform replaces every gradient with its Adam step,
// in place.
//
// It is not safe to call Transform concurrently.
func (a *Adam) Transform(g anydiff.Grad) anydiff.Grad {
	if a.moments == nil {
		a.moments = map[*anydiff.Var]*adamMoments{}
	}
	a.steps++
	beta1 := valueOrDefault(a.Beta1, DefaultBeta1)
	beta2 := valueOrDefault(a.Beta2, DefaultBeta2)
	eps := valueOrDefault(a.Epsilon, DefaultEpsilon)
	meanCorrection := 1 / (1 - math.Pow(beta1, float64(a.steps)))
	squareCorrection := 1 / (1 - math.Pow(beta2, float64(a.steps)))

	for variable, vec := range g {
		c := vec.Creator()
		m, ok := a.moments[variable]
		if !ok {
			m = &adamMoments{mean: c.MakeVector(vec.Len()), square: c.MakeVector(vec.Len())}
			a.moments[variable] = m
		}
		m.mean.Scale(c.MakeNumeric(beta1))
		scaled := vec.Copy()
		scaled.Scale(c.MakeNumeric(1 - beta1))
		m.mean.Add(scaled)

		m.square.Scale(c.MakeNumeric(beta2))
		squared := vec.Copy()
		anyvec.Pow(squared, c.MakeNumeric(2))
		squared.Scale(c.MakeNumeric(1 - beta2))
		m.square.Add(squared)

		denom := m.square.Copy()
		denom.Scale(c.MakeNumeric(squareCorrection))
		anyvec.Pow(denom, c.MakeNumeric(0.5))
		denom.AddScalar(c.MakeNumeric(eps))

		vec.Set(m.mean)
		vec.Scale(c.MakeNumeric(meanCorrection))
		vec.Div(denom)
	}
	return g
}

// Steps returns the number of gradients transformed so
// far.
func (a *Adam) Steps() int {
	return a.steps
}
