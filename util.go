package hgnet

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// Floats copies the contents of a vector into a float64
// slice.
// It supports vectors backed by float32 or float64 data.
func Floats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}
}

// Float converts a numeric from a float32 or float64
// creator into a float64.
func Float(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("unsupported numeric: %T", n))
	}
}

// MakeVector creates a vector from float64 data using the
// creator's numeric type.
func MakeVector(c anyvec.Creator, data []float64) anyvec.Vector {
	return c.MakeVectorData(c.MakeNumericList(data))
}
