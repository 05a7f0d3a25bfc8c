package hgnet

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultLNStabilizer = 1e-12

func init() {
	var l LayerNorm
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLayerNorm)
}

// LayerNorm normalizes every token of a packed row-major
// matrix to zero mean and unit variance, then applies a
// learned per-column gain and bias.
//
// Unlike batch normalization, the statistics of one token
// never depend on the other tokens in the batch.
type LayerNorm struct {
	// Cols is the number of components in each row.
	Cols int

	Gain *anydiff.Var
	Bias *anydiff.Var

	// Stabilizer is added to variances to keep them from
	// being 0.
	// If it is 0, a default is used.
	Stabilizer float64
}

// DeserializeLayerNorm deserializes a LayerNorm.
func DeserializeLayerNorm(d []byte) (*LayerNorm, error) {
	var gain, bias *anyvecsave.S
	var stab serializer.Float64
	if err := serializer.DeserializeAny(d, &gain, &bias, &stab); err != nil {
		return nil, essentials.AddCtx("deserialize LayerNorm", err)
	}
	if gain.Vector.Len() != bias.Vector.Len() {
		return nil, errors.New("deserialize LayerNorm: gain and bias sizes differ")
	}
	return &LayerNorm{
		Cols:       gain.Vector.Len(),
		Gain:       anydiff.NewVar(gain.Vector),
		Bias:       anydiff.NewVar(bias.Vector),
		Stabilizer: float64(stab),
	}, nil
}

// NewLayerNorm creates a LayerNorm for rows of cols
// components with a unit gain and zero bias.
func NewLayerNorm(c anyvec.Creator, cols int) *LayerNorm {
	gain := c.MakeVector(cols)
	gain.AddScalar(c.MakeNumeric(1))
	return &LayerNorm{
		Cols: cols,
		Gain: anydiff.NewVar(gain),
		Bias: anydiff.NewVar(c.MakeVector(cols)),
	}
}

// Apply normalizes the rows of the input.
//
// The row count is inferred from the input, so n may be
// the number of windows or the number of tokens.
func (l *LayerNorm) Apply(in anydiff.Res, n int) anydiff.Res {
	if in.Output().Len()%l.Cols != 0 {
		panic(fmt.Sprintf("input size %d not divisible by %d columns",
			in.Output().Len(), l.Cols))
	}
	rows := in.Output().Len() / l.Cols
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		c := in.Output().Creator()
		inMat := &anydiff.Matrix{Data: in, Rows: rows, Cols: l.Cols}
		negMean := anydiff.Scale(anydiff.SumCols(inMat),
			c.MakeNumeric(-1/float64(l.Cols)))

		// Per-row statistics are broadcast with AddRepeated
		// in column-major order.
		centeredT := anydiff.AddRepeated(anydiff.Transpose(inMat).Data, negMean)
		return anydiff.Pool(centeredT, func(centeredT anydiff.Res) anydiff.Res {
			centered := anydiff.Transpose(&anydiff.Matrix{
				Data: centeredT,
				Rows: l.Cols,
				Cols: rows,
			})
			variance := anydiff.Scale(
				anydiff.SumCols(&anydiff.Matrix{
					Data: anydiff.Square(centered.Data),
					Rows: rows,
					Cols: l.Cols,
				}),
				c.MakeNumeric(1/float64(l.Cols)),
			)
			variance = anydiff.AddScalar(variance, c.MakeNumeric(l.stabilizer()))
			normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))
			zeros := anydiff.NewConst(c.MakeVector(rows))
			normT := anydiff.ScaleAddRepeated(centeredT, normalizer, zeros)
			norm := anydiff.Transpose(&anydiff.Matrix{
				Data: normT,
				Rows: l.Cols,
				Cols: rows,
			})
			return anydiff.ScaleAddRepeated(norm.Data, l.Gain, l.Bias)
		})
	})
}

// Parameters returns the gain and the bias.
func (l *LayerNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{l.Gain, l.Bias}
}

// SerializerType returns the unique ID used to serialize
// a LayerNorm with the serializer package.
func (l *LayerNorm) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgnet.LayerNorm"
}

// Serialize serializes the layer.
func (l *LayerNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: l.Gain.Vector},
		&anyvecsave.S{Vector: l.Bias.Vector},
		serializer.Float64(l.Stabilizer),
	)
}

func (l *LayerNorm) stabilizer() float64 {
	if l.Stabilizer == 0 {
		return defaultLNStabilizer
	}
	return l.Stabilizer
}
