package hgnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f FC
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFC)
}

// FC is a dense projection of every row of its input.
//
// Weights holds an OutCount x InCount row-major matrix.
// Since rows are mapped independently, the batch size
// passed to Apply may count tokens rather than windows.
type FC struct {
	InCount  int
	OutCount int
	Weights  *anydiff.Var
	Biases   *anydiff.Var
}

// DeserializeFC deserializes an FC, inferring its shape
// from the bias count.
func DeserializeFC(d []byte) (*FC, error) {
	var weights, biases *anyvecsave.S
	if err := serializer.DeserializeAny(d, &weights, &biases); err != nil {
		return nil, essentials.AddCtx("deserialize FC", err)
	}
	inCount := weights.Vector.Len() / biases.Vector.Len()
	outCount := biases.Vector.Len()
	if inCount*outCount != weights.Vector.Len() {
		return nil, errors.New("deserialize FC: invalid matrix dimensions")
	}
	return &FC{
		InCount:  inCount,
		OutCount: outCount,
		Weights:  anydiff.NewVar(weights.Vector),
		Biases:   anydiff.NewVar(biases.Vector),
	}, nil
}

// NewFC creates an FC with normally distributed weights
// scaled by 1/sqrt(in), so that unit-variance inputs give
// roughly unit-variance outputs.
// The biases start at zero.
func NewFC(c anyvec.Creator, in, out int) *FC {
	weights := c.MakeVector(in * out)
	anyvec.Rand(weights, anyvec.Normal, nil)
	weights.Scale(c.MakeNumeric(1 / math.Sqrt(float64(in))))
	return &FC{
		InCount:  in,
		OutCount: out,
		Weights:  anydiff.NewVar(weights),
		Biases:   anydiff.NewVar(c.MakeVector(out)),
	}
}

// Apply projects batch rows of InCount components each.
func (f *FC) Apply(in anydiff.Res, batch int) anydiff.Res {
	if batch*f.InCount != in.Output().Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			batch*f.InCount, in.Output().Len()))
	}
	rows := &anydiff.Matrix{Data: in, Rows: batch, Cols: f.InCount}
	weights := &anydiff.Matrix{Data: f.Weights, Rows: f.OutCount, Cols: f.InCount}
	return anydiff.AddRepeated(anydiff.MatMul(false, true, rows, weights).Data, f.Biases)
}

// ApplyRows applies the layer to every row of a packed
// row-major matrix, inferring the row count from the
// input length.
func (f *FC) ApplyRows(in anydiff.Res) anydiff.Res {
	if in.Output().Len()%f.InCount != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d",
			in.Output().Len(), f.InCount))
	}
	return f.Apply(in, in.Output().Len()/f.InCount)
}

// Parameters returns the weights and the biases.
func (f *FC) Parameters() []*anydiff.Var {
	return []*anydiff.Var{f.Weights, f.Biases}
}

// SerializerType returns the unique ID used to serialize
// an FC with the serializer package.
func (f *FC) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgnet.FC"
}

// Serialize saves the weights and biases.
func (f *FC) Serialize() ([]byte, error) {
	weights := &anyvecsave.S{Vector: f.Weights.Vector}
	biases := &anyvecsave.S{Vector: f.Biases.Vector}
	return serializer.SerializeAny(weights, biases)
}
