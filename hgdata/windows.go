package hgdata

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// ErrShapeMismatch is returned when two sets of windows
// that must line up have different shapes.
var ErrShapeMismatch = errors.New("window shapes do not match")

func init() {
	var w Windows
	serializer.RegisterTypedDeserializer(w.SerializerType(), DeserializeWindows)
}

// Windows is a stack of fixed-length, non-overlapping
// windows of a multivariate time series.
//
// The data is packed as N x SeqLen x Dim in row-major
// order.
type Windows struct {
	SeqLen int
	Dim    int
	Data   []float64
}

// NewWindows creates an empty stack.
func NewWindows(seqLen, dim int) *Windows {
	return &Windows{SeqLen: seqLen, Dim: dim}
}

// DeserializeWindows deserializes a Windows.
func DeserializeWindows(d []byte) (*Windows, error) {
	var seqLen, dim serializer.Int
	var vec *anyvecsave.S
	if err := serializer.DeserializeAny(d, &seqLen, &dim, &vec); err != nil {
		return nil, essentials.AddCtx("deserialize Windows", err)
	}
	res := &Windows{SeqLen: int(seqLen), Dim: int(dim)}
	switch data := vec.Vector.Data().(type) {
	case []float64:
		res.Data = data
	case []float32:
		res.Data = make([]float64, len(data))
		for i, x := range data {
			res.Data[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("deserialize Windows: unsupported data %T", data)
	}
	if res.SeqLen <= 0 || res.Dim <= 0 || len(res.Data)%(res.SeqLen*res.Dim) != 0 {
		return nil, errors.New("deserialize Windows: inconsistent shape")
	}
	return res, nil
}

// Len returns the number of windows.
func (w *Windows) Len() int {
	if w.SeqLen == 0 || w.Dim == 0 {
		return 0
	}
	return len(w.Data) / (w.SeqLen * w.Dim)
}

// Shape returns (N, SeqLen, Dim).
func (w *Windows) Shape() [3]int {
	return [3]int{w.Len(), w.SeqLen, w.Dim}
}

// Window returns the packed SeqLen x Dim data of the i-th
// window.
// The result aliases w.Data.
func (w *Windows) Window(i int) []float64 {
	size := w.SeqLen * w.Dim
	return w.Data[i*size : (i+1)*size]
}

// At returns the vector at time step t of window i.
// The result aliases w.Data.
func (w *Windows) At(i, t int) []float64 {
	start := (i*w.SeqLen + t) * w.Dim
	return w.Data[start : start+w.Dim]
}

// AppendWindow appends a packed SeqLen x Dim window.
func (w *Windows) AppendWindow(window []float64) {
	if len(window) != w.SeqLen*w.Dim {
		panic(fmt.Sprintf("window size should be %d but got %d", w.SeqLen*w.Dim,
			len(window)))
	}
	w.Data = append(w.Data, window...)
}

// Concat appends every window of other to w.
func (w *Windows) Concat(other *Windows) error {
	if other.SeqLen != w.SeqLen || other.Dim != w.Dim {
		return fmt.Errorf("concat windows: %w: (%d, %d) vs (%d, %d)", ErrShapeMismatch,
			w.SeqLen, w.Dim, other.SeqLen, other.Dim)
	}
	w.Data = append(w.Data, other.Data...)
	return nil
}

// Slice returns the windows in [i, j).
// The result aliases w.Data.
func (w *Windows) Slice(i, j int) *Windows {
	size := w.SeqLen * w.Dim
	return &Windows{SeqLen: w.SeqLen, Dim: w.Dim, Data: w.Data[i*size : j*size]}
}

// Select returns a copy of the windows at the given
// indices, in order.
func (w *Windows) Select(indices []int) *Windows {
	res := NewWindows(w.SeqLen, w.Dim)
	for _, i := range indices {
		res.AppendWindow(w.Window(i))
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// Windows with the serializer package.
func (w *Windows) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgdata.Windows"
}

// Serialize serializes the windows.
func (w *Windows) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(w.SeqLen),
		serializer.Int(w.Dim),
		&anyvecsave.S{Vector: anyvec64.MakeVectorData(w.Data)},
	)
}
