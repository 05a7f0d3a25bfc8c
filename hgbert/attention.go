package hgbert

import (
	"errors"
	"fmt"
	"math"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Attention
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAttention)
}

// Attention is multi-head self-attention over the tokens
// of each window.
//
// Every head has its own query, key and value projection.
// The output projection of the concatenated heads is
// stored as one FC per head, and their outputs are summed.
type Attention struct {
	Hidden int

	Queries []*hgnet.FC
	Keys    []*hgnet.FC
	Values  []*hgnet.FC
	Outputs []*hgnet.FC
}

// DeserializeAttention deserializes an Attention.
func DeserializeAttention(d []byte) (*Attention, error) {
	var q, k, v, o hgnet.Net
	if err := serializer.DeserializeAny(d, &q, &k, &v, &o); err != nil {
		return nil, essentials.AddCtx("deserialize Attention", err)
	}
	if len(q) == 0 || len(q) != len(k) || len(q) != len(v) || len(q) != len(o) {
		return nil, errors.New("deserialize Attention: mismatched head counts")
	}
	res := &Attention{}
	for _, part := range []struct {
		net hgnet.Net
		dst *[]*hgnet.FC
	}{{q, &res.Queries}, {k, &res.Keys}, {v, &res.Values}, {o, &res.Outputs}} {
		for _, layer := range part.net {
			fc, ok := layer.(*hgnet.FC)
			if !ok {
				return nil, fmt.Errorf("deserialize Attention: not an FC: %T", layer)
			}
			*part.dst = append(*part.dst, fc)
		}
	}
	res.Hidden = res.Queries[0].InCount
	return res, nil
}

// NewAttention creates a randomized Attention with the
// given number of heads.
// The number of heads must divide hidden.
func NewAttention(c anyvec.Creator, hidden, heads int) *Attention {
	if hidden%heads != 0 {
		panic(fmt.Sprintf("heads (%d) must divide hidden size (%d)", heads, hidden))
	}
	headDim := hidden / heads
	res := &Attention{Hidden: hidden}
	for i := 0; i < heads; i++ {
		res.Queries = append(res.Queries, hgnet.NewFC(c, hidden, headDim))
		res.Keys = append(res.Keys, hgnet.NewFC(c, hidden, headDim))
		res.Values = append(res.Values, hgnet.NewFC(c, hidden, headDim))
		out := hgnet.NewFC(c, headDim, hidden)
		out.Weights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(heads))))
		res.Outputs = append(res.Outputs, out)
	}
	return res
}

// Apply applies attention to batch windows of packed
// hidden vectors.
// The number of tokens per window is inferred from the
// input size.
func (a *Attention) Apply(in anydiff.Res, batch int) anydiff.Res {
	rows := in.Output().Len() / a.Hidden
	if rows*a.Hidden != in.Output().Len() || rows%batch != 0 {
		panic(fmt.Sprintf("input length %d does not hold %d windows of %d-dim tokens",
			in.Output().Len(), batch, a.Hidden))
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		var out anydiff.Res
		for h := range a.Queries {
			proj := a.Outputs[h].Apply(a.applyHead(h, in, batch, rows/batch), rows)
			if out == nil {
				out = proj
			} else {
				out = anydiff.Add(out, proj)
			}
		}
		return out
	})
}

// Parameters returns the parameters of every head.
func (a *Attention) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for h := range a.Queries {
		res = append(res, hgnet.AllParameters(a.Queries[h], a.Keys[h], a.Values[h],
			a.Outputs[h])...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an Attention with the serializer package.
func (a *Attention) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.Attention"
}

// Serialize serializes the Attention.
func (a *Attention) Serialize() ([]byte, error) {
	return serializer.SerializeAny(fcNet(a.Queries), fcNet(a.Keys), fcNet(a.Values),
		fcNet(a.Outputs))
}

func (a *Attention) applyHead(h int, in anydiff.Res, batch, seqLen int) anydiff.Res {
	rows := batch * seqLen
	headDim := a.Queries[h].OutCount
	scale := in.Output().Creator().MakeNumeric(1 / math.Sqrt(float64(headDim)))
	q := a.Queries[h].Apply(in, rows)
	k := a.Keys[h].Apply(in, rows)
	v := a.Values[h].Apply(in, rows)
	return anydiff.Pool(q, func(q anydiff.Res) anydiff.Res {
		return anydiff.Pool(k, func(k anydiff.Res) anydiff.Res {
			return anydiff.Pool(v, func(v anydiff.Res) anydiff.Res {
				size := seqLen * headDim
				var outs []anydiff.Res
				for i := 0; i < batch; i++ {
					window := func(r anydiff.Res) *anydiff.Matrix {
						return &anydiff.Matrix{
							Data: anydiff.Slice(r, i*size, (i+1)*size),
							Rows: seqLen,
							Cols: headDim,
						}
					}
					scores := anydiff.MatMul(false, true, window(q), window(k))
					weights := anydiff.Exp(anydiff.LogSoftmax(
						anydiff.Scale(scores.Data, scale), seqLen))
					weightMat := &anydiff.Matrix{Data: weights, Rows: seqLen, Cols: seqLen}
					outs = append(outs, anydiff.MatMul(false, false, weightMat, window(v)).Data)
				}
				return anydiff.Concat(outs...)
			})
		})
	})
}

func fcNet(fcs []*hgnet.FC) hgnet.Net {
	res := make(hgnet.Net, len(fcs))
	for i, fc := range fcs {
		res[i] = fc
	}
	return res
}
