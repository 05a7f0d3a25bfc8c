package hgbert

import (
	"fmt"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Decoder
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDecoder)
}

// A Decoder maps hidden vectors back to feature rows.
type Decoder struct {
	Linear *hgnet.FC
	Norm   *hgnet.LayerNorm
	Out    *hgnet.FC
}

// DeserializeDecoder deserializes a Decoder.
func DeserializeDecoder(d []byte) (*Decoder, error) {
	var res Decoder
	if err := serializer.DeserializeAny(d, &res.Linear, &res.Norm, &res.Out); err != nil {
		return nil, essentials.AddCtx("deserialize Decoder", err)
	}
	return &res, nil
}

// NewDecoder creates a randomized Decoder.
func NewDecoder(c anyvec.Creator, hidden, featureNum int) *Decoder {
	return &Decoder{
		Linear: hgnet.NewFC(c, hidden, hidden),
		Norm:   hgnet.NewLayerNorm(c, hidden),
		Out:    hgnet.NewFC(c, hidden, featureNum),
	}
}

// Apply decodes a packed matrix of hidden rows.
func (d *Decoder) Apply(in anydiff.Res, rows int) anydiff.Res {
	h := hgnet.GELU.Apply(d.Linear.Apply(in, rows), rows)
	return d.Out.Apply(d.Norm.Apply(h, rows), rows)
}

// Parameters returns the decoder's parameters.
func (d *Decoder) Parameters() []*anydiff.Var {
	return hgnet.AllParameters(d.Linear, d.Norm, d.Out)
}

// SerializerType returns the unique ID used to serialize
// a Decoder with the serializer package.
func (d *Decoder) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.Decoder"
}

// Serialize serializes the Decoder.
func (d *Decoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(d.Linear, d.Norm, d.Out)
}

// GatherRows selects rows from a packed batch of windows.
//
// The input holds len(positions) windows of seqLen rows
// with cols components each.
// The result holds, for each window in order, the rows at
// that window's positions.
func GatherRows(in anydiff.Res, cols, seqLen int, positions [][]int) anydiff.Res {
	if in.Output().Len() != len(positions)*seqLen*cols {
		panic(fmt.Sprintf("input length %d does not hold %d windows of %dx%d",
			in.Output().Len(), len(positions), seqLen, cols))
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		var parts []anydiff.Res
		for i, pos := range positions {
			for j := 0; j < len(pos); {
				// Contiguous runs become a single slice.
				end := j + 1
				for end < len(pos) && pos[end] == pos[end-1]+1 {
					end++
				}
				start := (i*seqLen + pos[j]) * cols
				parts = append(parts, anydiff.Slice(in, start, start+(end-j)*cols))
				j = end
			}
		}
		return anydiff.Concat(parts...)
	})
}
