package hgbert

import (
	"fmt"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var e Embedding
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEmbedding)
}

// An Embedding maps the rows of a window to hidden
// vectors and adds a learned positional embedding.
//
// The positional table doubles as a modality embedding
// when several Embeddings feed the same Encoder.
type Embedding struct {
	SeqLen int

	Proj      *hgnet.FC
	Positions *anydiff.Var

	// Norm is applied to the embedded tokens only when
	// UseNorm is set.
	Norm    *hgnet.LayerNorm
	UseNorm bool
}

// DeserializeEmbedding deserializes an Embedding.
func DeserializeEmbedding(d []byte) (*Embedding, error) {
	var proj *hgnet.FC
	var pos *anyvecsave.S
	var norm *hgnet.LayerNorm
	var useNorm serializer.Int
	if err := serializer.DeserializeAny(d, &proj, &pos, &norm, &useNorm); err != nil {
		return nil, essentials.AddCtx("deserialize Embedding", err)
	}
	return &Embedding{
		SeqLen:    pos.Vector.Len() / proj.OutCount,
		Proj:      proj,
		Positions: anydiff.NewVar(pos.Vector),
		Norm:      norm,
		UseNorm:   useNorm != 0,
	}, nil
}

// NewEmbedding creates a randomized Embedding.
func NewEmbedding(c anyvec.Creator, featureNum, hidden, seqLen int, useNorm bool) *Embedding {
	pos := c.MakeVector(seqLen * hidden)
	anyvec.Rand(pos, anyvec.Normal, nil)
	pos.Scale(c.MakeNumeric(0.02))
	return &Embedding{
		SeqLen:    seqLen,
		Proj:      hgnet.NewFC(c, featureNum, hidden),
		Positions: anydiff.NewVar(pos),
		Norm:      hgnet.NewLayerNorm(c, hidden),
		UseNorm:   useNorm,
	}
}

// Apply embeds a batch of packed windows.
// The result has batch*SeqLen rows of hidden vectors.
func (e *Embedding) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len() != batch*e.SeqLen*e.Proj.InCount {
		panic(fmt.Sprintf("expected %d windows of %dx%d but got length %d",
			batch, e.SeqLen, e.Proj.InCount, in.Output().Len()))
	}
	out := anydiff.AddRepeated(e.Proj.Apply(in, batch*e.SeqLen), e.Positions)
	if e.UseNorm {
		out = e.Norm.Apply(out, batch*e.SeqLen)
	}
	return out
}

// Parameters returns the projection, positional and
// normalization parameters.
func (e *Embedding) Parameters() []*anydiff.Var {
	res := append(e.Proj.Parameters(), e.Positions)
	return append(res, e.Norm.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// an Embedding with the serializer package.
func (e *Embedding) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.Embedding"
}

// Serialize serializes the Embedding.
func (e *Embedding) Serialize() ([]byte, error) {
	useNorm := 0
	if e.UseNorm {
		useNorm = 1
	}
	return serializer.SerializeAny(
		e.Proj,
		&anyvecsave.S{Vector: e.Positions.Vector},
		e.Norm,
		serializer.Int(useNorm),
	)
}
