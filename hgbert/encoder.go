package hgbert

import (
	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var b Block
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBlock)
	var e Encoder
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEncoder)
}

// A Block is one post-norm transformer layer.
type Block struct {
	Attention *Attention
	AttnNorm  *hgnet.LayerNorm

	FF1    *hgnet.FC
	FF2    *hgnet.FC
	FFNorm *hgnet.LayerNorm

	Dropout *hgnet.Dropout
}

// DeserializeBlock deserializes a Block.
func DeserializeBlock(d []byte) (*Block, error) {
	var res Block
	err := serializer.DeserializeAny(d, &res.Attention, &res.AttnNorm, &res.FF1, &res.FF2,
		&res.FFNorm, &res.Dropout)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Block", err)
	}
	return &res, nil
}

// NewBlock creates a randomized Block.
func NewBlock(c anyvec.Creator, hidden, hiddenFF, heads int, dropout float64) *Block {
	return &Block{
		Attention: NewAttention(c, hidden, heads),
		AttnNorm:  hgnet.NewLayerNorm(c, hidden),
		FF1:       hgnet.NewFC(c, hidden, hiddenFF),
		FF2:       hgnet.NewFC(c, hiddenFF, hidden),
		FFNorm:    hgnet.NewLayerNorm(c, hidden),
		Dropout:   &hgnet.Dropout{KeepProb: 1 - dropout},
	}
}

// Apply applies the block to batch windows of tokens.
func (b *Block) Apply(in anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		attn := b.Dropout.Apply(b.Attention.Apply(in, batch), batch)
		h := b.AttnNorm.Apply(anydiff.Add(in, attn), batch)
		return anydiff.Pool(h, func(h anydiff.Res) anydiff.Res {
			ff := b.FF2.ApplyRows(hgnet.GELU.Apply(b.FF1.ApplyRows(h), batch))
			ff = b.Dropout.Apply(ff, batch)
			return b.FFNorm.Apply(anydiff.Add(h, ff), batch)
		})
	})
}

// Parameters returns the parameters of the block.
func (b *Block) Parameters() []*anydiff.Var {
	return hgnet.AllParameters(b.Attention, b.AttnNorm, b.FF1, b.FF2, b.FFNorm)
}

// SerializerType returns the unique ID used to serialize
// a Block with the serializer package.
func (b *Block) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.Block"
}

// Serialize serializes the block.
func (b *Block) Serialize() ([]byte, error) {
	return serializer.SerializeAny(b.Attention, b.AttnNorm, b.FF1, b.FF2, b.FFNorm, b.Dropout)
}

// An Encoder applies the same Block NLayers times.
type Encoder struct {
	Block   *Block
	NLayers int
}

// DeserializeEncoder deserializes an Encoder.
func DeserializeEncoder(d []byte) (*Encoder, error) {
	var block *Block
	var n serializer.Int
	if err := serializer.DeserializeAny(d, &block, &n); err != nil {
		return nil, essentials.AddCtx("deserialize Encoder", err)
	}
	return &Encoder{Block: block, NLayers: int(n)}, nil
}

// Apply encodes batch windows of embedded tokens.
func (e *Encoder) Apply(in anydiff.Res, batch int) anydiff.Res {
	for i := 0; i < e.NLayers; i++ {
		in = e.Block.Apply(in, batch)
	}
	return in
}

// Parameters returns the shared block parameters.
func (e *Encoder) Parameters() []*anydiff.Var {
	return e.Block.Parameters()
}

// SerializerType returns the unique ID used to serialize
// an Encoder with the serializer package.
func (e *Encoder) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.Encoder"
}

// Serialize serializes the Encoder.
func (e *Encoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(e.Block, serializer.Int(e.NLayers))
}
