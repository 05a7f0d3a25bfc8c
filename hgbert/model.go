// Package hgbert implements masked-reconstruction
// transformers over gaze and head direction windows.
//
// Three variants are supported: a gaze-only autoencoder,
// a multimodal encoder that reconstructs gaze from gaze
// and head tokens, and a multimodal encoder that
// reconstructs both.
package hgbert

import (
	"errors"
	"fmt"
	"os"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a AEModel
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAEModel)
	var m MultiModel
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeMultiModel)
}

// Model types accepted by New.
const (
	TypeGaze       = "gaze"
	TypeGazeMM     = "gaze_mm"
	TypeHeadGazeMM = "head_gaze_mm"
)

// ErrUnknownModelType is returned by New for an
// unsupported model type.
var ErrUnknownModelType = errors.New("unknown model type")

// An Input is a batch of masked windows.
type Input struct {
	Batch int

	// Gaze holds Batch masked gaze windows.
	Gaze anydiff.Res

	// GazePos lists the masked positions of every window.
	GazePos [][]int

	// Head and HeadPos are the head equivalents.
	// They are ignored by gaze-only models.
	Head    anydiff.Res
	HeadPos [][]int
}

// A Model reconstructs the masked rows of its input.
type Model interface {
	hgnet.Parameterizer
	serializer.Serializer

	// Reconstruct returns the predicted rows, packed per
	// window.
	// Multimodal models that reconstruct the head return,
	// for each window, the gaze rows followed by the head
	// rows.
	Reconstruct(in *Input) anydiff.Res

	// SetTraining enables or disables dropout.
	SetTraining(training bool)

	// Type returns the model type passed to New.
	Type() string
}

// New creates a randomized model of the given type.
func New(c anyvec.Creator, modelType string, cfg *hgconf.ModelConfig) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, essentials.AddCtx("new model", err)
	}
	newEncoder := func() *Encoder {
		return &Encoder{
			Block:   NewBlock(c, cfg.Hidden, cfg.HiddenFF, cfg.NHeads, cfg.Dropout),
			NLayers: cfg.NLayers,
		}
	}
	newEmbedding := func() *Embedding {
		return NewEmbedding(c, cfg.FeatureNum, cfg.Hidden, cfg.SeqLen, cfg.EmbNorm)
	}
	switch modelType {
	case TypeGaze:
		return &AEModel{
			Embedding: newEmbedding(),
			Encoder:   newEncoder(),
			Decoder:   NewDecoder(c, cfg.Hidden, cfg.FeatureNum),
		}, nil
	case TypeGazeMM, TypeHeadGazeMM:
		res := &MultiModel{
			GazeEmbedding: newEmbedding(),
			HeadEmbedding: newEmbedding(),
			Encoder:       newEncoder(),
			GazeDecoder:   NewDecoder(c, cfg.Hidden, cfg.FeatureNum),
		}
		if modelType == TypeHeadGazeMM {
			res.HeadDecoder = NewDecoder(c, cfg.Hidden, cfg.FeatureNum)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("new model: %w: %q", ErrUnknownModelType, modelType)
	}
}

// Save writes a model to a file.
func Save(path string, m Model) error {
	data, err := serializer.SerializeWithType(m)
	if err != nil {
		return essentials.AddCtx("save model", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save model", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	m, err := decodeModel(data)
	if err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	return m, nil
}

// Clone creates a deep copy of a model, including its
// parameters.
func Clone(m Model) (Model, error) {
	data, err := serializer.SerializeWithType(m)
	if err != nil {
		return nil, essentials.AddCtx("clone model", err)
	}
	res, err := decodeModel(data)
	if err != nil {
		return nil, essentials.AddCtx("clone model", err)
	}
	return res, nil
}

func decodeModel(data []byte) (Model, error) {
	obj, err := serializer.DeserializeWithType(data)
	if err != nil {
		return nil, err
	}
	m, ok := obj.(Model)
	if !ok {
		return nil, fmt.Errorf("not a Model: %T", obj)
	}
	return m, nil
}

// AEModel is a gaze-only masked autoencoder.
type AEModel struct {
	Embedding *Embedding
	Encoder   *Encoder
	Decoder   *Decoder
}

// DeserializeAEModel deserializes an AEModel.
func DeserializeAEModel(d []byte) (*AEModel, error) {
	var res AEModel
	if err := serializer.DeserializeAny(d, &res.Embedding, &res.Encoder, &res.Decoder); err != nil {
		return nil, essentials.AddCtx("deserialize AEModel", err)
	}
	return &res, nil
}

// Reconstruct predicts the masked gaze rows.
func (a *AEModel) Reconstruct(in *Input) anydiff.Res {
	seqLen := a.Embedding.SeqLen
	hidden := a.Embedding.Proj.OutCount
	enc := a.Encoder.Apply(a.Embedding.Apply(in.Gaze, in.Batch), in.Batch)
	gathered := GatherRows(enc, hidden, seqLen, in.GazePos)
	return a.Decoder.Apply(gathered, numRows(in.GazePos))
}

// SetTraining enables or disables dropout.
func (a *AEModel) SetTraining(t bool) {
	a.Encoder.Block.Dropout.Enabled = t
}

// Type returns TypeGaze.
func (a *AEModel) Type() string {
	return TypeGaze
}

// Parameters returns the model's parameters.
func (a *AEModel) Parameters() []*anydiff.Var {
	return hgnet.AllParameters(a.Embedding, a.Encoder, a.Decoder)
}

// SerializerType returns the unique ID used to serialize
// an AEModel with the serializer package.
func (a *AEModel) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.AEModel"
}

// Serialize serializes the model.
func (a *AEModel) Serialize() ([]byte, error) {
	return serializer.SerializeAny(a.Embedding, a.Encoder, a.Decoder)
}

// MultiModel encodes gaze and head tokens jointly.
//
// Each window contributes SeqLen gaze tokens followed by
// SeqLen head tokens to one encoder sequence.
// If HeadDecoder is nil, only gaze is reconstructed.
type MultiModel struct {
	GazeEmbedding *Embedding
	HeadEmbedding *Embedding
	Encoder       *Encoder

	GazeDecoder *Decoder
	HeadDecoder *Decoder
}

// DeserializeMultiModel deserializes a MultiModel.
func DeserializeMultiModel(d []byte) (*MultiModel, error) {
	var res MultiModel
	var decoders hgnet.Net
	err := serializer.DeserializeAny(d, &res.GazeEmbedding, &res.HeadEmbedding,
		&res.Encoder, &decoders)
	if err != nil {
		return nil, essentials.AddCtx("deserialize MultiModel", err)
	}
	if len(decoders) != 1 && len(decoders) != 2 {
		return nil, fmt.Errorf("deserialize MultiModel: unexpected decoder count %d",
			len(decoders))
	}
	for i, layer := range decoders {
		dec, ok := layer.(*Decoder)
		if !ok {
			return nil, fmt.Errorf("deserialize MultiModel: not a Decoder: %T", layer)
		}
		if i == 0 {
			res.GazeDecoder = dec
		} else {
			res.HeadDecoder = dec
		}
	}
	return &res, nil
}

// ReconHead reports whether head rows are reconstructed.
func (m *MultiModel) ReconHead() bool {
	return m.HeadDecoder != nil
}

// Reconstruct predicts the masked gaze rows and, if
// ReconHead is true, the masked head rows.
func (m *MultiModel) Reconstruct(in *Input) anydiff.Res {
	seqLen := m.GazeEmbedding.SeqLen
	hidden := m.GazeEmbedding.Proj.OutCount
	gaze := m.GazeEmbedding.Apply(in.Gaze, in.Batch)
	head := m.HeadEmbedding.Apply(in.Head, in.Batch)
	tokens := hgnet.ConcatMixer{}.Mix(gaze, head, in.Batch)
	enc := m.Encoder.Apply(tokens, in.Batch)
	return anydiff.Pool(enc, func(enc anydiff.Res) anydiff.Res {
		gazeRows := GatherRows(enc, hidden, 2*seqLen, in.GazePos)
		gazeOut := m.GazeDecoder.Apply(gazeRows, numRows(in.GazePos))
		if !m.ReconHead() {
			return gazeOut
		}
		headPos := make([][]int, len(in.HeadPos))
		for i, pos := range in.HeadPos {
			for _, p := range pos {
				headPos[i] = append(headPos[i], p+seqLen)
			}
		}
		headRows := GatherRows(enc, hidden, 2*seqLen, headPos)
		headOut := m.HeadDecoder.Apply(headRows, numRows(headPos))
		return hgnet.ConcatMixer{}.Mix(gazeOut, headOut, in.Batch)
	})
}

// SetTraining enables or disables dropout.
func (m *MultiModel) SetTraining(t bool) {
	m.Encoder.Block.Dropout.Enabled = t
}

// Type returns TypeHeadGazeMM or TypeGazeMM, depending on
// ReconHead.
func (m *MultiModel) Type() string {
	if m.ReconHead() {
		return TypeHeadGazeMM
	}
	return TypeGazeMM
}

// Parameters returns the model's parameters.
func (m *MultiModel) Parameters() []*anydiff.Var {
	res := hgnet.AllParameters(m.GazeEmbedding, m.HeadEmbedding, m.Encoder, m.GazeDecoder)
	if m.HeadDecoder != nil {
		res = append(res, m.HeadDecoder.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a MultiModel with the serializer package.
func (m *MultiModel) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgbert.MultiModel"
}

// Serialize serializes the model.
func (m *MultiModel) Serialize() ([]byte, error) {
	decoders := hgnet.Net{m.GazeDecoder}
	if m.HeadDecoder != nil {
		decoders = append(decoders, m.HeadDecoder)
	}
	return serializer.SerializeAny(m.GazeEmbedding, m.HeadEmbedding, m.Encoder, decoders)
}

func numRows(positions [][]int) int {
	var n int
	for _, p := range positions {
		n += len(p)
	}
	return n
}
