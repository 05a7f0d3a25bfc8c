// Package hgnet provides the neural network building
// blocks used to pretrain head/gaze reconstruction models.
//
// Every layer is batched: its input is a packed vector
// holding a batch of equally-long inputs.
// Sub-packages implement optimization (hgsgd), the
// transformer models (hgbert) and the pretraining loop
// (hgpre).
package hgnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer exposes learnable variables, always in
// the same order.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer maps a packed batch to another packed batch.
//
// batchSize is the number of equally-long vectors packed
// in the input. For token-wise layers it may count tokens
// instead of windows.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A Net chains layers.
// An empty Net is the identity.
//
// hgbert uses Nets to store groups of layers, such as the
// per-head projections of an attention layer.
type Net []Layer

// DeserializeNet deserializes a Net whose elements are
// all registered Layers.
func DeserializeNet(d []byte) (Net, error) {
	objs, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(objs))
	for i, obj := range objs {
		layer, ok := obj.(Layer)
		if !ok {
			return nil, fmt.Errorf("deserialize Net: element %d is %T, not a Layer", i, obj)
		}
		res[i] = layer
	}
	return res, nil
}

// Apply feeds the batch through every layer in order.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters concatenates the parameters of the layers
// that have any.
func (n Net) Parameters() []*anydiff.Var {
	objs := make([]interface{}, len(n))
	for i, l := range n {
		objs[i] = l
	}
	return AllParameters(objs...)
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgnet.Net"
}

// Serialize serializes the layers.
// It fails if a layer is not a serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	objs := make([]serializer.Serializer, len(n))
	for i, l := range n {
		s, ok := l.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("serialize Net: layer %d is %T, not a Serializer", i, l)
		}
		objs[i] = s
	}
	return serializer.SerializeSlice(objs)
}

// AllParameters gathers the parameters of every
// Parameterizer in objs, skipping everything else.
func AllParameters(objs ...interface{}) []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range objs {
		if p, ok := x.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}
