package hgnet

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// geluScale is the slope of the sigmoid approximation of
// the Gaussian error linear unit.
const geluScale = 1.702

// An Activation is an element-wise nonlinearity.
type Activation int

// Supported activations. The transformer blocks use GELU.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
	GELU

	numActivations
)

var activationNames = [numActivations]string{"tanh", "sigmoid", "relu", "gelu"}

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: expected 1 byte but got %d", len(d))
	}
	if a := Activation(d[0]); a < numActivations {
		return a, nil
	}
	return 0, fmt.Errorf("deserialize Activation: unknown ID %d", d[0])
}

// Apply applies the nonlinearity to every component.
// The batch size is not used.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	case GELU:
		// x * sigmoid(1.702 * x)
		return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
			scaler := in.Output().Creator().MakeNumeric(geluScale)
			return anydiff.Mul(in, anydiff.Sigmoid(anydiff.Scale(in, scaler)))
		})
	}
	panic(fmt.Sprintf("unknown activation: %d", a))
}

func (a Activation) String() string {
	if a >= 0 && a < numActivations {
		return activationNames[a]
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgnet.Activation"
}

// Serialize stores the activation as a single byte.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}
