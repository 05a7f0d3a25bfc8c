package hgnet

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var c ConcatMixer
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConcatMixer)
}

// A ConcatMixer joins two batches window by window.
//
// For token matrices this appends the rows of one window
// to the rows of the other, so a gaze window of S tokens
// and a head window of S tokens become one sequence of
// 2*S tokens.
type ConcatMixer struct{}

// DeserializeConcatMixer deserializes a ConcatMixer.
func DeserializeConcatMixer(d []byte) (ConcatMixer, error) {
	return ConcatMixer{}, nil
}

// Mix returns [in1[0], in2[0], in1[1], in2[1], ...],
// where in1[i] is the i-th of the batch windows packed in
// in1.
// The two inputs may have windows of different sizes.
func (c ConcatMixer) Mix(in1, in2 anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(in1, func(in1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(in2, func(in2 anydiff.Res) anydiff.Res {
			size1 := in1.Output().Len() / batch
			size2 := in2.Output().Len() / batch
			parts := make([]anydiff.Res, 0, 2*batch)
			for i := 0; i < batch; i++ {
				parts = append(parts,
					anydiff.Slice(in1, i*size1, (i+1)*size1),
					anydiff.Slice(in2, i*size2, (i+1)*size2))
			}
			return anydiff.Concat(parts...)
		})
	})
}

// SerializerType returns the unique ID used to serialize
// a ConcatMixer with the serializer package.
func (c ConcatMixer) SerializerType() string {
	return "github.com/retazo0018/head-gaze-behavioural-prediction/hgnet.ConcatMixer"
}

// Serialize serializes the mixer, which has no state.
func (c ConcatMixer) Serialize() ([]byte, error) {
	return []byte{}, nil
}
