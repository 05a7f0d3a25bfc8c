package hgnet

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	acts := []Activation{Tanh, Sigmoid, ReLU, GELU}
	data, err := serializer.SerializeAny(acts[0], acts[1], acts[2], acts[3])
	if err != nil {
		t.Fatal(err)
	}
	newActs := make([]Activation, len(acts))
	err = serializer.DeserializeAny(data, &newActs[0], &newActs[1], &newActs[2],
		&newActs[3])
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range acts {
		if newActs[i] != a {
			t.Errorf("%s failed: got %s", a, newActs[i])
		}
	}
}

func TestFCSerialize(t *testing.T) {
	fc := NewFC(anyvec32.DefaultCreator{}, 7, 5)
	data, err := serializer.SerializeAny(fc)
	if err != nil {
		t.Fatal(err)
	}
	var newFC *FC
	if err := serializer.DeserializeAny(data, &newFC); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fc, newFC) {
		t.Fatal("incorrect result")
	}
}

func TestLayerNormSerialize(t *testing.T) {
	ln := NewLayerNorm(anyvec32.DefaultCreator{}, 6)
	ln.Stabilizer = 1e-5
	data, err := serializer.SerializeAny(ln)
	if err != nil {
		t.Fatal(err)
	}
	var newLN *LayerNorm
	if err := serializer.DeserializeAny(data, &newLN); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ln, newLN) {
		t.Fatal("incorrect result")
	}
}

func TestDropoutSerialize(t *testing.T) {
	do := &Dropout{Enabled: true, KeepProb: 0.335}
	data, err := serializer.SerializeAny(do)
	if err != nil {
		t.Fatal(err)
	}
	var do1 *Dropout
	if err := serializer.DeserializeAny(data, &do1); err != nil {
		t.Fatal(err)
	}
	if do1.Enabled || do1.KeepProb != do.KeepProb {
		t.Fatalf("unexpected result: %+v", do1)
	}
}

func TestNetSerialize(t *testing.T) {
	net := Net{
		NewFC(anyvec32.DefaultCreator{}, 3, 4),
		GELU,
		NewLayerNorm(anyvec32.DefaultCreator{}, 4),
	}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}
