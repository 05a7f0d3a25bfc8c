package hgmask

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
)

func TestSpanMask(t *testing.T) {
	rng := rand.New(rand.NewSource(1337))
	for i := 0; i < 200; i++ {
		seqLen := rng.Intn(30) + 2
		goal := rng.Intn(seqLen-1) + 1
		pos := SpanMask(rng, seqLen, 5, SpanProb, goal)
		if len(pos) != goal {
			t.Fatalf("seqLen %d: expected %d positions but got %d", seqLen, goal, len(pos))
		}
		if !sort.IntsAreSorted(pos) {
			t.Fatalf("positions not sorted: %v", pos)
		}
		for j, p := range pos {
			if p < 0 || p >= seqLen-1 {
				t.Fatalf("seqLen %d: bad position %d", seqLen, p)
			}
			if j > 0 && pos[j-1] == p {
				t.Fatalf("duplicate position %d", p)
			}
		}
	}
}

func TestSpanMaskGoalClamp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pos := SpanMask(rng, 4, 3, SpanProb, 10)
	if !reflect.DeepEqual(pos, []int{0, 1, 2}) {
		t.Errorf("unexpected positions: %v", pos)
	}
}

func TestSpanWeights(t *testing.T) {
	weights := spanWeights(3, 0.5)
	expected := []float64{4.0 / 7, 2.0 / 7, 1.0 / 7}
	for i, x := range expected {
		if diff := weights[i] - x; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("weight %d: expected %f but got %f", i, x, weights[i])
		}
	}
}

func TestMaskerNumPredict(t *testing.T) {
	m := &Masker{Ratio: 0.15}
	tests := map[int]int{2: 1, 20: 3, 120: 18, 3: 1}
	for seqLen, expected := range tests {
		if actual := m.NumPredict(seqLen); actual != expected {
			t.Errorf("seqLen %d: expected %d but got %d", seqLen, expected, actual)
		}
	}
}

func TestMaskerZero(t *testing.T) {
	m := &Masker{Ratio: 0.3, MaxGram: 3, MaskProb: 1}
	window := testWindow(10, 2)
	orig := append([]float64{}, window...)
	res := m.Mask(rand.New(rand.NewSource(42)), window, 10, 2)

	if !reflect.DeepEqual(window, orig) {
		t.Fatal("window was modified")
	}
	if len(res.Positions) != 3 {
		t.Fatalf("expected 3 positions but got %v", res.Positions)
	}
	if len(res.Target) != 3*2 {
		t.Fatalf("bad target length %d", len(res.Target))
	}
	masked := map[int]bool{}
	for i, pos := range res.Positions {
		masked[pos] = true
		if !reflect.DeepEqual(res.Target[i*2:(i+1)*2], window[pos*2:(pos+1)*2]) {
			t.Errorf("position %d: bad target", pos)
		}
	}
	for pos := 0; pos < 10; pos++ {
		row := res.Input[pos*2 : (pos+1)*2]
		if masked[pos] {
			if row[0] != 0 || row[1] != 0 {
				t.Errorf("position %d should be zeroed: %v", pos, row)
			}
		} else if !reflect.DeepEqual(row, window[pos*2:(pos+1)*2]) {
			t.Errorf("position %d should be untouched: %v", pos, row)
		}
	}
}

func TestMaskerKeep(t *testing.T) {
	m := &Masker{Ratio: 0.3, MaxGram: 3}
	window := testWindow(10, 3)
	res := m.Mask(rand.New(rand.NewSource(42)), window, 10, 3)
	if !reflect.DeepEqual(res.Input, window) {
		t.Error("input should be unchanged when neither zeroing nor replacing")
	}
}

func TestMaskerReplace(t *testing.T) {
	m := &Masker{Ratio: 0.5, MaxGram: 2, ReplaceProb: 1}
	window := testWindow(8, 2)
	for i := range window {
		window[i] += 10
	}
	res := m.Mask(rand.New(rand.NewSource(3)), window, 8, 2)
	for _, pos := range res.Positions {
		for _, x := range res.Input[pos*2 : (pos+1)*2] {
			if x < 0 || x >= 1 {
				t.Errorf("position %d: expected uniform noise but got %f", pos, x)
			}
		}
	}
}

func TestMaskerValidate(t *testing.T) {
	if err := NewMasker(&hgconf.Default().Mask).Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
	bad := []*Masker{
		{Ratio: 0, MaxGram: 1},
		{Ratio: 1, MaxGram: 1},
		{Ratio: 0.5, MaxGram: 0},
		{Ratio: 0.5, MaxGram: 1, MaskProb: 2},
	}
	for i, m := range bad {
		if m.Validate() == nil {
			t.Errorf("masker %d: expected error", i)
		}
	}
}

func testWindow(seqLen, dim int) []float64 {
	res := make([]float64, seqLen*dim)
	for i := range res {
		res[i] = float64(i + 1)
	}
	return res
}
