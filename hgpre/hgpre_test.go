package hgpre

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgbert"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgmask"
	"github.com/unixpickle/anyvec/anyvec64"
)

const (
	testSeqLen = 5
	testDim    = 3
)

func testWindows(n int, seed int64) *hgdata.Windows {
	rng := rand.New(rand.NewSource(seed))
	res := hgdata.NewWindows(testSeqLen, testDim)
	for i := 0; i < n*testSeqLen*testDim; i++ {
		res.Data = append(res.Data, rng.NormFloat64())
	}
	return res
}

func testList(t *testing.T, n int) *SampleList {
	l, err := NewSampleList(testWindows(n, 1), testWindows(n, 2), 18)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func testTrainer(t *testing.T, modelType string, masker *hgmask.Masker) *Trainer {
	c := anyvec64.DefaultCreator{}
	model, err := hgbert.New(c, modelType, &hgconf.ModelConfig{
		FeatureNum: testDim,
		Hidden:     4,
		HiddenFF:   6,
		NLayers:    1,
		NHeads:     2,
		SeqLen:     testSeqLen,
		EmbNorm:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Trainer{
		Model:   model,
		Masker:  masker,
		Creator: c,
		Rand:    rand.New(rand.NewSource(3)),
	}
}

func TestSampleListSplit(t *testing.T) {
	l := testList(t, 100)
	train, val, test, err := l.Split(0.8)
	if err != nil {
		t.Fatal(err)
	}
	if train.Len()+val.Len()+test.Len() != 100 {
		t.Fatalf("bad split sizes: %d, %d, %d", train.Len(), val.Len(), test.Len())
	}
	if train.Len() < 60 || val.Len() == 0 || test.Len() == 0 {
		t.Errorf("unlikely split sizes: %d, %d, %d", train.Len(), val.Len(), test.Len())
	}
	seen := map[int]bool{}
	for _, part := range []*SampleList{train, val, test} {
		for _, idx := range part.Indices {
			if seen[idx] {
				t.Fatalf("index %d appears twice", idx)
			}
			seen[idx] = true
		}
	}

	l1 := testList(t, 100)
	train1, _, _, err := l1.Split(0.8)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sorted(train.Indices), sorted(train1.Indices)) {
		t.Error("split should be deterministic")
	}
}

func TestSampleListSplitEmpty(t *testing.T) {
	_, _, _, err := testList(t, 1).Split(0.8)
	if err == nil {
		t.Fatal("expected error for an empty partition")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSampleListMismatch(t *testing.T) {
	if _, err := NewSampleList(testWindows(3, 1), testWindows(4, 1), 0); err == nil {
		t.Error("expected shape error")
	}
}

func TestFetchTargets(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2}
	trainer := testTrainer(t, hgbert.TypeHeadGazeMM, masker)
	l := testList(t, 4)
	b, err := trainer.Fetch(l.Slice(1, 3))
	if err != nil {
		t.Fatal(err)
	}
	batch := b.(*Batch)
	if batch.Input.Batch != 2 {
		t.Fatalf("bad batch size %d", batch.Input.Batch)
	}
	target := hgnet.Floats(batch.Target.Output())
	var expected []float64
	for i, idx := range []int{1, 2} {
		for _, pos := range batch.Input.GazePos[i] {
			expected = append(expected, l.Gaze.At(idx, pos)...)
		}
		for _, pos := range batch.Input.HeadPos[i] {
			expected = append(expected, l.Head.At(idx, pos)...)
		}
	}
	if !reflect.DeepEqual(target, expected) {
		t.Errorf("expected targets %v but got %v", expected, target)
	}
	if batch.GazeComponents != 2*2*testDim {
		t.Errorf("bad gaze component count %d", batch.GazeComponents)
	}
	est, act := trainer.Forward(batch)
	if est.Len() != act.Len() {
		t.Errorf("estimate length %d != target length %d", est.Len(), act.Len())
	}
}

func TestTotalCost(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2, MaskProb: 1}
	for _, typ := range []string{hgbert.TypeGaze, hgbert.TypeHeadGazeMM} {
		trainer := testTrainer(t, typ, masker)
		b, err := trainer.Fetch(testList(t, 3))
		if err != nil {
			t.Fatal(err)
		}
		est, act := trainer.Forward(b)
		var sum float64
		estData, actData := hgnet.Floats(est), hgnet.Floats(act)
		for i, x := range estData {
			sum += (x - actData[i]) * (x - actData[i])
		}
		expected := sum / float64(b.(*Batch).GazeComponents)
		actual := hgnet.Floats(trainer.TotalCost(b).Output())[0]
		if math.Abs(actual-expected) > 1e-8 {
			t.Errorf("%s: expected cost %f but got %f", typ, expected, actual)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2, MaskProb: 0.8}
	trainer := testTrainer(t, hgbert.TypeGazeMM, masker)
	l := testList(t, 7)
	est1, act1, err := trainer.Run(l, 3)
	if err != nil {
		t.Fatal(err)
	}
	est2, act2, err := trainer.Run(l, 2)
	if err != nil {
		t.Fatal(err)
	}
	if est1.Len() != 7 || est1.SeqLen != 2 || est1.Dim != testDim {
		t.Fatalf("unexpected shape %v", est1.Shape())
	}
	if !reflect.DeepEqual(act1, act2) {
		t.Error("targets differ between runs")
	}
	for i, x := range est1.Data {
		if math.Abs(x-est2.Data[i]) > 1e-8 {
			t.Fatal("estimates differ between runs")
		}
	}
}

func TestEvaluate(t *testing.T) {
	est := &hgdata.Windows{SeqLen: 2, Dim: 1, Data: []float64{1, 2, 3, 4}}
	act := &hgdata.Windows{SeqLen: 2, Dim: 1, Data: []float64{1, 0, 3, 2}}
	if actual := Evaluate(est, act); actual != 2 {
		t.Errorf("expected 2 but got %f", actual)
	}
}

type metricLog map[string][]float64

func (m metricLog) LogMetric(key string, value float64, step int) error {
	m[key] = append(m[key], value)
	return nil
}

func TestPretrain(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2, MaskProb: 0.8}
	trainer := testTrainer(t, hgbert.TypeHeadGazeMM, masker)
	train, val, test, err := testList(t, 40).Split(0.5)
	if err != nil {
		t.Fatal(err)
	}
	savePath := filepath.Join(t.TempDir(), "model")
	metrics := metricLog{}
	res, err := trainer.Pretrain(context.Background(), train, val, test, &Options{
		Train: hgconf.TrainConfig{
			Seed:      18,
			BatchSize: 4,
			LR:        1e-3,
			NEpochs:   2,
			Warmup:    0.1,
		},
		SavePath: savePath,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{MetricTrainLoss, MetricValLoss, MetricTestLoss} {
		if len(metrics[key]) != 2 {
			t.Errorf("%s: expected 2 values but got %v", key, metrics[key])
		}
	}
	if math.IsInf(res.ValLoss, 0) || math.IsNaN(res.ValLoss) {
		t.Errorf("bad validation loss: %f", res.ValLoss)
	}
	expectedSteps := 2 * ((train.Len() + 3) / 4)
	if res.Steps != expectedSteps {
		t.Errorf("expected %d steps but got %d", expectedSteps, res.Steps)
	}
	if _, err := os.Stat(savePath); err != nil {
		t.Fatal(err)
	}

	loaded, err := hgbert.Load(savePath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, trainer.Model) {
		t.Error("trainer model differs from the saved best model")
	}

	resumed := testTrainer(t, hgbert.TypeHeadGazeMM, masker)
	if reflect.DeepEqual(resumed.Model.Parameters(), loaded.Parameters()) {
		t.Fatal("fresh model should not match the saved one")
	}
	_, err = resumed.Pretrain(context.Background(), train, val, test, &Options{
		Train:         hgconf.TrainConfig{BatchSize: 4, LR: 1e-3},
		PretrainModel: savePath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resumed.Model.Parameters(), loaded.Parameters()) {
		t.Error("resumed model does not start from the saved weights")
	}
	_, err = resumed.Pretrain(context.Background(), train, val, test, &Options{
		Train:         hgconf.TrainConfig{BatchSize: 4, LR: 1e-3, NEpochs: 1},
		PretrainModel: savePath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Model.Type() != loaded.Type() {
		t.Errorf("unexpected type %s", resumed.Model.Type())
	}

	wrong := testTrainer(t, hgbert.TypeGaze, masker)
	_, err = wrong.Pretrain(context.Background(), train, val, test, &Options{
		Train:         hgconf.TrainConfig{BatchSize: 4, NEpochs: 1},
		PretrainModel: savePath,
	})
	if err == nil {
		t.Error("expected type mismatch error")
	}
}

// poisonLog fills the model's weights with NaN the first
// time a metric is logged, so no later epoch can improve
// on the first one.
type poisonLog struct {
	trainer  *Trainer
	poisoned bool
}

func (p *poisonLog) LogMetric(key string, value float64, step int) error {
	if !p.poisoned {
		p.poisoned = true
		for _, v := range p.trainer.Model.Parameters() {
			v.Vector.AddScalar(math.NaN())
		}
	}
	return nil
}

func TestPretrainRestoresBest(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2, MaskProb: 0.8}
	trainer := testTrainer(t, hgbert.TypeGazeMM, masker)
	train, val, test, err := testList(t, 40).Split(0.5)
	if err != nil {
		t.Fatal(err)
	}
	res, err := trainer.Pretrain(context.Background(), train, val, test, &Options{
		Train: hgconf.TrainConfig{
			Seed:      18,
			BatchSize: 4,
			LR:        1e-3,
			NEpochs:   3,
		},
		Metrics: &poisonLog{trainer: trainer},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Epoch != 0 {
		t.Fatalf("expected best epoch 0 but got %d", res.Epoch)
	}
	if math.IsNaN(res.TestLoss) {
		t.Fatal("best test loss is NaN")
	}
	testLoss, err := trainer.loss(test, 4)
	if err != nil {
		t.Fatal(err)
	}
	if testLoss != res.TestLoss {
		t.Errorf("test loss %f does not match best result %f", testLoss, res.TestLoss)
	}
	valLoss, err := trainer.loss(val, 4)
	if err != nil {
		t.Fatal(err)
	}
	if valLoss != res.ValLoss {
		t.Errorf("val loss %f does not match best result %f", valLoss, res.ValLoss)
	}
}

func TestPretrainTotalSteps(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2, MaskProb: 0.8}
	trainer := testTrainer(t, hgbert.TypeGaze, masker)
	l := testList(t, 20)
	res, err := trainer.Pretrain(context.Background(), l, testList(t, 2), testList(t, 2),
		&Options{
			Train: hgconf.TrainConfig{
				BatchSize:  2,
				LR:         1e-3,
				NEpochs:    5,
				TotalSteps: 3,
			},
		})
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 3 {
		t.Errorf("expected 3 steps but got %d", res.Steps)
	}
}

func TestPretrainCancel(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2}
	trainer := testTrainer(t, hgbert.TypeGaze, masker)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := trainer.Pretrain(ctx, testList(t, 10), testList(t, 2), testList(t, 2),
		&Options{Train: hgconf.TrainConfig{BatchSize: 2, LR: 1e-3, NEpochs: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 0 {
		t.Errorf("expected no steps but got %d", res.Steps)
	}
}

// countdownCtx reports cancellation once Err has been
// called n times.
type countdownCtx struct {
	context.Context
	n int
}

func (c *countdownCtx) Err() error {
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestPretrainCancelMidEpoch(t *testing.T) {
	masker := &hgmask.Masker{Ratio: 0.4, MaxGram: 2}
	trainer := testTrainer(t, hgbert.TypeGaze, masker)
	ctx := &countdownCtx{Context: context.Background(), n: 2}
	metrics := metricLog{}
	res, err := trainer.Pretrain(ctx, testList(t, 10), testList(t, 2), testList(t, 2),
		&Options{
			Train:   hgconf.TrainConfig{BatchSize: 2, LR: 1e-3, NEpochs: 3},
			Metrics: metrics,
		})
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 2 {
		t.Errorf("expected 2 steps but got %d", res.Steps)
	}
	if len(metrics[MetricValLoss]) != 1 {
		t.Errorf("expected the partial epoch to be evaluated once, got %v",
			metrics[MetricValLoss])
	}
}

func sorted(x []int) []int {
	res := append([]int{}, x...)
	sort.Ints(res)
	return res
}
