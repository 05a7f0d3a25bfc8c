package hgpre

import (
	"errors"
	"math/rand"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgbert"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgmask"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgsgd"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Batch is a packed batch of masked windows and their
// reconstruction targets.
type Batch struct {
	Input *hgbert.Input

	// Target holds the original rows at the masked
	// positions, ordered like the model's reconstruction.
	Target *anydiff.Const

	// GazeComponents is the number of target components
	// that belong to gaze rows.
	GazeComponents int
}

// A Trainer masks samples, computes reconstruction costs
// and evaluates a model.
type Trainer struct {
	Model  hgbert.Model
	Masker *hgmask.Masker

	// Creator determines the numeric type of batches.
	Creator anyvec.Creator

	// Rand is used to mask training batches.
	// If it is nil, a source seeded with 0 is used.
	Rand *rand.Rand

	// EvalSeed seeds the masks used by Run, making
	// evaluations repeatable.
	EvalSeed int64

	// After every gradient computation, LastCost is set to
	// the cost from the batch.
	LastCost anyvec.Numeric
}

// Fetch masks and packs a *SampleList.
func (t *Trainer) Fetch(s hgsgd.SampleList) (hgsgd.Batch, error) {
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewSource(0))
	}
	return t.fetch(s, t.Rand)
}

func (t *Trainer) fetch(s hgsgd.SampleList, rng *rand.Rand) (*Batch, error) {
	if s.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	l, ok := s.(*SampleList)
	if !ok {
		return nil, errors.New("fetch batch: not a *SampleList")
	}
	multimodal := t.Model.Type() != hgbert.TypeGaze
	reconHead := t.Model.Type() == hgbert.TypeHeadGazeMM

	seqLen, dim := l.Gaze.SeqLen, l.Gaze.Dim
	var gazeIn, headIn, target []float64
	in := &hgbert.Input{Batch: l.Len()}
	var gazeComps int
	for _, idx := range l.Indices {
		gaze := t.Masker.Mask(rng, l.Gaze.Window(idx), seqLen, dim)
		gazeIn = append(gazeIn, gaze.Input...)
		in.GazePos = append(in.GazePos, gaze.Positions)
		target = append(target, gaze.Target...)
		gazeComps += len(gaze.Target)
		if multimodal {
			head := t.Masker.Mask(rng, l.Head.Window(idx), seqLen, dim)
			headIn = append(headIn, head.Input...)
			in.HeadPos = append(in.HeadPos, head.Positions)
			if reconHead {
				target = append(target, head.Target...)
			}
		}
	}
	in.Gaze = anydiff.NewConst(hgnet.MakeVector(t.Creator, gazeIn))
	if multimodal {
		in.Head = anydiff.NewConst(hgnet.MakeVector(t.Creator, headIn))
	}
	return &Batch{
		Input:          in,
		Target:         anydiff.NewConst(hgnet.MakeVector(t.Creator, target)),
		GazeComponents: gazeComps,
	}, nil
}

// Forward reconstructs the masked rows of a *Batch.
// It returns the reconstruction and the target.
func (t *Trainer) Forward(b hgsgd.Batch) (est, act anyvec.Vector) {
	batch := b.(*Batch)
	return t.Model.Reconstruct(batch.Input).Output(), batch.Target.Output()
}

// TotalCost computes the reconstruction loss of a *Batch.
//
// Squared errors of gaze and head rows are added
// together, so the sum is averaged over the gaze
// components only.
func (t *Trainer) TotalCost(b hgsgd.Batch) anydiff.Res {
	batch := b.(*Batch)
	out := t.Model.Reconstruct(batch.Input)
	cost := hgnet.SumSE{Divisor: float64(batch.GazeComponents)}
	return cost.Cost(batch.Target, out, batch.Input.Batch)
}

// Gradient computes the gradient of the batch's cost.
// It also sets t.LastCost.
func (t *Trainer) Gradient(b hgsgd.Batch) anydiff.Grad {
	grad, lc := hgsgd.CosterGrad(t, b, t.Model.Parameters())
	t.LastCost = lc
	return grad
}

// Evaluate computes the mean squared error between
// estimated and actual rows.
func Evaluate(est, act *hgdata.Windows) float64 {
	if len(est.Data) != len(act.Data) {
		panic("estimate and actual sizes differ")
	}
	if len(est.Data) == 0 {
		return 0
	}
	var sum float64
	for i, x := range est.Data {
		d := x - act.Data[i]
		sum += d * d
	}
	return sum / float64(len(est.Data))
}

// Run reconstructs every sample of a list, batchSize
// samples at a time, with dropout disabled.
//
// Every window of the results holds the reconstructed
// (or actual) rows of one sample.
func (t *Trainer) Run(s hgsgd.SampleList, batchSize int) (est, act *hgdata.Windows, err error) {
	if s.Len() == 0 {
		return nil, nil, errors.New("run: empty sample list")
	}
	if batchSize <= 0 {
		batchSize = s.Len()
	}
	t.Model.SetTraining(false)
	rng := rand.New(rand.NewSource(t.EvalSeed))
	var estData, actData []float64
	for i := 0; i < s.Len(); i += batchSize {
		end := i + batchSize
		if end > s.Len() {
			end = s.Len()
		}
		batch, err := t.fetch(s.Slice(i, end), rng)
		if err != nil {
			return nil, nil, err
		}
		e, a := t.Forward(batch)
		estData = append(estData, hgnet.Floats(e)...)
		actData = append(actData, hgnet.Floats(a)...)
	}
	dim := s.(*SampleList).Gaze.Dim
	rows := len(actData) / (dim * s.Len())
	est = &hgdata.Windows{SeqLen: rows, Dim: dim, Data: estData}
	act = &hgdata.Windows{SeqLen: rows, Dim: dim, Data: actData}
	return est, act, nil
}
