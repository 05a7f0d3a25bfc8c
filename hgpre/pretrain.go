// Package hgpre pretrains head/gaze reconstruction models
// by masked reconstruction.
package hgpre

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"

	hgnet "github.com/retazo0018/head-gaze-behavioural-prediction"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgbert"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgsgd"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
)

// Metric names reported during pretraining.
const (
	MetricTrainLoss = "Train Loss"
	MetricValLoss   = "Validation Loss"
	MetricTestLoss  = "Test Loss"
)

// A MetricLogger records scalar metrics.
type MetricLogger interface {
	LogMetric(key string, value float64, step int) error
}

// Options configures Pretrain.
type Options struct {
	Train hgconf.TrainConfig

	// SavePath, if non-empty, is where the model with the
	// best validation loss is saved.
	SavePath string

	// PretrainModel, if non-empty, is a model file to load
	// before training.
	// Its type must match the trainer's model.
	PretrainModel string

	// Metrics, if non-nil, receives per-epoch losses.
	Metrics MetricLogger
}

// Result summarizes a pretraining run.
// The losses are taken from the epoch with the lowest
// validation loss.
type Result struct {
	ValLoss   float64
	TestLoss  float64
	TrainLoss float64

	Epoch int
	Steps int
}

// Pretrain trains the model for opts.Train.NEpochs epochs
// or until opts.Train.TotalSteps steps have been taken.
//
// When ctx is cancelled, training stops before the next
// mini-batch and the partial epoch is still evaluated.
//
// On return, t.Model holds the weights from the epoch
// with the lowest validation loss.
func (t *Trainer) Pretrain(ctx context.Context, train, val, test *SampleList,
	opts *Options) (*Result, error) {
	res, err := t.pretrain(ctx, train, val, test, opts)
	if err != nil {
		return nil, essentials.AddCtx("pretrain", err)
	}
	return res, nil
}

func (t *Trainer) pretrain(ctx context.Context, train, val, test *SampleList,
	opts *Options) (*Result, error) {
	if opts.PretrainModel != "" {
		model, err := hgbert.Load(opts.PretrainModel)
		if err != nil {
			return nil, err
		}
		if model.Type() != t.Model.Type() {
			return nil, fmt.Errorf("pretrained model is %s, not %s", model.Type(),
				t.Model.Type())
		}
		t.Model = model
	}
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewSource(opts.Train.Seed))
	}

	var step int
	var epochLoss float64
	var epochSteps int

	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() {
		closeOnce.Do(func() { close(done) })
	}

	sgd := &hgsgd.SGD{
		Fetcher: t,
		Gradienter: gradienterFunc(func(b hgsgd.Batch) anydiff.Grad {
			g := t.Gradient(b)
			epochLoss += hgnet.Float(t.LastCost)
			epochSteps++
			step++
			return g
		}),
		Transformer: &hgsgd.Adam{},
		Samples:     train,
		Rater: &hgsgd.WarmupRater{
			Rate:   opts.Train.LR,
			Warmup: opts.Train.Warmup,
			Epochs: float64(opts.Train.NEpochs),
		},
		BatchSize: opts.Train.BatchSize,
		Rand:      t.Rand,
		StatusFunc: func(b hgsgd.Batch) {
			if opts.Train.SaveSteps > 0 && step > 0 && step%opts.Train.SaveSteps == 0 {
				log.Printf("step %d: loss=%f", step, epochLoss/float64(epochSteps))
			}
			if opts.Train.TotalSteps > 0 && step >= opts.Train.TotalSteps {
				log.Printf("reached %d total steps", step)
				stop()
			}
			if ctx.Err() != nil {
				stop()
			}
		},
	}

	res := &Result{ValLoss: math.Inf(1)}
	var best hgbert.Model
EpochLoop:
	for epoch := 0; epoch < opts.Train.NEpochs; epoch++ {
		epochLoss, epochSteps = 0, 0
		t.Model.SetTraining(true)
		if err := sgd.RunEpoch(done); err != nil {
			return nil, err
		}
		if epochSteps == 0 {
			break
		}
		trainLoss := epochLoss / float64(epochSteps)
		valLoss, err := t.loss(val, opts.Train.BatchSize)
		if err != nil {
			return nil, err
		}
		testLoss, err := t.loss(test, opts.Train.BatchSize)
		if err != nil {
			return nil, err
		}
		log.Printf("epoch %d/%d: train=%.5f val=%.5f test=%.5f", epoch+1,
			opts.Train.NEpochs, trainLoss, valLoss, testLoss)

		if valLoss < res.ValLoss {
			res.ValLoss, res.TestLoss, res.TrainLoss = valLoss, testLoss, trainLoss
			res.Epoch = epoch
			best, err = hgbert.Clone(t.Model)
			if err != nil {
				return nil, err
			}
			if opts.SavePath != "" {
				if err := hgbert.Save(opts.SavePath, best); err != nil {
					return nil, err
				}
			}
		}

		if opts.Metrics != nil {
			for key, value := range map[string]float64{
				MetricTrainLoss: trainLoss,
				MetricValLoss:   valLoss,
				MetricTestLoss:  testLoss,
			} {
				if err := opts.Metrics.LogMetric(key, value, epoch); err != nil {
					return nil, err
				}
			}
		}

		select {
		case <-done:
			break EpochLoop
		default:
		}
	}
	if best != nil {
		t.Model = best
	}
	res.Steps = step
	return res, nil
}

func (t *Trainer) loss(s *SampleList, batchSize int) (float64, error) {
	if s.Len() == 0 {
		return 0, nil
	}
	est, act, err := t.Run(s, batchSize)
	if err != nil {
		return 0, err
	}
	return Evaluate(est, act), nil
}

type gradienterFunc func(b hgsgd.Batch) anydiff.Grad

func (g gradienterFunc) Gradient(b hgsgd.Batch) anydiff.Grad {
	return g(b)
}
