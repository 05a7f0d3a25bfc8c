// Package hgsweep runs a pretraining grid search, tracking
// every combination as a separate run.
package hgsweep

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgbert"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgmask"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgplot"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgpre"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgstat"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgtrack"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/essentials"
)

// Defaults for a Sweep.
const (
	DefaultExperiment  = "Gaze_MM_Tuning"
	DefaultDescription = "A MultiModal Transformer Gaze Reconstruction"
	DefaultPlotSeed    = 2024
	ModelExt           = ".model"
)

// Names of the metrics logged after training.
const (
	MetricDTW           = "Test Dynamic Time Warping"
	MetricEuclidean     = "Test Euclidean Distance"
	MetricDTWGaze       = "Test Dynamic Time Warping Gaze"
	MetricDTWHead       = "Test Dynamic Time Warping Head"
	MetricEuclideanGaze = "Test Euclidean Distance Gaze"
	MetricEuclideanHead = "Test Euclidean Distance Head"
)

// A Combination is one point of a hyperparameter grid.
type Combination struct {
	LR        float64
	BatchSize int
	MaskRatio float64
}

// Combinations lists the grid points in order, varying
// the mask ratio fastest and the learning rate slowest.
func Combinations(hp *hgconf.HyperParams) []Combination {
	var res []Combination
	for _, lr := range hp.LearningRates {
		for _, bs := range hp.BatchSizes {
			for _, mr := range hp.MaskRatios {
				res = append(res, Combination{LR: lr, BatchSize: bs, MaskRatio: mr})
			}
		}
	}
	return res
}

// Apply returns a copy of cfg using the combination's
// hyperparameters.
func (c Combination) Apply(cfg *hgconf.PretrainConfig) *hgconf.PretrainConfig {
	res := *cfg
	res.Train.LR = c.LR
	res.Train.BatchSize = c.BatchSize
	res.Mask.MaskRatio = c.MaskRatio
	return &res
}

// A Sweep pretrains one model per grid combination.
type Sweep struct {
	Config      *hgconf.PretrainConfig
	HyperParams *hgconf.HyperParams
	ModelType   string
	Dataset     *hgdata.Dataset
	Store       *hgtrack.Store

	// SavePath is the checkpoint path, without ModelExt.
	SavePath string

	// PretrainModel, if set, initializes every run.
	PretrainModel string

	// Plotter receives the reconstruction plots.
	Plotter *hgplot.Plotter

	// Experiment and Description default to
	// DefaultExperiment and DefaultDescription.
	Experiment  string
	Description string

	// Creator defaults to anyvec32.
	Creator anyvec.Creator

	// Now defaults to time.Now.
	Now func() time.Time
}

// An Outcome summarizes the run of one combination.
type Outcome struct {
	Combination
	RunID   int64
	Result  *hgpre.Result
	Metrics map[string]float64
	Plots   []string
}

// Run runs every combination in order.
// A failed combination stops the sweep.
func (s *Sweep) Run(ctx context.Context) ([]*Outcome, error) {
	if err := s.HyperParams.Validate(); err != nil {
		return nil, essentials.AddCtx("sweep", err)
	}
	var res []*Outcome
	combs := Combinations(s.HyperParams)
	for i, comb := range combs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log.Printf("combination %d/%d: lr=%g batch_size=%d mask_ratio=%g", i+1, len(combs),
			comb.LR, comb.BatchSize, comb.MaskRatio)
		outcome, err := s.RunOne(ctx, comb)
		if err != nil {
			return res, essentials.AddCtx(fmt.Sprintf("sweep combination %d", i+1), err)
		}
		res = append(res, outcome)
	}
	return res, nil
}

// RunOne pretrains and evaluates a single combination in
// a new tracked run.
func (s *Sweep) RunOne(ctx context.Context, comb Combination) (outcome *Outcome, err error) {
	run, err := s.Store.StartRun(valueOrDefault(s.Experiment, DefaultExperiment),
		valueOrDefault(s.Description, DefaultDescription))
	if err != nil {
		return nil, err
	}
	defer func() {
		status := hgtrack.StatusFinished
		if err != nil {
			status = hgtrack.StatusFailed
		}
		if endErr := run.End(status); endErr != nil && err == nil {
			err = endErr
		}
	}()
	if err := run.LogHyperParams(comb.LR, comb.BatchSize, comb.MaskRatio); err != nil {
		return nil, err
	}

	cfg := comb.Apply(s.Config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := run.LogConfigs(cfg); err != nil {
		return nil, err
	}

	trainer, err := s.newTrainer(cfg)
	if err != nil {
		return nil, err
	}
	list, err := hgpre.NewSampleList(s.Dataset.Gaze, s.Dataset.Head, cfg.Train.Seed)
	if err != nil {
		return nil, err
	}
	train, val, test, err := list.Split(cfg.TrainingRate)
	if err != nil {
		return nil, err
	}

	checkpoint := s.SavePath + ModelExt
	result, err := trainer.Pretrain(ctx, train, val, test, &hgpre.Options{
		Train:         cfg.Train,
		SavePath:      checkpoint,
		PretrainModel: s.PretrainModel,
		Metrics:       run,
	})
	if err != nil {
		return nil, err
	}
	if err := run.LogMetric(hgpre.MetricTestLoss, result.TestLoss, cfg.Train.NEpochs); err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(checkpoint); statErr == nil {
		if err := run.LogModel(checkpoint, "models"); err != nil {
			return nil, err
		}
	}

	est, act, err := trainer.Run(test, cfg.Train.BatchSize)
	if err != nil {
		return nil, err
	}
	outcome = &Outcome{Combination: comb, RunID: run.ID, Result: result}
	if err := s.evaluate(run, outcome, est, act); err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(checkpoint); statErr == nil {
		if err := run.LogArtifact(checkpoint); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

func (s *Sweep) newTrainer(cfg *hgconf.PretrainConfig) (*hgpre.Trainer, error) {
	c := s.Creator
	if c == nil {
		c = anyvec32.CurrentCreator()
	}
	model, err := hgbert.New(c, s.ModelType, &cfg.Model)
	if err != nil {
		return nil, err
	}
	masker := hgmask.NewMasker(&cfg.Mask)
	if err := masker.Validate(); err != nil {
		return nil, err
	}
	return &hgpre.Trainer{
		Model:    model,
		Masker:   masker,
		Creator:  c,
		Rand:     rand.New(rand.NewSource(cfg.Train.Seed)),
		EvalSeed: cfg.Train.Seed,
	}, nil
}

// evaluate logs distance metrics and plots of the test
// reconstructions in spherical coordinates.
func (s *Sweep) evaluate(run *hgtrack.Run, outcome *Outcome, est, act *hgdata.Windows) error {
	estSph, err := hgstat.Spherical(est)
	if err != nil {
		return err
	}
	actSph, err := hgstat.Spherical(act)
	if err != nil {
		return err
	}

	type modality struct {
		name     string
		est, act *hgdata.Windows
	}
	var parts []modality
	if s.ModelType == hgbert.TypeHeadGazeMM {
		gazeEst, headEst, err := hgstat.SplitHalves(estSph)
		if err != nil {
			return err
		}
		gazeAct, headAct, err := hgstat.SplitHalves(actSph)
		if err != nil {
			return err
		}
		parts = []modality{{"Gaze", gazeEst, gazeAct}, {"Head", headEst, headAct}}
	} else {
		parts = []modality{{"Gaze", estSph, actSph}}
	}

	outcome.Metrics = map[string]float64{}
	for _, part := range parts {
		dtw, err := hgstat.DTWMetric(part.act, part.est)
		if err != nil {
			return err
		}
		euclidean, err := hgstat.EuclideanMetric(part.act, part.est)
		if err != nil {
			return err
		}
		outcome.Metrics[MetricDTW] += dtw
		outcome.Metrics[MetricEuclidean] += euclidean
		if len(parts) > 1 {
			outcome.Metrics[MetricDTW+" "+part.name] = dtw
			outcome.Metrics[MetricEuclidean+" "+part.name] = euclidean
		}
	}
	for key, value := range outcome.Metrics {
		if err := run.LogMetric(key, value, 0); err != nil {
			return err
		}
	}

	if s.Plotter == nil {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	date := hgplot.DateString(now())
	for _, part := range parts {
		paths := make([]string, 2)
		paths[0], err = s.Plotter.Sequences3D(part.est, part.act,
			"3D_Spherical_Coord_"+part.name+"_", date)
		if err != nil {
			return err
		}
		paths[1], err = s.Plotter.Sequences2D(part.est, part.act,
			"2D_Spherical_Coord_"+part.name+"_", date)
		if err != nil {
			return err
		}
		for _, path := range paths {
			if err := run.LogArtifact(path); err != nil {
				return err
			}
		}
		outcome.Plots = append(outcome.Plots, paths...)
	}
	return nil
}

func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
