// Package hgconf loads and validates the configuration of
// a pretraining experiment.
//
// A pretraining config file groups the training, masking,
// model and dataset settings; a separate hyperparameter
// file lists the grid explored by a sweep.
package hgconf

import (
	"errors"
	"fmt"
	"os"

	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// TrainConfig controls the optimization loop.
type TrainConfig struct {
	Seed      int64   `yaml:"seed"`
	BatchSize int     `yaml:"batch_size"`
	LR        float64 `yaml:"lr"`
	NEpochs   int     `yaml:"n_epochs"`

	// Warmup is the fraction of training spent ramping up
	// the learning rate.
	Warmup float64 `yaml:"warmup"`

	// SaveSteps is how often, in steps, progress is logged.
	SaveSteps int `yaml:"save_steps"`

	// TotalSteps caps the number of optimizer steps.
	TotalSteps int `yaml:"total_steps"`

	// Lambda1 and Lambda2 weight auxiliary losses. They are
	// recorded with every run but currently always 0.
	Lambda1 float64 `yaml:"lambda1"`
	Lambda2 float64 `yaml:"lambda2"`
}

// MaskConfig parameterizes the masking policy.
type MaskConfig struct {
	// MaskRatio is the fraction of positions to mask.
	MaskRatio float64 `yaml:"mask_ratio"`

	// MaskAlpha is recorded for tracking parity with the
	// span masking setup; see hgmask.
	MaskAlpha float64 `yaml:"mask_alpha"`

	// MaxGram is the longest masked span.
	MaxGram int `yaml:"max_gram"`

	// MaskProb is the probability that masked positions
	// are zeroed.
	MaskProb float64 `yaml:"mask_prob"`

	// ReplaceProb is the probability that masked positions
	// which were not zeroed are replaced by noise.
	ReplaceProb float64 `yaml:"replace_prob"`
}

// ModelConfig describes the transformer.
type ModelConfig struct {
	FeatureNum int     `yaml:"feature_num"`
	Hidden     int     `yaml:"hidden"`
	HiddenFF   int     `yaml:"hidden_ff"`
	NLayers    int     `yaml:"n_layers"`
	NHeads     int     `yaml:"n_heads"`
	SeqLen     int     `yaml:"seq_len"`
	EmbNorm    bool    `yaml:"emb_norm"`
	Dropout    float64 `yaml:"dropout"`
}

// DatasetConfig describes the raw recordings and how they
// are windowed.
type DatasetConfig struct {
	Name            string `yaml:"name"`
	Version         string `yaml:"version"`
	SeqLen          int    `yaml:"seq_len"`
	Dimension       int    `yaml:"dimension"`
	DownsampleRatio int    `yaml:"downsample_ratio"`
	GazeColumn      string `yaml:"gaze_column"`
	HeadColumn      string `yaml:"head_column"`
}

// PretrainConfig bundles everything needed for a
// pretraining run.
type PretrainConfig struct {
	Train   TrainConfig   `yaml:"train"`
	Mask    MaskConfig    `yaml:"mask"`
	Model   ModelConfig   `yaml:"model"`
	Dataset DatasetConfig `yaml:"dataset"`

	// TrainingRate is the fraction of windows used for
	// training. Half of the rest is used for validation
	// and half for testing.
	TrainingRate float64 `yaml:"training_rate"`
}

// Default returns the configuration the pipeline was tuned
// with.
func Default() *PretrainConfig {
	return &PretrainConfig{
		Train: TrainConfig{
			Seed:       18,
			BatchSize:  128,
			LR:         1e-3,
			NEpochs:    5,
			Warmup:     0.1,
			SaveSteps:  1000,
			TotalSteps: 200000,
		},
		Mask: MaskConfig{
			MaskRatio:   0.15,
			MaskAlpha:   6,
			MaxGram:     10,
			MaskProb:    0.8,
			ReplaceProb: 0,
		},
		Model: ModelConfig{
			FeatureNum: 3,
			Hidden:     72,
			HiddenFF:   144,
			NLayers:    4,
			NHeads:     4,
			SeqLen:     120,
			EmbNorm:    true,
		},
		Dataset: DatasetConfig{
			Name:            "hgbd",
			Version:         "20_120",
			SeqLen:          120,
			Dimension:       3,
			DownsampleRatio: 2,
			GazeColumn:      "RightGazeDirection",
			HeadColumn:      "Unit_Vector",
		},
		TrainingRate: 0.8,
	}
}

// Load reads a PretrainConfig from a YAML file.
// Fields missing from the file keep their defaults.
func Load(path string) (*PretrainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	res := Default()
	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, essentials.AddCtx("load config "+path, err)
	}
	if err := res.Validate(); err != nil {
		return nil, essentials.AddCtx("load config "+path, err)
	}
	return res, nil
}

// Save writes the config as YAML.
func (p *PretrainConfig) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return essentials.AddCtx("save config", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save config", err)
	}
	return nil
}

// Validate checks every config group.
func (p *PretrainConfig) Validate() error {
	if p.TrainingRate <= 0 || p.TrainingRate >= 1 {
		return fmt.Errorf("training_rate must be in (0, 1), got %f", p.TrainingRate)
	}
	for _, v := range []interface{ Validate() error }{&p.Train, &p.Mask, &p.Model, &p.Dataset} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if p.Model.SeqLen != p.Dataset.SeqLen {
		return fmt.Errorf("model seq_len (%d) does not match dataset seq_len (%d)",
			p.Model.SeqLen, p.Dataset.SeqLen)
	}
	if p.Model.FeatureNum != p.Dataset.Dimension {
		return fmt.Errorf("model feature_num (%d) does not match dataset dimension (%d)",
			p.Model.FeatureNum, p.Dataset.Dimension)
	}
	return nil
}

// Validate checks the training settings.
func (t *TrainConfig) Validate() error {
	switch {
	case t.BatchSize <= 0:
		return errors.New("train: batch_size must be positive")
	case t.LR <= 0:
		return errors.New("train: lr must be positive")
	case t.NEpochs <= 0:
		return errors.New("train: n_epochs must be positive")
	case t.Warmup < 0 || t.Warmup > 1:
		return errors.New("train: warmup must be in [0, 1]")
	case t.TotalSteps < 0:
		return errors.New("train: total_steps must not be negative")
	}
	return nil
}

// Validate checks the masking settings.
func (m *MaskConfig) Validate() error {
	switch {
	case m.MaskRatio <= 0 || m.MaskRatio >= 1:
		return fmt.Errorf("mask: mask_ratio must be in (0, 1), got %f", m.MaskRatio)
	case m.MaxGram <= 0:
		return errors.New("mask: max_gram must be positive")
	case m.MaskProb < 0 || m.MaskProb > 1:
		return errors.New("mask: mask_prob must be in [0, 1]")
	case m.ReplaceProb < 0 || m.ReplaceProb > 1:
		return errors.New("mask: replace_prob must be in [0, 1]")
	}
	return nil
}

// Validate checks the model settings.
func (m *ModelConfig) Validate() error {
	switch {
	case m.FeatureNum <= 0 || m.Hidden <= 0 || m.HiddenFF <= 0:
		return errors.New("model: feature_num, hidden and hidden_ff must be positive")
	case m.NLayers <= 0:
		return errors.New("model: n_layers must be positive")
	case m.NHeads <= 0 || m.Hidden%m.NHeads != 0:
		return fmt.Errorf("model: n_heads (%d) must divide hidden (%d)", m.NHeads, m.Hidden)
	case m.SeqLen <= 1:
		return errors.New("model: seq_len must be at least 2")
	case m.Dropout < 0 || m.Dropout >= 1:
		return errors.New("model: dropout must be in [0, 1)")
	}
	return nil
}

// Validate checks the dataset settings.
func (d *DatasetConfig) Validate() error {
	switch {
	case d.SeqLen <= 1:
		return errors.New("dataset: seq_len must be at least 2")
	case d.Dimension <= 0:
		return errors.New("dataset: dimension must be positive")
	case d.DownsampleRatio <= 0:
		return errors.New("dataset: downsample_ratio must be positive")
	case d.GazeColumn == "" || d.HeadColumn == "":
		return errors.New("dataset: gaze_column and head_column are required")
	}
	return nil
}
