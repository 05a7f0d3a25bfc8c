package hgconf

import (
	"errors"
	"os"

	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// HyperParams is the grid explored by a sweep.
//
// The YAML keys follow the naming of the tuning files:
// T_ for training settings and D_ for data settings.
type HyperParams struct {
	LearningRates []float64 `yaml:"T_LR"`
	BatchSizes    []int     `yaml:"T_BATCHSIZE"`
	MaskRatios    []float64 `yaml:"D_MASKRATIO"`
}

// LoadHyperParams reads a hyperparameter grid from a YAML
// file.
func LoadHyperParams(path string) (*HyperParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load hyperparameters", err)
	}
	var res HyperParams
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("load hyperparameters "+path, err)
	}
	if err := res.Validate(); err != nil {
		return nil, essentials.AddCtx("load hyperparameters "+path, err)
	}
	return &res, nil
}

// Validate makes sure that no axis of the grid is empty
// and that every value is usable.
func (h *HyperParams) Validate() error {
	if len(h.LearningRates) == 0 || len(h.BatchSizes) == 0 || len(h.MaskRatios) == 0 {
		return errors.New("T_LR, T_BATCHSIZE and D_MASKRATIO must all be non-empty")
	}
	for _, lr := range h.LearningRates {
		if lr <= 0 {
			return errors.New("learning rates must be positive")
		}
	}
	for _, bs := range h.BatchSizes {
		if bs <= 0 {
			return errors.New("batch sizes must be positive")
		}
	}
	for _, r := range h.MaskRatios {
		if r <= 0 || r >= 1 {
			return errors.New("mask ratios must be in (0, 1)")
		}
	}
	return nil
}

// Size returns the number of combinations in the grid.
func (h *HyperParams) Size() int {
	return len(h.LearningRates) * len(h.BatchSizes) * len(h.MaskRatios)
}
