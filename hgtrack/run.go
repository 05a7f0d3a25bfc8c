package hgtrack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"gopkg.in/yaml.v3"
)

// Run statuses.
const (
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

// A Run is an open run in a Store.
// It implements Tracker.
type Run struct {
	store *Store

	ID         int64
	UUID       string
	Experiment string
}

// LogParams records string parameters.
// Logging a key again replaces its value.
func (r *Run) LogParams(params map[string]string) error {
	for key, value := range params {
		_, err := r.store.db.Exec(`DELETE FROM params WHERE run_id = ? AND key = ?`, r.ID, key)
		if err != nil {
			return fmt.Errorf("failed to log param %s: %w", key, err)
		}
		_, err = r.store.db.Exec(`INSERT INTO params VALUES (?, ?, ?)`, r.ID, key, value)
		if err != nil {
			return fmt.Errorf("failed to log param %s: %w", key, err)
		}
	}
	return nil
}

// LogMetric records the value of a metric at a step.
func (r *Run) LogMetric(key string, value float64, step int) error {
	_, err := r.store.db.Exec(`INSERT INTO metrics VALUES (?, ?, ?, ?, ?)`, r.ID, key, value,
		int64(step), time.Now())
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", key, err)
	}
	return nil
}

// LogHyperParams records the swept hyperparameters of a
// run.
func (r *Run) LogHyperParams(lr float64, batchSize int, maskRatio float64) error {
	return r.LogParams(map[string]string{
		"learning_rate": formatFloat(lr),
		"batch_size":    strconv.Itoa(batchSize),
		"mask_ratio":    formatFloat(maskRatio),
	})
}

// LogConfigs records every field of a pretraining config
// as a parameter named "<group>.<field>".
func (r *Run) LogConfigs(cfg *hgconf.PretrainConfig) error {
	groups := map[string]interface{}{
		"train":   cfg.Train,
		"mask":    cfg.Mask,
		"model":   cfg.Model,
		"dataset": cfg.Dataset,
	}
	params := map[string]string{
		"training_rate": formatFloat(cfg.TrainingRate),
	}
	for group, value := range groups {
		data, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode %s config: %w", group, err)
		}
		var fields map[string]interface{}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("failed to decode %s config: %w", group, err)
		}
		for key, value := range fields {
			params[group+"."+key] = fmt.Sprint(value)
		}
	}
	return r.LogParams(params)
}

// LogArtifact copies a file into the run's artifact
// directory and records it.
func (r *Run) LogArtifact(path string) error {
	return r.logArtifact(path, "")
}

// LogModel copies a model checkpoint into a sub-directory
// of the run's artifacts.
func (r *Run) LogModel(path, artifactDir string) error {
	return r.logArtifact(path, artifactDir)
}

// ArtifactDir returns the directory holding the run's
// artifacts.
func (r *Run) ArtifactDir() string {
	return filepath.Join(r.store.root, r.Experiment, strconv.FormatInt(r.ID, 10), "artifacts")
}

func (r *Run) logArtifact(path, subDir string) error {
	if r.store.root == "" {
		return fmt.Errorf("failed to log artifact %s: store has no root directory", path)
	}
	name := filepath.Join(subDir, filepath.Base(path))
	dest := filepath.Join(r.ArtifactDir(), name)
	if err := copyFile(path, dest); err != nil {
		return fmt.Errorf("failed to log artifact %s: %w", path, err)
	}
	_, err := r.store.db.Exec(`INSERT INTO artifacts VALUES (?, ?, ?)`, r.ID, name, dest)
	if err != nil {
		return fmt.Errorf("failed to log artifact %s: %w", path, err)
	}
	return nil
}

// End marks the run as finished or failed.
func (r *Run) End(status string) error {
	_, err := r.store.db.Exec(`UPDATE runs SET status = ?, ended = ? WHERE id = ?`, status,
		time.Now(), r.ID)
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
