// Package hgdata turns per-subject gaze/head recordings
// into fixed-length windows and stores them on disk.
package hgdata

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgconf"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const (
	// DataFile holds the gaze windows of a dataset.
	DataFile = "data.windows"

	// LabelFile holds the head windows of a dataset.
	LabelFile = "label.windows"
)

// A Dataset pairs gaze windows with the head windows
// recorded at the same time.
type Dataset struct {
	Gaze *Windows
	Head *Windows
}

// OptionsFromConfig creates Options for a dataset config.
func OptionsFromConfig(cfg *hgconf.DatasetConfig) Options {
	return Options{
		SeqLen:          cfg.SeqLen,
		Dim:             cfg.Dimension,
		DownsampleRatio: cfg.DownsampleRatio,
		GazeColumn:      cfg.GazeColumn,
		HeadColumn:      cfg.HeadColumn,
	}
}

// PreprocessFile is like PreprocessCSV, but reads from a
// file.
func PreprocessFile(path string, opts Options) (gaze, head *Windows, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return PreprocessCSV(f, opts)
}

// PreprocessDir windows every recording in a directory
// laid out as root/<subject>/<recording>.csv.
//
// Recordings that cannot be read or are too short are
// logged and skipped.
func PreprocessDir(root string, opts Options) (*Dataset, error) {
	subjects, err := os.ReadDir(root)
	if err != nil {
		return nil, essentials.AddCtx("preprocess dataset", err)
	}
	res := &Dataset{
		Gaze: NewWindows(opts.SeqLen, opts.Dim),
		Head: NewWindows(opts.SeqLen, opts.Dim),
	}
	for _, subject := range subjects {
		if !subject.IsDir() {
			continue
		}
		log.Println("Preprocessing subject", subject.Name())
		subjectDir := filepath.Join(root, subject.Name())
		files, err := os.ReadDir(subjectDir)
		if err != nil {
			log.Printf("Skipping subject %s: %v", subject.Name(), err)
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".csv") {
				continue
			}
			path := filepath.Join(subjectDir, file.Name())
			gaze, head, err := PreprocessFile(path, opts)
			if err != nil {
				log.Printf("Skipping %s: %v", path, err)
				continue
			}
			if err := res.Append(gaze, head); err != nil {
				return nil, essentials.AddCtx("preprocess dataset", err)
			}
		}
	}
	if err := res.Check(); err != nil {
		return nil, essentials.AddCtx("preprocess dataset", err)
	}
	return res, nil
}

// Append adds matching gaze and head windows.
func (d *Dataset) Append(gaze, head *Windows) error {
	if gaze.Shape() != head.Shape() {
		return fmt.Errorf("append: %w: gaze %v, head %v", ErrShapeMismatch,
			gaze.Shape(), head.Shape())
	}
	if err := d.Gaze.Concat(gaze); err != nil {
		return err
	}
	return d.Head.Concat(head)
}

// Check verifies that the gaze and head windows line up.
func (d *Dataset) Check() error {
	if d.Gaze.Shape() != d.Head.Shape() {
		return fmt.Errorf("%w: gaze %v, head %v", ErrShapeMismatch, d.Gaze.Shape(),
			d.Head.Shape())
	}
	return nil
}

// Save writes the dataset into a directory, creating it
// if necessary.
func (d *Dataset) Save(dir string) error {
	if err := d.Check(); err != nil {
		return essentials.AddCtx("save dataset", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return essentials.AddCtx("save dataset", err)
	}
	for name, w := range map[string]*Windows{DataFile: d.Gaze, LabelFile: d.Head} {
		data, err := serializer.SerializeAny(w)
		if err != nil {
			return essentials.AddCtx("save dataset", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return essentials.AddCtx("save dataset", err)
		}
	}
	return nil
}

// Load reads a dataset written by Save.
func Load(dir string) (*Dataset, error) {
	var res Dataset
	for name, dest := range map[string]**Windows{DataFile: &res.Gaze, LabelFile: &res.Head} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, essentials.AddCtx("load dataset", err)
		}
		if err := serializer.DeserializeAny(data, dest); err != nil {
			return nil, essentials.AddCtx("load dataset", err)
		}
	}
	if err := res.Check(); err != nil {
		return nil, essentials.AddCtx("load dataset", err)
	}
	return &res, nil
}
