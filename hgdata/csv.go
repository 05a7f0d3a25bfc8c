package hgdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/unixpickle/essentials"
)

// ErrTooShort is returned when a recording has fewer
// downsampled rows than one window.
var ErrTooShort = errors.New("recording shorter than one window")

// Options controls how a recording is turned into
// windows.
type Options struct {
	SeqLen          int
	Dim             int
	DownsampleRatio int
	GazeColumn      string
	HeadColumn      string
}

// ParseVector parses a list literal such as "[0.1, -0.2]"
// or "(0.1, -0.2)" into its components.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return nil, fmt.Errorf("parse vector %q: not a list literal", s)
	}
	first, last := s[0], s[len(s)-1]
	if !((first == '[' && last == ']') || (first == '(' && last == ')')) {
		return nil, fmt.Errorf("parse vector %q: not a list literal", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	if strings.TrimSpace(parts[len(parts)-1]) == "" {
		// A trailing comma, as in the one-tuple "(1.0,)".
		parts = parts[:len(parts)-1]
	}
	res := make([]float64, len(parts))
	for i, part := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector %q: %w", s, err)
		}
		res[i] = x
	}
	return res, nil
}

// PreprocessCSV reads one recording and splits it into
// gaze and head windows.
//
// Rows with a missing field are dropped.
// The remaining rows are downsampled by keeping every
// DownsampleRatio-th row, starting with the first, and
// the tail that does not fill a whole window is dropped.
//
// If less than one window remains, ErrTooShort is
// returned unwrapped.
func PreprocessCSV(r io.Reader, opts Options) (gaze, head *Windows, err error) {
	gaze, head, err = preprocessCSV(r, opts)
	if err != nil && err != ErrTooShort {
		err = essentials.AddCtx("preprocess csv", err)
	}
	return
}

func preprocessCSV(r io.Reader, opts Options) (gaze, head *Windows, err error) {
	if opts.SeqLen <= 0 || opts.Dim <= 0 || opts.DownsampleRatio <= 0 {
		return nil, nil, errors.New("invalid options")
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, err
	}
	gazeIdx, headIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case opts.GazeColumn:
			gazeIdx = i
		case opts.HeadColumn:
			headIdx = i
		}
	}
	if gazeIdx < 0 || headIdx < 0 {
		return nil, nil, fmt.Errorf("missing column %q or %q", opts.GazeColumn,
			opts.HeadColumn)
	}

	var gazeRows, headRows [][]float64
	var kept int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, err
		}
		if len(record) != len(header) || hasMissing(record) {
			continue
		}
		kept++
		if (kept-1)%opts.DownsampleRatio != 0 {
			continue
		}
		g, err := parseDimVector(record[gazeIdx], opts.Dim)
		if err != nil {
			return nil, nil, err
		}
		h, err := parseDimVector(record[headIdx], opts.Dim)
		if err != nil {
			return nil, nil, err
		}
		gazeRows = append(gazeRows, g)
		headRows = append(headRows, h)
	}

	if len(gazeRows) < opts.SeqLen {
		return nil, nil, ErrTooShort
	}
	return windowRows(gazeRows, opts), windowRows(headRows, opts), nil
}

func windowRows(rows [][]float64, opts Options) *Windows {
	numWindows := len(rows) / opts.SeqLen
	res := &Windows{
		SeqLen: opts.SeqLen,
		Dim:    opts.Dim,
		Data:   make([]float64, 0, numWindows*opts.SeqLen*opts.Dim),
	}
	for _, row := range rows[:numWindows*opts.SeqLen] {
		res.Data = append(res.Data, row...)
	}
	return res
}

func parseDimVector(s string, dim int) ([]float64, error) {
	vec, err := ParseVector(s)
	if err != nil {
		return nil, err
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("vector %q has %d components, expected %d", s, len(vec), dim)
	}
	return vec, nil
}

func hasMissing(record []string) bool {
	for _, field := range record {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "", "nan", "na", "null", "none":
			return true
		}
	}
	return false
}
