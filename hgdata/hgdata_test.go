package hgdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		in       string
		expected []float64
	}{
		{"[0.1, -0.2, 0.97]", []float64{0.1, -0.2, 0.97}},
		{"(1, 2, 3)", []float64{1, 2, 3}},
		{" [ 1e-3 ,2.5 ] ", []float64{1e-3, 2.5}},
		{"(4.0,)", []float64{4}},
		{"[]", []float64{}},
	}
	for _, test := range tests {
		actual, err := ParseVector(test.in)
		if err != nil {
			t.Errorf("%q: %v", test.in, err)
			continue
		}
		if !reflect.DeepEqual(actual, test.expected) {
			t.Errorf("%q: expected %v but got %v", test.in, test.expected, actual)
		}
	}
	for _, bad := range []string{"", "1, 2", "[1, 2", "[a, b]", "{1}", "[1, 2)", "(1, 2]"} {
		if _, err := ParseVector(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

// makeCSV creates a recording where row i has gaze
// [i, 0, 0] and head [0, i, 0].
func makeCSV(rows int, missing map[int]bool) string {
	var b strings.Builder
	b.WriteString("Timestamp,RightGazeDirection,Unit_Vector\n")
	for i := 0; i < rows; i++ {
		if missing[i] {
			fmt.Fprintf(&b, "%d,,\"[0, %d, 0]\"\n", i, i)
			continue
		}
		fmt.Fprintf(&b, "%d,\"[%d, 0, 0]\",\"(0, %d, 0)\"\n", i, i, i)
	}
	return b.String()
}

func testOptions() Options {
	return Options{
		SeqLen:          3,
		Dim:             3,
		DownsampleRatio: 2,
		GazeColumn:      "RightGazeDirection",
		HeadColumn:      "Unit_Vector",
	}
}

func TestPreprocessCSV(t *testing.T) {
	// Row 1 is dropped, so the kept rows are 0, 2, 3, ..., 14
	// and downsampling keeps 0, 3, 5, 7, 9, 11, 13.
	csv := makeCSV(15, map[int]bool{1: true})
	gaze, head, err := PreprocessCSV(strings.NewReader(csv), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if gaze.Shape() != [3]int{2, 3, 3} || head.Shape() != gaze.Shape() {
		t.Fatalf("unexpected shapes %v and %v", gaze.Shape(), head.Shape())
	}
	expectedRows := []float64{0, 3, 5, 7, 9, 11}
	for i, x := range expectedRows {
		g := gaze.At(i/3, i%3)
		h := head.At(i/3, i%3)
		if !reflect.DeepEqual(g, []float64{x, 0, 0}) {
			t.Errorf("gaze row %d: got %v", i, g)
		}
		if !reflect.DeepEqual(h, []float64{0, x, 0}) {
			t.Errorf("head row %d: got %v", i, h)
		}
	}
}

func TestPreprocessCSVTooShort(t *testing.T) {
	_, _, err := PreprocessCSV(strings.NewReader(makeCSV(5, nil)), testOptions())
	if err != ErrTooShort {
		t.Errorf("expected ErrTooShort but got %v", err)
	}
}

func TestPreprocessCSVErrors(t *testing.T) {
	opts := testOptions()
	if _, _, err := PreprocessCSV(strings.NewReader("a,b\n1,2\n"), opts); err == nil {
		t.Error("expected a missing column error")
	}
	bad := "RightGazeDirection,Unit_Vector\n\"[1, 0]\",\"[0, 1, 0]\"\n"
	if _, _, err := PreprocessCSV(strings.NewReader(bad), opts); err == nil {
		t.Error("expected a dimension error")
	}
}

func TestPreprocessDir(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"p01/a.csv":     makeCSV(12, nil),
		"p01/b.csv":     makeCSV(4, nil),
		"p01/notes.txt": "ignored",
		"p02/a.csv":     makeCSV(6, nil),
		"p03/bad.csv":   "RightGazeDirection,Unit_Vector\n\"[x]\",\"[1, 2, 3]\"\n",
	}
	for name, contents := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	ds, err := PreprocessDir(root, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	// p01/a.csv yields 6 rows (2 windows), p02/a.csv yields
	// 3 rows (1 window); the rest are skipped.
	if ds.Gaze.Len() != 3 || ds.Head.Len() != 3 {
		t.Fatalf("expected 3 windows but got %d and %d", ds.Gaze.Len(), ds.Head.Len())
	}

	dir := filepath.Join(t.TempDir(), "hgbd")
	if err := ds.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, ds) {
		t.Error("loaded dataset does not match saved dataset")
	}
}

func TestWindows(t *testing.T) {
	w := NewWindows(2, 2)
	w.AppendWindow([]float64{1, 2, 3, 4})
	w.AppendWindow([]float64{5, 6, 7, 8})
	w.AppendWindow([]float64{9, 10, 11, 12})
	if w.Len() != 3 {
		t.Fatalf("expected 3 windows but got %d", w.Len())
	}
	if !reflect.DeepEqual(w.At(1, 1), []float64{7, 8}) {
		t.Errorf("unexpected At result: %v", w.At(1, 1))
	}
	if !reflect.DeepEqual(w.Slice(1, 3).Window(0), []float64{5, 6, 7, 8}) {
		t.Errorf("unexpected Slice result")
	}
	sel := w.Select([]int{2, 0})
	if !reflect.DeepEqual(sel.Data, []float64{9, 10, 11, 12, 1, 2, 3, 4}) {
		t.Errorf("unexpected Select result: %v", sel.Data)
	}
	err := w.Concat(NewWindows(3, 2))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch but got %v", err)
	}
}
