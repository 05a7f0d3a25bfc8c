// Package hgplot draws reconstructed sequences next to
// the sequences they reconstruct.
package hgplot

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DateFormat is the layout of the date suffix of plot
// file names.
const DateFormat = "02.01.2006.15.04"

// Oblique projection used by Sequences3D: the depth axis
// is drawn at projectionAngle, shortened by
// projectionDepth.
const (
	projectionAngle = math.Pi / 6
	projectionDepth = 0.5
)

var (
	estimateColor = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	actualColor   = color.RGBA{R: 200, G: 30, B: 30, A: 220}
	sphereColor   = color.RGBA{R: 120, G: 120, B: 120, A: 120}
)

// A Plotter writes plots into a directory.
type Plotter struct {
	Dir string

	// Seed determines which window is plotted.
	Seed int64
}

// DateString formats t for use in plot file names.
func DateString(t time.Time) string {
	return t.Format(DateFormat)
}

// Sequences2D plots the (theta, phi) angles of one window
// of estimates and actual values, and returns the path of
// the PNG file "<prefix><date>.png".
func (p *Plotter) Sequences2D(est, act *hgdata.Windows, prefix, date string) (string, error) {
	estXY, actXY, err := p.pick(est, act, func(theta, phi float64) plotter.XY {
		return plotter.XY{X: theta, Y: phi}
	})
	if err != nil {
		return "", err
	}
	pl := plot.New()
	pl.Title.Text = "Spherical coordinates: estimate (blue), actual (red)"
	pl.X.Label.Text = "theta"
	pl.Y.Label.Text = "phi"
	pl.Add(plotter.NewGrid())
	if err := addSequence(pl, "estimate", estXY, estimateColor); err != nil {
		return "", err
	}
	if err := addSequence(pl, "actual", actXY, actualColor); err != nil {
		return "", err
	}
	return p.save(pl, prefix, date)
}

// Sequences3D draws one window of estimates and actual
// values as paths on the unit sphere, seen through an
// oblique projection, and returns the path of the PNG
// file "<prefix><date>.png".
func (p *Plotter) Sequences3D(est, act *hgdata.Windows, prefix, date string) (string, error) {
	estXY, actXY, err := p.pick(est, act, func(theta, phi float64) plotter.XY {
		return project(sphericalToCartesian(theta, phi))
	})
	if err != nil {
		return "", err
	}
	pl := plot.New()
	pl.Title.Text = "Unit sphere: estimate (blue), actual (red)"
	pl.X.Label.Text = "x"
	pl.Y.Label.Text = "z"
	pl.HideAxes()

	for _, circle := range sphereOutline() {
		line, err := plotter.NewLine(circle)
		if err != nil {
			return "", err
		}
		line.Color = sphereColor
		line.Width = vg.Points(0.5)
		pl.Add(line)
	}
	if err := addSequence(pl, "estimate", estXY, estimateColor); err != nil {
		return "", err
	}
	if err := addSequence(pl, "actual", actXY, actualColor); err != nil {
		return "", err
	}
	return p.save(pl, prefix, date)
}

func (p *Plotter) pick(est, act *hgdata.Windows,
	f func(theta, phi float64) plotter.XY) (estXY, actXY plotter.XYs, err error) {
	if est.Shape() != act.Shape() {
		return nil, nil, fmt.Errorf("plot: %w: estimate %v, actual %v",
			hgdata.ErrShapeMismatch, est.Shape(), act.Shape())
	}
	if est.Dim != 2 {
		return nil, nil, fmt.Errorf("plot: expected (theta, phi) rows but got dimension %d",
			est.Dim)
	}
	if est.Len() == 0 {
		return nil, nil, fmt.Errorf("plot: no windows")
	}
	idx := rand.New(rand.NewSource(p.Seed)).Intn(est.Len())
	convert := func(w *hgdata.Windows) plotter.XYs {
		res := make(plotter.XYs, w.SeqLen)
		for t := range res {
			row := w.At(idx, t)
			res[t] = f(row[0], row[1])
		}
		return res
	}
	return convert(est), convert(act), nil
}

func (p *Plotter) save(pl *plot.Plot, prefix, date string) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(p.Dir, prefix+date+".png")
	if err := pl.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", err
	}
	return path, nil
}

func addSequence(pl *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = c
	scatter.GlyphStyle.Radius = vg.Points(2.4)
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(0.8)
	pl.Add(line, scatter)
	pl.Legend.Add(name, scatter)
	return nil
}

func sphericalToCartesian(theta, phi float64) (x, y, z float64) {
	return math.Sin(phi) * math.Cos(theta), math.Sin(phi) * math.Sin(theta), math.Cos(phi)
}

func project(x, y, z float64) plotter.XY {
	return plotter.XY{
		X: x + projectionDepth*y*math.Cos(projectionAngle),
		Y: z + projectionDepth*y*math.Sin(projectionAngle),
	}
}

// sphereOutline returns the equator and two meridians of
// the unit sphere.
func sphereOutline() []plotter.XYs {
	const steps = 72
	res := make([]plotter.XYs, 3)
	for i := 0; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		res[0] = append(res[0], project(math.Cos(a), math.Sin(a), 0))
		res[1] = append(res[1], project(math.Cos(a), 0, math.Sin(a)))
		res[2] = append(res[2], project(0, math.Cos(a), math.Sin(a)))
	}
	return res
}
