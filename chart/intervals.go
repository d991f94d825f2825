// Package chart renders prediction intervals with gonum/plot.
package chart

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/piven/core/model"
	"github.com/YuminosukeSato/piven/pkg/errors"
)

var (
	boundColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	pointColor = color.RGBA{R: 220, G: 80, B: 40, A: 255}
	truthColor = color.RGBA{A: 255}
)

// Options controls the rendered chart.
type Options struct {
	Title string

	// SortByPoint orders samples by their point prediction so the bounds
	// read as a band. Otherwise samples are drawn in input order.
	SortByPoint bool

	Width  vg.Length
	Height vg.Length
}

// DefaultOptions returns a 20cm×10cm chart sorted by point prediction.
func DefaultOptions() Options {
	return Options{
		Title:       "Prediction intervals",
		SortByPoint: true,
		Width:       20 * vg.Centimeter,
		Height:      10 * vg.Centimeter,
	}
}

// Intervals builds a chart of the observed targets, the point predictions
// and the lower and upper bounds against the sample index.
func Intervals(y []float64, iv model.Intervals, opts Options) (*plot.Plot, error) {
	n := iv.Len()
	if n == 0 {
		return nil, errors.NewValueError("chart.Intervals", "no predictions to plot")
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("chart.Intervals", n, len(y), 0)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if opts.SortByPoint {
		sort.SliceStable(order, func(a, b int) bool {
			return iv.Point.AtVec(order[a]) < iv.Point.AtVec(order[b])
		})
	}

	upper := make(plotter.XYs, n)
	lower := make(plotter.XYs, n)
	point := make(plotter.XYs, n)
	truth := make(plotter.XYs, n)
	for x, i := range order {
		upper[x] = plotter.XY{X: float64(x), Y: iv.Upper.AtVec(i)}
		lower[x] = plotter.XY{X: float64(x), Y: iv.Lower.AtVec(i)}
		point[x] = plotter.XY{X: float64(x), Y: iv.Point.AtVec(i)}
		truth[x] = plotter.XY{X: float64(x), Y: y[i]}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "target"
	p.Add(plotter.NewGrid())

	upperLine, err := plotter.NewLine(upper)
	if err != nil {
		return nil, errors.Wrap(err, "upper bound")
	}
	upperLine.Color = boundColor
	upperLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	lowerLine, err := plotter.NewLine(lower)
	if err != nil {
		return nil, errors.Wrap(err, "lower bound")
	}
	lowerLine.Color = boundColor
	lowerLine.Dashes = upperLine.Dashes

	pointLine, err := plotter.NewLine(point)
	if err != nil {
		return nil, errors.Wrap(err, "point prediction")
	}
	pointLine.Color = pointColor

	truthScatter, err := plotter.NewScatter(truth)
	if err != nil {
		return nil, errors.Wrap(err, "targets")
	}
	truthScatter.GlyphStyle.Color = truthColor
	truthScatter.GlyphStyle.Radius = vg.Points(1.5)

	p.Add(upperLine, lowerLine, pointLine, truthScatter)
	p.Legend.Add("upper", upperLine)
	p.Legend.Add("lower", lowerLine)
	p.Legend.Add("prediction", pointLine)
	p.Legend.Add("observed", truthScatter)
	p.Legend.Top = true
	return p, nil
}

// SaveIntervals renders the chart to path. The image format follows the
// file extension (png, svg, pdf, ...).
func SaveIntervals(path string, y []float64, iv model.Intervals, opts Options) error {
	p, err := Intervals(y, iv, opts)
	if err != nil {
		return err
	}
	if opts.Width == 0 || opts.Height == 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	return errors.SafeExecute("chart.SaveIntervals", func() error {
		if err := p.Save(opts.Width, opts.Height, path); err != nil {
			return errors.Wrapf(err, "failed to save chart to %s", path)
		}
		return nil
	})
}
