package report

import (
	"cmp"
	"math"
	"os"
	"path/filepath"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/modelflow/linear"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/tune"
)

// Default size of saved plots.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// logAxis switches a to a log10 scale when every value is positive and
// they span at least two decades.
func logAxis(a *plot.Axis, values []float64) {
	if len(values) == 0 || floats.Min(values) <= 0 {
		return
	}
	if floats.Max(values)/floats.Min(values) < 100 {
		return
	}
	a.Scale = plot.LogScale{}
	a.Tick.Marker = plot.LogTicks{Prec: -1}
}

func checkLen(op string, x, y []float64) error {
	if len(x) != len(y) {
		return errors.NewDimensionError(op, len(x), len(y), 0)
	}
	if len(x) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	return nil
}

// Scatter plots y against x.
func Scatter(x, y []float64, title, xLabel, yLabel string) (*plot.Plot, error) {
	if err := checkLen("report.Scatter", x, y); err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	return p, nil
}

// ResidualPlot plots truth - estimate against the estimate with a zero
// reference line.
func ResidualPlot(truth, estimate []float64) (*plot.Plot, error) {
	if err := checkLen("report.ResidualPlot", truth, estimate); err != nil {
		return nil, err
	}
	resid := make([]float64, len(truth))
	floats.SubTo(resid, truth, estimate)

	p, err := Scatter(estimate, resid, "Residuals", "estimate", "residual")
	if err != nil {
		return nil, err
	}
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = plotutil.Color(1)
	zero.Dashes = plotutil.Dashes(1)
	p.Add(zero)
	return p, nil
}

// Histogram bins values into bins buckets.
func Histogram(values []float64, bins int, title string) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if bins < 1 {
		return nil, errors.NewValidationError("bins", "must be at least 1", bins)
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "count"
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, errors.Wrap(err, "histogram")
	}
	p.Add(h)
	return p, nil
}

// meanSE pairs the candidate means with ± one standard error bars.
type meanSE struct {
	plotter.XYs
	plotter.YErrors
}

// TuningPlot draws the resampled mean of metric against param with one
// standard error bars. Other tuning parameters are not held fixed, so
// with several parameters each x may carry several points.
func TuningPlot(res *tune.Result, metric, param string) (*plot.Plot, error) {
	summaries, err := res.SummariesFor(metric)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(res.Params, param) {
		return nil, errors.NewValidationError("param", "not a tuning parameter", param)
	}
	slices.SortStableFunc(summaries, func(a, b tune.Summary) int {
		return cmp.Compare(a.Params[param], b.Params[param])
	})

	var pts meanSE
	xs := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		if math.IsNaN(s.Mean) {
			continue
		}
		se := s.StdErr
		if math.IsNaN(se) {
			se = 0
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: s.Params[param], Y: s.Mean})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{se, se})
		xs = append(xs, s.Params[param])
	}
	if len(xs) == 0 {
		return nil, errors.NewValueError("report.TuningPlot", "no candidate has a defined mean")
	}

	p := plot.New()
	p.Title.Text = "Resampled " + summaries[0].Metric
	p.X.Label.Text = param
	p.Y.Label.Text = summaries[0].Metric + " (mean ± SE)"
	logAxis(&p.X, xs)

	line, points, err := plotter.NewLinePoints(pts.XYs)
	if err != nil {
		return nil, errors.Wrap(err, "tuning line")
	}
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, errors.Wrap(err, "error bars")
	}
	p.Add(line, points, bars)
	return p, nil
}

// CoefficientPathPlot draws each coefficient against the penalty, one
// line per term. names label the coefficients in path order.
func CoefficientPathPlot(path []linear.PathPoint, names []string) (*plot.Plot, error) {
	if len(path) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if len(names) != len(path[0].Coef) {
		return nil, errors.NewDimensionError("report.CoefficientPathPlot", len(path[0].Coef), len(names), 1)
	}
	lambdas := make([]float64, len(path))
	for i, pt := range path {
		lambdas[i] = pt.Lambda
	}

	p := plot.New()
	p.Title.Text = "Coefficient path"
	p.X.Label.Text = "penalty"
	p.Y.Label.Text = "coefficient"
	logAxis(&p.X, lambdas)
	p.Legend.Top = true

	for j, name := range names {
		pts := make(plotter.XYs, len(path))
		for i, pt := range path {
			pts[i] = plotter.XY{X: pt.Lambda, Y: pt.Coef[j]}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "path of %s", name)
		}
		l.Color = plotutil.Color(j)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	return p, nil
}

// Save writes p to path at the default size, creating the directory.
func Save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(p.Save(Width, Height, path), "save plot %s", path)
}
