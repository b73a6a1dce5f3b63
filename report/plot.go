package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/YuminosukeSato/co2stack/pkg/ordered"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Figure is a plot together with its output size. Path is set once the
// figure has been written to disk.
type Figure struct {
	Plot   *plot.Plot
	Width  vg.Length
	Height vg.Length
	Path   string
}

// Save writes the figure to path, creating parent directories. The image
// format follows the file extension.
func (f *Figure) Save(path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	if err := f.Plot.Save(f.Width, f.Height, path); err != nil {
		return errors.Wrapf(err, "failed to save figure %s", path)
	}
	f.Path = path
	logger().Info("saved figure", log.PathKey, path)
	return nil
}

// Encode renders the figure in the given format ("png", "svg", ...) to w.
func (f *Figure) Encode(w io.Writer, format string) error {
	wt, err := f.Plot.WriterTo(f.Width, f.Height, format)
	if err != nil {
		return errors.Wrapf(err, "failed to render figure as %s", format)
	}
	_, err = wt.WriteTo(w)
	return errors.WithStack(err)
}

type plotConfig struct {
	title    string
	savePath string
	theme    Theme
}

// PlotOption configures a plotting call.
type PlotOption func(*plotConfig)

// WithTitle overrides the default title.
func WithTitle(title string) PlotOption {
	return func(c *plotConfig) { c.title = title }
}

// WithSavePath writes the figure to path as part of the call.
func WithSavePath(path string) PlotOption {
	return func(c *plotConfig) { c.savePath = path }
}

// WithTheme sets the theme (WhiteGrid by default).
func WithTheme(t Theme) PlotOption {
	return func(c *plotConfig) { c.theme = t }
}

func newConfig(defaultTitle string, opts []PlotOption) plotConfig {
	c := plotConfig{title: defaultTitle, theme: WhiteGrid()}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c plotConfig) finish(p *plot.Plot, w, h vg.Length) (*Figure, error) {
	fig := &Figure{Plot: p, Width: w, Height: h}
	if c.savePath != "" {
		if err := fig.Save(c.savePath); err != nil {
			return nil, err
		}
	}
	return fig, nil
}

// PlotActualVsPred draws predicted against actual values with a dashed
// identity line over [min, max] of both series. The title carries R2, MAE
// and RMSE. The figure is 6x6 inches.
func PlotActualVsPred(yTrue, yPred []float64, opts ...PlotOption) (*Figure, error) {
	cfg := newConfig("Actual vs Predicted", opts)
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("PlotActualVsPred", len(yTrue), len(yPred), 0)
	}

	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	pr := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))
	r2, err := metrics.R2Score(t, pr)
	if err != nil {
		return nil, err
	}
	mae, err := metrics.MAE(t, pr)
	if err != nil {
		return nil, err
	}
	rmse, err := metrics.RMSE(t, pr)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	cfg.theme.apply(p)
	p.Title.Text = fmt.Sprintf("%s\nR2=%.3f  MAE=%.1f  RMSE=%.1f", cfg.title, r2, mae, rmse)
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"

	pts := make(plotter.XYs, len(yTrue))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
		lo = math.Min(lo, math.Min(yTrue[i], yPred[i]))
		hi = math.Max(hi, math.Max(yTrue[i], yPred[i]))
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scatter")
	}
	s.GlyphStyle.Color = cfg.theme.PointColor
	s.GlyphStyle.Radius = cfg.theme.PointRadius
	s.GlyphStyle.Shape = draw.CircleGlyph{}

	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build identity line")
	}
	l.LineStyle.Color = cfg.theme.LineColor
	l.LineStyle.Width = cfg.theme.LineWidth
	l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(s, l)
	return cfg.finish(p, 6*vg.Inch, 6*vg.Inch)
}

// Record is an entry of the results summary that can report named metrics.
type Record interface {
	Metric(name string) (float64, bool)
}

// PlotModelComparison draws one horizontal bar per record that has metric,
// best value on top. Records without the metric (such as a CV report) are
// skipped. With nothing to plot it logs a warning and returns a nil figure.
// The figure is 6 x max(2, 0.6n) inches.
func PlotModelComparison(results *ordered.Map[Record], metric string, opts ...PlotOption) (*Figure, error) {
	cfg := newConfig("Model comparison", opts)

	type row struct {
		name  string
		value float64
	}
	var rows []row
	for name, rec := range results.All() {
		if rec == nil {
			continue
		}
		if v, ok := rec.Metric(metric); ok && !math.IsNaN(v) {
			rows = append(rows, row{name, v})
		}
	}
	if len(rows) == 0 {
		logger().Warn("no data to plot for metric", "metric", metric)
		return nil, nil
	}

	// the first nominal category is drawn at the bottom
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].value < rows[j].value })
	values := make(plotter.Values, len(rows))
	names := make([]string, len(rows))
	for i, r := range rows {
		values[i] = r.value
		names[i] = r.name
	}

	p := plot.New()
	cfg.theme.apply(p)
	p.Title.Text = cfg.title
	p.X.Label.Text = metric
	p.Y.Label.Text = "Model"

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Horizontal = true
	bars.Color = cfg.theme.BarColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)

	height := math.Max(2, 0.6*float64(len(rows)))
	return cfg.finish(p, 6*vg.Inch, vg.Length(height)*vg.Inch)
}

// PlotCVScores draws one bar per fold on a fixed [0, 1] y-axis; scores
// outside the range are clipped. The figure is 6x3 inches.
func PlotCVScores(scores []float64, opts ...PlotOption) (*Figure, error) {
	cfg := newConfig("CV R2 per fold", opts)
	if len(scores) == 0 {
		return nil, errors.NewValueError("PlotCVScores", "no scores to plot")
	}

	values := make(plotter.Values, len(scores))
	labels := make([]string, len(scores))
	for i, s := range scores {
		values[i] = math.Min(1, math.Max(0, s))
		labels[i] = strconv.Itoa(i + 1)
	}

	p := plot.New()
	cfg.theme.apply(p)
	p.Title.Text = cfg.title
	p.X.Label.Text = "Fold"
	p.Y.Label.Text = "R2"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Color = cfg.theme.BarColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	p.Y.Min = 0
	p.Y.Max = 1

	return cfg.finish(p, 6*vg.Inch, 3*vg.Inch)
}
