package report

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Theme holds the styling of a figure. It is passed explicitly to every
// plotting call; there is no package-level style state.
type Theme struct {
	Background  color.Color
	Grid        bool
	GridColor   color.Color
	PointColor  color.Color
	PointRadius vg.Length
	LineColor   color.Color
	LineWidth   vg.Length
	BarColor    color.Color
}

// WhiteGrid is the default theme: white background with light grey grid
// lines.
func WhiteGrid() Theme {
	return Theme{
		Background:  color.White,
		Grid:        true,
		GridColor:   color.Gray{Y: 220},
		PointColor:  color.NRGBA{R: 31, G: 119, B: 180, A: 153},
		PointRadius: vg.Points(3),
		LineColor:   color.Black,
		LineWidth:   vg.Points(1),
		BarColor:    color.NRGBA{R: 76, G: 114, B: 176, A: 255},
	}
}

// apply sets the background and adds the grid to p.
func (t Theme) apply(p *plot.Plot) {
	p.BackgroundColor = t.Background
	if !t.Grid {
		return
	}
	g := plotter.NewGrid()
	g.Vertical.Color = t.GridColor
	g.Horizontal.Color = t.GridColor
	p.Add(g)
}
