package render

import (
	"errors"
	"io"

	"github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation/integrate"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// MaxPlotLines bounds the number of streamlines drawn by WriteScalarPlot.
const MaxPlotLines = 32

// WriteScalarPlot draws the scalar carried along each streamline against
// the step number and writes the chart to w as a PNG image.
func WriteScalarPlot(w io.Writer, lines []integrate.Streamline, scalar integrate.ScalarKind) error {
	if len(lines) == 0 {
		return errors.New("no streamlines to plot")
	}
	p := plot.New()
	p.Title.Text = "streamline " + scalar.String()
	p.X.Label.Text = "step"
	p.Y.Label.Text = scalar.String()
	for i, sl := range lines[:min(len(lines), MaxPlotLines)] {
		xys := make(plotter.XYs, len(sl.Scalars))
		for k, s := range sl.Scalars {
			xys[k].X = float64(k)
			xys[k].Y = s
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
