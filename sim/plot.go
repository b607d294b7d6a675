package sim

import (
	"fmt"
	"image/color"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Axis selects position coordinate
type Axis int

const (
	// X is the camera x axis
	X Axis = iota
	// Y is the camera y axis
	Y
	// Z is the camera optical axis
	Z
)

// String implements fmt.Stringer
func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}

	return fmt.Sprintf("Axis(%d)", int(a))
}

func (a Axis) of(v r3.Vector) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	}

	return v.Z
}

// Series returns n x 2 matrix of stamps and the chosen coordinate of vs
func (t *Trace) Series(vs []r3.Vector, a Axis) *mat.Dense {
	m := mat.NewDense(len(t.Stamps), 2, nil)
	for i, ts := range t.Stamps {
		m.Set(i, 0, ts)
		m.Set(i, 1, a.of(vs[i]))
	}

	return m
}

// NewTracePlot creates new plot of coordinate a of the positions recorded in trace:
// truth:    true walker positions
// measured: noisy measurements
// filtered: positions published by the track
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * trace is nil or empty
// * a is not a valid axis
// * gonum plot fails to be created
func NewTracePlot(trace *Trace, a Axis) (*plot.Plot, error) {
	if trace == nil || trace.Len() == 0 {
		return nil, fmt.Errorf("invalid trace supplied")
	}

	if a < X || a > Z {
		return nil, fmt.Errorf("invalid axis: %v", a)
	}

	p := plot.New()

	p.Title.Text = "Body position"
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = a.String() + " [m]"

	legend := plot.NewLegend()

	legend.Top = true

	p.Legend = legend

	// Make a line plotter for true positions
	truthLine, err := plotter.NewLine(makePoints(trace.Series(trace.Truth, a)))
	if err != nil {
		return nil, err
	}
	truthLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	truthLine.LineStyle.Width = vg.Points(1)

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	// Make a scatter plotter for measurement data
	measScatter, err := plotter.NewScatter(makePoints(trace.Series(trace.Measured, a)))
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(measScatter)
	p.Legend.Add("measurement", measScatter)

	// Make a scatter plotter for filter data
	filterScatter, err := plotter.NewScatter(makePoints(trace.Series(trace.Filtered, a)))
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	filterScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169}
	filterScatter.Shape = draw.CrossGlyph{}
	filterScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(filterScatter)
	p.Legend.Add("filtered", filterScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
