package oneeuro

import "github.com/golang/geo/r3"

// Triple filters a 3D vector with one Filter per axis
type Triple struct {
	X Filter
	Y Filter
	Z Filter
}

// NewTriple creates Triple whose axes are tuned with p.
// It returns error if p are not valid.
func NewTriple(p Params) (*Triple, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Triple{X: Filter{p: p}, Y: Filter{p: p}, Z: Filter{p: p}}, nil
}

// Update filters vector v sampled at time t and returns the filtered vector
// with the sampling period of the X axis.
func (tr *Triple) Update(t float64, v r3.Vector) (r3.Vector, float64) {
	x, dt := tr.X.Update(t, v.X)
	y, _ := tr.Y.Update(t, v.Y)
	z, _ := tr.Z.Update(t, v.Z)

	return r3.Vector{X: x, Y: y, Z: z}, dt
}

// Initialized returns true once every axis has been seeded
func (tr *Triple) Initialized() bool {
	return tr.X.Initialized() && tr.Y.Initialized() && tr.Z.Initialized()
}

// Value returns the last filtered vector
func (tr *Triple) Value() r3.Vector {
	x, _ := tr.X.Value()
	y, _ := tr.Y.Value()
	z, _ := tr.Z.Value()

	return r3.Vector{X: x, Y: y, Z: z}
}

// Reset drops the state of all axes
func (tr *Triple) Reset() {
	tr.X.Reset()
	tr.Y.Reset()
	tr.Z.Reset()
}
