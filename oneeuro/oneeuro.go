// Package oneeuro implements an adaptive low-pass filter whose cutoff
// frequency rises with the estimated speed of the filtered signal.
// For more information about the filter see:
// https://gery.casiez.net/1euro/
package oneeuro

import (
	"fmt"
	"math"
)

// Params are filter tuning parameters
type Params struct {
	// MinCutoff is the cutoff frequency [Hz] of a still signal
	MinCutoff float64 `yaml:"min_cutoff"`
	// Beta scales cutoff increase with signal speed
	Beta float64 `yaml:"beta"`
	// DCutoff is the cutoff frequency [Hz] of the derivative filter
	DCutoff float64 `yaml:"d_cutoff"`
}

var (
	// PositionParams tune filters of position like channels
	PositionParams = Params{MinCutoff: 0.3, Beta: 0.05, DCutoff: 0.5}
	// VelocityParams tune filters of velocity like channels
	VelocityParams = Params{MinCutoff: 0.5, Beta: 0.2, DCutoff: 0.2}
)

// Validate returns error if p can not drive a filter
func (p Params) Validate() error {
	if !(p.MinCutoff > 0) {
		return fmt.Errorf("invalid min cutoff: %v", p.MinCutoff)
	}

	if !(p.DCutoff > 0) {
		return fmt.Errorf("invalid derivative cutoff: %v", p.DCutoff)
	}

	if !(p.Beta >= 0) {
		return fmt.Errorf("invalid beta: %v", p.Beta)
	}

	return nil
}

// Filter is a One Euro filter of a single scalar channel.
// Zero value Filter is not initialized; its first Update seeds the state.
type Filter struct {
	p Params
	// initialized tags the seeded state
	initialized bool
	t           float64
	x           float64
	xHat        float64
	dxHat       float64
	// dt is the last positive sampling period
	dt float64
}

// New creates new Filter with parameters p and returns it.
// It returns error if p are not valid.
func New(p Params) (*Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Filter{p: p}, nil
}

// Update filters sample x taken at time t [s] and returns the filtered value
// along with the sampling period used to compute it.
//
// The first sample is returned unfiltered. Samples whose timestamp does not
// advance leave the state untouched: the previous filtered value is returned
// together with the last positive period.
func (f *Filter) Update(t, x float64) (float64, float64) {
	if !f.initialized {
		f.initialized = true
		f.t, f.x, f.xHat, f.dxHat = t, x, x, 0

		return x, f.dt
	}

	dt := t - f.t
	if !(dt > 0) {
		return f.xHat, f.dt
	}

	dx := (x - f.x) / dt
	dxHat := exp(alpha(f.p.DCutoff, dt), dx, f.dxHat)

	cutoff := f.p.MinCutoff + f.p.Beta*math.Abs(dxHat)
	xHat := exp(alpha(cutoff, dt), x, f.xHat)

	f.t, f.x, f.xHat, f.dxHat, f.dt = t, x, xHat, dxHat, dt

	return xHat, dt
}

// Initialized returns true if the filter has been seeded
func (f *Filter) Initialized() bool {
	return f.initialized
}

// Value returns the last filtered value and its derivative
func (f *Filter) Value() (x, dx float64) {
	return f.xHat, f.dxHat
}

// Reset drops filter state; the next Update seeds it again
func (f *Filter) Reset() {
	*f = Filter{p: f.p}
}

// Params returns filter parameters
func (f *Filter) Params() Params {
	return f.p
}

// alpha returns smoothing factor of exponential filter with cutoff [Hz] at period dt
func alpha(cutoff, dt float64) float64 {
	return 1.0 / (1.0 + 1.0/(2*math.Pi*cutoff*dt))
}

func exp(a, x, prev float64) float64 {
	return a*x + (1-a)*prev
}
