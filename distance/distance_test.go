package distance

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/milosgajdos/go-posetrack/camera"
	"github.com/milosgajdos/go-posetrack/landmark"
	"github.com/stretchr/testify/assert"
)

const (
	width  = 640
	height = 480
)

var intrinsics = camera.Intrinsics{Fx: 600, Fy: 600, Cx: 320, Cy: 240}

func TestReproject(t *testing.T) {
	assert := assert.New(t)

	// missing landmark
	assert.Equal(r3.Vector{}, Reproject(2.0, intrinsics, Pixel{}))

	// optical axis
	p := Reproject(2.0, intrinsics, Pixel{X: 320, Y: 240})
	assert.InDelta(0, p.Sub(r3.Vector{Z: 2.0}).Norm(), 1e-12)

	// 45 degrees off the optical axis
	p = Reproject(2.0, intrinsics, Pixel{X: 920, Y: 240})
	assert.InDelta(2.0/math.Sqrt2, p.Z, 1e-12)
	assert.InDelta(p.Z, p.X, 1e-12)
	assert.Zero(p.Y)

	p = Reproject(3.0, intrinsics, Pixel{X: 100, Y: 400})
	assert.InDelta(3.0*600/math.Sqrt(220*220+600*600), p.Z, 1e-12)
	assert.InDelta(-220*p.Z/600, p.X, 1e-12)
	assert.InDelta(160*p.Z/600, p.Y, 1e-12)
}

func TestSetIntrinsics(t *testing.T) {
	assert := assert.New(t)

	e := New(nil)
	_, ok := e.Intrinsics()
	assert.False(ok)

	set, err := e.SetIntrinsics(camera.Intrinsics{})
	assert.False(set)
	assert.Error(err)

	set, err = e.SetIntrinsics(intrinsics)
	assert.True(set)
	assert.NoError(err)

	other := camera.Intrinsics{Fx: 1, Fy: 1, Cx: 1, Cy: 1}
	set, err = e.SetIntrinsics(other)
	assert.False(set)
	assert.NoError(err)

	in, ok := e.Intrinsics()
	assert.True(ok)
	assert.Equal(intrinsics, in)
}

func TestLocateErrors(t *testing.T) {
	assert := assert.New(t)

	e := New(nil)
	_, err := e.Locate(Pixel{X: 10, Y: 10})
	assert.True(errors.Is(err, ErrNoIntrinsics))

	_, err = e.UpdateCue(landmark.Set{}, width, height)
	assert.True(errors.Is(err, ErrNoIntrinsics))

	_, err = e.SetIntrinsics(intrinsics)
	assert.NoError(err)

	_, err = e.Locate(Pixel{X: 10, Y: 10})
	assert.True(errors.Is(err, ErrNoCue))

	p, err := e.Estimate(landmark.Set{}, Pixel{X: 10, Y: 10}, width, height)
	assert.True(errors.Is(err, ErrInvalidSolution))
	assert.Equal(r3.Vector{}, p)
	assert.False(e.Valid())
}

func TestUpdateCue(t *testing.T) {
	assert := assert.New(t)

	e := New(nil)
	_, err := e.SetIntrinsics(intrinsics)
	assert.NoError(err)

	rvec := r3.Vector{X: 0.05, Y: -0.1, Z: 0.02}
	trans := r3.Vector{X: 0.1, Y: -0.05, Z: 1.2}
	face := ProjectFace(intrinsics, rvec, trans, width, height)

	sol, err := e.UpdateCue(face, width, height)
	assert.NoError(err)
	assert.NotNil(sol)
	assert.True(e.Valid())
	assert.Equal(sol, e.Solution())

	cue, ok := e.Cue()
	assert.True(ok)
	assert.InDelta(0, cue.Sub(trans).Norm(), 0.05)

	hip := Pixel{X: 400, Y: 300}
	p, err := e.Locate(hip)
	assert.NoError(err)
	assert.InDelta(cue.Norm(), p.Norm(), 1e-9)
	assert.Equal(Reproject(cue.Norm(), intrinsics, hip), p)

	// incomplete face mesh keeps the previous cue
	p2, err := e.Estimate(face[:10], hip, width, height)
	assert.NoError(err)
	assert.False(e.Valid())
	assert.Equal(p, p2)

	c, ok := e.Cue()
	assert.True(ok)
	assert.Equal(cue, c)

	// collapsed face keeps the previous cue
	_, err = e.UpdateCue(make(landmark.Set, landmark.FaceMeshSize), width, height)
	assert.True(errors.Is(err, ErrInvalidSolution))
	assert.False(e.Valid())
	c, _ = e.Cue()
	assert.Equal(cue, c)

	// valid face again
	_, err = e.UpdateCue(face, width, height)
	assert.NoError(err)
	assert.True(e.Valid())
}

func TestValidTranslation(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		t     r3.Vector
		valid bool
	}{
		{r3.Vector{X: 0.1, Y: -0.1, Z: 1}, true},
		{r3.Vector{X: 0, Y: 0.1, Z: 1}, false},
		{r3.Vector{X: 0.1, Y: 0.1, Z: 0}, false},
		{r3.Vector{X: 0.1, Y: 0.1, Z: -1}, false},
		{r3.Vector{X: math.NaN(), Y: 0.1, Z: 1}, false},
		{r3.Vector{X: 0.1, Y: math.Inf(1), Z: 1}, false},
	}

	for _, c := range cases {
		assert.Equal(c.valid, ValidTranslation(c.t), "%v", c.t)
	}
}
