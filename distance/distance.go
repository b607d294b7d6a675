// Package distance estimates the 3D position of a body seen by a monocular
// camera. The camera-to-face distance recovered from face landmarks anchors
// the depth of the hip midpoint, which is then reprojected from its pixel.
package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/milosgajdos/go-posetrack/camera"
	"github.com/milosgajdos/go-posetrack/landmark"
	"github.com/milosgajdos/go-posetrack/pnp"
)

var (
	// ErrNoIntrinsics is returned when no camera calibration has been captured yet
	ErrNoIntrinsics = errors.New("camera intrinsics not available")
	// ErrNoCue is returned when no valid face distance has ever been estimated
	ErrNoCue = errors.New("face distance cue not available")
	// ErrInvalidSolution is returned when face pose estimation yields no usable translation
	ErrInvalidSolution = errors.New("invalid face pose solution")
)

// FaceModel is a canonical face in meters, in the order of FaceLandmarks.
// The face looks down the negative z axis of the camera with its nose tip at the origin.
var FaceModel = []r3.Vector{
	// nose tip
	{X: 0, Y: 0, Z: 0},
	// right eye
	{X: -0.032, Y: -0.035, Z: 0.030},
	// left eye
	{X: 0.032, Y: -0.035, Z: 0.030},
	// mouth center
	{X: 0, Y: 0.035, Z: 0.015},
	// right ear tragion
	{X: -0.075, Y: -0.010, Z: 0.095},
	// left ear tragion
	{X: 0.075, Y: -0.010, Z: 0.095},
}

// FaceLandmarks are face mesh indices matching FaceModel points
var FaceLandmarks = []int{
	landmark.FaceNose,
	landmark.FaceRightEye,
	landmark.FaceLeftEye,
	landmark.FaceMouthCenter,
	landmark.FaceRightEarTragion,
	landmark.FaceLeftEarTragion,
}

// Pixel is an image pixel
type Pixel struct {
	X int
	Y int
}

// Estimator estimates body position from face and body landmarks.
// It caches camera intrinsics and the last valid face distance cue.
type Estimator struct {
	intrinsics *camera.Intrinsics
	// cue is the last valid camera to face translation
	cue    r3.Vector
	hasCue bool
	// valid reports whether the latest face pose solution was valid
	valid    bool
	solution *pnp.Solution
	settings *pnp.Settings
}

// New creates new Estimator and returns it.
// Settings s tune face pose estimation; nil uses pnp defaults.
func New(s *pnp.Settings) *Estimator {
	return &Estimator{settings: s}
}

// SetIntrinsics caches camera intrinsics in.
// Intrinsics are captured only once: it returns false if they are already set.
// It returns error if in are not valid.
func (e *Estimator) SetIntrinsics(in camera.Intrinsics) (bool, error) {
	if e.intrinsics != nil {
		return false, nil
	}

	if err := in.Validate(); err != nil {
		return false, err
	}
	e.intrinsics = &in

	return true, nil
}

// Intrinsics returns cached intrinsics and true, or false if none were captured
func (e *Estimator) Intrinsics() (camera.Intrinsics, bool) {
	if e.intrinsics == nil {
		return camera.Intrinsics{}, false
	}

	return *e.intrinsics, true
}

// UpdateCue estimates face pose from normalized face mesh landmarks seen in
// an image of the given size. A valid solution replaces the cached cue; an
// invalid one marks the current frame invalid and keeps the previous cue.
func (e *Estimator) UpdateCue(face landmark.Set, width, height int) (*pnp.Solution, error) {
	e.valid = false

	if e.intrinsics == nil {
		return nil, ErrNoIntrinsics
	}

	points := make([]r2.Point, len(FaceLandmarks))
	for i, idx := range FaceLandmarks {
		if idx >= len(face) {
			return nil, fmt.Errorf("%w: incomplete face mesh: %d points", ErrInvalidSolution, len(face))
		}
		x, y := camera.ToPixel(face[idx].X, face[idx].Y, width, height)
		points[i] = r2.Point{X: float64(x), Y: float64(y)}
	}

	sol, err := pnp.Solve(FaceModel, points, *e.intrinsics, e.settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSolution, err)
	}

	if !ValidTranslation(sol.Translation) {
		return nil, fmt.Errorf("%w: translation %v", ErrInvalidSolution, sol.Translation)
	}

	e.cue, e.hasCue, e.valid, e.solution = sol.Translation, true, true, sol

	return sol, nil
}

// ValidTranslation returns true if every component of t is present and a number
// and t lies in front of the camera.
func ValidTranslation(t r3.Vector) bool {
	for _, c := range []float64{t.X, t.Y, t.Z} {
		if c == 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}

	return t.Z > 0
}

// Valid returns true if the latest cue update produced a valid solution
func (e *Estimator) Valid() bool {
	return e.valid
}

// Cue returns the last valid camera to face translation and true,
// or false if no valid cue has been estimated yet.
func (e *Estimator) Cue() (r3.Vector, bool) {
	return e.cue, e.hasCue
}

// Solution returns the last valid face pose solution
func (e *Estimator) Solution() *pnp.Solution {
	return e.solution
}

// Locate returns the position of the body whose hip midpoint is seen at pixel
// hip using the cached face distance cue.
func (e *Estimator) Locate(hip Pixel) (r3.Vector, error) {
	if e.intrinsics == nil {
		return r3.Vector{}, ErrNoIntrinsics
	}

	if !e.hasCue {
		return r3.Vector{}, ErrNoCue
	}

	return Reproject(e.cue.Norm(), *e.intrinsics, hip), nil
}

// Estimate updates the face cue from face landmarks and locates the body whose
// hip midpoint is seen at pixel hip. An invalid face solution falls back to
// the last valid cue; with no cue at all the zero vector is returned along
// with the error.
func (e *Estimator) Estimate(face landmark.Set, hip Pixel, width, height int) (r3.Vector, error) {
	if _, err := e.UpdateCue(face, width, height); err != nil && !e.hasCue {
		return r3.Vector{}, err
	}

	return e.Locate(hip)
}

// Reproject places a body at distance d [m] from the camera along the ray through
// pixel p using similar triangles. Pixel (0, 0) marks a missing landmark
// and yields the zero vector.
func Reproject(d float64, in camera.Intrinsics, p Pixel) r3.Vector {
	if p.X == 0 && p.Y == 0 {
		return r3.Vector{}
	}

	u := float64(p.X) - in.Cx
	v := float64(p.Y) - in.Cy

	z := in.Fx * d / math.Sqrt(u*u+in.Fx*in.Fx)

	return r3.Vector{
		X: u * z / in.Fx,
		Y: v * z / in.Fy,
		Z: z,
	}
}

// ProjectFace returns the normalized face mesh landmarks of FaceModel placed
// at pose (rvec, t) and seen in an image of the given size. Landmarks outside
// FaceLandmarks are left at the origin.
func ProjectFace(in camera.Intrinsics, rvec, t r3.Vector, width, height int) landmark.Set {
	face := make(landmark.Set, landmark.FaceMeshSize)
	rot := pnp.Rodrigues(rvec)

	for i, idx := range FaceLandmarks {
		u, v, ok := in.Project(pnp.Transform(rot, t, FaceModel[i]))
		if !ok {
			continue
		}
		face[idx] = landmark.Point{
			X:          u / float64(width),
			Y:          v / float64(height),
			Visibility: 1,
		}
	}

	return face
}
