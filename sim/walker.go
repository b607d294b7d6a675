// Package sim simulates bodies observed by a camera and plots how
// tracks follow them.
package sim

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	posetrack "github.com/milosgajdos/go-posetrack"
	"github.com/milosgajdos/go-posetrack/camera"
	"github.com/milosgajdos/go-posetrack/distance"
	"github.com/milosgajdos/go-posetrack/landmark"
	"github.com/milosgajdos/go-posetrack/noise"
	"github.com/milosgajdos/go-posetrack/track"
)

// DefaultFrameID is the camera frame of simulated frames
const DefaultFrameID = "camera_color_optical_frame"

// DefaultIntrinsics are intrinsics of the simulated camera
var DefaultIntrinsics = camera.Intrinsics{Fx: 600, Fy: 600, Cx: 320, Cy: 240}

// headOffset places the face relative to the hip midpoint in the camera frame
var headOffset = r3.Vector{Y: -0.6, Z: -0.05}

// standing is a hip centered standing body in the detector world frame
var standing = func() landmark.Set {
	s := make(landmark.Set, landmark.PoseSize)
	for i := range s {
		s[i] = landmark.Point{Y: -0.3, Visibility: 0.5}
	}

	for idx, p := range map[int]r3.Vector{
		landmark.Nose:          {X: 0, Y: -0.65, Z: -0.1},
		landmark.LeftEye:       {X: 0.03, Y: -0.68, Z: -0.08},
		landmark.RightEye:      {X: -0.03, Y: -0.68, Z: -0.08},
		landmark.LeftEar:       {X: 0.07, Y: -0.66, Z: 0},
		landmark.RightEar:      {X: -0.07, Y: -0.66, Z: 0},
		landmark.LeftShoulder:  {X: 0.18, Y: -0.5, Z: 0},
		landmark.RightShoulder: {X: -0.18, Y: -0.5, Z: 0},
		landmark.LeftElbow:     {X: 0.22, Y: -0.22, Z: 0},
		landmark.RightElbow:    {X: -0.22, Y: -0.22, Z: 0},
		landmark.LeftWrist:     {X: 0.24, Y: 0.05, Z: -0.05},
		landmark.RightWrist:    {X: -0.24, Y: 0.05, Z: -0.05},
		landmark.LeftHip:       {X: 0.1, Y: 0, Z: 0},
		landmark.RightHip:      {X: -0.1, Y: 0, Z: 0},
		landmark.LeftKnee:      {X: 0.1, Y: 0.45, Z: 0},
		landmark.RightKnee:     {X: -0.1, Y: 0.45, Z: 0},
		landmark.LeftAnkle:     {X: 0.1, Y: 0.85, Z: 0},
		landmark.RightAnkle:    {X: -0.1, Y: 0.85, Z: 0},
		landmark.LeftFoot:      {X: 0.1, Y: 0.9, Z: -0.1},
		landmark.RightFoot:     {X: -0.1, Y: 0.9, Z: -0.1},
	} {
		s[idx] = landmark.Point{X: p.X, Y: p.Y, Z: p.Z, Visibility: 0.95}
	}

	return s
}()

// Walker simulates a body walking at constant velocity in front of a camera.
// Positions are hip midpoints in the camera optical frame.
type Walker struct {
	// Start is the position at time zero
	Start r3.Vector
	// Velocity is walking velocity [m/s]
	Velocity r3.Vector
	// Rate is the frame rate [Hz]
	Rate float64
	// Noise perturbs measured positions
	Noise posetrack.Noise
	// Intrinsics are camera intrinsics
	Intrinsics camera.Intrinsics
	// Width is image width in pixels
	Width int
	// Height is image height in pixels
	Height int
	// FrameID is the camera frame
	FrameID string
}

// NewWalker creates new Walker and returns it.
// Nil noise n produces exact measurements.
// It returns error if rate is not positive or the body starts behind the camera.
func NewWalker(start, velocity r3.Vector, rate float64, n posetrack.Noise) (*Walker, error) {
	if !(rate > 0) {
		return nil, fmt.Errorf("invalid frame rate: %v", rate)
	}

	if !(start.Z > 0) {
		return nil, fmt.Errorf("body behind the camera: %v", start)
	}

	if n == nil {
		n = noise.Zero{}
	}

	return &Walker{
		Start:      start,
		Velocity:   velocity,
		Rate:       rate,
		Noise:      n,
		Intrinsics: DefaultIntrinsics,
		Width:      640,
		Height:     480,
		FrameID:    DefaultFrameID,
	}, nil
}

// Stamp returns the time of frame i
func (w *Walker) Stamp(i int) float64 {
	return float64(i) / w.Rate
}

// Truth returns the true position in frame i
func (w *Walker) Truth(i int) r3.Vector {
	return w.Start.Add(w.Velocity.Mul(w.Stamp(i)))
}

// info returns calibration of the simulated camera
func (w *Walker) info() *camera.Info {
	in := w.Intrinsics
	return &camera.Info{
		FrameID: w.FrameID,
		Width:   w.Width,
		Height:  w.Height,
		K:       [9]float64{in.Fx, 0, in.Cx, 0, in.Fy, in.Cy, 0, 0, 1},
	}
}

// DepthFrame returns frame i carrying a depth sensor measurement
// along with the measured position.
func (w *Walker) DepthFrame(i int) (track.Frame, r3.Vector) {
	measured := w.Truth(i).Add(w.Noise.Sample())

	return track.Frame{
		Stamp:     w.Stamp(i),
		FrameID:   w.FrameID,
		Width:     w.Width,
		Height:    w.Height,
		Detection: landmark.Detected(w.landmarks(w.Truth(i), measured)),
		Depth:     &measured,
	}, measured
}

// FaceFrame returns frame i carrying landmarks only along with the measured
// position. Measurement noise displaces the detected face.
func (w *Walker) FaceFrame(i int) (track.Frame, r3.Vector) {
	measured := w.Truth(i).Add(w.Noise.Sample())

	return track.Frame{
		Stamp:     w.Stamp(i),
		FrameID:   w.FrameID,
		Width:     w.Width,
		Height:    w.Height,
		Detection: landmark.Detected(w.landmarks(w.Truth(i), measured)),
		Info:      w.info(),
	}, measured
}

// landmarks returns landmarks of a standing body with hips at truth
// and face at the measured position
func (w *Walker) landmarks(truth, measured r3.Vector) landmark.Result {
	pose := make(landmark.Set, len(standing))
	for i, p := range standing {
		u, v, ok := w.Intrinsics.Project(truth.Add(r3.Vector{X: p.X, Y: p.Y, Z: p.Z}))
		if !ok {
			continue
		}
		pose[i] = landmark.Point{
			X:          u / float64(w.Width),
			Y:          v / float64(w.Height),
			Visibility: p.Visibility,
		}
	}

	face := distance.ProjectFace(w.Intrinsics, r3.Vector{}, measured.Add(headOffset), w.Width, w.Height)

	return landmark.Result{Pose: pose, World: standing, Face: face}
}

// Trace records how a track followed a walker
type Trace struct {
	Stamps   []float64
	Truth    []r3.Vector
	Measured []r3.Vector
	Filtered []r3.Vector
	// Velocity holds filtered velocities; zero until the track warms up
	Velocity []r3.Vector
}

// Len returns the number of recorded frames
func (t *Trace) Len() int {
	return len(t.Stamps)
}

// MeanError returns mean distances of measured and filtered positions from
// the truth. Both are zero for an empty trace.
func (t *Trace) MeanError() (measured, filtered float64) {
	n := t.Len()
	if n == 0 {
		return 0, 0
	}

	for i := 0; i < n; i++ {
		measured += t.Measured[i].Sub(t.Truth[i]).Norm()
		filtered += t.Filtered[i].Sub(t.Truth[i]).Norm()
	}

	return measured / float64(n), filtered / float64(n)
}

// Run feeds n frames of w to track tr and records the positions it publishes.
// Frames carry depth measurements if depth is true and face landmarks otherwise.
// It returns error if the track fails to process a frame.
func Run(ctx context.Context, w *Walker, tr *track.Track, n int, depth bool) (*Trace, error) {
	trace := &Trace{}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return trace, err
		}

		var (
			f        track.Frame
			measured r3.Vector
		)
		if depth {
			f, measured = w.DepthFrame(i)
		} else {
			f, measured = w.FaceFrame(i)
		}

		out, err := tr.OnFrame(ctx, f)
		if err != nil {
			return trace, fmt.Errorf("frame %d: %w", i, err)
		}

		if out.Position == nil {
			continue
		}

		var vel r3.Vector
		if out.Velocity != nil {
			vel = out.Velocity.Vector
		}

		trace.Stamps = append(trace.Stamps, f.Stamp)
		trace.Truth = append(trace.Truth, w.Truth(i))
		trace.Measured = append(trace.Measured, measured)
		trace.Filtered = append(trace.Filtered, out.Position.Vector)
		trace.Velocity = append(trace.Velocity, vel)
	}

	return trace, nil
}
