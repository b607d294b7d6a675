// Package track tracks a single body across video frames.
//
// Track turns per frame landmarks into a filtered body position and velocity,
// a canonical 3D pose and the transforms placing the body in the camera frame.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	posetrack "github.com/milosgajdos/go-posetrack"
	"github.com/milosgajdos/go-posetrack/camera"
	"github.com/milosgajdos/go-posetrack/distance"
	"github.com/milosgajdos/go-posetrack/kinematics"
	"github.com/milosgajdos/go-posetrack/landmark"
	"github.com/milosgajdos/go-posetrack/oneeuro"
	"github.com/milosgajdos/go-posetrack/pnp"
	"github.com/milosgajdos/go-posetrack/skeleton"
)

var (
	// ErrNoDepth is reported when depth positions are enabled but the frame carries none
	ErrNoDepth = errors.New("depth position not available")
	// ErrDegenerate is reported when body geometry yields no usable position
	ErrDegenerate = errors.New("degenerate body geometry")
	// ErrClosed is returned when a frame is delivered to a closed track
	ErrClosed = errors.New("track closed")
)

// Frame carries everything observed about one body in one video frame
type Frame struct {
	// Stamp is frame time in seconds
	Stamp float64
	// FrameID is the camera optical frame
	FrameID string
	// Width is image width in pixels
	Width int
	// Height is image height in pixels
	Height int
	// Detection holds detected landmarks
	Detection landmark.Detection
	// Info is optional camera calibration
	Info *camera.Info
	// Depth is optional hip position measured by a depth sensor
	Depth *r3.Vector
	// DepthImage is optional depth image registered to the color image
	DepthImage *camera.DepthImage
	// DepthInfo is depth camera calibration required by DepthImage
	DepthInfo *camera.Info
	// DepthStamp is DepthImage time in seconds
	DepthStamp float64
	// Crop is the region of the depth image the color image was cut from
	Crop landmark.ROI
}

// Output is the result of processing one frame
type Output struct {
	// ID is body identity
	ID string `json:"id"`
	// Stamp is frame time in seconds
	Stamp float64 `json:"stamp"`
	// FrameID is the camera optical frame
	FrameID string `json:"frame_id"`
	// Position is filtered body position
	Position *posetrack.Stamped `json:"position,omitempty"`
	// Velocity is filtered body velocity
	Velocity *posetrack.Stamped `json:"velocity,omitempty"`
	// Pose is the canonical 3D body pose
	Pose *skeleton.Pose `json:"pose,omitempty"`
	// Skeleton2D is the normalized 2D skeleton
	Skeleton2D *landmark.Skeleton2D `json:"skeleton2d,omitempty"`
	// Transforms place the body, face and debug frames
	Transforms []posetrack.Transform `json:"transforms,omitempty"`
	// JointState holds solved joint angles
	JointState *kinematics.JointState `json:"joint_state,omitempty"`
	// ROI is the image region covering the body
	ROI *landmark.ROI `json:"roi,omitempty"`
	// Diagnostics lists conditions which prevented parts of the output
	Diagnostics []error `json:"-"`
}

// Track tracks a single body.
// OnFrame and Close are safe to call concurrently.
type Track struct {
	mu     sync.Mutex
	id     string
	opts   Options
	logger *slog.Logger
	desc   kinematics.Description

	estimator *distance.Estimator
	position  posetrack.VectorSmoother
	velocity  posetrack.VectorSmoother
	// prev is the last filtered position
	prev    r3.Vector
	hasPrev bool
	// warm is set once the velocity filters have been seeded
	warm   bool
	closed bool
}

// New creates new Track of body id and returns it.
// It returns error if id is empty or options are invalid.
func New(id string, opts ...Option) (*Track, error) {
	if id == "" {
		return nil, errors.New("empty body id")
	}

	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}

	if !(o.ShoulderOffset >= 0) {
		return nil, fmt.Errorf("invalid shoulder offset: %v", o.ShoulderOffset)
	}

	position, err := oneeuro.NewTriple(o.Position)
	if err != nil {
		return nil, fmt.Errorf("position filter: %w", err)
	}

	velocity, err := oneeuro.NewTriple(o.Velocity)
	if err != nil {
		return nil, fmt.Errorf("velocity filter: %w", err)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Track{
		id:        id,
		opts:      o,
		logger:    logger.With("body", id),
		desc:      kinematics.NewDescription(id),
		estimator: distance.New(o.PnP),
		position:  position,
		velocity:  velocity,
	}, nil
}

// ID returns body identity
func (t *Track) ID() string {
	return t.id
}

// Description returns kinematic description of the body
func (t *Track) Description() kinematics.Description {
	return t.desc
}

// OnFrame processes frame f and returns the track output.
// Missing inputs and degenerate geometry never fail the call: they skip the
// affected outputs and are listed in Output.Diagnostics.
// It returns error if the track is closed or f has no valid image size.
func (t *Track) OnFrame(ctx context.Context, f Frame) (*Output, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size: %dx%d", f.Width, f.Height)
	}

	if f.DepthImage != nil {
		f.Stamp = PickStamp(f.Stamp, f.DepthStamp)
	}

	out := &Output{ID: t.id, Stamp: f.Stamp, FrameID: f.FrameID}

	if f.Info != nil {
		t.captureIntrinsics(*f.Info, out)
	}

	r, ok := f.Detection.Result()
	if !ok {
		return out, nil
	}

	if !t.opts.UseDepth && len(r.Face) > 0 {
		t.updateCue(f, r.Face, out)
	}

	var (
		hip    distance.Pixel
		hasHip bool
	)
	if len(r.Pose) > 0 {
		skel, err := landmark.NewSkeleton2D(r.Pose)
		if err != nil {
			t.diagnose(out, fmt.Errorf("2d skeleton: %w", err))
		} else {
			out.Skeleton2D = &skel
			hx, hy := skel.HipMidpoint()
			hip.X, hip.Y = camera.ToPixel(hx, hy, f.Width, f.Height)
			hasHip = true
		}
	}

	raw, err := t.sample(f, hip, hasHip)
	if err != nil {
		t.diagnose(out, err)
	} else {
		t.updateMotion(f, raw, out)
	}

	if len(r.World) > 0 {
		t.updatePose(ctx, f, r.World, raw, err == nil, out)
	}

	if t.opts.SingleBody {
		if roi, ok := landmark.PersonROI(r, f.Width, f.Height); ok && roi.Within(f.Width, f.Height) {
			out.ROI = &roi
		}
	}

	return out, nil
}

// Reset drops filter state. The next frame seeds the filters
// and velocity warms up again.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.position.Reset()
	t.velocity.Reset()
	t.prev, t.hasPrev, t.warm = r3.Vector{}, false, false
}

// Close closes the track. It waits for the frame in flight, if any;
// frames delivered afterwards fail with ErrClosed.
func (t *Track) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
}

// Closed returns true if the track has been closed
func (t *Track) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// PickStamp returns the stamp of the newer of the color and depth frames
func PickStamp(rgb, depth float64) float64 {
	return math.Max(rgb, depth)
}

func (t *Track) diagnose(out *Output, err error) {
	t.logger.Debug("frame diagnostic", "stamp", out.Stamp, "err", err)
	out.Diagnostics = append(out.Diagnostics, err)
}

func (t *Track) captureIntrinsics(info camera.Info, out *Output) {
	in, err := camera.FromInfo(info)
	if err != nil {
		t.diagnose(out, fmt.Errorf("camera info: %w", err))
		return
	}

	set, err := t.estimator.SetIntrinsics(in)
	if err != nil {
		t.diagnose(out, fmt.Errorf("camera info: %w", err))
		return
	}

	if set {
		t.logger.Info("captured camera intrinsics", "fx", in.Fx, "fy", in.Fy, "cx", in.Cx, "cy", in.Cy)
	}
}

// updateCue refreshes the face distance cue and places the face and gaze frames
func (t *Track) updateCue(f Frame, face landmark.Set, out *Output) {
	if _, ok := t.estimator.Intrinsics(); !ok {
		return
	}

	sol, err := t.estimator.UpdateCue(face, f.Width, f.Height)
	if err != nil {
		t.diagnose(out, err)
		return
	}

	out.Transforms = append(out.Transforms, faceTransforms(t.id, f.FrameID, f.Stamp, sol)...)
}

// sample returns the raw body position of frame f
func (t *Track) sample(f Frame, hip distance.Pixel, hasHip bool) (r3.Vector, error) {
	if t.opts.UseDepth {
		if f.Depth != nil {
			return *f.Depth, nil
		}

		if f.DepthImage == nil || f.DepthInfo == nil || !hasHip {
			return r3.Vector{}, ErrNoDepth
		}

		in, err := camera.FromInfo(*f.DepthInfo)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("%w: %v", ErrNoDepth, err)
		}

		p, ok := camera.Deproject(*f.DepthImage, in, hip.X+f.Crop.XOffset, hip.Y+f.Crop.YOffset)
		if !ok {
			return r3.Vector{}, fmt.Errorf("%w: no reading at pixel %v", ErrNoDepth, hip)
		}

		return p, nil
	}

	if !hasHip {
		return r3.Vector{}, fmt.Errorf("%w: hips not detected", ErrDegenerate)
	}

	p, err := t.estimator.Locate(hip)
	if err != nil {
		return r3.Vector{}, err
	}

	if p == (r3.Vector{}) {
		return r3.Vector{}, fmt.Errorf("%w: hip midpoint at image origin", ErrDegenerate)
	}

	return p, nil
}

// updateMotion filters raw position sample p and estimates body velocity
func (t *Track) updateMotion(f Frame, p r3.Vector, out *Output) {
	pos, dt := t.position.Update(f.Stamp, p)
	out.Position = &posetrack.Stamped{Stamp: f.Stamp, FrameID: f.FrameID, Vector: pos}

	if t.hasPrev && dt > 0 {
		v := pos.Sub(t.prev).Mul(1 / dt)
		vel, _ := t.velocity.Update(f.Stamp, v)
		if t.warm {
			out.Velocity = &posetrack.Stamped{Stamp: f.Stamp, FrameID: "body_" + t.id, Vector: vel}
		}
		t.warm = true
	}

	t.prev, t.hasPrev = pos, true
}

// updatePose builds the 3D pose, places the body and solves its joints
func (t *Track) updatePose(ctx context.Context, f Frame, world landmark.Set, raw r3.Vector, hasRaw bool, out *Output) {
	pose, err := skeleton.Build(world, t.opts.ShoulderOffset)
	if err != nil {
		t.diagnose(out, fmt.Errorf("3d pose: %w", err))
		return
	}
	out.Pose = &pose

	if out.Position != nil {
		out.Transforms = append(out.Transforms, posetrack.Transform{
			Stamp:       f.Stamp,
			Parent:      f.FrameID,
			Child:       "body_" + t.id,
			Translation: out.Position.Vector,
			Rotation:    skeleton.Rotation(pose.Theta),
		})
	}

	if t.opts.StickmanDebug {
		if !hasRaw {
			raw = r3.Vector{}
		}
		out.Transforms = append(out.Transforms, skeleton.Debug(pose, raw, t.opts.ShoulderOffset, t.id, f.FrameID, f.Stamp)...)
	}

	if t.opts.Solver == nil {
		return
	}

	angles, err := t.opts.Solver.Solve(ctx, t.desc, kinematics.NewTargets(pose))
	if err != nil {
		t.diagnose(out, fmt.Errorf("joint state: %w", err))
		return
	}

	js, err := kinematics.NewJointState(t.desc, f.Stamp, f.FrameID, angles)
	if err != nil {
		t.diagnose(out, fmt.Errorf("joint state: %w", err))
		return
	}
	out.JointState = js
}

// faceTransforms places the face and gaze frames of body id
func faceTransforms(id, parent string, stamp float64, sol *pnp.Solution) []posetrack.Transform {
	face := "face_" + id

	return []posetrack.Transform{
		{
			Stamp:       stamp,
			Parent:      parent,
			Child:       face,
			Translation: sol.Translation,
			Rotation:    sol.Quaternion(),
		},
		{
			Stamp:    stamp,
			Parent:   face,
			Child:    "gaze_" + id,
			Rotation: skeleton.FromEuler(-math.Pi/2, 0, -math.Pi/2),
		},
	}
}
