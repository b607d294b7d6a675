package track

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/milosgajdos/go-posetrack/camera"
	"github.com/milosgajdos/go-posetrack/distance"
	"github.com/milosgajdos/go-posetrack/kinematics"
	"github.com/milosgajdos/go-posetrack/landmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	width   = 640
	height  = 480
	frameID = "camera_color_optical_frame"
)

var (
	intrinsics = camera.Intrinsics{Fx: 600, Fy: 600, Cx: 320, Cy: 240}
	info       = camera.Info{
		FrameID: frameID,
		Width:   width,
		Height:  height,
		K:       [9]float64{600, 0, 320, 0, 600, 240, 0, 0, 1},
	}
)

type solver struct {
	err error
}

func (s solver) Solve(_ context.Context, desc kinematics.Description, _ kinematics.Targets) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return make([]float64, len(desc.Joints)), nil
}

// pose returns image pose landmarks with the hip midpoint at (hx, hy)
func pose(hx, hy float64) landmark.Set {
	s := make(landmark.Set, landmark.PoseSize)
	for i := range s {
		s[i] = landmark.Point{X: 0.25 + 0.5*float64(i)/landmark.PoseSize, Y: 0.25 + 0.25*float64(i%4)/4, Visibility: 0.9}
	}
	s[landmark.LeftHip] = landmark.Point{X: hx, Y: hy, Visibility: 0.9}
	s[landmark.RightHip] = landmark.Point{X: hx, Y: hy, Visibility: 0.9}

	return s
}

func world() landmark.Set {
	s := make(landmark.Set, landmark.PoseSize)
	for i := range s {
		s[i] = landmark.Point{X: 0.01 * float64(i), Y: -0.02 * float64(i), Z: 0.005 * float64(i), Visibility: 1}
	}
	s[landmark.LeftHip] = landmark.Point{X: 0.1, Y: 0.02, Z: 0.04}
	s[landmark.RightHip] = landmark.Point{X: -0.1, Y: -0.02, Z: -0.04}

	return s
}

func depthFrame(stamp float64, p r3.Vector) Frame {
	return Frame{
		Stamp:     stamp,
		FrameID:   frameID,
		Width:     width,
		Height:    height,
		Detection: landmark.Detected(landmark.Result{}),
		Depth:     &p,
	}
}

func hasDiag(out *Output, target error) bool {
	for _, err := range out.Diagnostics {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func children(out *Output) []string {
	var names []string
	for _, tf := range out.Transforms {
		names = append(names, tf.Child)
	}
	return names
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("abc")
	assert.NoError(err)
	assert.Equal("abc", tr.ID())
	assert.Equal(kinematics.NewDescription("abc"), tr.Description())
	assert.False(tr.Closed())

	tr, err = New("")
	assert.Nil(tr)
	assert.Error(err)

	tr, err = New("abc", WithShoulderOffset(-1))
	assert.Nil(tr)
	assert.Error(err)
}

func TestEndToEnd(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	want := r3.Vector{X: 1.0}
	var out *Output
	for _, ts := range []float64{0.0, 0.1, 0.2} {
		out, err = tr.OnFrame(context.Background(), depthFrame(ts, want))
		assert.NoError(err)
		assert.NotNil(out.Position)
		assert.Empty(out.Diagnostics)
	}

	assert.InDelta(0, out.Position.Vector.Sub(want).Norm(), 1e-3)
	assert.Equal(0.2, out.Position.Stamp)
	assert.Equal(frameID, out.Position.FrameID)
}

func TestVelocityWarmup(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	run := func() []*Output {
		var outs []*Output
		for i, ts := range []float64{0.0, 0.1, 0.2, 0.3} {
			out, err := tr.OnFrame(context.Background(), depthFrame(ts, r3.Vector{X: float64(i), Z: 2}))
			assert.NoError(err)
			assert.NotNil(out.Position)
			outs = append(outs, out)
		}
		return outs
	}

	outs := run()
	assert.Nil(outs[0].Velocity)
	assert.Nil(outs[1].Velocity)
	for _, out := range outs[2:] {
		assert.NotNil(out.Velocity)
		assert.Equal("body_a", out.Velocity.FrameID)
		assert.Greater(out.Velocity.Vector.X, 0.0)
		assert.Zero(out.Velocity.Vector.Y)
	}

	// warm up starts over after reset
	tr.Reset()
	outs = run()
	assert.Equal(r3.Vector{Z: 2}, outs[0].Position.Vector)
	assert.Nil(outs[0].Velocity)
	assert.Nil(outs[1].Velocity)
	assert.NotNil(outs[2].Velocity)
}

func TestNoDepth(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	f := depthFrame(0, r3.Vector{})
	f.Depth = nil
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, ErrNoDepth))
}

func TestDepthImage(t *testing.T) {
	assert := assert.New(t)

	const w, h = 64, 48
	img := camera.DepthImage{Width: w, Height: h, Data: make([]uint16, w*h)}
	for i := range img.Data {
		img.Data[i] = 2000
	}
	dinfo := camera.Info{Width: w, Height: h, K: [9]float64{60, 0, 32, 0, 60, 24, 0, 0, 1}}

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	f := Frame{
		Stamp:      1,
		FrameID:    frameID,
		Width:      w,
		Height:     h,
		Detection:  landmark.Detected(landmark.Result{Pose: pose(0.5, 0.5)}),
		DepthImage: &img,
		DepthInfo:  &dinfo,
		DepthStamp: 1.5,
	}
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Empty(out.Diagnostics)
	assert.NotNil(out.Skeleton2D)
	assert.InDelta(0, out.Position.Vector.Sub(r3.Vector{Z: 2}).Norm(), 1e-9)
	// the newer depth image stamps the output
	assert.Equal(1.5, out.Stamp)
	assert.Equal(1.5, out.Position.Stamp)

	// the crop moves the sampled pixel off the depth image
	f.Stamp, f.Crop = 2, landmark.ROI{XOffset: 100, YOffset: 100}
	out, err = tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Equal(2.0, out.Stamp)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, ErrNoDepth))
}

func TestMonocular(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tr, err := New("a", WithSolver(solver{}))
	require.NoError(err)

	trans := r3.Vector{X: 0.05, Y: -0.1, Z: 1.5}
	face := distance.ProjectFace(intrinsics, r3.Vector{}, trans, width, height)
	res := landmark.Result{Pose: pose(0.5, 0.5), World: world(), Face: face}

	f := Frame{Stamp: 0, FrameID: frameID, Width: width, Height: height, Detection: landmark.Detected(res)}

	// no calibration yet
	out, err := tr.OnFrame(context.Background(), f)
	require.NoError(err)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, distance.ErrNoIntrinsics))
	// skeleton and joints are still produced
	assert.NotNil(out.Pose)
	assert.NotNil(out.Skeleton2D)
	assert.NotNil(out.JointState)
	assert.NotNil(out.ROI)

	f.Stamp, f.Info = 0.1, &info
	out, err = tr.OnFrame(context.Background(), f)
	require.NoError(err)
	assert.Empty(out.Diagnostics)
	require.NotNil(out.Position)
	assert.InDelta(trans.Norm(), out.Position.Vector.Z, 0.05)
	assert.InDelta(0, out.Position.Vector.X, 1e-9)
	assert.InDelta(0, out.Position.Vector.Y, 1e-9)
	assert.Equal([]string{"face_a", "gaze_a", "body_a"}, children(out))
	assert.Equal(out.Position.Vector, out.Transforms[2].Translation)

	// invalid face keeps the previous cue
	res.Face = face[:10]
	f.Stamp, f.Info, f.Detection = 0.2, nil, landmark.Detected(res)
	out, err = tr.OnFrame(context.Background(), f)
	require.NoError(err)
	assert.True(hasDiag(out, distance.ErrInvalidSolution))
	assert.NotNil(out.Position)

	// hips at the image origin
	res.Pose = pose(0, 0)
	f.Stamp, f.Detection = 0.3, landmark.Detected(res)
	out, err = tr.OnFrame(context.Background(), f)
	require.NoError(err)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, ErrDegenerate))

	// no hips at all
	res.Pose = nil
	f.Stamp, f.Detection = 0.4, landmark.Detected(res)
	out, err = tr.OnFrame(context.Background(), f)
	require.NoError(err)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, ErrDegenerate))
}

func TestNoCue(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a")
	assert.NoError(err)

	f := Frame{
		Stamp:     0,
		FrameID:   frameID,
		Width:     width,
		Height:    height,
		Info:      &info,
		Detection: landmark.Detected(landmark.Result{Pose: pose(0.5, 0.5)}),
	}
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Nil(out.Position)
	assert.True(hasDiag(out, distance.ErrNoCue))
}

func TestSolverError(t *testing.T) {
	assert := assert.New(t)

	boom := errors.New("boom")
	tr, err := New("a", WithDepth(true), WithSolver(solver{err: boom}))
	assert.NoError(err)

	f := depthFrame(0, r3.Vector{X: 1, Y: 0.5, Z: 2})
	f.Detection = landmark.Detected(landmark.Result{World: world()})
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.NotNil(out.Position)
	assert.NotNil(out.Pose)
	assert.Nil(out.JointState)
	assert.True(hasDiag(out, boom))
}

func TestStickmanDebug(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true), WithStickmanDebug(true), WithSingleBody(false))
	assert.NoError(err)

	f := depthFrame(0, r3.Vector{X: 1, Y: 0.5, Z: 2})
	f.Detection = landmark.Detected(landmark.Result{Pose: pose(0.5, 0.5), World: world()})
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Nil(out.ROI)

	names := children(out)
	assert.Len(names, 11)
	assert.Equal("body_a", names[0])
	for _, name := range names {
		assert.True(strings.HasSuffix(name, "_a"), name)
	}
}

func TestNotDetected(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a")
	assert.NoError(err)

	out, err := tr.OnFrame(context.Background(), Frame{Stamp: 1, Width: width, Height: height, Detection: landmark.NotDetected()})
	assert.NoError(err)
	assert.Equal(&Output{ID: "a", Stamp: 1}, out)
}

func TestInvalidFrame(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a")
	assert.NoError(err)

	out, err := tr.OnFrame(context.Background(), Frame{Width: 0, Height: height})
	assert.Nil(out)
	assert.Error(err)

	bad := info
	bad.K = [9]float64{}
	out, err = tr.OnFrame(context.Background(), Frame{Width: width, Height: height, Info: &bad})
	assert.NoError(err)
	assert.Len(out.Diagnostics, 1)
}

func TestClose(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	tr.Close()
	assert.True(tr.Closed())

	out, err := tr.OnFrame(context.Background(), depthFrame(0, r3.Vector{X: 1}))
	assert.Nil(out)
	assert.True(errors.Is(err, ErrClosed))
}

func TestConcurrentFrames(t *testing.T) {
	assert := assert.New(t)

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tr.OnFrame(context.Background(), depthFrame(float64(i)*0.1, r3.Vector{X: 1}))
			assert.NoError(err)
		}(i)
	}
	wg.Wait()

	tr.Close()
}

func TestPickStamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(2.0, PickStamp(1.0, 2.0))
	assert.Equal(3.0, PickStamp(3.0, 2.0))
}

func TestSingleBodyROI(t *testing.T) {
	assert := assert.New(t)

	f := depthFrame(0, r3.Vector{Z: 2})
	f.Detection = landmark.Detected(landmark.Result{Pose: pose(0.5, 0.5)})

	tr, err := New("a", WithDepth(true))
	assert.NoError(err)
	out, err := tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	if assert.NotNil(out.ROI) {
		assert.True(out.ROI.Within(width, height))
	}

	// every landmark on the image border collapses the region
	edge := make(landmark.Set, landmark.PoseSize)
	for i := range edge {
		edge[i] = landmark.Point{X: 1, Y: 1, Visibility: 1}
	}
	f.Stamp, f.Detection = 0.1, landmark.Detected(landmark.Result{Pose: edge})
	out, err = tr.OnFrame(context.Background(), f)
	assert.NoError(err)
	assert.Nil(out.ROI)

	tr, err = New("b", WithDepth(true), WithSingleBody(false))
	assert.NoError(err)
	out, err = tr.OnFrame(context.Background(), depthFrame(0, r3.Vector{Z: 2}))
	assert.NoError(err)
	assert.Nil(out.ROI)
}
