package landmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makePose() Set {
	pose := make(Set, PoseSize)
	for i := range pose {
		pose[i] = Point{X: 0.5, Y: 0.5, Visibility: 0.9}
	}
	pose[LeftShoulder] = Point{X: 0.6, Y: 0.3, Visibility: 0.8}
	pose[RightShoulder] = Point{X: 0.4, Y: 0.3, Visibility: 0.6}
	pose[LeftHip] = Point{X: 0.56, Y: 0.6, Visibility: 0.9}
	pose[RightHip] = Point{X: 0.44, Y: 0.6, Visibility: 0.9}
	pose[LeftAnkle] = Point{X: 0.55, Y: 0.9, Visibility: 0.7}

	return pose
}

func TestDetection(t *testing.T) {
	assert := assert.New(t)

	_, ok := NotDetected().Result()
	assert.False(ok)

	r, ok := Detected(Result{Pose: makePose()}).Result()
	assert.True(ok)
	assert.Len(r.Pose, PoseSize)
}

func TestNewSkeleton2D(t *testing.T) {
	assert := assert.New(t)

	skel, err := NewSkeleton2D(makePose())
	assert.NoError(err)

	assert.Equal(Keypoint{X: 0.55, Y: 0.9, C: 0.7}, skel[SkelLeftAnkle])

	// neck sits between the shoulders and is as confident as the weaker one
	neck := skel[SkelNeck]
	assert.InDelta(0.5, neck.X, 1e-12)
	assert.InDelta(0.3, neck.Y, 1e-12)
	assert.Equal(0.6, neck.C)

	x, y := skel.HipMidpoint()
	assert.InDelta(0.5, x, 1e-12)
	assert.InDelta(0.6, y, 1e-12)

	_, err = NewSkeleton2D(Set{{X: 1}})
	assert.Error(err)
}

func TestMidpoint(t *testing.T) {
	assert := assert.New(t)

	s := Set{{X: 0, Y: 2, Z: -1, Visibility: 0.4}, {X: 2, Y: 0, Z: 1, Visibility: 0.9}}
	assert.Equal(Point{X: 1, Y: 1, Z: 0, Visibility: 0.4}, s.Midpoint(0, 1))
}

func TestPersonROI(t *testing.T) {
	assert := assert.New(t)

	r := Result{
		Pose: Set{{X: 0.25, Y: 0.25}, {X: 0.5, Y: 0.75}},
		Face: Set{{X: 0.3125, Y: 0.125}, {X: 0.375, Y: 0.1875}},
	}

	roi, ok := PersonROI(r, 100, 100)
	assert.True(ok)
	assert.Equal(ROI{XOffset: 25, YOffset: 12, Width: 25, Height: 63}, roi)
	assert.True(roi.Within(100, 100))
	assert.False(roi.Within(40, 40))

	_, ok = PersonROI(Result{}, 100, 100)
	assert.False(ok)
}

func TestBounds(t *testing.T) {
	assert := assert.New(t)

	b := Bounds(Set{{X: 0.125, Y: 0.875}, {X: 0.75, Y: 0.25}}, 16, 16)
	assert.Equal(Box{MinX: 2, MinY: 4, MaxX: 12, MaxY: 14}, b)
}
