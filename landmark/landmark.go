// Package landmark provides the landmark sets produced by a body landmark
// detector, the detection result type and the 2D skeleton derived from them.
package landmark

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-posetrack/camera"
)

// MediaPipe pose landmark indices.
const (
	Nose          = 0
	LeftEye       = 2
	RightEye      = 5
	LeftEar       = 7
	RightEar      = 8
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
	LeftFoot      = 31
	RightFoot     = 32
	// PoseSize is the number of pose landmarks
	PoseSize = 33
)

// MediaPipe face mesh landmark indices used for face pose estimation.
const (
	FaceNose            = 1
	FaceMouthCenter     = 13
	FaceRightEye        = 159
	FaceRightEarTragion = 234
	FaceLeftEye         = 386
	FaceLeftEarTragion  = 454
	// FaceMeshSize is the number of face mesh landmarks
	FaceMeshSize = 468
)

// Point is a single landmark.
// Image landmarks carry normalized X, Y in [0,1]; world landmarks carry meters.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Set is an ordered list of landmarks
type Set []Point

// Midpoint returns the midpoint of landmarks i and j.
// Visibility of the midpoint is the smaller of the two.
func (s Set) Midpoint(i, j int) Point {
	a, b := s[i], s[j]
	return Point{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: math.Min(a.Visibility, b.Visibility),
	}
}

// Check returns error if s does not hold at least n landmarks
func (s Set) Check(n int) error {
	if len(s) < n {
		return fmt.Errorf("incomplete landmark set: %d < %d", len(s), n)
	}

	return nil
}

// Result groups landmark sets returned by one detector pass.
// Empty sets mean the detector found no such part.
type Result struct {
	// Pose are normalized image pose landmarks
	Pose Set `json:"pose"`
	// World are hip centered pose landmarks in meters
	World Set `json:"world,omitempty"`
	// Face are normalized face mesh landmarks
	Face Set `json:"face,omitempty"`
	// LeftHand are normalized left hand landmarks
	LeftHand Set `json:"left_hand,omitempty"`
	// RightHand are normalized right hand landmarks
	RightHand Set `json:"right_hand,omitempty"`
}

// Detection is the outcome of running the detector on one image.
type Detection struct {
	found  bool
	result Result
}

// Detected returns Detection which carries result r
func Detected(r Result) Detection {
	return Detection{found: true, result: r}
}

// NotDetected returns Detection which carries no body
func NotDetected() Detection {
	return Detection{}
}

// Result returns detected landmarks and true, or false if nothing was detected
func (d Detection) Result() (Result, bool) {
	return d.result, d.found
}

// Box is an axis aligned pixel bounding box
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Bounds returns pixel bounding box of all landmarks in s
func Bounds(s Set, width, height int) Box {
	minX, minY, maxX, maxY := 1.0, 1.0, 0.0, 0.0
	for _, p := range s {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	b := Box{}
	b.MinX, b.MinY = camera.ToPixel(minX, minY, width, height)
	b.MaxX, b.MaxY = camera.ToPixel(maxX, maxY, width, height)

	return b
}

// ROI is an image region of interest
type ROI struct {
	XOffset int `json:"x_offset"`
	YOffset int `json:"y_offset"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// Within returns true if roi has positive area and lies inside the image
func (roi ROI) Within(width, height int) bool {
	return roi.XOffset >= 0 &&
		roi.YOffset >= 0 &&
		roi.Width > 0 &&
		roi.Height > 0 &&
		roi.XOffset+roi.Width < width &&
		roi.YOffset+roi.Height < height
}

// PersonROI returns the region covering the face, hands and body in r.
// It returns false if the covered area is empty.
func PersonROI(r Result, width, height int) (ROI, bool) {
	union := Box{MinX: width, MinY: height}
	for _, s := range []Set{r.Face, r.LeftHand, r.RightHand, r.Pose} {
		if len(s) == 0 {
			continue
		}
		b := Bounds(s, width, height)
		union.MinX = min(union.MinX, b.MinX)
		union.MinY = min(union.MinY, b.MinY)
		union.MaxX = max(union.MaxX, b.MaxX)
		union.MaxY = max(union.MaxY, b.MaxY)
	}

	if union.MinX >= union.MaxX || union.MinY >= union.MaxY {
		return ROI{}, false
	}

	union.MinX = max(0, union.MinX)
	union.MinY = max(0, union.MinY)
	union.MaxX = min(width, union.MaxX)
	union.MaxY = min(height, union.MaxY)

	return ROI{
		XOffset: union.MinX,
		YOffset: union.MinY,
		Width:   union.MaxX - union.MinX,
		Height:  union.MaxY - union.MinY,
	}, true
}
