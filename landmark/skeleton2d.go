package landmark

import "math"

// 2D skeleton joint indices.
const (
	SkelNose = iota
	SkelNeck
	SkelRightShoulder
	SkelRightElbow
	SkelRightWrist
	SkelLeftShoulder
	SkelLeftElbow
	SkelLeftWrist
	SkelRightHip
	SkelRightKnee
	SkelRightAnkle
	SkelLeftHip
	SkelLeftKnee
	SkelLeftAnkle
	SkelLeftEye
	SkelRightEye
	SkelLeftEar
	SkelRightEar
	// SkeletonSize is the number of 2D skeleton joints
	SkeletonSize
)

// skeletonSource maps 2D skeleton joints to pose landmarks.
// The neck has no pose landmark and is derived from the shoulders.
var skeletonSource = [SkeletonSize]int{
	SkelNose:          Nose,
	SkelNeck:          -1,
	SkelRightShoulder: RightShoulder,
	SkelRightElbow:    RightElbow,
	SkelRightWrist:    RightWrist,
	SkelLeftShoulder:  LeftShoulder,
	SkelLeftElbow:     LeftElbow,
	SkelLeftWrist:     LeftWrist,
	SkelRightHip:      RightHip,
	SkelRightKnee:     RightKnee,
	SkelRightAnkle:    RightAnkle,
	SkelLeftHip:       LeftHip,
	SkelLeftKnee:      LeftKnee,
	SkelLeftAnkle:     LeftAnkle,
	SkelLeftEye:       LeftEye,
	SkelRightEye:      RightEye,
	SkelLeftEar:       LeftEar,
	SkelRightEar:      RightEar,
}

// Keypoint is a normalized 2D skeleton joint with confidence C
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	C float64 `json:"c"`
}

// Skeleton2D is a normalized 2D body skeleton
type Skeleton2D [SkeletonSize]Keypoint

// NewSkeleton2D builds 2D skeleton from image pose landmarks.
// It returns error if pose does not hold a full landmark set.
func NewSkeleton2D(pose Set) (Skeleton2D, error) {
	var skel Skeleton2D
	if err := pose.Check(PoseSize); err != nil {
		return skel, err
	}

	for joint, idx := range skeletonSource {
		if idx < 0 {
			continue
		}
		p := pose[idx]
		skel[joint] = Keypoint{X: p.X, Y: p.Y, C: p.Visibility}
	}

	l, r := skel[SkelLeftShoulder], skel[SkelRightShoulder]
	skel[SkelNeck] = Keypoint{
		X: (l.X + r.X) / 2,
		Y: (l.Y + r.Y) / 2,
		C: math.Min(l.C, r.C),
	}

	return skel, nil
}

// HipMidpoint returns normalized midpoint of the hips
func (s Skeleton2D) HipMidpoint() (float64, float64) {
	l, r := s[SkelLeftHip], s[SkelRightHip]
	return (l.X + r.X) / 2, (l.Y + r.Y) / 2
}
