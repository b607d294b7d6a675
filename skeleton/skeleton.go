// Package skeleton maps detector world landmarks into the canonical body
// frame consumed by kinematic solvers.
//
// The canonical frame points x forward, y right and z up. The detector frame
// points z away from the camera, x right and y down, so a landmark (x, y, z)
// maps onto (-z, x, -y).
package skeleton

import (
	"math"

	"github.com/golang/geo/r3"
	posetrack "github.com/milosgajdos/go-posetrack"
	"github.com/milosgajdos/go-posetrack/landmark"
	"gonum.org/v1/gonum/num/quat"
)

// DefaultShoulderOffset is the height [m] of the shoulders above the hips
// of the reference body.
const DefaultShoulderOffset = 0.605

// Pose is a set of anatomical points in the canonical body frame.
// Arm points are expressed relative to the shoulder reference height;
// the remaining points are relative to the hip midpoint.
type Pose struct {
	Torso         r3.Vector `json:"torso"`
	LeftShoulder  r3.Vector `json:"left_shoulder"`
	RightShoulder r3.Vector `json:"right_shoulder"`
	LeftElbow     r3.Vector `json:"left_elbow"`
	RightElbow    r3.Vector `json:"right_elbow"`
	LeftWrist     r3.Vector `json:"left_wrist"`
	RightWrist    r3.Vector `json:"right_wrist"`
	LeftAnkle     r3.Vector `json:"left_ankle"`
	RightAnkle    r3.Vector `json:"right_ankle"`
	Nose          r3.Vector `json:"nose"`
	Feet          r3.Vector `json:"feet"`
	// Theta is torso yaw [rad] in the detector frame
	Theta float64 `json:"theta"`
}

// Remap converts detector world landmark p into the canonical frame
func Remap(p landmark.Point) r3.Vector {
	return r3.Vector{X: -p.Z, Y: p.X, Z: -p.Y}
}

// Build builds Pose from world landmarks.
// Shoulders, elbows and wrists are lowered by offset [m].
// It returns error if world does not hold a full landmark set.
func Build(world landmark.Set, offset float64) (Pose, error) {
	if err := world.Check(landmark.PoseSize); err != nil {
		return Pose{}, err
	}

	arm := func(i int) r3.Vector {
		v := Remap(world[i])
		v.Z -= offset
		return v
	}

	rightHip := world[landmark.RightHip]

	return Pose{
		Torso:         Remap(world.Midpoint(landmark.LeftHip, landmark.RightHip)),
		LeftShoulder:  arm(landmark.LeftShoulder),
		RightShoulder: arm(landmark.RightShoulder),
		LeftElbow:     arm(landmark.LeftElbow),
		RightElbow:    arm(landmark.RightElbow),
		LeftWrist:     arm(landmark.LeftWrist),
		RightWrist:    arm(landmark.RightWrist),
		LeftAnkle:     Remap(world[landmark.LeftAnkle]),
		RightAnkle:    Remap(world[landmark.RightAnkle]),
		Nose:          Remap(world[landmark.Nose]),
		Feet:          Remap(world.Midpoint(landmark.LeftFoot, landmark.RightFoot)),
		Theta:         math.Atan2(rightHip.X, -rightHip.Z),
	}, nil
}

// FromEuler returns unit quaternion of the rotation given by roll, pitch and
// yaw [rad] applied in turn about the static x, y and z axes.
func FromEuler(roll, pitch, yaw float64) quat.Number {
	qx := quat.Number{Real: math.Cos(roll / 2), Imag: math.Sin(roll / 2)}
	qy := quat.Number{Real: math.Cos(pitch / 2), Jmag: math.Sin(pitch / 2)}
	qz := quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}

	return quat.Mul(qz, quat.Mul(qy, qx))
}

// Rotation returns body orientation in the camera optical frame
// for torso yaw theta.
func Rotation(theta float64) quat.Number {
	return FromEuler(math.Pi/2, -theta, 0)
}

// frame returns per body frame name
func frame(name, id string) string {
	return name + "_" + id
}

// Debug returns the chain of transforms placing every joint of p for body id.
// The chain is rooted at the hip midpoint located at position in camera frame parent.
func Debug(p Pose, position r3.Vector, offset float64, id, parent string, stamp float64) []posetrack.Transform {
	unit := quat.Number{Real: 1}

	hips := frame("mediapipe_torso", id)
	torso := frame("our_torso", id)

	link := func(parent, child string, t r3.Vector) posetrack.Transform {
		return posetrack.Transform{
			Stamp:       stamp,
			Parent:      parent,
			Child:       child,
			Translation: t,
			Rotation:    unit,
		}
	}

	tfs := []posetrack.Transform{
		{
			Stamp:  stamp,
			Parent: parent,
			Child:  hips,
			Translation: r3.Vector{
				X: -p.Torso.Y + position.X,
				Y: p.Torso.Z,
				Z: p.Torso.X + position.Z,
			},
			Rotation: Rotation(p.Theta),
		},
		link(hips, torso, r3.Vector{Z: offset}),
	}

	for _, side := range []struct {
		name                   string
		shoulder, elbow, wrist r3.Vector
	}{
		{"left", p.LeftShoulder, p.LeftElbow, p.LeftWrist},
		{"right", p.RightShoulder, p.RightElbow, p.RightWrist},
	} {
		shoulder := frame(side.name+"_shoulder", id)
		elbow := frame(side.name+"_elbow", id)
		tfs = append(tfs,
			link(torso, shoulder, side.shoulder),
			link(shoulder, elbow, side.elbow.Sub(side.shoulder)),
			link(elbow, frame(side.name+"_wrist", id), side.wrist.Sub(side.elbow)),
		)
	}

	tfs = append(tfs,
		link(hips, frame("left_ankle", id), p.LeftAnkle),
		link(hips, frame("right_ankle", id), p.RightAnkle),
	)

	return tfs
}
