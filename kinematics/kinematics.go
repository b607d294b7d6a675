// Package kinematics defines the boundary to the kinematic collaborators of a
// body track: the joint angle solver and the per body resources provisioned
// while the body is tracked.
package kinematics

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/milosgajdos/go-posetrack/skeleton"
)

// JointNames are the names of the solved body joints
var JointNames = []string{
	"r_y_shoulder", "r_p_shoulder", "r_r_shoulder", "r_elbow",
	"l_y_shoulder", "l_p_shoulder", "l_r_shoulder", "l_elbow",
	"r_y_hip", "r_p_hip", "r_r_hip", "r_knee",
	"l_y_hip", "l_p_hip", "l_r_hip", "l_knee",
}

// Description identifies the kinematic model of one body
type Description struct {
	// BodyID is the body identity
	BodyID string `json:"body_id"`
	// ParamName is the name the model is registered under
	ParamName string `json:"param_name"`
	// JointStates is the name of the joint state stream of the body
	JointStates string `json:"joint_states"`
	// Joints are body specific joint names in JointNames order
	Joints []string `json:"joints"`
}

// NewDescription returns Description of the body with the given id
func NewDescription(id string) Description {
	joints := make([]string, len(JointNames))
	for i, name := range JointNames {
		joints[i] = name + "_" + id
	}

	return Description{
		BodyID:      id,
		ParamName:   "human_description_" + id,
		JointStates: "/humans/bodies/" + id + "/joint_states",
		Joints:      joints,
	}
}

// Targets are the end effector positions the solver fits the joint angles to
type Targets struct {
	Torso      r3.Vector
	LeftWrist  r3.Vector
	LeftAnkle  r3.Vector
	RightWrist r3.Vector
	RightAnkle r3.Vector
}

// NewTargets returns solver targets of body pose p
func NewTargets(p skeleton.Pose) Targets {
	return Targets{
		Torso:      p.Torso,
		LeftWrist:  p.LeftWrist,
		LeftAnkle:  p.LeftAnkle,
		RightWrist: p.RightWrist,
		RightAnkle: p.RightAnkle,
	}
}

// Solver computes joint angles reaching the targets
type Solver interface {
	// Solve returns joint angles [rad] in the order of desc.Joints
	Solve(ctx context.Context, desc Description, t Targets) ([]float64, error)
}

// JointState is a stamped set of named joint angles
type JointState struct {
	Stamp     float64   `json:"stamp"`
	FrameID   string    `json:"frame_id"`
	Names     []string  `json:"names"`
	Positions []float64 `json:"positions"`
}

// NewJointState returns JointState of the body described by desc.
// It returns error if positions do not match the described joints.
func NewJointState(desc Description, stamp float64, frameID string, positions []float64) (*JointState, error) {
	if len(positions) != len(desc.Joints) {
		return nil, fmt.Errorf("invalid joint positions: %d, expected %d", len(positions), len(desc.Joints))
	}

	return &JointState{
		Stamp:     stamp,
		FrameID:   frameID,
		Names:     desc.Joints,
		Positions: positions,
	}, nil
}

// Handle is a provisioned body resource
type Handle interface {
	// BodyID returns the identity of the body the resource belongs to
	BodyID() string
}

// Provisioner provisions and releases per body resources
type Provisioner interface {
	// Provision provisions resources of the described body
	Provision(ctx context.Context, desc Description) (Handle, error)
	// Release releases resources held by h
	Release(ctx context.Context, h Handle) error
}

type nopHandle string

func (h nopHandle) BodyID() string { return string(h) }

// Nop is a Provisioner which provisions nothing
type Nop struct{}

// Provision returns a handle which holds no resources
func (Nop) Provision(_ context.Context, desc Description) (Handle, error) {
	return nopHandle(desc.BodyID), nil
}

// Release does nothing
func (Nop) Release(context.Context, Handle) error {
	return nil
}
