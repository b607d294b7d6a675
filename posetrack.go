// Package posetrack tracks human bodies across video frames and turns noisy
// per-frame landmark estimates into smooth 3D position, velocity and pose.
package posetrack

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// VectorSmoother smooths a 3D signal sampled at increasing times
type VectorSmoother interface {
	// Update filters sample v taken at time t and returns the filtered
	// vector together with the sampling period it used
	Update(t float64, v r3.Vector) (r3.Vector, float64)
	// Reset drops smoother state
	Reset()
}

// Noise generates random perturbations of 3D measurements
type Noise interface {
	// Sample returns a random sample
	Sample() r3.Vector
	// Reset restarts the noise source
	Reset() error
}

// Stamped is a vector tagged with time and reference frame
type Stamped struct {
	// Stamp is time in seconds
	Stamp float64 `json:"stamp"`
	// FrameID is the reference frame of Vector
	FrameID string `json:"frame_id"`
	// Vector is the stamped value
	Vector r3.Vector `json:"vector"`
}

// Transform is a rigid transform between two named reference frames
type Transform struct {
	// Stamp is time in seconds
	Stamp float64 `json:"stamp"`
	// Parent is the reference frame the transform is expressed in
	Parent string `json:"parent"`
	// Child is the frame the transform places
	Child string `json:"child"`
	// Translation is the child origin in the parent frame
	Translation r3.Vector `json:"translation"`
	// Rotation is the child orientation in the parent frame
	Rotation quat.Number `json:"rotation"`
}
