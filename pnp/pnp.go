// Package pnp estimates the pose of a rigid object of known geometry from
// its projection onto the image plane of a calibrated camera.
package pnp

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/milosgajdos/go-posetrack/camera"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// MinPoints is the minimum number of correspondences Solve accepts
const MinPoints = 4

// Settings configure the Levenberg-Marquardt iterations
type Settings struct {
	// MaxIterations caps the number of iterations
	MaxIterations int
	// Tolerance stops iterating once relative cost decrease drops below it
	Tolerance float64
	// Lambda is the initial damping factor
	Lambda float64
}

// DefaultSettings are used when Solve is given nil Settings
var DefaultSettings = Settings{
	MaxIterations: 100,
	Tolerance:     1e-12,
	Lambda:        1e-3,
}

// Solution is object pose in the camera optical frame
type Solution struct {
	// RVec is axis-angle rotation vector
	RVec r3.Vector
	// Translation is object origin position
	Translation r3.Vector
	// Cost is half the sum of squared reprojection errors [px²]
	Cost float64
	// Iterations is the number of iterations run
	Iterations int
}

// Rotation returns the rotation matrix of s
func (s *Solution) Rotation() *mat.Dense {
	return Rodrigues(s.RVec)
}

// Quaternion returns the rotation of s as unit quaternion
func (s *Solution) Quaternion() quat.Number {
	theta := s.RVec.Norm()
	if theta < 1e-12 {
		return quat.Number{Real: 1}
	}
	axis := s.RVec.Mul(math.Sin(theta/2) / theta)

	return quat.Number{Real: math.Cos(theta / 2), Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
}

// Solve estimates pose of the object whose model points project to image points.
// The initial guess places the object facing the camera at the distance
// implied by the spread of the image points relative to the model.
// It returns error if the correspondences are degenerate or the solver diverges.
func Solve(model []r3.Vector, image []r2.Point, in camera.Intrinsics, s *Settings) (*Solution, error) {
	if len(model) != len(image) {
		return nil, fmt.Errorf("mismatched correspondences: %d model, %d image", len(model), len(image))
	}

	if len(model) < MinPoints {
		return nil, fmt.Errorf("not enough correspondences: %d", len(model))
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	if s == nil {
		s = &DefaultSettings
	}

	x0, err := initialGuess(model, image, in)
	if err != nil {
		return nil, err
	}

	return refine(model, image, in, x0, s)
}

// initialGuess returns parameters [rx, ry, rz, tx, ty, tz] of an unrotated object
// whose first point projects onto the first image point.
func initialGuess(model []r3.Vector, image []r2.Point, in camera.Intrinsics) ([]float64, error) {
	modelSpread, imageSpread := 0.0, 0.0
	for i := range model {
		for j := i + 1; j < len(model); j++ {
			d := model[i].Sub(model[j])
			modelSpread = math.Max(modelSpread, math.Hypot(d.X, d.Y))
			imageSpread = math.Max(imageSpread, image[i].Sub(image[j]).Norm())
		}
	}

	if imageSpread < 1 || modelSpread == 0 {
		return nil, errors.New("degenerate correspondences")
	}

	tz := in.Fx*modelSpread/imageSpread - model[0].Z
	x0 := []float64{
		0, 0, 0,
		(image[0].X-in.Cx)*(tz+model[0].Z)/in.Fx - model[0].X,
		(image[0].Y-in.Cy)*(tz+model[0].Z)/in.Fy - model[0].Y,
		tz,
	}

	return x0, nil
}

func refine(model []r3.Vector, image []r2.Point, in camera.Intrinsics, x []float64, s *Settings) (*Solution, error) {
	const n = 6
	m := 2 * len(model)

	residuals := func(y, p []float64) {
		project(y, p, model, image, in)
	}

	r := make([]float64, m)
	residuals(r, x)
	cost := floats.Dot(r, r) / 2

	jac := mat.NewDense(m, n, nil)
	lambda := s.Lambda
	cand := make([]float64, n)
	candR := make([]float64, m)

	it := 0
	for ; it < s.MaxIterations; it++ {
		fd.Jacobian(jac, residuals, x, &fd.JacobianSettings{Formula: fd.Central})

		// J'*J and J'*r
		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(m, r))

		improved := false
		for lambda < 1e12 {
			a := mat.NewDense(n, n, nil)
			a.Copy(&jtj)
			for i := 0; i < n; i++ {
				a.Set(i, i, a.At(i, i)*(1+lambda)+1e-12)
			}

			var delta mat.VecDense
			if err := delta.SolveVec(a, &g); err != nil {
				var c mat.Condition
				if !errors.As(err, &c) {
					lambda *= 10
					continue
				}
			}

			floats.SubTo(cand, x, delta.RawVector().Data)
			project(candR, cand, model, image, in)
			candCost := floats.Dot(candR, candR) / 2

			if candCost < cost {
				decrease := (cost - candCost) / math.Max(cost, 1e-300)
				copy(x, cand)
				copy(r, candR)
				cost = candCost
				lambda /= 10
				improved = true
				if decrease < s.Tolerance {
					lambda = math.Inf(1)
				}
				break
			}
			lambda *= 10
		}

		if !improved || math.IsInf(lambda, 1) {
			break
		}
	}

	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, fmt.Errorf("solver diverged: cost %v", cost)
	}

	return &Solution{
		RVec:        r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		Translation: r3.Vector{X: x[3], Y: x[4], Z: x[5]},
		Cost:        cost,
		Iterations:  it,
	}, nil
}

// project stores in y the reprojection errors of model points transformed by pose p
func project(y, p []float64, model []r3.Vector, image []r2.Point, in camera.Intrinsics) {
	rot := Rodrigues(r3.Vector{X: p[0], Y: p[1], Z: p[2]})
	t := r3.Vector{X: p[3], Y: p[4], Z: p[5]}

	for i, pt := range model {
		c := Transform(rot, t, pt)
		u, v, ok := in.Project(c)
		if !ok {
			// points behind the camera are pushed far off the image
			u, v = 1e6, 1e6
		}
		y[2*i] = u - image[i].X
		y[2*i+1] = v - image[i].Y
	}
}

// Transform returns rot*p + t
func Transform(rot mat.Matrix, t, p r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(rot, mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))

	return r3.Vector{X: out.AtVec(0) + t.X, Y: out.AtVec(1) + t.Y, Z: out.AtVec(2) + t.Z}
}

// Rodrigues returns the rotation matrix of axis-angle vector w
func Rodrigues(w r3.Vector) *mat.Dense {
	k := mat.NewDense(3, 3, []float64{
		0, -w.Z, w.Y,
		w.Z, 0, -w.X,
		-w.Y, w.X, 0,
	})

	rot := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	k2 := &mat.Dense{}
	k2.Mul(k, k)

	theta := w.Norm()
	if theta < 1e-12 {
		rot.Add(rot, k)
		return rot
	}

	k.Scale(math.Sin(theta)/theta, k)
	k2.Scale((1-math.Cos(theta))/(theta*theta), k2)
	rot.Add(rot, k)
	rot.Add(rot, k2)

	return rot
}
