package noise

import (
	"fmt"

	"github.com/golang/geo/r3"
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is gaussian noise of 3D measurements
type Gaussian struct {
	// dist is a zero mean multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean r3.Vector
	// cov is Gaussian covariance
	cov mat.Symmetric
	// seed seeds the random source
	seed uint64
}

// NewGaussian creates new Gaussian noise with given mean and 3x3 covariance
// drawing samples from a source seeded with seed.
// It returns error if it fails to create Gaussian.
func NewGaussian(mean r3.Vector, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	if size := cov.SymmetricDim(); size != 3 {
		return nil, fmt.Errorf("invalid covariance dimension: %d", size)
	}

	dist, ok := newGaussianDist(cov, seed)
	if !ok {
		return nil, fmt.Errorf("failed to create Gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: mean,
		cov:  cov,
		seed: seed,
	}, nil
}

// NewIsotropic creates new zero mean Gaussian noise with standard deviation sigma
// along every axis. It returns error if sigma is not positive.
func NewIsotropic(sigma float64, seed uint64) (*Gaussian, error) {
	if !(sigma > 0) {
		return nil, fmt.Errorf("invalid standard deviation: %v", sigma)
	}

	v := sigma * sigma
	cov := mat.NewSymDense(3, []float64{v, 0, 0, 0, v, 0, 0, 0, v})

	return NewGaussian(r3.Vector{}, cov, seed)
}

// Sample generates a sample from Gaussian noise and returns it.
func (g *Gaussian) Sample() r3.Vector {
	r := g.dist.Rand(nil)
	return g.mean.Add(r3.Vector{X: r[0], Y: r[1], Z: r[2]})
}

// Cov returns covariance matrix of Gaussian noise.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() r3.Vector {
	return g.mean
}

// Reset restarts the noise from its seed so the same samples repeat.
// It returns error if it fails to reset the noise.
func (g *Gaussian) Reset() error {
	dist, ok := newGaussianDist(g.cov, g.seed)
	if !ok {
		return fmt.Errorf("failed to reset Gaussian noise")
	}
	g.dist = dist

	return nil
}

func newGaussianDist(cov mat.Symmetric, seed uint64) (*distmv.Normal, bool) {
	src := rand.New(rand.NewSource(seed))
	return distmv.NewNormal(make([]float64, 3), cov, src)
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
