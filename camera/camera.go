package camera

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Info is camera calibration message
type Info struct {
	// Stamp is message timestamp in seconds
	Stamp float64
	// FrameID is the optical frame the calibration belongs to
	FrameID string
	// Width is image width in pixels
	Width int
	// Height is image height in pixels
	Height int
	// K is row-major 3x3 intrinsic matrix
	K [9]float64
}

// Intrinsics are pinhole camera intrinsic parameters
type Intrinsics struct {
	Fx float64
	Fy float64
	Cx float64
	Cy float64
}

// FromInfo extracts Intrinsics from calibration message info.
// It returns error if either of the focal lengths is not positive.
func FromInfo(info Info) (Intrinsics, error) {
	in := Intrinsics{
		Fx: info.K[0],
		Fy: info.K[4],
		Cx: info.K[2],
		Cy: info.K[5],
	}

	if err := in.Validate(); err != nil {
		return Intrinsics{}, err
	}

	return in, nil
}

// Validate checks the focal lengths are usable
func (in Intrinsics) Validate() error {
	if !(in.Fx > 0) || !(in.Fy > 0) {
		return fmt.Errorf("invalid focal length: fx=%v fy=%v", in.Fx, in.Fy)
	}

	return nil
}

// Matrix returns intrinsics as 3x3 camera matrix K
func (in Intrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		in.Fx, 0, in.Cx,
		0, in.Fy, in.Cy,
		0, 0, 1,
	})
}

// Project projects point p given in the optical frame onto the image plane.
// It returns false if p lies behind or on the camera plane.
func (in Intrinsics) Project(p r3.Vector) (u, v float64, ok bool) {
	if p.Z <= 0 {
		return 0, 0, false
	}

	return in.Fx*p.X/p.Z + in.Cx, in.Fy*p.Y/p.Z + in.Cy, true
}

// ToPixel converts normalized image coordinates to pixel coordinates.
// Coordinates are floored and clamped to the last row and column.
func ToPixel(nx, ny float64, width, height int) (int, int) {
	x := int(math.Floor(nx * float64(width)))
	y := int(math.Floor(ny * float64(height)))

	if x > width-1 {
		x = width - 1
	}
	if y > height-1 {
		y = height - 1
	}

	return x, y
}

// DepthImage is a 16 bit depth image
type DepthImage struct {
	// Width is image width in pixels
	Width int
	// Height is image height in pixels
	Height int
	// Data stores row-major depth readings
	Data []uint16
	// Scale converts raw readings to meters; 0 means millimeters
	Scale float64
}

// At returns depth in meters at pixel (u, v).
// It returns false if the pixel is out of bounds or holds no reading.
func (d DepthImage) At(u, v int) (float64, bool) {
	if u < 0 || v < 0 || u >= d.Width || v >= d.Height {
		return 0, false
	}

	idx := v*d.Width + u
	if idx >= len(d.Data) || d.Data[idx] == 0 {
		return 0, false
	}

	return float64(d.Data[idx]) * d.scale(), true
}

func (d DepthImage) scale() float64 {
	if d.Scale > 0 {
		return d.Scale
	}

	return 0.001
}

// depthWindow is the half size of the window sampled around a deprojected pixel
const depthWindow = 2

// Deproject returns the 3D point in the depth optical frame seen at pixel (u, v).
// Depth is the median of valid readings in a small window around the pixel,
// which papers over the holes structured light sensors leave on edges.
// It returns false if no valid reading exists around the pixel.
func Deproject(img DepthImage, in Intrinsics, u, v int) (r3.Vector, bool) {
	var readings []float64
	for dv := -depthWindow; dv <= depthWindow; dv++ {
		for du := -depthWindow; du <= depthWindow; du++ {
			if z, ok := img.At(u+du, v+dv); ok {
				readings = append(readings, z)
			}
		}
	}

	if len(readings) == 0 || in.Validate() != nil {
		return r3.Vector{}, false
	}

	sort.Float64s(readings)
	z := stat.Quantile(0.5, stat.Empirical, readings, nil)

	return r3.Vector{
		X: (float64(u) - in.Cx) * z / in.Fx,
		Y: (float64(v) - in.Cy) * z / in.Fy,
		Z: z,
	}, true
}
