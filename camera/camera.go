package camera

import (
	"math"
	"math/rand"

	"glint/ray"
	"glint/vmath/mat33"
	"glint/vmath/vec3"
)

type Camera interface {
	// ImageToRay returns a primary ray through a uniformly jittered point of
	// pixel (curRow, curCol).  Row 0 is the top of the image.
	ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray
}

// PinholeCamera shoots every ray from Center.
//
// The columns of ApertureToWorld are the eye (viewing direction), left, and up
// unit vectors.  Aperture scales the aperture-space point (1, left, up) before
// it is mapped to the world, so Aperture[1] and Aperture[2] are the tangents of
// the horizontal and vertical half-angles of view.
type PinholeCamera struct {
	Center          vec3.T
	ApertureToWorld mat33.T
	Aperture        vec3.T
}

// LookAt builds a camera at from looking towards at, with the given vertical
// field of view (in degrees) and width/height aspect ratio.
//
// up only needs to be roughly upwards; it must not be parallel to at - from.
func LookAt(from, at, up vec3.T, vfov, aspect float64) *PinholeCamera {
	eye := vec3.Normalize(vec3.SubVV(at, from))
	trueUp := vec3.Normalize(vec3.Reject(eye, up))
	left := vec3.CProd(trueUp, eye)

	halfHeight := math.Tan(vfov * math.Pi / 360.0)
	return &PinholeCamera{
		Center:          from,
		ApertureToWorld: mat33.FromColumns(eye, left, trueUp),
		Aperture:        vec3.T{1.0, halfHeight * aspect, halfHeight},
	}
}

func (c *PinholeCamera) ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray {
	imageCoords := vec3.T{
		1.0,
		1.0 - 2.0*(float64(curCol)+rng.Float64())/float64(imgCols),
		1.0 - 2.0*(float64(curRow)+rng.Float64())/float64(imgRows),
	}

	apertureCoords := vec3.MulVV(imageCoords, c.Aperture)

	return ray.Ray{
		Point: c.Center,
		Slope: vec3.Normalize(mat33.MulMV(c.ApertureToWorld, apertureCoords)),
	}
}

func (c *PinholeCamera) Eye() vec3.T {
	return c.ApertureToWorld.Column(0)
}

func (c *PinholeCamera) Left() vec3.T {
	return c.ApertureToWorld.Column(1)
}

func (c *PinholeCamera) Up() vec3.T {
	return c.ApertureToWorld.Column(2)
}
