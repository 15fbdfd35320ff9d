// Package contact defines the record that geometry hands to shading: where a
// ray struck a surface, the surface normal there, and the material that decides
// what happens next.
package contact

import (
	"math"
	"math/rand"

	"glint/ray"
	"glint/vmath/vec3"
)

// Contact is the result of an intersection query.  It is either a miss (T is
// NaN) or a hit.
//
// For a hit, P == R.Eval(T), N has unit length and points out of the surface,
// and T lies strictly inside the span of the query that produced it.
type Contact struct {
	T float64

	// The ray of the query that produced this contact.
	R ray.Ray

	P vec3.T
	N vec3.T

	Material Material
}

// Miss returns the contact for a query that found nothing.
func Miss() Contact {
	return Contact{
		T: math.NaN(),
	}
}

func (c Contact) IsHit() bool {
	return !math.IsNaN(c.T)
}

// ScatterInfo is what a material decides about a ray that struck it.
//
// Attenuation is only meaningful when Scattered is true, although materials
// fill it in for every hit.
type ScatterInfo struct {
	Attenuation vec3.T
	Scattered   bool
	Ray         ray.Ray
}

// Material decides whether light arriving along incident continues, and in
// which direction.
//
// Implementations must be safe for concurrent use; all randomness comes from
// rng, which belongs to the caller.  Passing a miss returns the zero
// ScatterInfo.
type Material interface {
	Scatter(incident ray.Ray, hit Contact, rng *rand.Rand) ScatterInfo
}
