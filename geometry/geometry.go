package geometry

import (
	"math"

	"glint/contact"
	"glint/material"
	"glint/ray"
	"glint/vmath/vec3"
)

// Geometry is anything a ray can be tested against.
//
// Intersect returns the accepted contact whose parameter lies strictly inside
// query.TheSegment, or contact.Miss().  Implementations must not mutate
// themselves, so that one Geometry can serve concurrent queries.
type Geometry interface {
	Intersect(query ray.RaySegment) contact.Contact
}

type Sphere struct {
	Center vec3.T
	Radius float64

	Material contact.Material
}

// DefaultSphere returns a white diffuse unit sphere at the origin.
func DefaultSphere() *Sphere {
	return &Sphere{
		Center:   vec3.T{0, 0, 0},
		Radius:   1.0,
		Material: &material.Lambertian{Albedo: vec3.T{1, 1, 1}},
	}
}

// Intersect solves |P(t) - Center|^2 = Radius^2 for the query ray.
//
// The ray's slope must be nonzero; a zero slope divides by zero.  Tangent rays
// (zero discriminant) are reported as misses.  The nearer root is preferred
// when both lie inside the query span.
func (s *Sphere) Intersect(query ray.RaySegment) contact.Contact {
	r := query.TheRay

	// With the half-b substitution, the quadratic is a t^2 + 2 b t + c = 0.
	oc := vec3.SubVV(r.Point, s.Center)
	a := vec3.IProd(r.Slope, r.Slope)
	b := vec3.IProd(oc, r.Slope)
	c := vec3.IProd(oc, oc) - s.Radius*s.Radius

	discriminant := b*b - a*c
	if discriminant <= 0.0 {
		return contact.Miss()
	}

	sqrtD := math.Sqrt(discriminant)

	if t := (-b - sqrtD) / a; query.TheSegment.Surrounds(t) {
		return s.contactAt(r, t)
	}
	if t := (-b + sqrtD) / a; query.TheSegment.Surrounds(t) {
		return s.contactAt(r, t)
	}

	return contact.Miss()
}

func (s *Sphere) contactAt(r ray.Ray, t float64) contact.Contact {
	p := r.Eval(t)
	return contact.Contact{
		T:        t,
		R:        r,
		P:        p,
		N:        vec3.DivVS(vec3.SubVV(p, s.Center), s.Radius),
		Material: s.Material,
	}
}
