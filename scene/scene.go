package scene

import (
	"glint/contact"
	"glint/geometry"
	"glint/ray"
)

// Scene is an ordered collection of geometry.  It is itself a Geometry.
//
// Elements may be appended while the scene is being built; once tracing
// starts the scene must be treated as read-only.
type Scene struct {
	Elements []geometry.Geometry
}

var _ geometry.Geometry = (*Scene)(nil)

// Add is a convenience function to register an element and get its index.
func (s *Scene) Add(g geometry.Geometry) int {
	s.Elements = append(s.Elements, g)
	return len(s.Elements) - 1
}

// Intersect returns the nearest contact among all elements.
//
// Elements are queried in order, and the upper end of the span shrinks to the
// nearest hit found so far.  A later hit at exactly the same distance does not
// displace an earlier one.
func (s *Scene) Intersect(query ray.RaySegment) contact.Contact {
	result := contact.Miss()
	closestSoFar := query.TheSegment.Hi

	for _, element := range s.Elements {
		elementQuery := ray.RaySegment{
			TheRay:     query.TheRay,
			TheSegment: ray.Span{Lo: query.TheSegment.Lo, Hi: closestSoFar},
		}

		c := element.Intersect(elementQuery)
		if c.IsHit() && c.T < closestSoFar {
			closestSoFar = c.T
			result = c
		}
	}

	return result
}
