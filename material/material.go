package material

import (
	"math/rand"

	"glint/contact"
	"glint/ray"
	"glint/vmath/vec3"
)

// Lambertian is an ideal diffuse reflector.
//
// The scattered direction points from the contact to a uniform random point in
// the unit ball centered on the tip of the normal.  Lambertian surfaces never
// absorb a ray outright; Albedo does all of the darkening.
type Lambertian struct {
	Albedo vec3.T
}

func (l *Lambertian) Scatter(incident ray.Ray, hit contact.Contact, rng *rand.Rand) contact.ScatterInfo {
	if !hit.IsHit() {
		return contact.ScatterInfo{}
	}

	target := vec3.AddVV(vec3.AddVV(hit.P, hit.N), vec3.RandomInUnitBall(rng))

	return contact.ScatterInfo{
		Attenuation: l.Albedo,
		Scattered:   true,
		Ray: ray.Ray{
			Point: hit.P,
			Slope: vec3.SubVV(target, hit.P),
		},
	}
}

// Metallic is a perfect mirror.
//
// Rays whose reflection would not leave the surface through the outward
// hemisphere are absorbed.
type Metallic struct {
	Albedo vec3.T
}

func (m *Metallic) Scatter(incident ray.Ray, hit contact.Contact, rng *rand.Rand) contact.ScatterInfo {
	if !hit.IsHit() {
		return contact.ScatterInfo{}
	}

	reflected := vec3.Reflect(vec3.Normalize(incident.Slope), hit.N)

	return contact.ScatterInfo{
		Attenuation: m.Albedo,
		Scattered:   vec3.IProd(reflected, hit.N) > 0.0,
		Ray: ray.Ray{
			Point: hit.P,
			Slope: reflected,
		},
	}
}
