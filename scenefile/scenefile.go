// Package scenefile loads scenes described in YAML.
//
// A scene file names its materials once and refers to them from each sphere:
//
//	camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
//	background: sky
//	materials:
//	  - {name: ground, kind: lambertian, albedo: [0.8, 0.8, 0]}
//	spheres:
//	  - {center: [0, -100.5, -1], radius: 100, material: ground}
//
// Spheres that share a material name share a single material value.
package scenefile

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"glint/camera"
	"glint/contact"
	"glint/geometry"
	"glint/material"
	"glint/scene"
	"glint/vmath/vec3"

	"github.com/golang/glog"
	"sigs.k8s.io/yaml"
)

//go:embed default.yaml
var defaultScene []byte

type cameraSpec struct {
	From []float64 `json:"from"`
	At   []float64 `json:"at"`
	Up   []float64 `json:"up"`
	VFOV float64   `json:"vfov"`
}

type materialSpec struct {
	Name   string    `json:"name"`
	Kind   string    `json:"kind"`
	Albedo []float64 `json:"albedo"`
}

type sphereSpec struct {
	Center   []float64 `json:"center"`
	Radius   float64   `json:"radius"`
	Material string    `json:"material"`
}

type fileSpec struct {
	Camera     *cameraSpec    `json:"camera"`
	Background string         `json:"background"`
	Materials  []materialSpec `json:"materials"`
	Spheres    []sphereSpec   `json:"spheres"`
}

// Loaded is a scene ready to render.
type Loaded struct {
	Scene  *scene.Scene
	Camera *camera.PinholeCamera

	// Digest is the hex SHA-256 of the scene file.  Renders of the same file
	// share checkpoints under this key.
	Digest string
}

// Default is the built-in demo scene.
func Default(aspect float64) (*Loaded, error) {
	return Parse(defaultScene, aspect)
}

func LoadFile(name string, aspect float64) (*Loaded, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("while reading scene file: %w", err)
	}

	loaded, err := Parse(data, aspect)
	if err != nil {
		return nil, fmt.Errorf("while parsing %s: %w", name, err)
	}
	return loaded, nil
}

// Parse builds a scene from YAML.  aspect is the width/height ratio of the
// image the camera will render.
func Parse(data []byte, aspect float64) (*Loaded, error) {
	desc := fileSpec{}
	if err := yaml.UnmarshalStrict(data, &desc); err != nil {
		return nil, fmt.Errorf("while unmarshaling scene: %w", err)
	}

	switch desc.Background {
	case "", "sky":
	default:
		return nil, fmt.Errorf("unsupported background %q", desc.Background)
	}

	cam, err := buildCamera(desc.Camera, aspect)
	if err != nil {
		return nil, fmt.Errorf("while building camera: %w", err)
	}

	materials := map[string]contact.Material{}
	for i, ms := range desc.Materials {
		if ms.Name == "" {
			return nil, fmt.Errorf("material %d has no name", i)
		}
		if _, ok := materials[ms.Name]; ok {
			return nil, fmt.Errorf("duplicate material %q", ms.Name)
		}
		mat, err := buildMaterial(ms)
		if err != nil {
			return nil, fmt.Errorf("while building material %q: %w", ms.Name, err)
		}
		materials[ms.Name] = mat
	}

	defaultMaterial := geometry.DefaultSphere().Material

	s := &scene.Scene{}
	for i, ss := range desc.Spheres {
		center, err := toVec(ss.Center)
		if err != nil {
			return nil, fmt.Errorf("while reading center of sphere %d: %w", i, err)
		}
		if !(ss.Radius > 0) {
			return nil, fmt.Errorf("sphere %d has non-positive radius %v", i, ss.Radius)
		}

		mat := defaultMaterial
		if ss.Material != "" {
			var ok bool
			mat, ok = materials[ss.Material]
			if !ok {
				return nil, fmt.Errorf("sphere %d refers to unknown material %q", i, ss.Material)
			}
		}

		s.Add(&geometry.Sphere{Center: center, Radius: ss.Radius, Material: mat})
	}

	sum := sha256.Sum256(data)
	loaded := &Loaded{
		Scene:  s,
		Camera: cam,
		Digest: hex.EncodeToString(sum[:]),
	}
	glog.V(1).Infof("Loaded scene %s: %d materials, %d spheres", loaded.Digest[:12], len(materials), len(desc.Spheres))
	return loaded, nil
}

func buildCamera(cs *cameraSpec, aspect float64) (*camera.PinholeCamera, error) {
	if cs == nil {
		return nil, fmt.Errorf("scene has no camera")
	}

	from, err := toVec(cs.From)
	if err != nil {
		return nil, fmt.Errorf("while reading from: %w", err)
	}
	at, err := toVec(cs.At)
	if err != nil {
		return nil, fmt.Errorf("while reading at: %w", err)
	}
	up, err := toVec(cs.Up)
	if err != nil {
		return nil, fmt.Errorf("while reading up: %w", err)
	}

	if !(cs.VFOV > 0 && cs.VFOV < 180) {
		return nil, fmt.Errorf("vfov %v is outside (0, 180)", cs.VFOV)
	}
	if !(aspect > 0) {
		return nil, fmt.Errorf("aspect ratio %v is not positive", aspect)
	}

	view := vec3.SubVV(at, from)
	if view.NormSquared() == 0 {
		return nil, fmt.Errorf("from and at are the same point")
	}
	if vec3.CProd(view, up).NormSquared() == 0 {
		return nil, fmt.Errorf("up %v is parallel to the view direction", up)
	}

	return camera.LookAt(from, at, up, cs.VFOV, aspect), nil
}

func buildMaterial(ms materialSpec) (contact.Material, error) {
	albedo, err := toVec(ms.Albedo)
	if err != nil {
		return nil, fmt.Errorf("while reading albedo: %w", err)
	}

	switch ms.Kind {
	case "lambertian":
		return &material.Lambertian{Albedo: albedo}, nil
	case "metallic":
		return &material.Metallic{Albedo: albedo}, nil
	default:
		return nil, fmt.Errorf("unknown material kind %q", ms.Kind)
	}
}

func toVec(v []float64) (vec3.T, error) {
	if len(v) != 3 {
		return vec3.T{}, fmt.Errorf("got %d components, want 3", len(v))
	}
	return vec3.T{v[0], v[1], v[2]}, nil
}
