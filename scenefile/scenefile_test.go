package scenefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"glint/geometry"
	"glint/material"
	"glint/vmath/vec3"

	"github.com/google/go-cmp/cmp"
)

const twoSpheres = `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
materials:
  - {name: mirror, kind: metallic, albedo: [0.9, 0.9, 0.9]}
spheres:
  - {center: [0, 0, -1], radius: 0.5, material: mirror}
  - {center: [1, 0, -1], radius: 0.25, material: mirror}
  - {center: [-1, 0, -1], radius: 0.25}
`

func TestParse(t *testing.T) {
	loaded, err := Parse([]byte(twoSpheres), 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := len(loaded.Scene.Elements); got != 3 {
		t.Fatalf("Got %d elements, want 3", got)
	}

	first := loaded.Scene.Elements[0].(*geometry.Sphere)
	second := loaded.Scene.Elements[1].(*geometry.Sphere)
	third := loaded.Scene.Elements[2].(*geometry.Sphere)

	if diff := cmp.Diff(first.Center, vec3.T{0, 0, -1}); diff != "" {
		t.Errorf("Bad center; diff (-got +want)\n%s", diff)
	}
	if first.Radius != 0.5 {
		t.Errorf("Got radius %v, want 0.5", first.Radius)
	}

	mirror, ok := first.Material.(*material.Metallic)
	if !ok {
		t.Fatalf("Got material %T, want *material.Metallic", first.Material)
	}
	if diff := cmp.Diff(mirror.Albedo, vec3.T{0.9, 0.9, 0.9}); diff != "" {
		t.Errorf("Bad albedo; diff (-got +want)\n%s", diff)
	}

	if first.Material != second.Material {
		t.Errorf("Spheres naming the same material got distinct values")
	}

	if diff := cmp.Diff(third.Material, geometry.DefaultSphere().Material); diff != "" {
		t.Errorf("Sphere without a material got the wrong default; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(loaded.Camera.Center, vec3.T{0, 0, 0}); diff != "" {
		t.Errorf("Bad camera center; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(loaded.Camera.Eye(), vec3.T{0, 0, -1}); diff != "" {
		t.Errorf("Bad camera eye; diff (-got +want)\n%s", diff)
	}
}

func TestDigestTracksContent(t *testing.T) {
	a, err := Parse([]byte(twoSpheres), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := Parse([]byte(twoSpheres), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	c, err := Parse([]byte(twoSpheres+"\n"), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if a.Digest != b.Digest {
		t.Errorf("Same file gave digests %s and %s", a.Digest, b.Digest)
	}
	if a.Digest == c.Digest {
		t.Errorf("Different files share digest %s", a.Digest)
	}
	if len(a.Digest) != 64 {
		t.Errorf("Digest %q is not hex SHA-256", a.Digest)
	}
}

func TestDefault(t *testing.T) {
	loaded, err := Default(16.0 / 9.0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := len(loaded.Scene.Elements); got != 4 {
		t.Errorf("Default scene has %d elements, want 4", got)
	}

	ground := loaded.Scene.Elements[0].(*geometry.Sphere)
	if ground.Radius != 100 {
		t.Errorf("Ground radius is %v, want 100", ground.Radius)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no camera",
			yaml:    `spheres: [{center: [0, 0, 0], radius: 1}]`,
			wantErr: "no camera",
		},
		{
			name: "unknown kind",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
materials: [{name: glass, kind: dielectric, albedo: [1, 1, 1]}]`,
			wantErr: "unknown material kind",
		},
		{
			name: "duplicate material",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
materials:
  - {name: a, kind: lambertian, albedo: [1, 1, 1]}
  - {name: a, kind: metallic, albedo: [1, 1, 1]}`,
			wantErr: "duplicate material",
		},
		{
			name: "unknown reference",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
spheres: [{center: [0, 0, -1], radius: 1, material: nope}]`,
			wantErr: "unknown material",
		},
		{
			name: "zero radius",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
spheres: [{center: [0, 0, -1], radius: 0}]`,
			wantErr: "non-positive radius",
		},
		{
			name: "short albedo",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
materials: [{name: a, kind: lambertian, albedo: [1, 1]}]`,
			wantErr: "want 3",
		},
		{
			name:    "up along view",
			yaml:    `camera: {from: [0, 0, 0], at: [0, 1, 0], up: [0, 1, 0], vfov: 90}`,
			wantErr: "parallel",
		},
		{
			name:    "bad vfov",
			yaml:    `camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 180}`,
			wantErr: "vfov",
		},
		{
			name: "unknown field",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
lights: []`,
			wantErr: "unmarshaling",
		},
		{
			name: "bad background",
			yaml: `
camera: {from: [0, 0, 0], at: [0, 0, -1], up: [0, 1, 0], vfov: 90}
background: black`,
			wantErr: "background",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), 1)
			if err == nil {
				t.Fatalf("Parse succeeded, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Got error %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(name, []byte(twoSpheres), 0644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loaded, err := LoadFile(name, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := len(loaded.Scene.Elements); got != 3 {
		t.Errorf("Got %d elements, want 3", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), 1); err == nil {
		t.Errorf("Loading a missing file succeeded")
	}
}
