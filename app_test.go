package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
)

const testDensity = 100

func readExample(t *testing.T, name string) string {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("examples", name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(src)
}

// TestE2EExamples runs every example scene through the full pipeline:
// source → parser or engine → tree → sampler → JSON document.
func TestE2EExamples(t *testing.T) {
	var files []string
	for _, pattern := range []string{"*.scene", "*.yaml", "*.lisp"} {
		m, err := filepath.Glob(filepath.Join("examples", pattern))
		if err != nil {
			t.Fatal(err)
		}
		files = append(files, m...)
	}
	if len(files) == 0 {
		t.Fatal("no example scenes found")
	}

	app := NewApp(Options{Density: testDensity})
	for _, f := range files {
		name := filepath.Base(f)
		t.Run(name, func(t *testing.T) {
			result := app.Evaluate(name, readExample(t, name))
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					t.Errorf("eval error (line %d): %s", e.Line, e.Message)
				}
				t.FailNow()
			}
			if len(result.Warnings) > 0 {
				t.Errorf("unexpected warnings: %v", result.Warnings)
			}
			doc := result.Cloud
			if doc == nil || doc.Count == 0 {
				t.Fatal("expected a non-empty cloud")
			}
			if len(doc.Positions) != 3*doc.Count || len(doc.Normals) != 3*doc.Count || len(doc.Colors) != 4*doc.Count {
				t.Errorf("array lengths %d/%d/%d do not match count %d",
					len(doc.Positions), len(doc.Normals), len(doc.Colors), doc.Count)
			}
			if result.ID == "" {
				t.Error("result has no id")
			}
		})
	}
}

// TestE2EYAMLMatchesScene checks that both scene forms of the bored cube
// produce the same cloud for the same seed.
func TestE2EYAMLMatchesScene(t *testing.T) {
	app := NewApp(Options{Density: testDensity, Seed: 7})
	a := app.Evaluate("bored_cube.scene", readExample(t, "bored_cube.scene"))
	b := app.Evaluate("bored_cube.yaml", readExample(t, "bored_cube.yaml"))
	if len(a.Errors)+len(b.Errors) > 0 {
		t.Fatalf("unexpected errors: %v %v", a.Errors, b.Errors)
	}
	if a.Cloud.Count != b.Cloud.Count {
		t.Fatalf("counts differ: scene=%d yaml=%d", a.Cloud.Count, b.Cloud.Count)
	}
	for i := range a.Cloud.Positions {
		if d := math.Abs(float64(a.Cloud.Positions[i] - b.Cloud.Positions[i])); d > 1e-6 {
			t.Fatalf("position component %d differs by %g", i, d)
		}
	}
}

// TestE2ELispMatchesScene builds the bored cube through the Lisp engine and
// compares it with the line format.
func TestE2ELispMatchesScene(t *testing.T) {
	const source = `
(scene
  (difference
    (cube :color (rgba 0.8 0.2 0.2 1))
    (cylinder :color (rgba 0.2 0.2 0.8 1) :scale (vec3 0.5 0.5 2))))
`
	app := NewApp(Options{Density: testDensity, Seed: 7})
	a := app.Evaluate("bored_cube.scene", readExample(t, "bored_cube.scene"))
	b := app.Evaluate("bored_cube.lisp", source)
	if len(a.Errors)+len(b.Errors) > 0 {
		t.Fatalf("unexpected errors: %v %v", a.Errors, b.Errors)
	}
	if a.Cloud.Count != b.Cloud.Count {
		t.Fatalf("counts differ: scene=%d lisp=%d", a.Cloud.Count, b.Cloud.Count)
	}
	for i := range a.Cloud.Colors {
		if a.Cloud.Colors[i] != b.Cloud.Colors[i] {
			t.Fatalf("color component %d differs: %g vs %g", i, a.Cloud.Colors[i], b.Cloud.Colors[i])
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp(Options{})
	result := app.Evaluate("empty.scene", "")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if result.Cloud == nil || result.Cloud.Count != 0 {
		t.Errorf("expected an empty cloud, got %+v", result.Cloud)
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp(Options{})
	result := app.Evaluate("broken.lisp", "(union (sphere)")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.Cloud != nil {
		t.Errorf("expected no cloud on error, got %d points", result.Cloud.Count)
	}
}

// TestE2ESingleSphere ensures a minimal scene lands on the unit sphere.
func TestE2ESingleSphere(t *testing.T) {
	app := NewApp(Options{Density: testDensity})
	result := app.Evaluate("ball.scene", "sphere (1,1,1,1) (0,0,0) (0,0,0) (1,1,1)\n")

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	doc := result.Cloud
	if want := shape.NewSphere(pointcloud.Color{}).ExpectedCount(testDensity); doc.Count != want {
		t.Fatalf("expected %d points, got %d", want, doc.Count)
	}
	for i := 0; i < doc.Count; i++ {
		x, y, z := doc.Positions[3*i], doc.Positions[3*i+1], doc.Positions[3*i+2]
		if r := math.Sqrt(float64(x*x + y*y + z*z)); math.Abs(r-1) > 1e-5 {
			t.Fatalf("point %d at radius %g, want 1", i, r)
		}
	}
}

func TestRunOverrides(t *testing.T) {
	app := NewApp(Options{Density: testDensity, Seed: 3})
	src := "cube (1,1,1,1) (0,0,0) (0,0,0) (1,1,1)\n"

	base, res := app.Run(context.Background(), Request{Name: "c.scene", Source: src})
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	seed := uint64(3)
	same, _ := app.Run(context.Background(), Request{Name: "c.scene", Source: src, Seed: &seed})
	if same.Len() != base.Len() || same.Positions[0] != base.Positions[0] {
		t.Error("explicit seed equal to the default changed the cloud")
	}

	seed = 4
	other, _ := app.Run(context.Background(), Request{Name: "c.scene", Source: src, Seed: &seed})
	if other.Positions[0] == base.Positions[0] {
		t.Error("a different seed produced the same first point")
	}

	dense, _ := app.Run(context.Background(), Request{Name: "c.scene", Source: src, Density: "medium"})
	if dense.Len() <= base.Len() {
		t.Errorf("medium density gave %d points, want more than %d", dense.Len(), base.Len())
	}

	_, res = app.Run(context.Background(), Request{Name: "c.scene", Source: src, Density: "huge"})
	if len(res.Errors) == 0 {
		t.Error("expected an error for an unknown density")
	}
}

func TestNewAppDefaults(t *testing.T) {
	app := NewApp(Options{})
	if app.opts.Density <= 0 || app.opts.Seed == 0 || app.opts.Timeout <= 0 {
		t.Errorf("defaults not applied: %+v", app.opts)
	}
}

func TestRunCanceled(t *testing.T) {
	app := NewApp(Options{Density: testDensity})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pc, res := app.Run(ctx, Request{Name: "bored_cube.scene", Source: readExample(t, "bored_cube.scene")})
	if pc != nil || len(res.Errors) == 0 {
		t.Error("expected a canceled run to fail")
	}
}

func TestRunVerify(t *testing.T) {
	app := NewApp(Options{Density: testDensity})
	_, res := app.Run(context.Background(), Request{
		Name:   "bored_cube.scene",
		Source: readExample(t, "bored_cube.scene"),
		Verify: true,
	})
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.Deviation == nil {
		t.Fatal("expected a deviation report")
	}
	if res.Deviation.Max > 1e-6 {
		t.Errorf("max deviation = %g, want <= 1e-6", res.Deviation.Max)
	}

	_, res = app.Run(context.Background(), Request{Name: "bored_cube.scene", Source: readExample(t, "bored_cube.scene")})
	if res.Deviation != nil {
		t.Error("deviation reported without verify")
	}
}

func TestRunMaxPoints(t *testing.T) {
	app := NewApp(Options{Density: testDensity, MaxPoints: 1000})
	pc, res := app.Run(context.Background(), Request{
		Name:   "big.scene",
		Source: "sphere (1,0,0,1) (0,0,0) (0,0,0) (1e12,1e12,1e12)\n",
	})
	if pc != nil || len(res.Errors) != 1 {
		t.Fatalf("got cloud %v and errors %v, want one error", pc, res.Errors)
	}
	if !errors.Is(res.Cause(), shape.ErrTooManyPoints) {
		t.Errorf("Cause = %v, want ErrTooManyPoints", res.Cause())
	}

	_, res = app.Run(context.Background(), Request{Name: "bad.scene", Source: "prism\n"})
	if res.Cause() != nil {
		t.Errorf("scene error Cause = %v, want nil", res.Cause())
	}
}
