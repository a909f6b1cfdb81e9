package pointcloud

import (
	"errors"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestNewLengthMismatch(t *testing.T) {
	_, err := New(make([]v3.Vec, 2), make([]v3.Vec, 2), make([]Color, 1))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("New with mismatched lengths: err = %v, want ErrLengthMismatch", err)
	}
}

func TestNewEmptyIsValid(t *testing.T) {
	pc, err := New(nil, nil, nil)
	if err != nil {
		t.Fatalf("New(nil, nil, nil): %v", err)
	}
	if !pc.IsValid() {
		t.Error("empty cloud should be valid")
	}
	if pc.Len() != 0 {
		t.Errorf("Len() = %d, want 0", pc.Len())
	}
	if !pc.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
}

func TestReleaseTwice(t *testing.T) {
	pc := Empty()
	if err := pc.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if pc.IsValid() {
		t.Error("released cloud should not be valid")
	}
	if !pc.Released() {
		t.Error("Released() = false after Release")
	}
	if err := pc.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release: err = %v, want ErrReleased", err)
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(4)
	red := Color{R: 1, A: 1}
	b.Add(v3.Vec{X: 1}, v3.Vec{Z: 1}, red)
	b.Add(v3.Vec{X: -1, Y: 3}, v3.Vec{Z: -1}, red)
	if b.Len() != 2 {
		t.Fatalf("builder Len() = %d, want 2", b.Len())
	}
	pc := b.Build()
	if !pc.IsValid() {
		t.Fatal("built cloud is not valid")
	}
	if pc.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pc.Len())
	}
	if pc.Colors[1] != red {
		t.Errorf("Colors[1] = %v, want %v", pc.Colors[1], red)
	}
}

func TestBuilderZeroCapacity(t *testing.T) {
	pc := NewBuilder(0).Build()
	if !pc.IsValid() {
		t.Error("cloud from an unused builder should be valid")
	}
}

func TestBounds(t *testing.T) {
	pts := []v3.Vec{{X: 1, Y: -2, Z: 0}, {X: -3, Y: 4, Z: 5}, {X: 0, Y: 0, Z: -1}}
	pc, err := New(pts, make([]v3.Vec, 3), make([]Color, 3))
	if err != nil {
		t.Fatal(err)
	}
	bb := pc.Bounds()
	if bb.Min != (v3.Vec{X: -3, Y: -2, Z: -1}) {
		t.Errorf("Bounds().Min = %v, want (-3,-2,-1)", bb.Min)
	}
	if bb.Max != (v3.Vec{X: 1, Y: 4, Z: 5}) {
		t.Errorf("Bounds().Max = %v, want (1,4,5)", bb.Max)
	}
}
