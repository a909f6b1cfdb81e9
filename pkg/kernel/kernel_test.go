package kernel

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const tol = 1e-9

func vecNear(a, b v3.Vec) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestTranslationMovesPointsNotNormals(t *testing.T) {
	m := Translation(1, 2, 3)

	if got := m.MulPoint(v3.Vec{X: 1, Y: 1, Z: 1}); !vecNear(got, v3.Vec{X: 2, Y: 3, Z: 4}) {
		t.Errorf("MulPoint = %v, want (2,3,4)", got)
	}
	if got := m.MulNormal(v3.Vec{Z: 1}); !vecNear(got, v3.Vec{Z: 1}) {
		t.Errorf("MulNormal = %v, want (0,0,1)", got)
	}
}

func TestRotationSigns(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		in   v3.Vec
		want v3.Vec
	}{
		{"x quarter turn", RotationX(math.Pi / 2), v3.Vec{Y: 1}, v3.Vec{Z: 1}},
		{"y quarter turn", RotationY(math.Pi / 2), v3.Vec{Z: 1}, v3.Vec{X: 1}},
		{"z quarter turn", RotationZ(math.Pi / 2), v3.Vec{X: 1}, v3.Vec{Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.MulPoint(tt.in); !vecNear(got, tt.want) {
				t.Errorf("MulPoint(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMulOrder(t *testing.T) {
	// T·S scales first, then translates.
	m := Translation(10, 0, 0).Mul(Scaling(2, 2, 2))
	if got := m.MulPoint(v3.Vec{X: 1}); !vecNear(got, v3.Vec{X: 12}) {
		t.Errorf("(T·S)(1,0,0) = %v, want (12,0,0)", got)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translation(1, -2, 3).Mul(RotationZ(0.7)).Mul(Scaling(2, 3, 0.5))
	p := v3.Vec{X: 0.3, Y: -1.2, Z: 4}
	if got := m.Inverse().MulPoint(m.MulPoint(p)); !vecNear(got, p) {
		t.Errorf("inverse round trip = %v, want %v", got, p)
	}
}

func TestMulNormalUnitLength(t *testing.T) {
	m := Scaling(5, 1, 1)
	got := m.MulNormal(v3.Vec{X: 1, Y: 1})
	if math.Abs(got.Length()-1) > tol {
		t.Errorf("|MulNormal| = %f, want 1", got.Length())
	}
}

func TestMulNormalZero(t *testing.T) {
	got := Identity().MulNormal(v3.Vec{})
	if got != (v3.Vec{}) {
		t.Errorf("MulNormal(0) = %v, want zero vector", got)
	}
}
