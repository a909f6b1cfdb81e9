// Package kernel provides the affine transform primitives used by the CSG
// core. Matrices are 4x4 homogeneous transforms backed by the
// github.com/deadsy/sdfx matrix type; points and directions use the sdfx
// 3D vector. Everything here is pure: no function mutates its receiver.
package kernel

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mat4 is a 4x4 homogeneous transform. The translation lives in the last
// column, so MulPoint(p) = M·(p,1).
type Mat4 sdf.M44

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4(sdf.Identity3d())
}

// Translation returns a transform that moves points by (x, y, z).
func Translation(x, y, z float64) Mat4 {
	return Mat4(sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Scaling returns a non-uniform scale about the origin.
func Scaling(x, y, z float64) Mat4 {
	return Mat4(sdf.Scale3d(v3.Vec{X: x, Y: y, Z: z}))
}

// RotationX returns a rotation of a radians about the X axis.
func RotationX(a float64) Mat4 {
	return Mat4(sdf.RotateX(a))
}

// RotationY returns a rotation of a radians about the Y axis.
func RotationY(a float64) Mat4 {
	return Mat4(sdf.RotateY(a))
}

// RotationZ returns a rotation of a radians about the Z axis.
func RotationZ(a float64) Mat4 {
	return Mat4(sdf.RotateZ(a))
}

// M44 returns the underlying sdfx matrix.
func (m Mat4) M44() sdf.M44 {
	return sdf.M44(m)
}

// Mul returns the product m·o. Applied to a point, o acts first.
func (m Mat4) Mul(o Mat4) Mat4 {
	return Mat4(sdf.M44(m).Mul(sdf.M44(o)))
}

// Inverse returns the matrix inverse of m.
func (m Mat4) Inverse() Mat4 {
	return Mat4(sdf.M44(m).Inverse())
}

// MulPoint applies m to a point, translation included.
func (m Mat4) MulPoint(p v3.Vec) v3.Vec {
	return sdf.M44(m).MulPosition(p)
}

// MulNormal applies the linear part of m to a direction and renormalizes
// the result. A direction that maps to zero length stays zero.
func (m Mat4) MulNormal(n v3.Vec) v3.Vec {
	mm := sdf.M44(m)
	d := mm.MulPosition(n).Sub(mm.MulPosition(v3.Vec{}))
	l := d.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return d.MulScalar(1 / l)
}
