package csg

import (
	"fmt"

	"github.com/chazu/csgcloud/pkg/kernel"
	"github.com/chazu/csgcloud/pkg/shape"
)

// apply composes delta onto the node. deltaInv and deltaNrm are the
// matching inverse and normal matrices.
func (t *Tree) apply(delta, deltaInv, deltaNrm kernel.Mat4) {
	t.forward = t.forward.Mul(delta)
	t.inverse = deltaInv.Mul(t.inverse)
	t.normal = t.normal.Mul(deltaNrm)
}

// Translate moves the node by (x, y, z).
func (t *Tree) Translate(x, y, z float64) {
	m := kernel.Translation(x, y, z)
	t.apply(m, kernel.Translation(-x, -y, -z), m)
}

// Rotate turns the node by x radians about its local X axis, then y about
// Y, then z about Z.
func (t *Tree) Rotate(x, y, z float64) {
	for _, r := range []struct {
		fn    func(float64) kernel.Mat4
		angle float64
	}{
		{kernel.RotationX, x},
		{kernel.RotationY, y},
		{kernel.RotationZ, z},
	} {
		m := r.fn(r.angle)
		t.apply(m, r.fn(-r.angle), m)
	}
}

// Homothety scales the node by (x, y, z) along its local axes and rescales
// every shape below it so sampling density follows the new surface area.
func (t *Tree) Homothety(x, y, z float64) error {
	if !(x > 0 && y > 0 && z > 0) {
		return fmt.Errorf("%w: got (%g, %g, %g)", shape.ErrNonPositiveScale, x, y, z)
	}
	t.apply(
		kernel.Scaling(x, y, z),
		kernel.Scaling(1/x, 1/y, 1/z),
		kernel.Scaling(y/z, z/x, x/y),
	)
	for _, leaf := range t.Leaves() {
		if err := leaf.shape.Rescale(x, y, z); err != nil {
			return err
		}
	}
	return nil
}
