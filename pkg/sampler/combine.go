package sampler

import (
	"fmt"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// keepRule decides whether a child point survives and whether its normal
// flips. other is the opposite child's subtree; p is in the node's local
// frame.
type keepRule func(other *csg.Tree, p v3.Vec) (keep, flip bool)

func keepAll(*csg.Tree, v3.Vec) (bool, bool) { return true, false }

func keepOutside(other *csg.Tree, p v3.Vec) (bool, bool) {
	return !other.Contains(p), false
}

func keepInside(other *csg.Tree, p v3.Vec) (bool, bool) {
	return other.Contains(p), false
}

// keepInsideFlipped keeps the subtracted operand's points that lie within
// the minuend; they bound a cavity, so the normal points the other way.
func keepInsideFlipped(other *csg.Tree, p v3.Vec) (bool, bool) {
	return other.Contains(p), true
}

// rules returns the keep rules for the left and right child clouds.
func rules(op csg.Operator) (left, right keepRule, err error) {
	switch op {
	case csg.Identity:
		return keepAll, keepAll, nil
	case csg.Union:
		return keepOutside, keepOutside, nil
	case csg.Intersection:
		return keepInside, keepInside, nil
	case csg.Difference:
		return keepOutside, keepInsideFlipped, nil
	default:
		return nil, nil, fmt.Errorf("sampler: %w: %d", csg.ErrUnknownOperator, int(op))
	}
}

// combine merges the child clouds of t and releases them. Containment is
// tested on child-frame positions; survivors are mapped through the node's
// forward and normal matrices.
func combine(t *csg.Tree, left, right *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	defer func() {
		_ = left.Release()
		_ = right.Release()
	}()
	lr, rr, err := rules(t.Op())
	if err != nil {
		return nil, err
	}

	fwd, nrm := t.Forward(), t.Normal()
	b := pointcloud.NewBuilder(left.Len() + right.Len())
	add := func(src *pointcloud.PointCloud, other *csg.Tree, keep keepRule) {
		for i, p := range src.Positions {
			ok, flip := keep(other, p)
			if !ok {
				continue
			}
			n := src.Normals[i]
			if flip {
				n = n.Neg()
			}
			b.Add(fwd.MulPoint(p), nrm.MulNormal(n), src.Colors[i])
		}
	}
	add(left, t.Right(), lr)
	add(right, t.Left(), rr)

	out := b.Build()
	logging.Logger().Debug("combined",
		"op", t.Op().String(),
		"kept", out.Len(),
		"total", left.Len()+right.Len(),
	)
	return out, nil
}
