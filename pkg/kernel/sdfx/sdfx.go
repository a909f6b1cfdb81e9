// Package sdfx builds github.com/deadsy/sdfx signed distance fields from
// CSG trees. The fields describe the same solids the tree's Contains
// tests, so they serve as an independent check on sampled clouds.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Solid returns the distance field of t in the parent frame of t.
// Distances are exact under rigid motion and approximate under
// non-uniform homothety; the zero set is exact in both cases.
func Solid(t *csg.Tree) (sdf.SDF3, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var s sdf.SDF3
	if t.IsLeaf() {
		var err error
		if s, err = canonical(t.Shape()); err != nil {
			return nil, err
		}
	} else {
		left, err := Solid(t.Left())
		if err != nil {
			return nil, err
		}
		right, err := Solid(t.Right())
		if err != nil {
			return nil, err
		}
		switch t.Op() {
		case csg.Union, csg.Identity:
			s = sdf.Union3D(left, right)
		case csg.Intersection:
			s = sdf.Intersect3D(left, right)
		case csg.Difference:
			s = sdf.Difference3D(left, right)
		default:
			return nil, fmt.Errorf("%w: %d", csg.ErrUnknownOperator, int(t.Op()))
		}
	}
	return sdf.Transform3D(s, t.Forward().M44()), nil
}

// canonical returns the unit solid for s, matching shape.Contains.
func canonical(s *shape.Shape) (sdf.SDF3, error) {
	switch s.Kind() {
	case shape.Sphere:
		return sdf.Sphere3D(1)
	case shape.Cube:
		return sdf.Box3D(v3.Vec{X: 2, Y: 2, Z: 2}, 0)
	case shape.Cylinder:
		return sdf.Cylinder3D(2, 1, 0)
	case shape.Cone:
		return sdf.Cone3D(2, 1, 0, 0)
	case shape.Torus:
		tube, err := sdf.Circle2D(s.Radius())
		if err != nil {
			return nil, err
		}
		return sdf.Revolve3D(sdf.Transform2D(tube, sdf.Translate2d(v2.Vec{X: 1, Y: 0})))
	default:
		return nil, fmt.Errorf("%w: %d", shape.ErrUnknownKind, int(s.Kind()))
	}
}

// Deviation summarizes how far a cloud strays from a surface.
type Deviation struct {
	Max  float64
	Mean float64
}

// SurfaceDeviation evaluates s at every point of pc and reports the
// absolute distances. An empty cloud has zero deviation.
func SurfaceDeviation(s sdf.SDF3, pc *pointcloud.PointCloud) Deviation {
	var d Deviation
	if pc.Len() == 0 {
		return d
	}
	var sum float64
	for _, p := range pc.Positions {
		v := math.Abs(s.Evaluate(p))
		sum += v
		d.Max = math.Max(d.Max, v)
	}
	d.Mean = sum / float64(pc.Len())
	return d
}
