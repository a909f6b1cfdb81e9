// Package pointcloud holds the sampled-surface interchange format: three
// parallel arrays of positions, unit normals and RGBA colors. A cloud is
// immutable once built and owned by exactly one holder at a time.
package pointcloud

import (
	"errors"
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrLengthMismatch is returned when the parallel arrays differ in length.
	ErrLengthMismatch = errors.New("pointcloud: positions, normals and colors differ in length")
	// ErrReleased is returned when a released cloud is released again.
	ErrReleased = errors.New("pointcloud: already released")
)

// Color is an RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float32
}

// PointCloud is a flat set of sampled surface points.
type PointCloud struct {
	Positions []v3.Vec
	Normals   []v3.Vec
	Colors    []Color

	released bool
}

// New wraps three caller-built arrays into a cloud. The cloud takes
// ownership; the caller must not modify the slices afterwards. Nil slices
// of length zero are replaced with empty ones.
func New(positions, normals []v3.Vec, colors []Color) (*PointCloud, error) {
	if len(positions) != len(normals) || len(positions) != len(colors) {
		return nil, fmt.Errorf("%w: %d positions, %d normals, %d colors",
			ErrLengthMismatch, len(positions), len(normals), len(colors))
	}
	if positions == nil {
		positions = []v3.Vec{}
	}
	if normals == nil {
		normals = []v3.Vec{}
	}
	if colors == nil {
		colors = []Color{}
	}
	return &PointCloud{Positions: positions, Normals: normals, Colors: colors}, nil
}

// Empty returns a valid cloud with no points.
func Empty() *PointCloud {
	pc, _ := New(nil, nil, nil)
	return pc
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	return len(pc.Positions)
}

// IsEmpty returns true if the cloud has no points.
func (pc *PointCloud) IsEmpty() bool {
	return len(pc.Positions) == 0
}

// IsValid reports whether the cloud is usable: not released, all three
// arrays present and of equal length.
func (pc *PointCloud) IsValid() bool {
	if pc == nil || pc.released {
		return false
	}
	if pc.Positions == nil || pc.Normals == nil || pc.Colors == nil {
		return false
	}
	n := len(pc.Positions)
	return len(pc.Normals) == n && len(pc.Colors) == n
}

// Release drops the backing arrays. Releasing twice returns ErrReleased.
func (pc *PointCloud) Release() error {
	if pc.released {
		return ErrReleased
	}
	pc.Positions = nil
	pc.Normals = nil
	pc.Colors = nil
	pc.released = true
	return nil
}

// Released reports whether Release has been called.
func (pc *PointCloud) Released() bool {
	return pc.released
}

// Bounds returns the axis-aligned bounding box of the positions. An empty
// cloud has a zero box.
func (pc *PointCloud) Bounds() sdf.Box3 {
	if len(pc.Positions) == 0 {
		return sdf.Box3{}
	}
	lo, hi := pc.Positions[0], pc.Positions[0]
	for _, p := range pc.Positions[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return sdf.Box3{Min: lo, Max: hi}
}
