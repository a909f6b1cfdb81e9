package pointcloud

import v3 "github.com/deadsy/sdfx/vec/v3"

// Builder accumulates points for a cloud. The capacity hint avoids
// regrowth when the final count is known or bounded.
type Builder struct {
	positions []v3.Vec
	normals   []v3.Vec
	colors    []Color
}

// NewBuilder returns a builder with room for capacity points.
func NewBuilder(capacity int) *Builder {
	if capacity < 0 {
		capacity = 0
	}
	return &Builder{
		positions: make([]v3.Vec, 0, capacity),
		normals:   make([]v3.Vec, 0, capacity),
		colors:    make([]Color, 0, capacity),
	}
}

// Add appends one point.
func (b *Builder) Add(p, n v3.Vec, c Color) {
	b.positions = append(b.positions, p)
	b.normals = append(b.normals, n)
	b.colors = append(b.colors, c)
}

// Len returns the number of points added so far.
func (b *Builder) Len() int {
	return len(b.positions)
}

// Build hands the accumulated arrays to a new cloud. The builder must not
// be used afterwards.
func (b *Builder) Build() *PointCloud {
	pc := &PointCloud{Positions: b.positions, Normals: b.normals, Colors: b.colors}
	b.positions, b.normals, b.colors = nil, nil, nil
	return pc
}
