// Package shape implements the canonical CSG primitives: sphere, cube,
// cylinder, cone and torus. Each shape is defined in a unit local frame
// (radius 1, or spanning [-1,1] on every axis) and carries the cumulative
// axis scale applied to it, which drives how densely it is sampled.
package shape

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/csgcloud/pkg/pointcloud"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrNonPositiveScale is returned when a scale factor is zero or negative.
	ErrNonPositiveScale = errors.New("shape: scale factors must be positive")
	// ErrNonPositiveDensity is returned when sampling with density <= 0.
	ErrNonPositiveDensity = errors.New("shape: density must be positive")
	// ErrInvalidRadius is returned for a torus whose tube radius is not positive.
	ErrInvalidRadius = errors.New("shape: torus radius must be positive")
	// ErrUnknownKind is returned for a kind outside the five canonical shapes.
	ErrUnknownKind = errors.New("shape: unknown kind")
	// ErrTooManyPoints is returned when a shape is scaled so far that its
	// point count saturates.
	ErrTooManyPoints = errors.New("shape: too many points")
)

// Kind enumerates the canonical shapes.
type Kind int

const (
	Sphere Kind = iota
	Cube
	Cylinder
	Cone
	Torus

	numKinds
)

func (k Kind) String() string {
	switch k {
	case Sphere:
		return "sphere"
	case Cube:
		return "cube"
	case Cylinder:
		return "cylinder"
	case Cone:
		return "cone"
	case Torus:
		return "torus"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the canonical kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for k := Sphere; k < numKinds; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Shape is one canonical primitive with its color and cumulative scale.
type Shape struct {
	kind  Kind
	color pointcloud.Color
	scale [3]float64
	args  []float64 // torus: [tube radius]
}

func newShape(k Kind, c pointcloud.Color, args []float64) *Shape {
	return &Shape{kind: k, color: c, scale: [3]float64{1, 1, 1}, args: args}
}

// NewSphere returns a unit sphere.
func NewSphere(c pointcloud.Color) *Shape { return newShape(Sphere, c, nil) }

// NewCube returns a cube spanning [-1,1] on every axis.
func NewCube(c pointcloud.Color) *Shape { return newShape(Cube, c, nil) }

// NewCylinder returns a cylinder of radius 1 along Z, z in [-1,1].
func NewCylinder(c pointcloud.Color) *Shape { return newShape(Cylinder, c, nil) }

// NewCone returns a cone along Z with its base disk (radius 1) at z=-1 and
// its apex at z=1.
func NewCone(c pointcloud.Color) *Shape { return newShape(Cone, c, nil) }

// NewTorus returns a torus around Z with ring radius 1 and the given tube
// radius, expressed as a fraction of the ring radius.
func NewTorus(c pointcloud.Color, radius float64) (*Shape, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidRadius, radius)
	}
	return newShape(Torus, c, []float64{radius}), nil
}

// New returns a shape of the given kind. radius is only read for Torus.
func New(k Kind, c pointcloud.Color, radius float64) (*Shape, error) {
	switch k {
	case Sphere:
		return NewSphere(c), nil
	case Cube:
		return NewCube(c), nil
	case Cylinder:
		return NewCylinder(c), nil
	case Cone:
		return NewCone(c), nil
	case Torus:
		return NewTorus(c, radius)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
}

// Kind returns the shape kind.
func (s *Shape) Kind() Kind { return s.kind }

// Color returns the shape color.
func (s *Shape) Color() pointcloud.Color { return s.color }

// Scale returns the cumulative scale factors.
func (s *Shape) Scale() (x, y, z float64) {
	return s.scale[0], s.scale[1], s.scale[2]
}

// Radius returns the torus tube radius, or 0 for other kinds.
func (s *Shape) Radius() float64 {
	if s.kind != Torus || len(s.args) == 0 {
		return 0
	}
	return s.args[0]
}

// Valid returns nil if the shape satisfies its invariants.
func (s *Shape) Valid() error {
	if s == nil {
		return errors.New("shape: nil shape")
	}
	if !s.kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(s.kind))
	}
	for _, f := range s.scale {
		if !(f > 0) {
			return fmt.Errorf("%w: %v", ErrNonPositiveScale, s.scale)
		}
	}
	if s.kind == Torus && (len(s.args) != 1 || !(s.args[0] > 0)) {
		return ErrInvalidRadius
	}
	return nil
}

// Rescale multiplies the stored scale factors. Calls compound.
func (s *Shape) Rescale(x, y, z float64) error {
	if !(x > 0 && y > 0 && z > 0) {
		return fmt.Errorf("%w: got (%g, %g, %g)", ErrNonPositiveScale, x, y, z)
	}
	s.scale[0] *= x
	s.scale[1] *= y
	s.scale[2] *= z
	return nil
}

// Contains reports whether p, given in the unit local frame, lies inside
// or on the shape.
func (s *Shape) Contains(p v3.Vec) bool {
	switch s.kind {
	case Sphere:
		return p.X*p.X+p.Y*p.Y+p.Z*p.Z <= 1
	case Cube:
		return math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))) <= 1
	case Cylinder:
		return math.Abs(p.Z) <= 1 && p.X*p.X+p.Y*p.Y <= 1
	case Cone:
		rz := 1 - p.Z
		return math.Abs(p.Z) <= 1 && p.X*p.X+p.Y*p.Y <= rz*rz/4
	case Torus:
		r := s.args[0]
		xy := p.X*p.X + p.Y*p.Y
		q := xy + p.Z*p.Z + 1 - r*r
		return q*q <= 4*xy
	default:
		panic(fmt.Sprintf("shape: contains on unknown kind %d", int(s.kind)))
	}
}
