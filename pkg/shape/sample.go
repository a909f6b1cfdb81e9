package shape

import (
	"fmt"
	"math"

	"github.com/chazu/csgcloud/pkg/kernel"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Rand is the uniform source the samplers draw from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// uniform draws from [lo, hi).
func uniform(r Rand, lo, hi float64) float64 {
	return r.Float64()*(hi-lo) + lo
}

// torusSeam widens the tube-angle range past ±π.
const torusSeam = 0.2

// MaxCount caps every per-part count so sums of counts cannot overflow.
// No cloud that large fits in memory.
const MaxCount = 1 << 40

// count truncates x toward zero, saturating at MaxCount.
func count(x float64) int {
	if !(x < MaxCount) {
		return MaxCount
	}
	return int(x)
}

// ExpectedCount returns the number of points Sample produces at the given
// density for the current scale. Counts follow an approximate surface area
// and are truncated toward zero. Each part of the count saturates at
// MaxCount.
func (s *Shape) ExpectedCount(density int) int {
	d := float64(density)
	sx, sy, sz := s.Scale()
	switch s.kind {
	case Sphere:
		return sphereCount(d, sx, sy, sz)
	case Cube:
		xf, yf, zf := cubeFaces(d, sx, sy, sz)
		return 2 * (xf + yf + zf)
	case Cylinder:
		side, face := cylinderCounts(d, sx, sy, sz)
		return side + 2*face
	case Cone:
		side, face := coneCounts(d, sx, sy, sz)
		return side + face
	case Torus:
		return torusCount(d, sx, sy, sz, s.args[0])
	default:
		return 0
	}
}

func sphereCount(d, sx, sy, sz float64) int {
	a, b, c := sortDesc(sx, sy, sz)
	c2 := c * c
	if a == c {
		return count(d * 4 * math.Pi * c2)
	}
	e := math.Sqrt(a*a - c2)
	return count(d * 2 * math.Pi * (c2 + b*c2/e + b*e))
}

// sortDesc returns its arguments ordered a >= b >= c.
func sortDesc(a, b, c float64) (float64, float64, float64) {
	if a < b {
		a, b = b, a
	}
	if a < c {
		a, c = c, a
	}
	if b < c {
		b, c = c, b
	}
	return a, b, c
}

func cubeFaces(d, sx, sy, sz float64) (xface, yface, zface int) {
	return count(4 * d * sy * sz), count(4 * d * sx * sz), count(4 * d * sx * sy)
}

func cylinderCounts(d, sx, sy, sz float64) (side, face int) {
	face = count(d * math.Pi * sx * sy)
	side = count(d * 2 * sz * math.Pi * math.Sqrt(2*(sx*sx+sy*sy)))
	return side, face
}

func coneCounts(d, sx, sy, sz float64) (side, face int) {
	r := sx * sy
	b := d * math.Pi * r
	return count(b * math.Sqrt(1+4*sz*sz/r)), count(b)
}

func torusCount(d, sx, sy, sz, r float64) int {
	rz := r * sz
	rxy := r * (sx + sy) / 2
	return count(d * 2 * math.Pi * math.Pi * math.Sqrt((sx*sx+sy*sy)/2) * math.Sqrt(2*(rz*rz+rxy*rxy)))
}

// emitter maps unit-frame samples into the output frame.
type emitter struct {
	forward kernel.Mat4
	normal  kernel.Mat4
	color   pointcloud.Color
	b       *pointcloud.Builder
}

func (e *emitter) emit(p, n v3.Vec) {
	e.b.Add(e.forward.MulPoint(p), e.normal.MulNormal(n), e.color)
}

// Sample draws surface points of the shape. Raw samples live in the unit
// frame; positions are mapped through forward and normals through normal.
func (s *Shape) Sample(r Rand, density int, forward, normal kernel.Mat4) (*pointcloud.PointCloud, error) {
	if density <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNonPositiveDensity, density)
	}
	if err := s.Valid(); err != nil {
		return nil, err
	}
	n := s.ExpectedCount(density)
	if n >= MaxCount {
		return nil, fmt.Errorf("%w: %s at density %d", ErrTooManyPoints, s.kind, density)
	}
	e := &emitter{forward: forward, normal: normal, color: s.color, b: pointcloud.NewBuilder(n)}
	d := float64(density)
	sx, sy, sz := s.Scale()

	switch s.kind {
	case Sphere:
		sampleSphere(r, e, n)
	case Cube:
		xf, yf, zf := cubeFaces(d, sx, sy, sz)
		sampleCube(r, e, xf, yf, zf)
	case Cylinder:
		side, face := cylinderCounts(d, sx, sy, sz)
		sampleCylinder(r, e, side, face)
	case Cone:
		side, face := coneCounts(d, sx, sy, sz)
		sampleCone(r, e, side, face)
	case Torus:
		sampleTorus(r, e, n, s.args[0])
	}
	return e.b.Build(), nil
}

// sampleSphere draws the polar angle as U(0,π)+U(0,π)/2, which crowds
// points toward the poles.
func sampleSphere(r Rand, e *emitter, n int) {
	for i := 0; i < n; i++ {
		alpha := uniform(r, 0, 2*math.Pi)
		phi := uniform(r, 0, math.Pi) + uniform(r, 0, math.Pi)/2
		sinPhi := math.Sin(phi)
		p := v3.Vec{X: math.Cos(alpha) * sinPhi, Y: math.Sin(alpha) * sinPhi, Z: math.Cos(phi)}
		e.emit(p, p)
	}
}

var faceSigns = [2]float64{-1, 1}

func sampleCube(r Rand, e *emitter, xface, yface, zface int) {
	for i := 0; i < zface; i++ {
		for _, z := range faceSigns {
			x := uniform(r, -1, 1)
			y := uniform(r, -1, 1)
			e.emit(v3.Vec{X: x, Y: y, Z: z}, v3.Vec{Z: z})
		}
	}
	for i := 0; i < yface; i++ {
		for _, y := range faceSigns {
			x := uniform(r, -1, 1)
			z := uniform(r, -1, 1)
			e.emit(v3.Vec{X: x, Y: y, Z: z}, v3.Vec{Y: y})
		}
	}
	for i := 0; i < xface; i++ {
		for _, x := range faceSigns {
			y := uniform(r, -1, 1)
			z := uniform(r, -1, 1)
			e.emit(v3.Vec{X: x, Y: y, Z: z}, v3.Vec{X: x})
		}
	}
}

// sampleDisk fills count points on the unit disk at height z by rejection.
func sampleDisk(r Rand, e *emitter, count int, z float64) {
	for i := 0; i < count; {
		x := uniform(r, -1, 1)
		y := uniform(r, -1, 1)
		if x*x+y*y > 1 {
			continue
		}
		e.emit(v3.Vec{X: x, Y: y, Z: z}, v3.Vec{Z: z})
		i++
	}
}

func sampleCylinder(r Rand, e *emitter, side, face int) {
	for i := 0; i < side; i++ {
		z := uniform(r, -1, 1)
		alpha := uniform(r, 0, 2*math.Pi)
		c, s := math.Cos(alpha), math.Sin(alpha)
		e.emit(v3.Vec{X: c, Y: s, Z: z}, v3.Vec{X: c, Y: s})
	}
	for _, z := range faceSigns {
		sampleDisk(r, e, face, z)
	}
}

// sampleCone draws heights as 2(1-√U)-1, denser toward the apex side of
// the distribution than a uniform area sample would be.
func sampleCone(r Rand, e *emitter, side, face int) {
	for i := 0; i < side; i++ {
		z := 2*(1-math.Sqrt(uniform(r, 0, 1))) - 1
		alpha := uniform(r, 0, 2*math.Pi)
		rz := (1 - z) / 2
		c, s := math.Cos(alpha), math.Sin(alpha)
		e.emit(v3.Vec{X: rz * c, Y: rz * s, Z: z}, v3.Vec{X: c, Y: s, Z: 1})
	}
	sampleDisk(r, e, face, -1)
}

func sampleTorus(r Rand, e *emitter, n int, radius float64) {
	delta := math.Pi + torusSeam
	for i := 0; i < n; i++ {
		phi := uniform(r, -delta, delta) + uniform(r, -delta, delta)
		alpha := uniform(r, 0, 2*math.Pi)
		cp, sp := math.Cos(phi), math.Sin(phi)
		ca, sa := math.Cos(alpha), math.Sin(alpha)
		ring := 1 + radius*cp
		e.emit(
			v3.Vec{X: ring * ca, Y: ring * sa, Z: radius * sp},
			v3.Vec{X: cp * ca, Y: cp * sa, Z: sp},
		)
	}
}
