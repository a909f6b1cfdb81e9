// Package export writes point clouds in interchange formats: a compact
// JSON document with flat float32 arrays for web viewers, ASCII PLY for
// mesh tools, and plain XYZ text.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/chazu/csgcloud/pkg/pointcloud"
)

// Format selects an output encoding.
type Format int

const (
	JSON Format = iota
	PLY
	XYZ
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case PLY:
		return "ply"
	case XYZ:
		return "xyz"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the conventional file extension, with the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseFormat returns the format named s, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "ply":
		return PLY, nil
	case "xyz":
		return XYZ, nil
	}
	return 0, fmt.Errorf("export: unknown format %q (want json, ply or xyz)", s)
}

// ErrInvalidCloud is returned when asked to write a released or malformed
// cloud.
var ErrInvalidCloud = errors.New("export: invalid point cloud")

// Write encodes pc to w in the given format.
func Write(w io.Writer, pc *pointcloud.PointCloud, f Format) error {
	if !pc.IsValid() {
		return ErrInvalidCloud
	}
	switch f {
	case JSON:
		return json.NewEncoder(w).Encode(NewDocument(pc))
	case PLY:
		return writePLY(w, pc)
	case XYZ:
		return writeXYZ(w, pc)
	default:
		return fmt.Errorf("export: unknown format %d", int(f))
	}
}

// Bounds is an axis-aligned box in JSON form.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Document is the JSON encoding of a cloud. Positions, normals and colors
// are flattened: three floats per point for the first two, four for colors.
type Document struct {
	Count     int       `json:"count"`
	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals"`
	Colors    []float32 `json:"colors"`
	Bounds    Bounds    `json:"bounds"`
}

// NewDocument flattens pc into a Document.
func NewDocument(pc *pointcloud.PointCloud) *Document {
	n := pc.Len()
	d := &Document{
		Count:     n,
		Positions: make([]float32, 0, 3*n),
		Normals:   make([]float32, 0, 3*n),
		Colors:    make([]float32, 0, 4*n),
	}
	for i := 0; i < n; i++ {
		p, nr, c := pc.Positions[i], pc.Normals[i], pc.Colors[i]
		d.Positions = append(d.Positions, float32(p.X), float32(p.Y), float32(p.Z))
		d.Normals = append(d.Normals, float32(nr.X), float32(nr.Y), float32(nr.Z))
		d.Colors = append(d.Colors, c.R, c.G, c.B, c.A)
	}
	b := pc.Bounds()
	d.Bounds = Bounds{
		Min: [3]float64{b.Min.X, b.Min.Y, b.Min.Z},
		Max: [3]float64{b.Max.X, b.Max.Y, b.Max.Z},
	}
	return d
}

func writePLY(w io.Writer, pc *pointcloud.PointCloud) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment csgcloud\nelement vertex %d\n", pc.Len())
	for _, p := range []string{"x", "y", "z", "nx", "ny", "nz"} {
		fmt.Fprintf(bw, "property float %s\n", p)
	}
	for _, p := range []string{"red", "green", "blue", "alpha"} {
		fmt.Fprintf(bw, "property uchar %s\n", p)
	}
	bw.WriteString("end_header\n")
	for i, p := range pc.Positions {
		n, c := pc.Normals[i], pc.Colors[i]
		fmt.Fprintf(bw, "%g %g %g %g %g %g %d %d %d %d\n",
			float32(p.X), float32(p.Y), float32(p.Z),
			float32(n.X), float32(n.Y), float32(n.Z),
			channel(c.R), channel(c.G), channel(c.B), channel(c.A))
	}
	return bw.Flush()
}

func writeXYZ(w io.Writer, pc *pointcloud.PointCloud) error {
	bw := bufio.NewWriter(w)
	for i, p := range pc.Positions {
		n := pc.Normals[i]
		fmt.Fprintf(bw, "%g %g %g %g %g %g\n",
			float32(p.X), float32(p.Y), float32(p.Z),
			float32(n.X), float32(n.Y), float32(n.Z))
	}
	return bw.Flush()
}

// channel maps a [0,1] color component to a byte, clamping out-of-range
// values.
func channel(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(float64(v) * 255))
	}
}
