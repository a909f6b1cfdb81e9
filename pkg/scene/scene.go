// Package scene reads the line-oriented scene format. A scene is one CSG
// tree written in pre-order, one node per line:
//
//	union (tx,ty,tz) (rx,ry,rz) (hx,hy,hz)
//	sphere (r,g,b,a) (tx,ty,tz) (rx,ry,rz) (hx,hy,hz)
//	torus R (r,g,b,a) (tx,ty,tz) (rx,ry,rz) (hx,hy,hz)
//
// An operator line (union, intersection, difference, identity) is followed
// by its left subtree and then its right subtree. Every node is translated,
// then rotated (radians, X then Y then Z), then scaled. Blank lines and
// lines starting with '#' are ignored.
package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
)

// Error is a parse failure at a given line. Line is 1-based; 0 means the
// failure is not tied to a line.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return "scene: " + e.Message
	}
	return fmt.Sprintf("scene: line %d: %s", e.Line, e.Message)
}

// Density presets, in points per unit of surface area.
const (
	DensityLow    = 5000
	DensityMedium = 20000
	DensityHigh   = 100000
)

// Density maps a preset name or a positive integer to a density.
func Density(token string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "low":
		return DensityLow, nil
	case "medium":
		return DensityMedium, nil
	case "high":
		return DensityHigh, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("scene: bad density %q: want low, medium, high or a positive integer", token)
	}
	return n, nil
}

type line struct {
	num  int
	text string
}

type parser struct {
	lines []line
	pos   int
	last  int // last line number read, for end-of-file errors
}

// Parse reads one scene tree from r.
func Parse(r io.Reader) (*csg.Tree, error) {
	p := &parser{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		p.last = n
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p.lines = append(p.lines, line{num: n, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scene: read: %w", err)
	}

	tree, err := p.node()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.lines) {
		_ = tree.Release()
		return nil, &Error{Line: p.lines[p.pos].num, Message: "unexpected content after the root node"}
	}
	return tree, nil
}

// ParseString reads one scene tree from s.
func ParseString(s string) (*csg.Tree, error) {
	return Parse(strings.NewReader(s))
}

func (p *parser) node() (*csg.Tree, error) {
	if p.pos >= len(p.lines) {
		return nil, &Error{Line: p.last, Message: "unexpected end of file"}
	}
	ln := p.lines[p.pos]
	p.pos++

	token, rest := splitToken(ln.text)
	if op, err := csg.ParseOperator(token); err == nil {
		return p.operator(ln, op, rest)
	}
	if kind, err := shape.ParseKind(token); err == nil {
		return p.leaf(ln, kind, rest)
	}
	return nil, &Error{Line: ln.num, Message: fmt.Sprintf("invalid token %q", token)}
}

func (p *parser) operator(ln line, op csg.Operator, args string) (*csg.Tree, error) {
	left, err := p.node()
	if err != nil {
		return nil, err
	}
	right, err := p.node()
	if err != nil {
		_ = left.Release()
		return nil, err
	}
	tree, err := csg.NewNode(op, left, right)
	if err != nil {
		_ = left.Release()
		_ = right.Release()
		return nil, &Error{Line: ln.num, Message: err.Error()}
	}
	groups, err := tuples(args, 3, 3, 3)
	if err != nil {
		_ = tree.Release()
		return nil, &Error{Line: ln.num, Message: "invalid operator arguments: " + err.Error()}
	}
	if err := place(tree, groups); err != nil {
		_ = tree.Release()
		return nil, &Error{Line: ln.num, Message: err.Error()}
	}
	return tree, nil
}

func (p *parser) leaf(ln line, kind shape.Kind, args string) (*csg.Tree, error) {
	var radius float64
	if kind == shape.Torus {
		head, rest := splitToken(args)
		r, err := strconv.ParseFloat(head, 64)
		if err != nil {
			return nil, &Error{Line: ln.num, Message: fmt.Sprintf("invalid torus radius %q", head)}
		}
		radius, args = r, rest
	}
	groups, err := tuples(args, 4, 3, 3, 3)
	if err != nil {
		return nil, &Error{Line: ln.num, Message: "invalid shape arguments: " + err.Error()}
	}
	c := groups[0]
	s, err := shape.New(kind, pointcloud.Color{
		R: float32(c[0]), G: float32(c[1]), B: float32(c[2]), A: float32(c[3]),
	}, radius)
	if err != nil {
		return nil, &Error{Line: ln.num, Message: err.Error()}
	}
	tree, err := csg.NewLeaf(s)
	if err != nil {
		return nil, &Error{Line: ln.num, Message: err.Error()}
	}
	if err := place(tree, groups[1:]); err != nil {
		_ = tree.Release()
		return nil, &Error{Line: ln.num, Message: err.Error()}
	}
	return tree, nil
}

// splitToken splits off the first whitespace-delimited word of s.
func splitToken(s string) (token, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// place applies translate, rotate and homothety groups in that order.
func place(t *csg.Tree, g [][]float64) error {
	tr, rot, h := g[0], g[1], g[2]
	t.Translate(tr[0], tr[1], tr[2])
	t.Rotate(rot[0], rot[1], rot[2])
	return t.Homothety(h[0], h[1], h[2])
}

// tuples parses a run of parenthesized, comma-separated numbers such as
// "(1,0,0,1) (0,0,0)". sizes gives the expected arity of each group.
func tuples(s string, sizes ...int) ([][]float64, error) {
	out := make([][]float64, 0, len(sizes))
	s = strings.TrimSpace(s)
	for i, n := range sizes {
		if !strings.HasPrefix(s, "(") {
			return nil, fmt.Errorf("group %d: want '(', got %q", i+1, s)
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return nil, fmt.Errorf("group %d: missing ')'", i+1)
		}
		fields := strings.Split(s[1:end], ",")
		if len(fields) != n {
			return nil, fmt.Errorf("group %d: want %d values, got %d", i+1, n, len(fields))
		}
		vals := make([]float64, n)
		for j, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("group %d: bad number %q", i+1, strings.TrimSpace(f))
			}
			vals[j] = v
		}
		out = append(out, vals)
		s = strings.TrimSpace(s[end+1:])
	}
	if s != "" {
		return nil, fmt.Errorf("unexpected trailing %q", s)
	}
	return out, nil
}
