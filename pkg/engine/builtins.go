package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpColor wraps an RGBA color built by (rgba ...).
type sexpColor struct {
	c pointcloud.Color
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(rgba %g %g %g %g)", c.c.R, c.c.G, c.c.B, c.c.A)
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a triple built by (vec3 ...).
type sexpVec3 struct {
	x, y, z float64
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.x, v.y, v.z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpTree wraps a CSG subtree returned by a shape or operator builtin.
type sexpTree struct {
	tree *csg.Tree
}

func (t *sexpTree) SexpString(ps *zygo.PrintState) string {
	if t.tree.IsLeaf() {
		return fmt.Sprintf("(%s)", t.tree.Shape().Kind())
	}
	return fmt.Sprintf("(%s ...%d nodes)", t.tree.Op(), t.tree.Count())
}
func (t *sexpTree) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// unknownKeywords returns an error naming the first keyword not in allowed.
func (a kwArgs) unknownKeywords(allowed ...string) error {
	for name := range a.kw {
		found := false
		for _, ok := range allowed {
			if name == ok {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown option :%s", name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (*sexpVec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toScale accepts either a vec3 or a single number for uniform scaling.
func toScale(s zygo.Sexp) (*sexpVec3, error) {
	if f, err := toFloat64(s); err == nil {
		return &sexpVec3{f, f, f}, nil
	}
	v, err := toVec3(s)
	if err != nil {
		return nil, errors.New("expected number or vec3")
	}
	return v, nil
}

func toColor(s zygo.Sexp) (pointcloud.Color, error) {
	if c, ok := s.(*sexpColor); ok {
		return c.c, nil
	}
	return pointcloud.Color{}, fmt.Errorf("expected rgba, got %T (%s)", s, s.SexpString(nil))
}

func toTree(s zygo.Sexp) (*csg.Tree, error) {
	if t, ok := s.(*sexpTree); ok {
		return t.tree, nil
	}
	return nil, fmt.Errorf("expected shape or operator, got %T (%s)", s, s.SexpString(nil))
}

func degrees(d float64) float64 {
	return d * math.Pi / 180
}

// ---------------------------------------------------------------------------
// Scene state
// ---------------------------------------------------------------------------

// defaultColor is used by shapes without a :color option.
var defaultColor = pointcloud.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}

// builder collects the trees created during one evaluation.
type builder struct {
	trees []*csg.Tree
	scene *csg.Tree
}

func (b *builder) add(t *csg.Tree) *sexpTree {
	b.trees = append(b.trees, t)
	return &sexpTree{tree: t}
}

// dangling counts trees that were built but never attached to a parent,
// other than root.
func (b *builder) dangling(root *csg.Tree) int {
	n := 0
	for _, t := range b.trees {
		if t != root && !t.Attached() {
			n++
		}
	}
	return n
}

// placementOptions are accepted by every tree-producing builtin.
var placementOptions = []string{"at", "rotate", "scale"}

// place applies :at, :rotate (degrees) and :scale to t, in that order.
func place(t *csg.Tree, pa kwArgs) error {
	if v, ok := pa.kw["at"]; ok {
		at, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("at: %w", err)
		}
		t.Translate(at.x, at.y, at.z)
	}
	if v, ok := pa.kw["rotate"]; ok {
		r, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
		t.Rotate(degrees(r.x), degrees(r.y), degrees(r.z))
	}
	if v, ok := pa.kw["scale"]; ok {
		s, err := toScale(v)
		if err != nil {
			return fmt.Errorf("scale: %w", err)
		}
		if err := t.Homothety(s.x, s.y, s.z); err != nil {
			return fmt.Errorf("scale: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the CSG DSL builtins into env. Source must be
// run through preprocessSource first so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (rgba 1 0 0 1)
	env.AddFunction("rgba", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rgba requires exactly 4 arguments, got %d", len(args))
		}
		var c [4]float32
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rgba: component %d: %w", i+1, err)
			}
			c[i] = float32(f)
		}
		return &sexpColor{c: pointcloud.Color{R: c[0], G: c[1], B: c[2], A: c[3]}}, nil
	})

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			v[i] = f
		}
		return &sexpVec3{v[0], v[1], v[2]}, nil
	})

	// (sphere :color (rgba ...) :at (vec3 ...) :rotate (vec3 ...) :scale 2)
	// and likewise cube, cylinder, cone; torus also takes :radius.
	for k := shape.Sphere; k <= shape.Torus; k++ {
		kind := k
		env.AddFunction(kind.String(), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			allowed := append([]string{"color"}, placementOptions...)
			if kind == shape.Torus {
				allowed = append(allowed, "radius")
			}
			if err := pa.unknownKeywords(allowed...); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			if len(pa.positional) > 0 {
				return zygo.SexpNull, fmt.Errorf("%s takes only keyword options", name)
			}

			c := defaultColor
			if v, ok := pa.kw["color"]; ok {
				var err error
				if c, err = toColor(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: color: %w", name, err)
				}
			}
			var radius float64
			if kind == shape.Torus {
				v, ok := pa.kw["radius"]
				if !ok {
					return zygo.SexpNull, fmt.Errorf("torus requires :radius")
				}
				var err error
				if radius, err = toFloat64(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("torus: radius: %w", err)
				}
			}

			s, err := shape.New(kind, c, radius)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			t, err := csg.NewLeaf(s)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			if err := place(t, pa); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return b.add(t), nil
		})
	}

	// (union a b c ... :at (vec3 ...)) folds left: (union (union a b) c).
	for op := csg.Union; op <= csg.Identity; op++ {
		env.AddFunction(op.String(), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if err := pa.unknownKeywords(placementOptions...); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			if len(pa.positional) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 operands, got %d", name, len(pa.positional))
			}
			operands := make([]*csg.Tree, len(pa.positional))
			for i, a := range pa.positional {
				t, err := toTree(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", name, i+1, err)
				}
				operands[i] = t
			}

			acc := operands[0]
			for i, right := range operands[1:] {
				n, err := csg.NewNode(op, acc, right)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", name, i+2, err)
				}
				b.trees = append(b.trees, n)
				acc = n
			}
			if err := place(acc, pa); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return &sexpTree{tree: acc}, nil
		})
	}

	// (place tree :at (vec3 ...) :rotate (vec3 ...) :scale ...) transforms
	// an existing tree in place and returns it.
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords(placementOptions...); err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires one shape or operator")
		}
		t, err := toTree(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		if err := place(t, pa); err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		return pa.positional[0], nil
	})

	// (scene tree) marks the tree to evaluate.
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("scene requires exactly 1 argument, got %d", len(args))
		}
		t, err := toTree(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %w", err)
		}
		if b.scene != nil {
			return zygo.SexpNull, fmt.Errorf("scene: already set")
		}
		if t.Attached() {
			return zygo.SexpNull, fmt.Errorf("scene: %w", csg.ErrAlreadyAttached)
		}
		b.scene = t
		return args[0], nil
	})
}
