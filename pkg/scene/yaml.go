package scene

import (
	"errors"
	"fmt"
	"io"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
	"gopkg.in/yaml.v3"
)

// yamlNode is one tree node in the YAML scene form. Exactly one of Op and
// Shape is set. Rotations are radians, as in the line format.
//
//	op: difference
//	left:
//	  shape: cube
//	  color: [0.8, 0.2, 0.2, 1]
//	right:
//	  shape: cylinder
//	  scale: [0.5, 0.5, 2]
type yamlNode struct {
	Op     string    `yaml:"op"`
	Shape  string    `yaml:"shape"`
	Radius float64   `yaml:"radius"`
	Color  []float64 `yaml:"color"`
	At     []float64 `yaml:"at"`
	Rotate []float64 `yaml:"rotate"`
	Scale  []float64 `yaml:"scale"`
	Left   yaml.Node `yaml:"left"`
	Right  yaml.Node `yaml:"right"`
}

// ParseYAML reads one scene tree written as nested YAML mappings.
func ParseYAML(r io.Reader) (*csg.Tree, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Message: "unexpected end of file"}
		}
		return nil, &Error{Message: err.Error()}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, &Error{Line: root.Line, Message: "unexpected end of file"}
		}
		root = root.Content[0]
	}
	return buildYAML(root, "root")
}

// child returns nil for a field that was absent from the mapping.
func child(n *yaml.Node) *yaml.Node {
	if n.Kind == 0 {
		return nil
	}
	return n
}

func buildYAML(n *yaml.Node, path string) (*csg.Tree, error) {
	if n == nil {
		return nil, &Error{Message: path + ": missing node"}
	}
	fail := func(format string, args ...any) error {
		return &Error{Line: n.Line, Message: path + ": " + fmt.Sprintf(format, args...)}
	}

	var spec yamlNode
	if err := n.Decode(&spec); err != nil {
		return nil, fail("%v", err)
	}

	var tree *csg.Tree
	switch {
	case spec.Op != "" && spec.Shape != "":
		return nil, fail("node has both op and shape")
	case spec.Op != "":
		op, err := csg.ParseOperator(spec.Op)
		if err != nil {
			return nil, fail("invalid token %q", spec.Op)
		}
		left, err := buildYAML(child(&spec.Left), path+".left")
		if err != nil {
			return nil, err
		}
		right, err := buildYAML(child(&spec.Right), path+".right")
		if err != nil {
			_ = left.Release()
			return nil, err
		}
		if tree, err = csg.NewNode(op, left, right); err != nil {
			return nil, fail("%v", err)
		}
	case spec.Shape != "":
		kind, err := shape.ParseKind(spec.Shape)
		if err != nil {
			return nil, fail("invalid token %q", spec.Shape)
		}
		if child(&spec.Left) != nil || child(&spec.Right) != nil {
			return nil, fail("shape node has children")
		}
		c := pointcloud.Color{R: 1, G: 1, B: 1, A: 1}
		if spec.Color != nil {
			if len(spec.Color) != 4 {
				return nil, fail("color wants 4 values, got %d", len(spec.Color))
			}
			c = pointcloud.Color{
				R: float32(spec.Color[0]), G: float32(spec.Color[1]),
				B: float32(spec.Color[2]), A: float32(spec.Color[3]),
			}
		}
		s, err := shape.New(kind, c, spec.Radius)
		if err != nil {
			return nil, fail("%v", err)
		}
		if tree, err = csg.NewLeaf(s); err != nil {
			return nil, fail("%v", err)
		}
	default:
		return nil, fail("node needs an op or a shape")
	}

	groups := make([][]float64, 3)
	for i, g := range []struct {
		name string
		v    []float64
		def  float64
	}{
		{"at", spec.At, 0},
		{"rotate", spec.Rotate, 0},
		{"scale", spec.Scale, 1},
	} {
		switch len(g.v) {
		case 0:
			groups[i] = []float64{g.def, g.def, g.def}
		case 3:
			groups[i] = g.v
		default:
			_ = tree.Release()
			return nil, fail("%s wants 3 values, got %d", g.name, len(g.v))
		}
	}
	if err := place(tree, groups); err != nil {
		_ = tree.Release()
		return nil, fail("%v", err)
	}
	return tree, nil
}
