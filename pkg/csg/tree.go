// Package csg holds the constructive solid geometry tree: canonical shapes
// at the leaves, boolean operators at the internal nodes, and the affine
// transforms accumulated on every node.
//
// Each node keeps three matrices. Forward maps the node's local frame to
// its parent's frame and is applied to sampled positions. Inverse maps a
// parent-frame point back into the local frame for containment tests.
// Normal is applied to sampled normals. All three start as identity.
package csg

import (
	"errors"
	"fmt"

	"github.com/chazu/csgcloud/pkg/kernel"
	"github.com/chazu/csgcloud/pkg/shape"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrUnknownOperator is reported for an operator outside the known set.
	ErrUnknownOperator = errors.New("csg: unknown operator")
	// ErrAlreadyAttached is returned when a subtree is given a second parent.
	ErrAlreadyAttached = errors.New("csg: subtree already attached to a parent")
	// ErrReleased is returned when a released tree is used or released again.
	ErrReleased = errors.New("csg: tree already released")
	// ErrNilChild is returned when an internal node is missing a child.
	ErrNilChild = errors.New("csg: nil child")
	// ErrSameChild is returned when both children are the same subtree.
	ErrSameChild = errors.New("csg: left and right children are the same subtree")
)

// Tree is either a leaf wrapping one shape or an internal node combining
// two subtrees. A tree exclusively owns its children.
type Tree struct {
	shape *shape.Shape

	op          Operator
	left, right *Tree

	forward kernel.Mat4
	inverse kernel.Mat4
	normal  kernel.Mat4

	attached bool
	released bool
}

// NewLeaf wraps a valid shape in a leaf node.
func NewLeaf(s *shape.Shape) (*Tree, error) {
	if err := s.Valid(); err != nil {
		return nil, fmt.Errorf("csg: leaf: %w", err)
	}
	return &Tree{
		shape:   s,
		forward: kernel.Identity(),
		inverse: kernel.Identity(),
		normal:  kernel.Identity(),
	}, nil
}

// NewNode combines left and right under op. Both children become owned by
// the new node and cannot be attached anywhere else.
func NewNode(op Operator, left, right *Tree) (*Tree, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, int(op))
	}
	if left == nil || right == nil {
		return nil, ErrNilChild
	}
	if left == right {
		return nil, ErrSameChild
	}
	for _, c := range []*Tree{left, right} {
		if c.attached {
			return nil, ErrAlreadyAttached
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("csg: %s child: %w", op, err)
		}
	}
	left.attached = true
	right.attached = true
	return &Tree{
		op:      op,
		left:    left,
		right:   right,
		forward: kernel.Identity(),
		inverse: kernel.Identity(),
		normal:  kernel.Identity(),
	}, nil
}

// IsLeaf reports whether t wraps a shape.
func (t *Tree) IsLeaf() bool { return t.shape != nil }

// Shape returns the leaf shape, or nil for an internal node.
func (t *Tree) Shape() *shape.Shape { return t.shape }

// Op returns the operator of an internal node. It is meaningless on a leaf.
func (t *Tree) Op() Operator { return t.op }

// Left returns the left child, or nil for a leaf.
func (t *Tree) Left() *Tree { return t.left }

// Right returns the right child, or nil for a leaf.
func (t *Tree) Right() *Tree { return t.right }

// Forward returns the local-to-parent transform.
func (t *Tree) Forward() kernel.Mat4 { return t.forward }

// Inverse returns the parent-to-local transform.
func (t *Tree) Inverse() kernel.Mat4 { return t.inverse }

// Normal returns the transform applied to sampled normals.
func (t *Tree) Normal() kernel.Mat4 { return t.normal }

// Attached reports whether t is owned by a parent node.
func (t *Tree) Attached() bool { return t.attached }

// Released reports whether Release has been called on t.
func (t *Tree) Released() bool { return t.released }

// Leaves returns the leaf nodes below t, left to right.
func (t *Tree) Leaves() []*Tree {
	var out []*Tree
	t.walk(func(n *Tree) {
		if n.IsLeaf() {
			out = append(out, n)
		}
	})
	return out
}

// Count returns the number of nodes in t.
func (t *Tree) Count() int {
	n := 0
	t.walk(func(*Tree) { n++ })
	return n
}

// Depth returns the height of t; a single leaf has depth 1.
func (t *Tree) Depth() int {
	if t == nil {
		return 0
	}
	if t.IsLeaf() {
		return 1
	}
	return 1 + max(t.left.Depth(), t.right.Depth())
}

// walk visits t in pre-order.
func (t *Tree) walk(fn func(*Tree)) {
	if t == nil {
		return
	}
	fn(t)
	t.left.walk(fn)
	t.right.walk(fn)
}

// Contains reports whether p, given in the parent frame of t, lies inside
// the solid described by t. It panics on a released tree or an unknown
// operator; neither can be produced through the constructors.
func (t *Tree) Contains(p v3.Vec) bool {
	if t.released {
		panic(ErrReleased)
	}
	q := t.inverse.MulPoint(p)
	if t.IsLeaf() {
		return t.shape.Contains(q)
	}
	switch t.op {
	case Union, Identity:
		return t.left.Contains(q) || t.right.Contains(q)
	case Intersection:
		return t.left.Contains(q) && t.right.Contains(q)
	case Difference:
		return t.left.Contains(q) && !t.right.Contains(q)
	default:
		panic(fmt.Errorf("%w: %d", ErrUnknownOperator, int(t.op)))
	}
}

// Release tears down t and everything below it, children first. A second
// call reports ErrReleased.
func (t *Tree) Release() error {
	if t.released {
		return ErrReleased
	}
	var errs []error
	for _, c := range []*Tree{t.left, t.right} {
		if c == nil {
			continue
		}
		if err := c.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	t.shape = nil
	t.left, t.right = nil, nil
	t.released = true
	return errors.Join(errs...)
}
