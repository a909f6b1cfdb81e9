package csg

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the node itself: a leaf must hold a valid shape, an
// internal node a known operator and two children. Children are not
// descended into.
func (t *Tree) Validate() error {
	if t == nil {
		return errors.New("csg: nil tree")
	}
	if t.released {
		return ErrReleased
	}
	if t.IsLeaf() {
		if t.left != nil || t.right != nil {
			return errors.New("csg: leaf has children")
		}
		return t.shape.Valid()
	}
	if !t.op.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownOperator, int(t.op))
	}
	if t.left == nil || t.right == nil {
		return ErrNilChild
	}
	return nil
}

// ValidateDeep validates every node below t. The error names the path to
// the first failing node, e.g. "root.left.right".
func (t *Tree) ValidateDeep() error {
	return t.validateDeep([]string{"root"})
}

func (t *Tree) validateDeep(path []string) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("csg: %s: %w", strings.Join(path, "."), err)
	}
	if t.IsLeaf() {
		return nil
	}
	if err := t.left.validateDeep(append(path, "left")); err != nil {
		return err
	}
	return t.right.validateDeep(append(path, "right"))
}
