package csg

import "fmt"

// Operator is the boolean combination applied at an internal node.
type Operator int

const (
	Union Operator = iota
	Intersection
	Difference
	// Identity keeps every point of both children. Its containment test
	// behaves like Union.
	Identity

	numOperators
)

func (op Operator) String() string {
	switch op {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	case Difference:
		return "difference"
	case Identity:
		return "identity"
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

// Valid reports whether op is one of the four known operators.
func (op Operator) Valid() bool {
	return op >= 0 && op < numOperators
}

// ParseOperator returns the operator named s.
func ParseOperator(s string) (Operator, error) {
	for op := Union; op < numOperators; op++ {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}
