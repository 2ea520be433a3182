// Package filter models pushdown predicates over attribute columns.
//
// A Condition is a boolean expression evaluated by the storage engine against
// candidate rows: leaf comparisons combined with And/Or. Conditions are
// validated against the array schema before a query is submitted, so the
// engine never sees an ill-typed expression.
package filter

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gridstream/schema"
)

// ErrInvalid is returned when a condition references an unknown column or
// compares with an incompatible value type.
var ErrInvalid = errors.New("filter: invalid condition")

// Op is a comparison operator.
type Op uint8

const (
	// OpEqual matches cells equal to the operand.
	OpEqual Op = iota
	// OpNotEqual matches cells not equal to the operand.
	OpNotEqual
	// OpGreaterThan matches cells strictly greater than the operand.
	OpGreaterThan
	// OpGreaterEqual matches cells greater than or equal to the operand.
	OpGreaterEqual
	// OpLessThan matches cells strictly less than the operand.
	OpLessThan
	// OpLessEqual matches cells less than or equal to the operand.
	OpLessEqual
	// OpIn matches cells equal to any operand in the list.
	OpIn
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessEqual:
		return "<="
	case OpIn:
		return "in"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Lookup resolves one column's cell value for the row under evaluation.
// The second result is false when the cell is null.
type Lookup func(column string) (schema.Value, bool)

// Condition is a boolean expression over attribute columns.
type Condition interface {
	// Validate checks column references and operand types against the schema.
	Validate(s *schema.Schema) error

	// Matches evaluates the condition for one row.
	Matches(get Lookup) bool
}

// Comparison is a leaf condition: one column compared against one operand
// (or an operand list for OpIn).
type Comparison struct {
	Column string
	Op     Op
	Value  schema.Value
	Values []schema.Value // OpIn only
}

// Eq builds an equality comparison.
func Eq(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpEqual, Value: v}
}

// Ne builds an inequality comparison.
func Ne(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpNotEqual, Value: v}
}

// Gt builds a greater-than comparison.
func Gt(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpGreaterThan, Value: v}
}

// Ge builds a greater-or-equal comparison.
func Ge(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpGreaterEqual, Value: v}
}

// Lt builds a less-than comparison.
func Lt(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpLessThan, Value: v}
}

// Le builds a less-or-equal comparison.
func Le(column string, v schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpLessEqual, Value: v}
}

// In builds a set-membership comparison.
func In(column string, values ...schema.Value) *Comparison {
	return &Comparison{Column: column, Op: OpIn, Values: values}
}

// Validate implements Condition.
func (c *Comparison) Validate(s *schema.Schema) error {
	col, ok := s.Column(c.Column)
	if !ok {
		return fmt.Errorf("%w: unknown column %q", ErrInvalid, c.Column)
	}
	if col.IsDim {
		return fmt.Errorf("%w: column %q is a dimension; constrain it with a selection instead", ErrInvalid, c.Column)
	}

	if c.Op == OpIn {
		if len(c.Values) == 0 {
			return fmt.Errorf("%w: %q in: empty operand list", ErrInvalid, c.Column)
		}
		for _, v := range c.Values {
			if !v.AssignableTo(col.Type) {
				return fmt.Errorf("%w: %q in: operand %s not comparable to %s", ErrInvalid, c.Column, v.GoString(), col.Type)
			}
		}
		return nil
	}

	if !c.Value.AssignableTo(col.Type) {
		return fmt.Errorf("%w: %q %s %s: not comparable to %s", ErrInvalid, c.Column, c.Op, c.Value.GoString(), col.Type)
	}
	return nil
}

// Matches implements Condition. Comparisons against null cells are false,
// including OpNotEqual.
func (c *Comparison) Matches(get Lookup) bool {
	v, ok := get(c.Column)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEqual:
		return schema.Equal(v, c.Value)
	case OpNotEqual:
		return !schema.Equal(v, c.Value)
	case OpGreaterThan:
		return schema.Compare(v, c.Value) > 0
	case OpGreaterEqual:
		return schema.Compare(v, c.Value) >= 0
	case OpLessThan:
		return schema.Compare(v, c.Value) < 0
	case OpLessEqual:
		return schema.Compare(v, c.Value) <= 0
	case OpIn:
		for _, operand := range c.Values {
			if schema.Equal(v, operand) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

type conjunction struct {
	conds []Condition
}

// And combines conditions; all must match.
func And(conds ...Condition) Condition {
	return &conjunction{conds: conds}
}

func (c *conjunction) Validate(s *schema.Schema) error {
	if len(c.conds) == 0 {
		return fmt.Errorf("%w: empty conjunction", ErrInvalid)
	}
	for _, cond := range c.conds {
		if err := cond.Validate(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *conjunction) Matches(get Lookup) bool {
	for _, cond := range c.conds {
		if !cond.Matches(get) {
			return false
		}
	}
	return true
}

type disjunction struct {
	conds []Condition
}

// Or combines conditions; at least one must match.
func Or(conds ...Condition) Condition {
	return &disjunction{conds: conds}
}

func (d *disjunction) Validate(s *schema.Schema) error {
	if len(d.conds) == 0 {
		return fmt.Errorf("%w: empty disjunction", ErrInvalid)
	}
	for _, cond := range d.conds {
		if err := cond.Validate(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *disjunction) Matches(get Lookup) bool {
	for _, cond := range d.conds {
		if cond.Matches(get) {
			return true
		}
	}
	return false
}
