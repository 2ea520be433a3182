// Package schema describes dimensioned array schemas: indexing dimensions,
// data attributes, semantic cell types and their Arrow equivalents.
package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySchema is returned when a schema has no dimensions.
	ErrEmptySchema = errors.New("schema: at least one dimension is required")
	// ErrDuplicateName is returned when two columns share a name.
	ErrDuplicateName = errors.New("schema: duplicate column name")
)

// Dimension is an indexing axis of an array. Dimensions are fixed-width and
// non-nullable; selections constrain rows by dimension value.
type Dimension struct {
	Name string
	Type Type
}

// Attribute is a non-indexing data column, optionally nullable and of fixed
// or variable length.
type Attribute struct {
	Name     string
	Type     Type
	Nullable bool
}

// Column is the unified descriptor buffers and queries operate on. IsDim
// distinguishes dimensions from attributes.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
	IsDim    bool
}

// Schema is the fixed shape of an array: an ordered set of dimensions
// followed by an ordered set of attributes. Immutable after construction.
type Schema struct {
	dims  []Dimension
	attrs []Attribute

	byName map[string]Column
	names  []string
}

// New validates and builds a schema.
func New(dims []Dimension, attrs []Attribute) (*Schema, error) {
	if len(dims) == 0 {
		return nil, ErrEmptySchema
	}

	s := &Schema{
		dims:   append([]Dimension(nil), dims...),
		attrs:  append([]Attribute(nil), attrs...),
		byName: make(map[string]Column, len(dims)+len(attrs)),
	}

	for _, d := range s.dims {
		if d.Type == TypeInvalid {
			return nil, fmt.Errorf("schema: dimension %q has invalid type", d.Name)
		}
		if d.Type.VarLen() && d.Type != TypeString {
			return nil, fmt.Errorf("schema: dimension %q: type %s not allowed on a dimension", d.Name, d.Type)
		}
		if _, ok := s.byName[d.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}
		s.byName[d.Name] = Column{Name: d.Name, Type: d.Type, IsDim: true}
		s.names = append(s.names, d.Name)
	}

	for _, a := range s.attrs {
		if a.Type == TypeInvalid {
			return nil, fmt.Errorf("schema: attribute %q has invalid type", a.Name)
		}
		if _, ok := s.byName[a.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, a.Name)
		}
		s.byName[a.Name] = Column{Name: a.Name, Type: a.Type, Nullable: a.Nullable}
		s.names = append(s.names, a.Name)
	}

	return s, nil
}

// MustNew is New that panics on error, for tests and static schemas.
func MustNew(dims []Dimension, attrs []Attribute) *Schema {
	s, err := New(dims, attrs)
	if err != nil {
		panic(err)
	}
	return s
}

// Dimensions returns the ordered dimensions.
func (s *Schema) Dimensions() []Dimension { return s.dims }

// Attributes returns the ordered attributes.
func (s *Schema) Attributes() []Attribute { return s.attrs }

// NumDimensions returns the number of dimensions.
func (s *Schema) NumDimensions() int { return len(s.dims) }

// Column looks up a column (dimension or attribute) by name.
func (s *Schema) Column(name string) (Column, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// HasDimension reports whether name is a dimension of the schema.
func (s *Schema) HasDimension(name string) bool {
	c, ok := s.byName[name]
	return ok && c.IsDim
}

// ColumnNames returns all column names, dimensions first, in schema order.
func (s *Schema) ColumnNames() []string {
	return append([]string(nil), s.names...)
}

// DimensionIndex returns the position of a dimension, or -1.
func (s *Schema) DimensionIndex(name string) int {
	for i, d := range s.dims {
		if d.Name == name {
			return i
		}
	}
	return -1
}
