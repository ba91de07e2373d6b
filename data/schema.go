// Package data holds the tabular Dataset (Frame), its declared Schema, the
// role assignment used by recipes and workflows, and the resampling
// helpers that partition rows: InitialSplit and VFold.
package data

import (
	"fmt"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Kind is the declared type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "numeric"/"double" and "categorical"/"nominal"/"factor".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "numeric", "double", "float":
		return Numeric, nil
	case "categorical", "nominal", "factor", "string":
		return Categorical, nil
	default:
		return Numeric, errors.NewValidationError("kind", "unknown column kind", s)
	}
}

// Column is a named, typed column declaration.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered list of column declarations of a Frame.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema validates and builds a schema. Names must be unique and
// non-empty.
func NewSchema(columns ...Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("column", "name must not be empty", c)
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		if c.Kind != Numeric && c.Kind != Categorical {
			return nil, errors.NewValidationError(c.Name, "unknown column kind", c.Kind)
		}
		s.index[c.Name] = len(s.columns)
		s.columns = append(s.columns, c)
	}
	return s, nil
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Columns returns a copy of the declarations.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Has reports whether the schema declares name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// KindOf returns the declared kind of name.
func (s *Schema) KindOf(name string) (Kind, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.columns[i].Kind, true
}

// IsNumeric reports whether name is declared Numeric.
func (s *Schema) IsNumeric(name string) bool {
	k, ok := s.KindOf(name)
	return ok && k == Numeric
}

// IsCategorical reports whether name is declared Categorical.
func (s *Schema) IsCategorical(name string) bool {
	k, ok := s.KindOf(name)
	return ok && k == Categorical
}

// Names returns column names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// NumericNames returns the Numeric columns in declaration order.
func (s *Schema) NumericNames() []string {
	return s.namesOf(Numeric)
}

// CategoricalNames returns the Categorical columns in declaration order.
func (s *Schema) CategoricalNames() []string {
	return s.namesOf(Categorical)
}

func (s *Schema) namesOf(k Kind) []string {
	var out []string
	for _, c := range s.columns {
		if c.Kind == k {
			out = append(out, c.Name)
		}
	}
	return out
}

// Equal reports whether both schemas declare the same columns in order.
func (s *Schema) Equal(o *Schema) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	out := "schema("
	for i, c := range s.columns {
		if i > 0 {
			out += ", "
		}
		out += c.Name + ":" + c.Kind.String()
	}
	return out + ")"
}
