package data

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

type column struct {
	num []float64
	cat []string
}

// Frame is an immutable, column-oriented Dataset. Every method that
// changes rows or columns returns a new Frame; the receiver and any slice
// previously returned by it are never modified.
type Frame struct {
	schema *Schema
	cols   []column
	nrows  int
}

// Builder assembles a Frame column by column.
type Builder struct {
	columns []Column
	data    []column
	err     error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Numeric appends a numeric column. values is copied.
func (b *Builder) Numeric(name string, values []float64) *Builder {
	b.columns = append(b.columns, Column{Name: name, Kind: Numeric})
	b.data = append(b.data, column{num: slices.Clone(values)})
	return b
}

// Categorical appends a categorical column. values is copied.
func (b *Builder) Categorical(name string, values []string) *Builder {
	b.columns = append(b.columns, Column{Name: name, Kind: Categorical})
	b.data = append(b.data, column{cat: slices.Clone(values)})
	return b
}

// Build validates the columns and returns the Frame.
func (b *Builder) Build() (*Frame, error) {
	if b.err != nil {
		return nil, b.err
	}
	schema, err := NewSchema(b.columns...)
	if err != nil {
		return nil, err
	}
	return newFrame(schema, b.data)
}

func newFrame(schema *Schema, cols []column) (*Frame, error) {
	n := -1
	for i, c := range schema.columns {
		l := len(cols[i].num)
		if c.Kind == Categorical {
			l = len(cols[i].cat)
		}
		if n >= 0 && l != n {
			return nil, errors.NewDimensionError("Frame."+c.Name, n, l, 0)
		}
		n = l
	}
	if n < 0 {
		n = 0
	}
	return &Frame{schema: schema, cols: cols, nrows: n}, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// Schema returns the frame's schema. Schemas are immutable.
func (f *Frame) Schema() *Schema { return f.schema }

func (f *Frame) col(name string, want Kind) (column, error) {
	i, ok := f.schema.index[name]
	if !ok {
		return column{}, errors.NewValidationError("column", "not found in "+f.schema.String(), name)
	}
	if f.schema.columns[i].Kind != want {
		return column{}, errors.NewValidationError(name, "column is "+f.schema.columns[i].Kind.String()+", want "+want.String(), want)
	}
	return f.cols[i], nil
}

// Numeric returns a copy of a numeric column.
func (f *Frame) Numeric(name string) ([]float64, error) {
	c, err := f.col(name, Numeric)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.num), nil
}

// Categorical returns a copy of a categorical column.
func (f *Frame) Categorical(name string) ([]string, error) {
	c, err := f.col(name, Categorical)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.cat), nil
}

// Levels returns the sorted distinct values of a categorical column.
func (f *Frame) Levels(name string) ([]string, error) {
	c, err := f.col(name, Categorical)
	if err != nil {
		return nil, err
	}
	levels := lo.Uniq(c.cat)
	slices.Sort(levels)
	return levels, nil
}

// Subset returns the rows at idx, in that order. Indices may repeat.
func (f *Frame) Subset(idx []int) *Frame {
	cols := make([]column, len(f.cols))
	for j, c := range f.schema.columns {
		if c.Kind == Numeric {
			src := f.cols[j].num
			cols[j].num = lo.Map(idx, func(i int, _ int) float64 { return src[i] })
		} else {
			src := f.cols[j].cat
			cols[j].cat = lo.Map(idx, func(i int, _ int) string { return src[i] })
		}
	}
	return &Frame{schema: f.schema, cols: cols, nrows: len(idx)}
}

// Row is a read-only view of one row.
type Row struct {
	f *Frame
	i int
}

// Index returns the row position in its frame.
func (r Row) Index() int { return r.i }

// Num returns a numeric cell, NaN when the column is missing or not numeric.
func (r Row) Num(name string) float64 {
	c, err := r.f.col(name, Numeric)
	if err != nil {
		return math.NaN()
	}
	return c.num[r.i]
}

// Cat returns a categorical cell, "" when the column is missing or not
// categorical.
func (r Row) Cat(name string) string {
	c, err := r.f.col(name, Categorical)
	if err != nil {
		return ""
	}
	return c.cat[r.i]
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	var idx []int
	for i := 0; i < f.nrows; i++ {
		if keep(Row{f: f, i: i}) {
			idx = append(idx, i)
		}
	}
	return f.Subset(idx)
}

// Mutate adds, or replaces, the numeric column name computed row by row.
func (f *Frame) Mutate(name string, fn func(Row) float64) (*Frame, error) {
	vals := make([]float64, f.nrows)
	for i := range vals {
		vals[i] = fn(Row{f: f, i: i})
	}
	return f.WithNumeric(name, vals)
}

// WithNumeric returns a frame with name set to values, appended when new.
func (f *Frame) WithNumeric(name string, values []float64) (*Frame, error) {
	return f.with(Column{Name: name, Kind: Numeric}, column{num: slices.Clone(values)}, len(values))
}

// WithCategorical returns a frame with name set to values, appended when new.
func (f *Frame) WithCategorical(name string, values []string) (*Frame, error) {
	return f.with(Column{Name: name, Kind: Categorical}, column{cat: slices.Clone(values)}, len(values))
}

func (f *Frame) with(decl Column, c column, n int) (*Frame, error) {
	if f.schema.Len() > 0 && n != f.nrows {
		return nil, errors.NewDimensionError("Frame.With("+decl.Name+")", f.nrows, n, 0)
	}
	decls := f.schema.Columns()
	cols := slices.Clone(f.cols)
	if i, ok := f.schema.index[decl.Name]; ok {
		decls[i] = decl
		cols[i] = c
	} else {
		decls = append(decls, decl)
		cols = append(cols, c)
	}
	schema, err := NewSchema(decls...)
	if err != nil {
		return nil, err
	}
	return newFrame(schema, cols)
}

// Select keeps the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	decls := make([]Column, 0, len(names))
	cols := make([]column, 0, len(names))
	for _, name := range names {
		i, ok := f.schema.index[name]
		if !ok {
			return nil, errors.NewValidationError("column", "not found in "+f.schema.String(), name)
		}
		decls = append(decls, f.schema.columns[i])
		cols = append(cols, f.cols[i])
	}
	schema, err := NewSchema(decls...)
	if err != nil {
		return nil, err
	}
	return &Frame{schema: schema, cols: cols, nrows: f.nrows}, nil
}

// Drop removes the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	keep := lo.Filter(f.schema.Names(), func(n string, _ int) bool { return !lo.Contains(names, n) })
	out, _ := f.Select(keep...)
	return out
}

// Equal reports whether both frames hold the same schema and cells.
// Numeric cells are compared bit for bit so NaN equals NaN.
func (f *Frame) Equal(o *Frame) bool {
	if f.nrows != o.nrows || !f.schema.Equal(o.schema) {
		return false
	}
	for j, c := range f.schema.columns {
		if c.Kind == Numeric {
			for i := range f.cols[j].num {
				if math.Float64bits(f.cols[j].num[i]) != math.Float64bits(o.cols[j].num[i]) {
					return false
				}
			}
		} else if !slices.Equal(f.cols[j].cat, o.cols[j].cat) {
			return false
		}
	}
	return true
}
