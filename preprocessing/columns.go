package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// numericSelection resolves sel and checks every column is numeric.
func numericSelection(step string, sel Selector, st *prepState, train *data.Frame) ([]string, error) {
	cols := sel(train.Schema(), st.roles)
	for _, c := range cols {
		if !train.Schema().IsNumeric(c) {
			return nil, errors.NewValidationError(c, step+" needs a numeric column", c)
		}
	}
	return cols, nil
}

// columnMatrix stacks the named numeric columns into an n×len(cols) matrix.
func columnMatrix(f *data.Frame, cols []string) (*mat.Dense, error) {
	X := mat.NewDense(f.NRows(), len(cols), nil)
	for j, c := range cols {
		v, err := f.Numeric(c)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, v)
	}
	return X, nil
}

// replaceColumns writes the columns of X back into f under cols.
func replaceColumns(f *data.Frame, cols []string, X mat.Matrix) (*data.Frame, error) {
	out := f
	for j, c := range cols {
		var err error
		if out, err = out.WithNumeric(c, mat.Col(nil, j, X)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
