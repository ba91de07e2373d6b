package preprocessing

import (
	"github.com/YuminosukeSato/modelflow/data"
)

type normalizeStep struct {
	sel Selector
}

// Normalize centers and scales numeric columns with the training mean and
// sample standard deviation. Constant columns are only centered.
func Normalize(sel Selector) Step {
	return &normalizeStep{sel: sel}
}

func (s *normalizeStep) Name() string { return "normalize" }

type fittedNormalize struct {
	cols   []string
	scaler *StandardScaler
}

func (s *normalizeStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	cols, err := numericSelection("normalize", s.sel, st, train)
	if err != nil || len(cols) == 0 {
		return &fittedNormalize{}, err
	}
	X, err := columnMatrix(train, cols)
	if err != nil {
		return nil, err
	}
	scaler := NewStandardScaler(WithDDOF(1))
	if err := scaler.Fit(X); err != nil {
		return nil, err
	}
	return &fittedNormalize{cols: cols, scaler: scaler}, nil
}

func (fn *fittedNormalize) bake(f *data.Frame) (*data.Frame, error) {
	if len(fn.cols) == 0 {
		return f, nil
	}
	X, err := columnMatrix(f, fn.cols)
	if err != nil {
		return nil, err
	}
	Z, err := fn.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return replaceColumns(f, fn.cols, Z)
}

type rangeStep struct {
	sel    Selector
	lo, hi float64
}

// Range rescales numeric columns linearly so the training minimum maps to
// lo and the maximum to hi. New values outside the training range are
// clipped.
func Range(sel Selector, lo, hi float64) Step {
	return &rangeStep{sel: sel, lo: lo, hi: hi}
}

func (s *rangeStep) Name() string { return "range" }

type fittedRange struct {
	cols   []string
	scaler *MinMaxScaler
}

func (s *rangeStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	cols, err := numericSelection("range", s.sel, st, train)
	if err != nil || len(cols) == 0 {
		return &fittedRange{}, err
	}
	X, err := columnMatrix(train, cols)
	if err != nil {
		return nil, err
	}
	scaler := NewMinMaxScaler([2]float64{s.lo, s.hi})
	if err := scaler.Fit(X); err != nil {
		return nil, err
	}
	return &fittedRange{cols: cols, scaler: scaler}, nil
}

func (fr *fittedRange) bake(f *data.Frame) (*data.Frame, error) {
	if len(fr.cols) == 0 {
		return f, nil
	}
	X, err := columnMatrix(f, fr.cols)
	if err != nil {
		return nil, err
	}
	Z, err := fr.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return replaceColumns(f, fr.cols, Z)
}
