package preprocessing

import (
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

type logStep struct {
	sel    Selector
	base   float64
	offset float64
}

// Log replaces x with log_base(x + offset). A base of 0 means natural log.
// Non-positive arguments fail with ValueError.
func Log(sel Selector, base, offset float64) Step {
	return &logStep{sel: sel, base: base, offset: offset}
}

func (s *logStep) Name() string { return "log" }

type fittedLog struct {
	cols         []string
	base, offset float64
}

func (s *logStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	if s.base < 0 || s.base == 1 {
		return nil, errors.NewValidationError("base", "must be 0 (natural) or positive and not 1", s.base)
	}
	cols, err := numericSelection("log", s.sel, st, train)
	if err != nil {
		return nil, err
	}
	return &fittedLog{cols: cols, base: s.base, offset: s.offset}, nil
}

func (fl *fittedLog) bake(f *data.Frame) (*data.Frame, error) {
	out := f
	for _, c := range fl.cols {
		x, err := f.Numeric(c)
		if err != nil {
			return nil, err
		}
		for i, v := range x {
			arg := v + fl.offset
			if !(arg > 0) && !math.IsNaN(arg) {
				return nil, errors.NewValueError("log("+c+")", "argument must be positive")
			}
			x[i] = math.Log(arg)
			if fl.base > 0 {
				x[i] /= math.Log(fl.base)
			}
		}
		if out, err = out.WithNumeric(c, x); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type imputeMeanStep struct {
	sel Selector
}

// ImputeMean replaces NaN cells with the training mean of the column.
func ImputeMean(sel Selector) Step {
	return &imputeMeanStep{sel: sel}
}

func (s *imputeMeanStep) Name() string { return "impute_mean" }

type fittedImpute struct {
	cols  []string
	means []float64
}

func (s *imputeMeanStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	cols, err := numericSelection("impute_mean", s.sel, st, train)
	if err != nil {
		return nil, err
	}
	fi := &fittedImpute{cols: cols, means: make([]float64, len(cols))}
	for j, c := range cols {
		x, _ := train.Numeric(c)
		observed := lo.Filter(x, func(v float64, _ int) bool { return !math.IsNaN(v) })
		if len(observed) == 0 {
			return nil, errors.NewInsufficientDataError("impute_mean("+c+")", 0, 1)
		}
		fi.means[j] = stat.Mean(observed, nil)
	}
	return fi, nil
}

func (fi *fittedImpute) bake(f *data.Frame) (*data.Frame, error) {
	out := f
	for j, c := range fi.cols {
		x, err := f.Numeric(c)
		if err != nil {
			return nil, err
		}
		for i, v := range x {
			if math.IsNaN(v) {
				x[i] = fi.means[j]
			}
		}
		if out, err = out.WithNumeric(c, x); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type zeroVarianceStep struct {
	sel Selector
}

// ZeroVariance removes selected columns that hold a single distinct value
// in the training rows.
func ZeroVariance(sel Selector) Step {
	return &zeroVarianceStep{sel: sel}
}

func (s *zeroVarianceStep) Name() string { return "zv" }

type fittedDrop struct {
	cols []string
}

func (s *zeroVarianceStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	var drop []string
	for _, c := range s.sel(train.Schema(), st.roles) {
		var distinct int
		if train.Schema().IsCategorical(c) {
			levels, err := train.Levels(c)
			if err != nil {
				return nil, err
			}
			distinct = len(levels)
		} else {
			x, err := train.Numeric(c)
			if err != nil {
				return nil, err
			}
			distinct = 1
			if floats.Max(x) != floats.Min(x) {
				distinct = 2
			}
		}
		if distinct < 2 {
			drop = append(drop, c)
		}
	}
	st.roles.Predictors = lo.Without(st.roles.Predictors, drop...)
	return &fittedDrop{cols: drop}, nil
}

func (fd *fittedDrop) bake(f *data.Frame) (*data.Frame, error) {
	return f.Drop(fd.cols...), nil
}

type interactStep struct {
	pairs [][2]string
}

// Interact adds product columns "<a>_x_<b>" for each pair, plus the pairs
// declared in the recipe roles. A categorical side that an earlier Dummy
// step encoded expands to its indicator columns.
func Interact(pairs ...[2]string) Step {
	return &interactStep{pairs: pairs}
}

func (s *interactStep) Name() string { return "interact" }

type product struct {
	a, b, name string
}

type fittedInteract struct {
	products []product
}

func (s *interactStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	pairs := slices.Concat(st.roles.Interactions, s.pairs)
	fi := &fittedInteract{}
	seen := map[string]bool{}
	for _, pair := range pairs {
		left, err := interactionSide(st, train, pair[0])
		if err != nil {
			return nil, err
		}
		right, err := interactionSide(st, train, pair[1])
		if err != nil {
			return nil, err
		}
		for _, a := range left {
			for _, b := range right {
				name := a + "_x_" + b
				if seen[name] {
					continue
				}
				seen[name] = true
				fi.products = append(fi.products, product{a: a, b: b, name: name})
				st.roles.Predictors = append(st.roles.Predictors, name)
			}
		}
	}
	return fi, nil
}

func interactionSide(st *prepState, train *data.Frame, name string) ([]string, error) {
	if cols, ok := st.expanded[name]; ok {
		return cols, nil
	}
	if !train.Schema().IsNumeric(name) {
		return nil, errors.NewValidationError(name, "interaction needs a numeric or dummy-encoded column", name)
	}
	return []string{name}, nil
}

func (fi *fittedInteract) bake(f *data.Frame) (*data.Frame, error) {
	out := f
	for _, p := range fi.products {
		a, err := f.Numeric(p.a)
		if err != nil {
			return nil, err
		}
		b, err := f.Numeric(p.b)
		if err != nil {
			return nil, err
		}
		floats.Mul(a, b)
		if out, err = out.WithNumeric(p.name, a); err != nil {
			return nil, err
		}
	}
	return out, nil
}
