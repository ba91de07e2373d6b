package preprocessing

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Emission selects how a basis expansion emits its columns.
type Emission int

const (
	// Orthogonal emits an orthonormal recombination of the raw terms,
	// computed on the training rows.
	Orthogonal Emission = iota
	// Raw emits the literal terms (powers, truncated powers).
	Raw
)

func (e Emission) String() string {
	if e == Raw {
		return "raw"
	}
	return "orthogonal"
}

// ParseEmission accepts "raw" and "orthogonal".
func ParseEmission(s string) (Emission, error) {
	switch s {
	case "raw":
		return Raw, nil
	case "orthogonal", "":
		return Orthogonal, nil
	default:
		return Orthogonal, errors.NewValidationError("emission", "must be raw or orthogonal", s)
	}
}

// orthoBasis maps raw basis columns onto orthonormal columns: centered
// columns are multiplied by R⁻¹·D from the thin QR of the training basis,
// D fixing signs so each output correlates positively with its raw term.
// On the training rows the result equals Q.
type orthoBasis struct {
	means     []float64
	transform *mat.Dense
}

func fitOrthoBasis(op string, B *mat.Dense) (*orthoBasis, error) {
	n, p := B.Dims()
	if n <= p {
		return nil, errors.NewInsufficientDataError(op, n, p+1)
	}
	means := make([]float64, p)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, B), nil)
	}
	centered := centerColumns(B, means)

	var qr mat.QR
	qr.Factorize(centered)
	var r mat.Dense
	qr.RTo(&r)
	rsq := mat.DenseCopyOf(r.Slice(0, p, 0, p))

	for j := 0; j < p; j++ {
		norm := mat.Norm(centered.ColView(j), 2)
		if math.Abs(rsq.At(j, j)) <= 1e-9*math.Max(norm, 1) {
			return nil, errors.NewValueError(op, fmt.Sprintf("basis column %d is linearly dependent on the previous ones", j+1))
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(rsq); err != nil {
		return nil, errors.NewModelError(op, "inverting R", errors.ErrSingularMatrix)
	}
	for j := 0; j < p; j++ {
		if rsq.At(j, j) < 0 {
			col := mat.Col(nil, j, &inv)
			for i := range col {
				col[i] = -col[i]
			}
			inv.SetCol(j, col)
		}
	}
	return &orthoBasis{means: means, transform: &inv}, nil
}

func (o *orthoBasis) apply(B *mat.Dense) *mat.Dense {
	var Z mat.Dense
	Z.Mul(centerColumns(B, o.means), o.transform)
	return &Z
}

func centerColumns(B *mat.Dense, means []float64) *mat.Dense {
	n, p := B.Dims()
	out := mat.NewDense(n, p, nil)
	out.Apply(func(_, j int, v float64) float64 { return v - means[j] }, B)
	return out
}

// expansion is one fitted column expansion shared by Poly and Spline.
type expansion struct {
	column string
	names  []string
	shift  float64
	basis  func(x float64) []float64
	ortho  *orthoBasis
}

func (e *expansion) evaluate(x []float64) *mat.Dense {
	p := len(e.names)
	B := mat.NewDense(len(x), p, nil)
	for i, v := range x {
		B.SetRow(i, e.basis(v-e.shift))
	}
	if e.ortho != nil {
		return e.ortho.apply(B)
	}
	return B
}

type fittedExpansion struct {
	expansions []*expansion
}

func (fe *fittedExpansion) bake(f *data.Frame) (*data.Frame, error) {
	out := f
	for _, e := range fe.expansions {
		x, err := f.Numeric(e.column)
		if err != nil {
			return nil, err
		}
		Z := e.evaluate(x)
		out = out.Drop(e.column)
		if out, err = replaceColumns(out, e.names, Z); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func prepExpansions(step string, sel Selector, st *prepState, train *data.Frame, emission Emission, width int,
	build func(col string, x []float64, shift float64) (func(float64) []float64, error),
) (fittedStep, error) {
	cols, err := numericSelection(step, sel, st, train)
	if err != nil {
		return nil, err
	}
	fe := &fittedExpansion{}
	for _, col := range cols {
		x, err := train.Numeric(col)
		if err != nil {
			return nil, err
		}
		if distinct := len(lo.Uniq(x)); distinct <= width {
			return nil, errors.NewInsufficientDataError(fmt.Sprintf("%s(%s): distinct values", step, col), distinct, width+1)
		}
		e := &expansion{column: col}
		if emission == Orthogonal {
			e.shift = stat.Mean(x, nil)
		}
		if e.basis, err = build(col, x, e.shift); err != nil {
			return nil, err
		}
		for k := 1; k <= width; k++ {
			e.names = append(e.names, fmt.Sprintf("%s_%s_%d", col, step, k))
		}
		if emission == Orthogonal {
			raw := (&expansion{names: e.names, shift: e.shift, basis: e.basis}).evaluate(x)
			if e.ortho, err = fitOrthoBasis(step+"("+col+")", raw); err != nil {
				return nil, err
			}
		}
		fe.expansions = append(fe.expansions, e)
		st.replacePredictor(col, e.names)
	}
	return fe, nil
}

func integerParam(name string, p model.Param, minimum int) (int, error) {
	if p.IsTunable() {
		return 0, errors.NewValidationError(name, "unresolved tuning parameter", p.String())
	}
	v := p.Value()
	if v != math.Trunc(v) || v < float64(minimum) {
		return 0, errors.NewValidationError(name, fmt.Sprintf("must be an integer >= %d", minimum), v)
	}
	return int(v), nil
}

type polyStep struct {
	sel      Selector
	degree   model.Param
	emission Emission
}

// Poly replaces each selected column x with a degree-d polynomial basis
// named "<x>_poly_1".."<x>_poly_d". Orthogonal emission matches R's
// poly(x, d); Raw emits x, x², …, x^d.
func Poly(sel Selector, degree model.Param, emission Emission) Step {
	return &polyStep{sel: sel, degree: degree, emission: emission}
}

func (s *polyStep) Name() string { return "poly" }

func (s *polyStep) params() map[string]model.Param {
	return map[string]model.Param{"degree": s.degree}
}

func (s *polyStep) finalize(values model.Values) (Step, error) {
	d, err := s.degree.Resolve("degree", values)
	if err != nil {
		return nil, errors.NewValidationError("degree", err.Error(), values)
	}
	return &polyStep{sel: s.sel, degree: d, emission: s.emission}, nil
}

func (s *polyStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	degree, err := integerParam("degree", s.degree, 1)
	if err != nil {
		return nil, err
	}
	return prepExpansions("poly", s.sel, st, train, s.emission, degree,
		func(_ string, _ []float64, _ float64) (func(float64) []float64, error) {
			return func(v float64) []float64 {
				row := make([]float64, degree)
				pow := 1.0
				for k := range row {
					pow *= v
					row[k] = pow
				}
				return row
			}, nil
		})
}

type splineStep struct {
	sel      Selector
	df       model.Param
	emission Emission
}

// Spline replaces each selected column with a cubic regression spline basis
// of df columns ("<x>_spline_1".."<x>_spline_df"), using df-3 interior
// knots at training quantiles. Raw emission is the truncated power basis
// x, x², x³, (x-κ₁)³₊, …; Orthogonal orthonormalizes it on the training rows.
func Spline(sel Selector, df model.Param, emission Emission) Step {
	return &splineStep{sel: sel, df: df, emission: emission}
}

func (s *splineStep) Name() string { return "spline" }

func (s *splineStep) params() map[string]model.Param {
	return map[string]model.Param{"deg_free": s.df}
}

func (s *splineStep) finalize(values model.Values) (Step, error) {
	df, err := s.df.Resolve("deg_free", values)
	if err != nil {
		return nil, errors.NewValidationError("deg_free", err.Error(), values)
	}
	return &splineStep{sel: s.sel, df: df, emission: s.emission}, nil
}

func (s *splineStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	df, err := integerParam("deg_free", s.df, 3)
	if err != nil {
		return nil, err
	}
	return prepExpansions("spline", s.sel, st, train, s.emission, df,
		func(col string, x []float64, shift float64) (func(float64) []float64, error) {
			knots := splineKnots(x, df-3)
			if len(knots) != df-3 {
				return nil, errors.NewInsufficientDataError("spline("+col+"): distinct knots", len(knots), df-3)
			}
			for i := range knots {
				knots[i] -= shift
			}
			return func(v float64) []float64 {
				row := make([]float64, 0, df)
				row = append(row, v, v*v, v*v*v)
				for _, k := range knots {
					t := math.Max(v-k, 0)
					row = append(row, t*t*t)
				}
				return row
			}, nil
		})
}

// splineKnots places k interior knots at the training quantiles
// i/(k+1), dropping duplicates.
func splineKnots(x []float64, k int) []float64 {
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	var knots []float64
	for i := 1; i <= k; i++ {
		q := stat.Quantile(float64(i)/float64(k+1), stat.LinInterp, sorted, nil)
		if len(knots) == 0 || q > knots[len(knots)-1] {
			knots = append(knots, q)
		}
	}
	return knots
}
