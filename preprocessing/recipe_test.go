package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

func carFrame(t *testing.T) *data.Frame {
	t.Helper()
	f, err := data.NewBuilder().
		Numeric("mpg", []float64{21, 22.8, 21.4, 18.7, 18.1, 14.3, 24.4, 22.8, 19.2, 17.8}).
		Numeric("hp", []float64{110, 93, 110, 175, 105, 245, 62, 95, 123, 123}).
		Numeric("wt", []float64{2.62, 2.32, 3.215, 3.44, 3.46, 3.57, 3.19, 3.15, 3.44, 3.44}).
		Numeric("one", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}).
		Categorical("cyl", []string{"6", "4", "6", "8", "6", "8", "4", "4", "6", "6"}).
		Build()
	require.NoError(t, err)
	return f
}

func carRoles() data.Roles {
	return data.NewRoles("mpg", "hp", "wt", "one", "cyl")
}

func TestRecipe_Deterministic(t *testing.T) {
	f := carFrame(t)
	rec := NewRecipe(carRoles().WithInteraction("hp", "cyl"),
		ZeroVariance(AllPredictors()),
		Dummy(AllNominalPredictors()),
		Poly(Columns("wt"), model.Fixed(2), Orthogonal),
		Normalize(AllNumericPredictors()),
	)
	fitted, err := rec.Fit(f)
	require.NoError(t, err)

	a, err := fitted.Apply(f)
	require.NoError(t, err)
	b, err := fitted.Apply(f)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, f.Equal(carFrame(t)), "input must be untouched")

	assert.Equal(t,
		[]string{"hp", "wt_poly_1", "wt_poly_2", "cyl_6", "cyl_8", "hp_x_cyl_6", "hp_x_cyl_8"},
		fitted.Predictors())
	assert.Equal(t, []string{"zv", "dummy", "poly", "normalize", "interact"}, fitted.StepNames())
}

func TestDummy(t *testing.T) {
	f := carFrame(t)
	roles := data.NewRoles("mpg", "cyl")

	fitted, err := NewRecipe(roles, Dummy(AllNominalPredictors())).Fit(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"cyl_6", "cyl_8"}, fitted.Predictors())

	baked, err := fitted.Apply(f)
	require.NoError(t, err)
	c6, _ := baked.Numeric("cyl_6")
	c8, _ := baked.Numeric("cyl_8")
	assert.Equal(t, []float64{1, 0, 1, 0, 1, 0, 0, 0, 1, 1}, c6)
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 1, 0, 0, 0, 0}, c8)
	assert.False(t, baked.Schema().Has("cyl"))

	oneHot, err := NewRecipe(roles, Dummy(AllNominalPredictors(), WithOneHot())).Fit(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"cyl_4", "cyl_6", "cyl_8"}, oneHot.Predictors())
}

func TestDummy_UnseenLevel(t *testing.T) {
	f := carFrame(t)
	roles := data.NewRoles("mpg", "cyl")
	newData, err := data.NewBuilder().
		Numeric("mpg", []float64{15, 30}).
		Categorical("cyl", []string{"12", "4"}).
		Build()
	require.NoError(t, err)

	strict, err := NewRecipe(roles, Dummy(AllNominalPredictors())).Fit(f)
	require.NoError(t, err)
	_, err = strict.Apply(newData)
	var ue *errors.UnseenLevelError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "cyl", ue.Column)
	assert.Equal(t, "12", ue.Level)

	lenient, err := NewRecipe(roles, Dummy(AllNominalPredictors(), WithNovel(""))).Fit(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"cyl_6", "cyl_8", "cyl_new"}, lenient.Predictors())
	baked, err := lenient.Apply(newData)
	require.NoError(t, err)
	novel, _ := baked.Numeric("cyl_new")
	assert.Equal(t, []float64{1, 0}, novel)
}

func TestNormalize_UsesTrainingStatistics(t *testing.T) {
	f := carFrame(t)
	fitted, err := NewRecipe(data.NewRoles("mpg", "hp"), Normalize(AllNumericPredictors())).Fit(f)
	require.NoError(t, err)

	baked, err := fitted.Apply(f)
	require.NoError(t, err)
	hp, _ := baked.Numeric("hp")
	mean, sd := stat.MeanStdDev(hp, nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, sd, 1e-12)

	rawHP, _ := f.Numeric("hp")
	trainMean, trainSD := stat.MeanStdDev(rawHP, nil)
	other, _ := data.NewBuilder().Numeric("hp", []float64{300}).Build()
	out, err := fitted.Apply(other)
	require.NoError(t, err)
	got, _ := out.Numeric("hp")
	assert.InDelta(t, (300-trainMean)/trainSD, got[0], 1e-12)

	mpg, _ := baked.Numeric("mpg")
	rawMPG, _ := f.Numeric("mpg")
	assert.Equal(t, rawMPG, mpg, "outcome passes through")
}

func TestRange(t *testing.T) {
	f := carFrame(t)
	fitted, err := NewRecipe(data.NewRoles("mpg", "hp"), Range(Columns("hp"), 0, 1)).Fit(f)
	require.NoError(t, err)
	baked, _ := fitted.Apply(f)
	hp, _ := baked.Numeric("hp")
	assert.Equal(t, 0.0, floats.Min(hp))
	assert.Equal(t, 1.0, floats.Max(hp))
}

func TestPoly_OrthogonalMatchesR(t *testing.T) {
	f, err := data.NewBuilder().
		Numeric("y", []float64{1, 2, 3, 4, 5}).
		Numeric("x", []float64{1, 2, 3, 4, 5}).
		Build()
	require.NoError(t, err)

	fitted, err := NewRecipe(data.NewRoles("y", "x"), Poly(Columns("x"), model.Fixed(2), Orthogonal)).Fit(f)
	require.NoError(t, err)
	X, names, err := fitted.Design(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"x_poly_1", "x_poly_2"}, names)

	// poly(1:5, 2) in R
	want1 := []float64{-0.6324555, -0.3162278, 0, 0.3162278, 0.6324555}
	want2 := []float64{0.5345225, -0.2672612, -0.5345225, -0.2672612, 0.5345225}
	assert.InDeltaSlice(t, want1, mat.Col(nil, 0, X), 1e-6)
	assert.InDeltaSlice(t, want2, mat.Col(nil, 1, X), 1e-6)
}

func TestPoly_Raw(t *testing.T) {
	f, _ := data.NewBuilder().
		Numeric("y", []float64{0, 0, 0, 0}).
		Numeric("x", []float64{1, 2, 3, 4}).
		Build()
	fitted, err := NewRecipe(data.NewRoles("y", "x"), Poly(Columns("x"), model.Fixed(3), Raw)).Fit(f)
	require.NoError(t, err)
	X, _, err := fitted.Design(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 8}, mat.Row(nil, 1, X))
}

func TestPoly_TooFewDistinctValues(t *testing.T) {
	f, _ := data.NewBuilder().
		Numeric("y", []float64{0, 1, 2, 3}).
		Numeric("x", []float64{1, 2, 1, 2}).
		Build()
	_, err := NewRecipe(data.NewRoles("y", "x"), Poly(Columns("x"), model.Fixed(2), Orthogonal)).Fit(f)
	var ie *errors.InsufficientDataError
	assert.True(t, errors.As(err, &ie))
}

func TestSpline(t *testing.T) {
	n := 50
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / 5
	}
	f, _ := data.NewBuilder().Numeric("y", x).Numeric("x", x).Build()

	for _, emission := range []Emission{Raw, Orthogonal} {
		t.Run(emission.String(), func(t *testing.T) {
			fitted, err := NewRecipe(data.NewRoles("y", "x"), Spline(Columns("x"), model.Fixed(5), emission)).Fit(f)
			require.NoError(t, err)
			X, names, err := fitted.Design(f)
			require.NoError(t, err)
			assert.Len(t, names, 5)
			r, c := X.Dims()
			assert.Equal(t, n, r)
			assert.Equal(t, 5, c)

			if emission == Orthogonal {
				var gram mat.Dense
				gram.Mul(X.T(), X)
				assert.True(t, mat.EqualApprox(&gram, identity(5), 1e-8))
			} else {
				// x, x², x³ then truncated powers that vanish at the minimum
				assert.Equal(t, []float64{0, 0, 0, 0, 0}, mat.Row(nil, 0, X))
			}
		})
	}
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func TestLogAndImpute(t *testing.T) {
	f, _ := data.NewBuilder().
		Numeric("y", []float64{1, 2, 3}).
		Numeric("x", []float64{1, math.NaN(), math.E * math.E}).
		Build()
	fitted, err := NewRecipe(data.NewRoles("y", "x"),
		ImputeMean(AllNumericPredictors()),
		Log(Columns("x"), 0, 0),
	).Fit(f)
	require.NoError(t, err)
	baked, err := fitted.Apply(f)
	require.NoError(t, err)
	x, _ := baked.Numeric("x")
	assert.InDelta(t, 0, x[0], 1e-12)
	assert.InDelta(t, math.Log((1+math.E*math.E)/2), x[1], 1e-12)
	assert.InDelta(t, 2, x[2], 1e-12)

	neg, _ := data.NewBuilder().Numeric("x", []float64{-1}).Build()
	_, err = fitted.Apply(neg)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestRecipe_TuningMarkers(t *testing.T) {
	rec := NewRecipe(data.NewRoles("mpg", "wt"),
		Poly(Columns("wt"), model.Tune(), Orthogonal),
		Spline(Columns("hp"), model.Tune("knots"), Raw),
	)
	assert.Equal(t, []string{"degree", "knots"}, rec.TunableParams())

	_, err := rec.Fit(carFrame(t))
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))

	final, err := rec.Finalize(model.Values{"degree": 2, "knots": 4})
	require.NoError(t, err)
	assert.Empty(t, final.TunableParams())
	assert.Equal(t, []string{"degree", "knots"}, rec.TunableParams(), "original unchanged")

	_, err = rec.Finalize(model.Values{"degree": 2})
	assert.Error(t, err)
}

func TestDesign_RequiresEncoding(t *testing.T) {
	fitted, err := NewRecipe(carRoles()).Fit(carFrame(t))
	require.NoError(t, err)
	_, _, err = fitted.Design(carFrame(t))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5})
	s := NewStandardScaler()
	Z, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, -math.Sqrt(1.5), Z.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, Z.At(1, 1), "constant column only centered")

	back, err := s.InverseTransform(Z)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(back, X, 1e-12))

	_, err = NewStandardScaler().Transform(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
