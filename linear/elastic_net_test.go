package linear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// orthogonal, centered columns: each x_jᵀx_j = 8
func orthogonalDesign() (*mat.Dense, *mat.Dense) {
	x1 := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	x2 := []float64{1, 1, -1, -1, 1, 1, -1, -1}
	X := mat.NewDense(8, 2, nil)
	y := mat.NewDense(8, 1, nil)
	for i := range x1 {
		X.SetRow(i, []float64{x1[i], x2[i]})
		y.Set(i, 0, 5+3*x1[i]+0.1*x2[i])
	}
	return X, y
}

func TestElasticNet_LassoExactZero(t *testing.T) {
	X, y := orthogonalDesign()

	// β_j = S(x_jᵀy, λ/2) / 8, x1ᵀy = 24, x2ᵀy = 0.8
	en, err := NewElasticNet(4, 1)
	require.NoError(t, err)
	require.NoError(t, en.Fit(X, y))
	assert.InDelta(t, 22.0/8, en.Coef()[0], 1e-10)
	assert.Equal(t, 0.0, en.Coef()[1])
	assert.InDelta(t, 5.0, en.Intercept(), 1e-10)

	lmax, err := LambdaMax(X, y, 1)
	require.NoError(t, err)
	assert.InDelta(t, 48.0, lmax, 1e-10)

	all, err := NewElasticNet(lmax, 1)
	require.NoError(t, err)
	require.NoError(t, all.Fit(X, y))
	assert.Equal(t, []float64{0, 0}, all.Coef())
	assert.InDelta(t, 5.0, all.Intercept(), 1e-10)
}

func TestElasticNet_RidgeClosedForm(t *testing.T) {
	X, y := syntheticRegression(60, 11)
	const lambda = 25.0

	en, err := NewElasticNet(lambda, 0)
	require.NoError(t, err)
	require.NoError(t, en.Fit(X, y))

	// (XcᵀXc + λI)⁻¹ Xcᵀyc
	cd := center(X, y)
	Xc := mat.NewDense(60, 2, nil)
	for j, col := range cd.cols {
		Xc.SetCol(j, col)
	}
	var A mat.Dense
	A.Mul(Xc.T(), Xc)
	A.Set(0, 0, A.At(0, 0)+lambda)
	A.Set(1, 1, A.At(1, 1)+lambda)
	var b, beta mat.VecDense
	b.MulVec(Xc.T(), mat.NewVecDense(60, cd.y))
	require.NoError(t, beta.SolveVec(&A, &b))

	assert.InDeltaSlice(t, []float64{beta.AtVec(0), beta.AtVec(1)}, en.Coef(), 1e-6)
}

func TestElasticNet_ZeroPenaltyMatchesOLS(t *testing.T) {
	X, y := syntheticRegression(40, 5)
	ols := NewLinearRegression()
	require.NoError(t, ols.Fit(X, y))
	en, err := NewElasticNet(0, 0.5)
	require.NoError(t, err)
	require.NoError(t, en.Fit(X, y))

	assert.InDeltaSlice(t, ols.Coef(), en.Coef(), 1e-6)
	assert.InDelta(t, ols.Intercept(), en.Intercept(), 1e-5)
}

func TestElasticNet_PathShrinksMonotonically(t *testing.T) {
	X, y := syntheticRegression(80, 21)
	lambdas := []float64{0, 1, 10, 50, 100, 500, 1000, 5000}

	tests := []struct {
		alpha   float64
		penalty func(b []float64) float64
	}{
		{alpha: 1, penalty: func(b []float64) float64 { return floats.Norm(b, 1) }},
		{alpha: 0.5, penalty: func(b []float64) float64 { return 0.5*floats.Dot(b, b) + 0.5*floats.Norm(b, 1) }},
		{alpha: 0, penalty: func(b []float64) float64 { return floats.Norm(b, 2) }},
	}
	for _, tt := range tests {
		en, err := NewElasticNet(0, tt.alpha)
		require.NoError(t, err)
		path, err := en.Path(X, y, lambdas)
		require.NoError(t, err)
		require.Len(t, path, len(lambdas))

		assert.Equal(t, 5000.0, path[0].Lambda)
		for i := 1; i < len(path); i++ {
			assert.Greater(t, path[i-1].Lambda, path[i].Lambda)
			assert.GreaterOrEqual(t, tt.penalty(path[i].Coef)+1e-6, tt.penalty(path[i-1].Coef),
				"alpha=%g lambda=%g", tt.alpha, path[i].Lambda)
		}
	}
}

func TestElasticNet_Validation(t *testing.T) {
	tests := []struct {
		name          string
		lambda, alpha float64
	}{
		{"negative penalty", -1, 0.5},
		{"NaN penalty", math.NaN(), 0.5},
		{"infinite penalty", math.Inf(1), 0.5},
		{"mixture above one", 1, 1.5},
		{"negative mixture", 1, -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewElasticNet(tt.lambda, tt.alpha)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestElasticNet_ConvergenceWarning(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	errors.SetZerologWarnFunc(nil)
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	X, y := syntheticRegression(50, 2)
	en, err := NewElasticNet(0.01, 0.5, WithMaxIter(1), WithTol(1e-15))
	require.NoError(t, err)
	require.NoError(t, en.Fit(X, y))

	require.NotEmpty(t, warned)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warned[0], &cw))
	assert.Equal(t, "ElasticNet", cw.Algorithm)
}

func TestElasticNet_Weights(t *testing.T) {
	X, y := orthogonalDesign()
	en, _ := NewElasticNet(4, 1)
	require.NoError(t, en.Fit(X, y))
	w, err := en.ExportWeights([]string{"x1", "x2"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, w.Hyperparameters["penalty"])

	restored, _ := NewElasticNet(0, 0)
	require.NoError(t, restored.ImportWeights(w))
	assert.Equal(t, 4.0, restored.Penalty())
	a, _ := en.Predict(X)
	b, _ := restored.Predict(X)
	assert.True(t, mat.Equal(a, b))

	table, err := restored.Summary([]string{"x1", "x2"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(table[1].StdError))
}
