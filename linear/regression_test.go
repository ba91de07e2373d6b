package linear

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// y = 3 + 2·x1 - x2 + ε, ε ~ N(0, 0.5²)
func syntheticRegression(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rng}
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1, x2 := rng.Float64()*10, rng.NormFloat64()*3
		X.SetRow(i, []float64{x1, x2})
		y.Set(i, 0, 3+2*x1-x2+noise.Rand())
	}
	return X, y
}

func rmse(y, pred mat.Matrix) float64 {
	r, _ := y.Dims()
	ss := 0.0
	for i := 0; i < r; i++ {
		d := y.At(i, 0) - pred.At(i, 0)
		ss += d * d
	}
	return math.Sqrt(ss / float64(r))
}

func TestLinearRegression_Basic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-10)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-10)

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred.At(0, 0), 1e-10)
	assert.InDelta(t, 13.0, pred.At(1, 0), 1e-10)
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-10)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegression_RecoversCoefficients(t *testing.T) {
	X, y := syntheticRegression(150, 7)
	trainX, trainY := X.Slice(0, 100, 0, 2), y.Slice(0, 100, 0, 1)
	testX, testY := X.Slice(100, 150, 0, 2), y.Slice(100, 150, 0, 1)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(trainX, trainY))
	assert.InDelta(t, 2.0, lr.Coef()[0], 0.1)
	assert.InDelta(t, -1.0, lr.Coef()[1], 0.1)
	assert.InDelta(t, 3.0, lr.Intercept(), 0.5)
	assert.Equal(t, 97, lr.DFResidual())

	pred, err := lr.Predict(testX)
	require.NoError(t, err)

	trainMean := floats.Sum(mat.Col(nil, 0, trainY)) / 100
	baseline := mat.NewDense(50, 1, nil)
	for i := 0; i < 50; i++ {
		baseline.Set(i, 0, trainMean)
	}
	assert.Less(t, rmse(testY, pred), rmse(testY, baseline))

	r2, err := lr.Score(testX, testY)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.9)
}

// x = 1..5, y = {1,3,2,5,4}: slope 0.8, intercept 0.6, σ² = 1.2
func TestLinearRegression_Summary(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{1, 3, 2, 5, 4})
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	table, err := lr.Summary([]string{"x"})
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.Equal(t, InterceptTerm, table[0].Term)
	assert.InDelta(t, 0.6, table[0].Estimate, 1e-10)
	assert.InDelta(t, math.Sqrt(1.32), table[0].StdError, 1e-10)

	assert.Equal(t, "x", table[1].Term)
	assert.InDelta(t, 0.8, table[1].Estimate, 1e-10)
	assert.InDelta(t, math.Sqrt(0.12), table[1].StdError, 1e-10)
	assert.InDelta(t, 0.8/math.Sqrt(0.12), table[1].Statistic, 1e-9)
	assert.InDelta(t, 0.1041, table[1].PValue, 1e-3)

	_, err = lr.Summary([]string{"x", "extra"})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestLinearRegression_PredictInterval(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{1, 3, 2, 5, 4})
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	at := mat.NewDense(1, 1, []float64{3})
	tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 3}.Quantile(0.975)

	fit, lo, hi, err := lr.PredictInterval(at, 0.95, model.ConfidenceInterval)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, fit.AtVec(0), 1e-10)
	assert.InDelta(t, tq*math.Sqrt(1.2*0.2), hi.AtVec(0)-fit.AtVec(0), 1e-9)
	assert.InDelta(t, fit.AtVec(0)-lo.AtVec(0), hi.AtVec(0)-fit.AtVec(0), 1e-12)

	_, plo, phi, err := lr.PredictInterval(at, 0.95, model.PredictionInterval)
	require.NoError(t, err)
	assert.InDelta(t, tq*math.Sqrt(1.2*1.2), phi.AtVec(0)-fit.AtVec(0), 1e-9)
	assert.Less(t, plo.AtVec(0), lo.AtVec(0))

	_, _, _, err = lr.PredictInterval(at, 1.5, model.ConfidenceInterval)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestLinearRegression_Errors(t *testing.T) {
	tests := []struct {
		name  string
		X, y  *mat.Dense
		check func(t *testing.T, err error)
	}{
		{
			name: "too few rows",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(2, 1, []float64{1, 2}),
			check: func(t *testing.T, err error) {
				var ie *errors.InsufficientDataError
				require.True(t, errors.As(err, &ie))
				assert.Equal(t, 3, ie.Required)
			},
		},
		{
			name: "collinear columns",
			X:    mat.NewDense(4, 2, []float64{1, 2, 2, 4, 3, 6, 4, 8}),
			y:    mat.NewDense(4, 1, []float64{1, 2, 3, 5}),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
			},
		},
		{
			name: "row mismatch",
			X:    mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
			y:    mat.NewDense(3, 1, []float64{1, 2, 3}),
			check: func(t *testing.T, err error) {
				var de *errors.DimensionError
				assert.True(t, errors.As(err, &de))
			},
		},
		{
			name: "NaN input",
			X:    mat.NewDense(4, 1, []float64{1, math.NaN(), 3, 4}),
			y:    mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
			check: func(t *testing.T, err error) {
				var ne *errors.NumericalInstabilityError
				assert.True(t, errors.As(err, &ne))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLinearRegression().Fit(tt.X, tt.y)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLinearRegression_NotFitted(t *testing.T) {
	_, err := NewLinearRegression().Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestLinearRegression_Weights(t *testing.T) {
	X, y := syntheticRegression(30, 3)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w, err := lr.ExportWeights([]string{"x1", "x2"})
	require.NoError(t, err)
	require.NoError(t, w.Validate())

	restored := NewLinearRegression()
	require.NoError(t, restored.ImportWeights(w))
	a, _ := lr.Predict(X)
	b, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a, b, 1e-12))

	_, err = restored.Summary([]string{"x1", "x2"})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	w.ModelType = "ElasticNet"
	assert.Error(t, NewLinearRegression().ImportWeights(w))
}
