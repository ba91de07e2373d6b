package linear_model

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// P(y=1 | x) = σ(-1 + 2·x1), x2 is noise
func logisticData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1, x2 := rng.NormFloat64()*1.5, rng.NormFloat64()
		X.SetRow(i, []float64{x1, x2})
		if rng.Float64() < sigmoid(-1+2*x1) {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestLogisticRegression_RecoversCoefficients(t *testing.T) {
	X, y := logisticData(2000, 1)
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 2.0, lr.Coef()[0], 0.3)
	assert.InDelta(t, 0.0, lr.Coef()[1], 0.2)
	assert.InDelta(t, -1.0, lr.Intercept(), 0.25)
	assert.Less(t, lr.NIter(), 30)
	assert.Greater(t, lr.Deviance(), 0.0)
}

func TestLogisticRegression_BeatsMajorityBaseline(t *testing.T) {
	X, y := logisticData(500, 9)
	trainX, trainY := X.Slice(0, 300, 0, 2), y.Slice(0, 300, 0, 1)
	testX, testY := X.Slice(300, 500, 0, 2), y.Slice(300, 500, 0, 1)

	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(trainX, trainY))
	acc, err := lr.Score(testX, testY)
	require.NoError(t, err)

	ones := 0.0
	for i := 0; i < 300; i++ {
		ones += trainY.At(i, 0)
	}
	majority := 0.0
	if ones > 150 {
		majority = 1
	}
	hits := 0
	for i := 0; i < 200; i++ {
		if testY.At(i, 0) == majority {
			hits++
		}
	}
	assert.Greater(t, acc, float64(hits)/200)
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := logisticData(300, 4)
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 300; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
		want := 0.0
		if proba.At(i, 1) > 0.5 {
			want = 1
		}
		assert.Equal(t, want, pred.At(i, 0))
	}
	assert.Equal(t, 2, lr.NClasses())
}

func TestLogisticRegression_Summary(t *testing.T) {
	X, y := logisticData(1000, 2)
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	table, err := lr.Summary([]string{"x1", "x2"})
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, InterceptTerm, table[0].Term)
	for _, row := range table {
		assert.Greater(t, row.StdError, 0.0)
		assert.InDelta(t, row.Estimate/row.StdError, row.Statistic, 1e-12)
		assert.True(t, row.PValue >= 0 && row.PValue <= 1)
	}
	assert.Less(t, table[1].PValue, 1e-6)
}

func TestLogisticRegression_PenaltyShrinks(t *testing.T) {
	X, y := logisticData(400, 6)
	plain := NewLogisticRegression()
	require.NoError(t, plain.Fit(X, y))
	ridge := NewLogisticRegression(WithLRPenalty(50))
	require.NoError(t, ridge.Fit(X, y))

	assert.Less(t, math.Abs(ridge.Coef()[0]), math.Abs(plain.Coef()[0]))
}

func TestLogisticRegression_InvalidTargets(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	tests := []struct {
		name  string
		y     []float64
		check func(t *testing.T, err error)
	}{
		{
			name: "three classes",
			y:    []float64{0, 1, 2, 1},
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "single class",
			y:    []float64{1, 1, 1, 1},
			check: func(t *testing.T, err error) {
				var ie *errors.InsufficientDataError
				assert.True(t, errors.As(err, &ie))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLogisticRegression().Fit(X, mat.NewDense(4, 1, tt.y))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	_, err := NewLogisticRegression().PredictProba(mat.NewDense(1, 1, []float64{0}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

// 重みを JSON 経由で往復させても予測が完全に一致する
func TestLogisticRegression_WeightReproducibility(t *testing.T) {
	X, y := logisticData(200, 8)
	model1 := NewLogisticRegression(WithLRPenalty(0.5))
	require.NoError(t, model1.Fit(X, y))

	weights, err := model1.ExportWeights([]string{"x1", "x2"})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, model.WriteWeights(weights, &buf))
	loaded, err := model.ReadWeights(&buf)
	require.NoError(t, err)

	model2 := NewLogisticRegression()
	require.NoError(t, model2.ImportWeights(loaded))
	assert.Equal(t, model1.Coef(), model2.Coef())
	assert.Equal(t, model1.Intercept(), model2.Intercept())

	p1, _ := model1.PredictProba(X)
	p2, err := model2.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))

	_, err = model2.Summary([]string{"x1", "x2"})
	assert.Error(t, err)
}
