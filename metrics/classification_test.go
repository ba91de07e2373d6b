package metrics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

var yesNo = []string{"yes", "no"}

func TestConfusionMatrix(t *testing.T) {
	truth := []int{0, 0, 0, 1, 1, 1, 1, 0}
	estimate := []int{0, 0, 1, 1, 1, 0, 1, 0}

	cm, err := ConfusionMatrix(truth, estimate, yesNo)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3, 1}, {1, 3}}, cm.Counts)
	assert.Equal(t, 8, cm.Total())
	assert.InDelta(t, 0.75, cm.Accuracy(), 1e-12)
	assert.InDelta(t, 0.75, cm.Sensitivity(), 1e-12)
	assert.InDelta(t, 0.75, cm.Specificity(), 1e-12)
	assert.InDelta(t, 0.5, cm.Kappa(), 1e-12)
}

func TestClassMetricsEventIsFirstLevel(t *testing.T) {
	// 3 of 4 "yes" rows found, 2 of 2 "no" rows correct.
	truth := []int{0, 0, 0, 0, 1, 1}
	estimate := []int{0, 0, 0, 1, 1, 1}

	sens, err := Sensitivity(truth, estimate, yesNo)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, sens, 1e-12)

	spec, err := Specificity(truth, estimate, yesNo)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, spec, 1e-12)

	acc, err := Accuracy(truth, estimate)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, acc, 1e-12)
}

func TestClassMetricsMulticlassMacro(t *testing.T) {
	levels := []string{"a", "b", "c"}
	truth := []int{0, 1, 2, 2}
	estimate := []int{0, 2, 2, 2}

	sens, err := Sensitivity(truth, estimate, levels)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, sens, 1e-12)

	kap, err := Kappa(truth, estimate, levels)
	require.NoError(t, err)
	// po = 3/4, pe = (1*1 + 1*0 + 2*3)/16
	pe := 7.0 / 16.0
	assert.InDelta(t, (0.75-pe)/(1-pe), kap, 1e-12)
}

func TestSensitivityUndefined(t *testing.T) {
	warnings := captureWarnings(t)

	got, err := Sensitivity([]int{1, 1}, []int{0, 1}, yesNo)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
	require.Len(t, *warnings, 1)
	var w *errors.UndefinedMetricWarning
	require.True(t, errors.As((*warnings)[0], &w))
	assert.Equal(t, "sensitivity", w.Metric)
}

func TestClassMetricErrors(t *testing.T) {
	tests := []struct {
		name     string
		truth    []int
		estimate []int
		levels   []string
	}{
		{"empty", []int{}, []int{}, yesNo},
		{"length mismatch", []int{0, 1}, []int{0}, yesNo},
		{"index out of range", []int{0, 2}, []int{0, 1}, yesNo},
		{"single level", []int{0, 0}, []int{0, 0}, []string{"only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfusionMatrix(tt.truth, tt.estimate, tt.levels)
			assert.Error(t, err)
		})
	}
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name     string
		positive []bool
		score    []float64
		want     float64
	}{
		{
			name:     "perfect",
			positive: []bool{false, false, true, true},
			score:    []float64{0.1, 0.4, 0.6, 0.8},
			want:     1.0,
		},
		{
			name:     "typical",
			positive: []bool{false, false, true, true},
			score:    []float64{0.1, 0.4, 0.35, 0.8},
			want:     0.75,
		},
		{
			name:     "inverted",
			positive: []bool{false, false, true, true},
			score:    []float64{0.8, 0.6, 0.4, 0.1},
			want:     0.0,
		},
		{
			name:     "ties count half",
			positive: []bool{true, false},
			score:    []float64{0.5, 0.5},
			want:     0.5,
		},
		{
			name:     "partial ties",
			positive: []bool{true, true, false, false},
			score:    []float64{0.7, 0.5, 0.5, 0.1},
			want:     0.875,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.positive, tt.score)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestROCAUC(t *testing.T) {
	t.Run("binary uses first level as event", func(t *testing.T) {
		truth := []int{0, 0, 1, 1}
		prob := mat.NewDense(4, 2, []float64{
			0.9, 0.1,
			0.6, 0.4,
			0.65, 0.35,
			0.2, 0.8,
		})
		got, err := ROCAUC(truth, prob, yesNo)
		require.NoError(t, err)
		assert.InDelta(t, 0.75, got, 1e-12)
	})

	t.Run("hand till on separable classes", func(t *testing.T) {
		truth := []int{0, 1, 2, 0, 1, 2}
		prob := mat.NewDense(6, 3, []float64{
			0.8, 0.1, 0.1,
			0.1, 0.7, 0.2,
			0.1, 0.2, 0.7,
			0.6, 0.3, 0.1,
			0.2, 0.6, 0.2,
			0.3, 0.1, 0.6,
		})
		got, err := ROCAUC(truth, prob, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-12)
	})

	t.Run("column count must match levels", func(t *testing.T) {
		_, err := ROCAUC([]int{0, 1}, mat.NewDense(2, 3, nil), yesNo)
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})

	t.Run("single class warns", func(t *testing.T) {
		warnings := captureWarnings(t)
		got, err := ROCAUC([]int{0, 0}, mat.NewDense(2, 2, []float64{0.5, 0.5, 0.3, 0.7}), yesNo)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(got))
		assert.Len(t, *warnings, 1)
	})
}

func TestMeanLogLoss(t *testing.T) {
	tests := []struct {
		name  string
		truth []int
		p1    []float64
		want  float64
	}{
		{"typical", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 0.164252},
		{"worst", []int{0, 0, 1, 1}, []float64{0.9, 0.9, 0.1, 0.1}, 2.3025851},
		{"clipped", []int{0, 1}, []float64{0, 1}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prob := mat.NewDense(len(tt.p1), 2, nil)
			for i, p := range tt.p1 {
				prob.Set(i, 0, 1-p)
				prob.Set(i, 1, p)
			}
			got, err := MeanLogLoss(tt.truth, prob)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-5)
		})
	}
}

func BenchmarkAUC(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	n := 1000
	positive := make([]bool, n)
	score := make([]float64, n)
	for i := range positive {
		positive[i] = rng.IntN(2) == 1
		score[i] = rng.Float64()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(positive, score)
	}
}
