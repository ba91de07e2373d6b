package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

func classFrame(t *testing.T, nA, nB int) *Frame {
	t.Helper()
	n := nA + nB
	x := make([]float64, n)
	cls := make([]string, n)
	for i := range x {
		x[i] = float64(i)
		cls[i] = "A"
		if i < nB {
			cls[i] = "B"
		}
	}
	f, err := NewBuilder().Numeric("x", x).Categorical("class", cls).Build()
	require.NoError(t, err)
	return f
}

func countOf(xs []string, v string) int {
	c := 0
	for _, x := range xs {
		if x == v {
			c++
		}
	}
	return c
}

func ratioB(t *testing.T, f *Frame) float64 {
	cls, err := f.Categorical("class")
	require.NoError(t, err)
	return float64(countOf(cls, "B")) / float64(len(cls))
}

func TestInitialSplit_SizesAddUp(t *testing.T) {
	f := classFrame(t, 70, 30)
	for _, prop := range []float64{0.05, 0.25, 0.5, 0.75, 0.9, 0.95} {
		t.Run(fmt.Sprint(prop), func(t *testing.T) {
			s, err := InitialSplit(f, prop, WithSeed(42))
			require.NoError(t, err)
			test, err := s.TakeTesting()
			require.NoError(t, err)

			assert.Equal(t, f.NRows(), s.Training().NRows()+test.NRows())
			assert.Positive(t, s.Training().NRows())
			assert.Positive(t, test.NRows())

			// disjoint: x is a unique row id
			seen := map[float64]bool{}
			train, _ := s.Training().Numeric("x")
			held, _ := test.Numeric("x")
			for _, v := range append(train, held...) {
				assert.False(t, seen[v])
				seen[v] = true
			}
		})
	}
}

func TestInitialSplit_StratifiedPreservesRatio(t *testing.T) {
	for _, n := range []int{200, 300, 1000} {
		f := classFrame(t, n*7/10, n*3/10)
		require.InDelta(t, 0.3, ratioB(t, f), 1e-12)
		for _, prop := range []float64{0.5, 0.63, 0.75, 0.8} {
			t.Run(fmt.Sprintf("n=%d/prop=%v", n, prop), func(t *testing.T) {
				s, err := InitialSplit(f, prop, WithStrata("class"), WithSeed(7))
				require.NoError(t, err)
				test, err := s.TakeTesting()
				require.NoError(t, err)
				assert.InDelta(t, 0.3, ratioB(t, s.Training()), 0.02)
				assert.InDelta(t, 0.3, ratioB(t, test), 0.02)
			})
		}
	}
}

func TestInitialSplit_NumericStrata(t *testing.T) {
	f := classFrame(t, 140, 60)
	s, err := InitialSplit(f, 0.75, WithStrata("x"), WithBreaks(4), WithSeed(1))
	require.NoError(t, err)
	// four bins of 50 rows, round(37.5) = 38 rows each to training
	assert.Equal(t, 152, s.NTraining())
	assert.Equal(t, 48, s.NTesting())
}

func TestInitialSplit_Reproducible(t *testing.T) {
	f := classFrame(t, 70, 30)
	a, err := InitialSplit(f, 0.7, WithSeed(123))
	require.NoError(t, err)
	b, err := InitialSplit(f, 0.7, WithSeed(123))
	require.NoError(t, err)
	c, err := InitialSplit(f, 0.7, WithSeed(124))
	require.NoError(t, err)

	assert.True(t, a.Training().Equal(b.Training()))
	assert.False(t, a.Training().Equal(c.Training()))
}

func TestInitialSplit_Errors(t *testing.T) {
	f := classFrame(t, 2, 1)
	for _, prop := range []float64{0, 1, -0.1, 1.5} {
		_, err := InitialSplit(f, prop)
		var pe *errors.InvalidProportionError
		assert.True(t, errors.As(err, &pe), "prop %v", prop)
	}

	tests := []struct {
		prop      float64
		partition string
	}{
		{0.1, "training"},
		{0.9, "testing"},
	}
	for _, tt := range tests {
		_, err := InitialSplit(f, tt.prop, WithSeed(1))
		var ee *errors.EmptyPartitionError
		require.True(t, errors.As(err, &ee), "prop %v", tt.prop)
		assert.Equal(t, tt.partition, ee.Partition)
		assert.Equal(t, 3, ee.Rows)
	}
}

func TestSplit_TakeTestingOnce(t *testing.T) {
	s, err := InitialSplit(classFrame(t, 70, 30), 0.75, WithSeed(1))
	require.NoError(t, err)
	assert.False(t, s.Consumed())

	_, err = s.TakeTesting()
	require.NoError(t, err)
	assert.True(t, s.Consumed())

	_, err = s.TakeTesting()
	assert.True(t, errors.Is(err, errors.ErrEvaluationConsumed))
}
