package tune

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/preprocessing"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// fixedResult builds a Result with one summary per (penalty, mean, se).
func fixedResult(m metrics.Metric, rows ...[3]float64) *Result {
	res := &Result{Metrics: []metrics.Metric{m}, Params: []string{"penalty"}, Folds: 10}
	for i, r := range rows {
		res.Summaries = append(res.Summaries, Summary{
			Candidate: i,
			Params:    model.Values{"penalty": r[0]},
			Metric:    m.Name(),
			Direction: m.Direction(),
			Mean:      r[1],
			StdErr:    r[2],
			N:         10,
		})
	}
	return res
}

func TestSelectBestAndShowBest(t *testing.T) {
	res := fixedResult(metrics.RMSEMetric,
		[3]float64{0.001, 1.00, 0.10},
		[3]float64{0.01, 0.98, 0.10},
		[3]float64{0.1, math.NaN(), math.NaN()},
		[3]float64{1, 1.20, 0.05},
	)
	values, best, err := SelectBest(res, "rmse")
	require.NoError(t, err)
	assert.Equal(t, model.Values{"penalty": 0.01}, values)
	assert.Equal(t, 0.98, best.Mean)

	top, err := ShowBest(res, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, []float64{0.01, 0.001, 1, 0.1}, []float64{
		top[0].Params["penalty"], top[1].Params["penalty"], top[2].Params["penalty"], top[3].Params["penalty"],
	})

	top, err = ShowBest(res, "", 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	_, _, err = SelectBest(res, "rsq")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	allNaN := fixedResult(metrics.RMSEMetric, [3]float64{1, math.NaN(), math.NaN()})
	_, _, err = SelectBest(allNaN, "")
	var vae *errors.ValueError
	assert.True(t, errors.As(err, &vae))
}

func TestSelectByOneStdErr(t *testing.T) {
	tests := []struct {
		name   string
		metric metrics.Metric
		rows   [][3]float64
		order  []Ordering
		want   float64
	}{
		{
			name:   "minimize prefers the largest qualifying penalty",
			metric: metrics.RMSEMetric,
			rows: [][3]float64{
				{0.001, 1.00, 0.10},
				{0.01, 1.05, 0.10},
				{0.1, 1.09, 0.10},
				{1, 1.20, 0.10},
			},
			order: []Ordering{Desc("penalty")},
			want:  0.1,
		},
		{
			name:   "ascending order keeps the smallest",
			metric: metrics.RMSEMetric,
			rows: [][3]float64{
				{0.001, 1.00, 0.10},
				{0.01, 1.05, 0.10},
			},
			order: []Ordering{Asc("penalty")},
			want:  0.001,
		},
		{
			name:   "maximize subtracts the standard error",
			metric: metrics.ROCAUCMetric,
			rows: [][3]float64{
				{0.001, 0.90, 0.02},
				{0.01, 0.91, 0.02},
				{0.1, 0.895, 0.02},
				{1, 0.85, 0.02},
			},
			order: []Ordering{Desc("penalty")},
			want:  0.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fixedResult(tt.metric, tt.rows...)
			values, chosen, err := SelectByOneStdErr(res, "", tt.order...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, values["penalty"])
			assert.Equal(t, tt.want, chosen.Params["penalty"])
		})
	}
}

func TestSelectByOneStdErrRequiresOrdering(t *testing.T) {
	res := fixedResult(metrics.RMSEMetric, [3]float64{1, 1, 0.1})
	_, _, err := SelectByOneStdErr(res, "")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))

	_, _, err = SelectByOneStdErr(res, "", Asc("neighbors"))
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "order", ve.ParamName)
}

// The one-SE choice is never worse than best + SE, on real tuning output.
func TestOneStdErrNeverWorseThanBound(t *testing.T) {
	train := sparseFrame(t, 100, 11)
	grid, err := RegularGrid(Range{Name: "penalty", Min: 1e-3, Max: 300, Levels: 12, Scale: Log10})
	require.NoError(t, err)
	res, err := Tune(lassoWorkflow(), train, grid, WithFolds(10), WithSeed(1))
	require.NoError(t, err)

	for _, m := range []string{"rmse", "rsq"} {
		_, best, err := SelectBest(res, m)
		require.NoError(t, err)
		_, chosen, err := SelectByOneStdErr(res, m, Desc("penalty"))
		require.NoError(t, err)

		if best.Direction == metrics.Minimize {
			assert.LessOrEqual(t, chosen.Mean, best.Mean+best.StdErr)
		} else {
			assert.GreaterOrEqual(t, chosen.Mean, best.Mean-best.StdErr)
		}
		assert.GreaterOrEqual(t, chosen.Params["penalty"], best.Params["penalty"])
	}
}

func TestFinalizeWorkflow(t *testing.T) {
	wf := lassoWorkflow()
	final, err := FinalizeWorkflow(wf, model.Values{"penalty": 0.5})
	require.NoError(t, err)
	assert.Empty(t, final.TunableParams())

	_, err = FinalizeWorkflow(wf, model.Values{})
	assert.Error(t, err)
}

func TestLastFitOLS(t *testing.T) {
	// 150 rows split 2/3 gives 100 training and 50 evaluation rows
	full := sparseFrame(t, 150, 12)
	split, err := data.InitialSplit(full, 2.0/3.0, data.WithSeed(5))
	require.NoError(t, err)
	require.Equal(t, 100, split.NTraining())

	rec := preprocessing.NewRecipe(data.NewRoles("y", "x1", "x2", "x3", "x4", "x5", "x6"))
	res, err := LastFit(workflow.New(rec, workflow.LinearRegSpec()), split)
	require.NoError(t, err)
	assert.True(t, split.Consumed())
	assert.Equal(t, 50, res.Testing.NRows())

	coefs, err := res.Fitted.Coefficients()
	require.NoError(t, err)
	assert.InDelta(t, 3, coefs[0].Estimate, 0.35)
	assert.InDelta(t, 2, coefs[1].Estimate, 0.35)
	assert.InDelta(t, -1.5, coefs[2].Estimate, 0.35)

	rmse, ok := res.Metric("rmse")
	require.True(t, ok)
	_, ok = res.Metric("rsq")
	assert.True(t, ok)

	// intercept-only baseline uses the training mean
	trainY, _ := split.Training().Numeric("y")
	var mean float64
	for _, v := range trainY {
		mean += v / float64(len(trainY))
	}
	baseline := make([]float64, len(res.Truth.Truth))
	for i := range baseline {
		baseline[i] = mean
	}
	baseRMSE, err := metrics.RMSE(res.Truth.Truth, baseline)
	require.NoError(t, err)
	assert.Less(t, rmse, baseRMSE)

	// the evaluation partition is handed out once
	_, err = LastFit(workflow.New(rec, workflow.LinearRegSpec()), split)
	assert.True(t, errors.Is(err, errors.ErrEvaluationConsumed))
}

func TestLastFitLogisticBeatsMajority(t *testing.T) {
	full := classFrame(t, 300, 13)
	split, err := data.InitialSplit(full, 0.7, data.WithStrata("class"), data.WithSeed(2))
	require.NoError(t, err)

	rec := preprocessing.NewRecipe(data.NewRoles("class", "x1", "x2"))
	res, err := LastFit(workflow.New(rec, workflow.LogisticSpec()), split,
		metrics.AccuracyMetric, metrics.ROCAUCMetric, metrics.KappaMetric)
	require.NoError(t, err)

	truth, _ := res.Testing.Categorical("class")
	majority := 0
	for _, c := range truth {
		if c == "a" {
			majority++
		}
	}
	acc, _ := res.Metric("accuracy")
	assert.Greater(t, acc, float64(majority)/float64(len(truth)))
	assert.Len(t, res.Metrics, 3)
	require.NotNil(t, res.Predictions.Prob)
	assert.Equal(t, []string{"a", "b"}, res.Predictions.Levels)
}
