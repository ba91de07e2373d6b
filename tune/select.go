package tune

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// ShowBest returns up to n summaries of metric ordered best first. Ties
// keep candidate order; NaN means sort last.
func ShowBest(res *Result, metric string, n int) ([]Summary, error) {
	all, err := res.SummariesFor(metric)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(all, func(a, b Summary) int {
		switch {
		case a.Direction.Better(a.Mean, b.Mean):
			return -1
		case a.Direction.Better(b.Mean, a.Mean):
			return 1
		}
		return 0
	})
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// SelectBest returns the candidate with the best mean of metric ("" for
// the primary metric).
func SelectBest(res *Result, metric string) (model.Values, Summary, error) {
	best, err := ShowBest(res, metric, 1)
	if err != nil {
		return nil, Summary{}, err
	}
	if len(best) == 0 || math.IsNaN(best[0].Mean) {
		return nil, Summary{}, errors.NewValueError("SelectBest", "no candidate has a defined mean for "+metricName(res, metric))
	}
	logSelection("best", best[0])
	return best[0].Params.Clone(), best[0], nil
}

// Ordering ranks candidates by simplicity for SelectByOneStdErr.
type Ordering struct {
	Param string
	Desc  bool
}

// Asc prefers small values of param (e.g. fewer neighbors).
func Asc(param string) Ordering { return Ordering{Param: param} }

// Desc prefers large values of param (e.g. a larger penalty).
func Desc(param string) Ordering { return Ordering{Param: param, Desc: true} }

// SelectByOneStdErr applies the one-standard-error rule: among candidates
// whose mean is within one standard error of the best mean, it returns
// the first in the given ordering. The chosen mean is never worse than
// best ± best.StdErr.
//
//	values, _, err := tune.SelectByOneStdErr(res, "rmse", tune.Desc("penalty"))
func SelectByOneStdErr(res *Result, metric string, order ...Ordering) (model.Values, Summary, error) {
	if len(order) == 0 {
		return nil, Summary{}, errors.NewValidationError("order", "at least one ordering is required", nil)
	}
	for _, o := range order {
		if !slices.Contains(res.Params, o.Param) {
			return nil, Summary{}, errors.NewValidationError("order", "not a tuning parameter", o.Param)
		}
	}
	_, best, err := SelectBest(res, metric)
	if err != nil {
		return nil, Summary{}, err
	}
	all, err := res.SummariesFor(metric)
	if err != nil {
		return nil, Summary{}, err
	}

	se := best.StdErr
	if math.IsNaN(se) {
		se = 0
	}
	bound := best.Mean + se
	if best.Direction == metrics.Maximize {
		bound = best.Mean - se
	}
	within := lo.Filter(all, func(s Summary, _ int) bool {
		if math.IsNaN(s.Mean) {
			return false
		}
		if s.Direction == metrics.Maximize {
			return s.Mean >= bound
		}
		return s.Mean <= bound
	})

	slices.SortStableFunc(within, func(a, b Summary) int {
		for _, o := range order {
			c := cmp.Compare(a.Params[o.Param], b.Params[o.Param])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	chosen := within[0]
	logSelection("one_std_err", chosen)
	return chosen.Params.Clone(), chosen, nil
}

func metricName(res *Result, metric string) string {
	if m, err := res.Metric(metric); err == nil {
		return m.Name()
	}
	return metric
}

func logSelection(rule string, s Summary) {
	log.GetLoggerWithName("tune").Info("candidate selected",
		log.OperationKey, log.OperationSelect,
		"tune.rule", rule,
		log.CandidateKey, s.Candidate+1,
		log.HyperParamsKey, s.Params.String(),
		log.MetricNameKey, s.Metric,
		log.MetricValueKey, s.Mean,
		log.MetricSEKey, s.StdErr,
	)
}

// FinalizeWorkflow substitutes the selected values into wf.
func FinalizeWorkflow(wf *workflow.Workflow, values model.Values) (*workflow.Workflow, error) {
	return wf.Finalize(values)
}

// Estimate is one metric computed on the evaluation partition.
type Estimate struct {
	Metric string
	Value  float64
}

// LastFitResult is the outcome of LastFit.
type LastFitResult struct {
	Fitted      *workflow.FittedWorkflow
	Predictions *workflow.Predictions
	Metrics     []Estimate
	// Truth pairs the evaluation outcomes with the predictions.
	Truth   metrics.Sample
	Testing *data.Frame
}

// Metric returns the estimate of metric by name.
func (r *LastFitResult) Metric(name string) (float64, bool) {
	e, ok := lo.Find(r.Metrics, func(e Estimate) bool { return e.Metric == name })
	return e.Value, ok
}

// LastFit fits a finalized workflow on the training partition, then takes
// the evaluation partition (once) and scores the predictions. Without
// metrics the mode defaults of DefaultMetrics are used.
func LastFit(wf *workflow.Workflow, split *data.Split, ms ...metrics.Metric) (*LastFitResult, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("tune").With(log.WorkflowIDKey, wf.ID())

	if split.Consumed() {
		return nil, errors.WithStack(errors.ErrEvaluationConsumed)
	}
	if len(ms) == 0 {
		ms = DefaultMetrics(wf.Spec().Mode())
	}
	if err := wf.CheckMetrics(ms...); err != nil {
		return nil, err
	}

	train := split.Training()
	var fitOpts []workflow.FitOption
	if wf.Spec().Mode() == workflow.Classification {
		levels, err := train.Levels(wf.Outcome())
		if err != nil {
			return nil, err
		}
		fitOpts = append(fitOpts, workflow.WithOutcomeLevels(levels))
	}
	fitted, err := wf.Fit(train, fitOpts...)
	if err != nil {
		return nil, err
	}

	test, err := split.TakeTesting()
	if err != nil {
		return nil, err
	}
	sample, pred, err := fitted.Sample(test, ms...)
	if err != nil {
		return nil, err
	}
	res := &LastFitResult{Fitted: fitted, Predictions: pred, Truth: sample, Testing: test}
	for _, m := range ms {
		v, err := m.Compute(sample)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %s", m.Name())
		}
		res.Metrics = append(res.Metrics, Estimate{Metric: m.Name(), Value: v})
	}

	logger.Info("last fit finished",
		log.OperationKey, log.OperationLastFit,
		log.PhaseKey, log.PhaseFinal,
		log.SamplesKey, test.NRows(),
		log.MetricNameKey, ms[0].Name(),
		log.MetricValueKey, res.Metrics[0].Value,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}
