package tune

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// suggest draws the value of r for a trial.
func suggest(trial goptuna.Trial, r Range) (float64, error) {
	switch {
	case r.Integer:
		v, err := trial.SuggestInt(r.Name, int(math.Ceil(r.Min)), int(math.Floor(r.Max)))
		return float64(v), err
	case r.Scale == Log10:
		return trial.SuggestLogFloat(r.Name, r.Min, r.Max)
	}
	return trial.SuggestFloat(r.Name, r.Min, r.Max)
}

// TuneBayes searches space with a tree-structured Parzen estimator for
// trials iterations. Every trial is a full k-fold evaluation on the same
// folds, so the Result is comparable with a grid Tune; candidate numbers
// are trial numbers.
func TuneBayes(wf *workflow.Workflow, train *data.Frame, space []Range, trials int, opts ...Option) (*Result, error) {
	start := time.Now()
	cfg := newConfig(opts)

	if trials < 1 {
		return nil, errors.NewValidationError("trials", "must be at least 1", trials)
	}
	tunable := wf.TunableParams()
	names := make([]string, 0, len(space))
	for _, r := range space {
		if err := r.validate(); err != nil {
			return nil, err
		}
		names = append(names, r.Name)
	}
	slices.Sort(names)
	if !slices.Equal(names, tunable) {
		return nil, errors.NewGridError("", fmt.Sprintf("search space %v must cover exactly the tuning parameters %v", names, tunable))
	}

	e, err := newEvaluator(wf, train, cfg)
	if err != nil {
		return nil, err
	}
	e.total = trials * e.folds.Len()
	primary := e.metrics[0]

	direction := goptuna.StudyDirectionMinimize
	if primary.Direction() == metrics.Maximize {
		direction = goptuna.StudyDirectionMaximize
	}
	study, err := goptuna.CreateStudy("modelflow-"+wf.ID(),
		goptuna.StudyOptionDirection(direction),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(int64(cfg.seed)))),
		goptuna.StudyOptionLogger(e.logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create study")
	}

	e.logger.Info("bayesian tuning started",
		log.OperationKey, log.OperationTune,
		log.ModelNameKey, wf.Spec().String(),
		log.TrialKey, trials,
		log.FoldCountKey, e.folds.Len(),
		log.RandomSeedKey, cfg.seed,
	)

	var records []MetricRecord
	var runErr error
	trial := 0
	objective := func(t goptuna.Trial) (float64, error) {
		values := model.Values{}
		for _, r := range space {
			v, err := suggest(t, r)
			if err != nil {
				return 0, err
			}
			values[r.Name] = v
		}
		recs, err := e.run([]model.Values{values}, trial)
		if err != nil {
			runErr = err
			return 0, err
		}
		trial++
		records = append(records, recs...)

		s := summarize(recs, []metrics.Metric{primary})[0]
		e.logger.Debug("trial finished",
			log.TrialKey, trial,
			log.HyperParamsKey, values.String(),
			log.MetricNameKey, primary.Name(),
			log.MetricValueKey, s.Mean,
		)
		if math.IsNaN(s.Mean) {
			// undefined on every fold: rank it last
			if direction == goptuna.StudyDirectionMaximize {
				return math.Inf(-1), nil
			}
			return math.Inf(1), nil
		}
		return s.Mean, nil
	}
	if err := study.Optimize(objective, trials); err != nil || runErr != nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, errors.Wrap(err, "optimize")
	}

	res := &Result{
		Records:   records,
		Summaries: summarize(records, e.metrics),
		Metrics:   e.metrics,
		Params:    tunable,
		Folds:     e.folds.Len(),
	}
	best, _ := study.GetBestValue()
	e.logger.Info("bayesian tuning finished",
		log.OperationKey, log.OperationTune,
		log.TrialKey, trial,
		log.MetricNameKey, primary.Name(),
		log.MetricValueKey, best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}
