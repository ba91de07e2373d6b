// Package tune evaluates workflow candidates by k-fold cross-validation on
// the training partition, selects parameter values and performs the final
// fit that reads the evaluation partition once.
//
// Candidate × fold jobs run on a bounded worker pool. Each job writes only
// its own result slot; aggregation happens after all jobs have joined.
package tune

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/core/parallel"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// DefaultFolds is the number of folds when WithFolds is not given.
const DefaultFolds = 10

// Option configures Tune, TuneBayes and LastFit.
type Option func(*config)

type config struct {
	folds     int
	seed      uint64
	strata    string
	breaks    int
	resamples *data.FoldSet
	metrics   []metrics.Metric
	workers   int
	logger    log.Logger
	progress  func(done, total int)
}

func newConfig(opts []Option) config {
	c := config{folds: DefaultFolds, breaks: 4}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("tune")
	}
	return c
}

// WithFolds sets k for k-fold cross-validation.
func WithFolds(k int) Option { return func(c *config) { c.folds = k } }

// WithSeed seeds the fold assignment.
func WithSeed(seed uint64) Option { return func(c *config) { c.seed = seed } }

// WithStrata stratifies the folds by a column.
func WithStrata(column string) Option { return func(c *config) { c.strata = column } }

// WithBreaks sets the quantile bins of a numeric strata column.
func WithBreaks(n int) Option { return func(c *config) { c.breaks = n } }

// WithResamples uses precomputed folds instead of creating new ones.
// WithFolds, WithSeed and WithStrata are then ignored.
func WithResamples(folds *data.FoldSet) Option { return func(c *config) { c.resamples = folds } }

// WithMetrics sets the metrics to compute. The first one is primary.
func WithMetrics(ms ...metrics.Metric) Option { return func(c *config) { c.metrics = ms } }

// WithWorkers bounds the worker pool. 1 runs jobs sequentially; 0 uses
// every CPU.
func WithWorkers(n int) Option { return func(c *config) { c.workers = n } }

// WithLogger overrides the logger.
func WithLogger(l log.Logger) Option { return func(c *config) { c.logger = l } }

// WithProgress is called after every finished job. Calls are serialized.
func WithProgress(fn func(done, total int)) Option { return func(c *config) { c.progress = fn } }

// DefaultMetrics returns rmse and rsq for regression and accuracy and
// roc_auc for classification.
func DefaultMetrics(mode workflow.Mode) []metrics.Metric {
	if mode == workflow.Classification {
		return []metrics.Metric{metrics.AccuracyMetric, metrics.ROCAUCMetric}
	}
	return []metrics.Metric{metrics.RMSEMetric, metrics.RSquaredMetric}
}

// MetricRecord is one metric on one fold for one candidate.
type MetricRecord struct {
	Candidate int
	Params    model.Values
	Fold      string
	Metric    string
	Value     float64
}

// Summary aggregates one metric of one candidate over the folds.
// StdErr is the sample standard deviation over √N. Undefined (NaN) fold
// values are left out of both.
type Summary struct {
	Candidate int
	Params    model.Values
	Metric    string
	Direction metrics.Direction
	Mean      float64
	StdErr    float64
	N         int
}

// Result holds every fold-level record and the per-candidate summaries.
type Result struct {
	Records   []MetricRecord
	Summaries []Summary
	Metrics   []metrics.Metric
	Params    []string
	Folds     int
}

// Metric resolves a metric of the result by name; "" is the primary one.
func (r *Result) Metric(name string) (metrics.Metric, error) {
	if name == "" {
		return r.Metrics[0], nil
	}
	for _, m := range r.Metrics {
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, errors.NewValidationError("metric", "not computed by this tuning run", name)
}

// SummariesFor returns the summaries of one metric in candidate order.
func (r *Result) SummariesFor(metric string) ([]Summary, error) {
	m, err := r.Metric(metric)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, s := range r.Summaries {
		if s.Metric == m.Name() {
			out = append(out, s)
		}
	}
	return out, nil
}

// evaluator runs candidate × fold jobs against fixed folds.
type evaluator struct {
	wf      *workflow.Workflow
	folds   *data.FoldSet
	levels  []string
	metrics []metrics.Metric
	cfg     config
	logger  log.Logger

	mu    sync.Mutex
	done  int
	total int
}

func newEvaluator(wf *workflow.Workflow, train *data.Frame, cfg config) (*evaluator, error) {
	if train == nil || train.NRows() == 0 {
		return nil, errors.NewModelError("tune", "empty training data", errors.ErrEmptyData)
	}
	if err := wf.CheckOutcome(train.Schema()); err != nil {
		return nil, err
	}
	ms := cfg.metrics
	if len(ms) == 0 {
		ms = DefaultMetrics(wf.Spec().Mode())
	}
	if err := wf.CheckMetrics(ms...); err != nil {
		return nil, err
	}

	folds := cfg.resamples
	if folds == nil {
		opts := []data.Option{data.WithSeed(cfg.seed), data.WithBreaks(cfg.breaks)}
		if cfg.strata != "" {
			opts = append(opts, data.WithStrata(cfg.strata))
		}
		var err error
		if folds, err = data.VFold(train, cfg.folds, opts...); err != nil {
			return nil, err
		}
	} else if folds.NRows() != train.NRows() {
		return nil, errors.NewDimensionError("tune.WithResamples", train.NRows(), folds.NRows(), 0)
	}

	e := &evaluator{
		wf:      wf,
		folds:   folds,
		metrics: ms,
		cfg:     cfg,
		logger:  cfg.logger.With(log.WorkflowIDKey, wf.ID()),
	}
	if wf.Spec().Mode() == workflow.Classification {
		levels, err := train.Levels(wf.Outcome())
		if err != nil {
			return nil, err
		}
		e.levels = levels
	}
	return e, nil
}

func (e *evaluator) tick() {
	if e.cfg.progress == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done++
	e.cfg.progress(e.done, e.total)
}

// run evaluates candidates on every fold. Candidate numbers in the records
// start at offset.
func (e *evaluator) run(candidates []model.Values, offset int) ([]MetricRecord, error) {
	finals := make([]*workflow.Workflow, len(candidates))
	for c, values := range candidates {
		wf, err := e.wf.Finalize(values)
		if err != nil {
			return nil, err
		}
		finals[c] = wf
	}

	nFolds := e.folds.Len()
	slots := make([][]float64, len(candidates)*nFolds)
	fitOpts := []workflow.FitOption{}
	if e.levels != nil {
		fitOpts = append(fitOpts, workflow.WithOutcomeLevels(e.levels))
	}

	errs := parallel.ForEach(len(slots), e.cfg.workers, func(i, workerID int) error {
		c, f := i/nFolds, i%nFolds
		fold := e.folds.Folds[f]
		start := time.Now()

		fitted, err := finals[c].Fit(fold.Analysis(), fitOpts...)
		if err != nil {
			return errors.Wrapf(err, "candidate %d (%s), %s", offset+c+1, candidates[c], fold.ID)
		}
		values, err := fitted.Evaluate(fold.Assessment(), e.metrics...)
		if err != nil {
			return errors.Wrapf(err, "candidate %d (%s), %s", offset+c+1, candidates[c], fold.ID)
		}
		slots[i] = values

		e.logger.Debug("fold evaluated",
			log.CandidateKey, offset+c+1,
			log.FoldKey, fold.ID,
			log.WorkerIDKey, workerID,
			log.MetricNameKey, e.metrics[0].Name(),
			log.MetricValueKey, values[0],
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		e.tick()
		return nil
	})
	if err := parallel.FirstError(errs); err != nil {
		e.logger.Error("tuning job failed", err)
		return nil, err
	}

	records := make([]MetricRecord, 0, len(slots)*len(e.metrics))
	for i, values := range slots {
		c, f := i/nFolds, i%nFolds
		for j, m := range e.metrics {
			records = append(records, MetricRecord{
				Candidate: offset + c,
				Params:    candidates[c].Clone(),
				Fold:      e.folds.Folds[f].ID,
				Metric:    m.Name(),
				Value:     values[j],
			})
		}
	}
	return records, nil
}

// summarize aggregates records per candidate and metric, in candidate
// order then metric order.
func summarize(records []MetricRecord, ms []metrics.Metric) []Summary {
	type key struct {
		candidate int
		metric    string
	}
	values := map[key][]float64{}
	params := map[int]model.Values{}
	var order []int
	for _, r := range records {
		if _, ok := params[r.Candidate]; !ok {
			params[r.Candidate] = r.Params
			order = append(order, r.Candidate)
		}
		k := key{r.Candidate, r.Metric}
		if !math.IsNaN(r.Value) {
			values[k] = append(values[k], r.Value)
		} else if _, ok := values[k]; !ok {
			values[k] = nil
		}
	}

	var out []Summary
	for _, c := range order {
		for _, m := range ms {
			v := values[key{c, m.Name()}]
			s := Summary{
				Candidate: c,
				Params:    params[c].Clone(),
				Metric:    m.Name(),
				Direction: m.Direction(),
				Mean:      math.NaN(),
				StdErr:    math.NaN(),
				N:         len(v),
			}
			if len(v) > 0 {
				s.Mean = stat.Mean(v, nil)
			}
			if len(v) > 1 {
				s.StdErr = stat.StdDev(v, nil) / math.Sqrt(float64(len(v)))
			}
			out = append(out, s)
		}
	}
	return out
}

// Tune evaluates every grid candidate by k-fold cross-validation on train.
// A workflow without tuning parameters is evaluated once with a nil grid.
// The evaluation partition of a split is never an input.
func Tune(wf *workflow.Workflow, train *data.Frame, grid *Grid, opts ...Option) (*Result, error) {
	start := time.Now()
	cfg := newConfig(opts)

	tunable := wf.TunableParams()
	if len(tunable) == 0 && (grid == nil || grid.Len() == 0) {
		grid = NewGrid(model.Values{})
	}
	if err := grid.Validate(tunable); err != nil {
		return nil, err
	}

	e, err := newEvaluator(wf, train, cfg)
	if err != nil {
		return nil, err
	}
	candidates := grid.Candidates()
	e.total = len(candidates) * e.folds.Len()

	e.logger.Info("tuning started",
		log.OperationKey, log.OperationTune,
		log.ModelNameKey, wf.Spec().String(),
		log.CandidatesKey, len(candidates),
		log.FoldCountKey, e.folds.Len(),
		log.WorkersKey, cfg.workers,
		log.RandomSeedKey, cfg.seed,
	)

	records, err := e.run(candidates, 0)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Records:   records,
		Summaries: summarize(records, e.metrics),
		Metrics:   e.metrics,
		Params:    tunable,
		Folds:     e.folds.Len(),
	}

	e.logger.Info("tuning finished",
		log.OperationKey, log.OperationTune,
		log.CandidatesKey, len(candidates),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}
