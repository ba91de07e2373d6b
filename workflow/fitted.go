package workflow

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/linear"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/preprocessing"
)

// PredictMode selects what Predict returns.
type PredictMode int

const (
	PredictNumeric PredictMode = iota
	PredictClass
	PredictProb
	PredictConfInt
	PredictPredInt
)

func (m PredictMode) String() string {
	switch m {
	case PredictClass:
		return "class"
	case PredictProb:
		return "prob"
	case PredictConfInt:
		return "conf_int"
	case PredictPredInt:
		return "pred_int"
	}
	return "numeric"
}

// DefaultIntervalLevel is the coverage of PredictConfInt and PredictPredInt.
const DefaultIntervalLevel = 0.95

// Predictions holds one prediction per row. Only the fields of the
// requested mode are set.
type Predictions struct {
	Mode PredictMode

	Numeric []float64
	// Lower and Upper bound Numeric for the interval modes.
	Lower []float64
	Upper []float64

	Class      []string
	ClassIndex []int
	// Prob has one column per level, in Levels order.
	Prob   *mat.Dense
	Levels []string
}

// ProbOf returns the probability column of level.
func (p *Predictions) ProbOf(level string) ([]float64, error) {
	j := slices.Index(p.Levels, level)
	if p.Prob == nil || j < 0 {
		return nil, errors.NewValidationError("level", "no probability column for level", level)
	}
	return mat.Col(nil, j, p.Prob), nil
}

// FittedWorkflow is a prepped recipe and a fitted estimator.
type FittedWorkflow struct {
	workflow   *Workflow
	recipe     *preprocessing.FittedRecipe
	estimator  model.Estimator
	predictors []string
	levels     []string
}

// Workflow returns the finalized workflow that was fit.
func (f *FittedWorkflow) Workflow() *Workflow { return f.workflow }

// Recipe returns the prepped recipe.
func (f *FittedWorkflow) Recipe() *preprocessing.FittedRecipe { return f.recipe }

// Estimator returns the fitted model.
func (f *FittedWorkflow) Estimator() model.Estimator { return f.estimator }

// Predictors returns the design matrix column names.
func (f *FittedWorkflow) Predictors() []string { return slices.Clone(f.predictors) }

// Levels returns the outcome levels of a classification fit.
func (f *FittedWorkflow) Levels() []string { return slices.Clone(f.levels) }

// PredictOption configures Predict.
type PredictOption func(*predictConfig)

type predictConfig struct {
	level float64
}

// WithLevel sets the interval coverage, e.g. 0.9.
func WithLevel(level float64) PredictOption {
	return func(c *predictConfig) { c.level = level }
}

func (f *FittedWorkflow) unsupported(mode PredictMode) error {
	return errors.NewUnsupportedPredictionModeError(f.workflow.spec.String(), mode.String())
}

// Predict bakes frame with the fitted recipe and predicts every row. The
// outcome column may be absent.
func (f *FittedWorkflow) Predict(frame *data.Frame, mode PredictMode, opts ...PredictOption) (*Predictions, error) {
	cfg := predictConfig{level: DefaultIntervalLevel}
	for _, opt := range opts {
		opt(&cfg)
	}

	classification := f.workflow.spec.mode == Classification
	switch mode {
	case PredictNumeric, PredictConfInt, PredictPredInt:
		if classification {
			return nil, f.unsupported(mode)
		}
	case PredictClass, PredictProb:
		if !classification {
			return nil, f.unsupported(mode)
		}
	default:
		return nil, f.unsupported(mode)
	}

	X, _, err := f.recipe.Design(frame)
	if err != nil {
		return nil, err
	}
	out := &Predictions{Mode: mode}

	switch mode {
	case PredictNumeric:
		yhat, err := f.estimator.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Numeric = mat.Col(nil, 0, yhat)

	case PredictConfInt, PredictPredInt:
		ip, ok := f.estimator.(model.IntervalPredictor)
		if !ok {
			return nil, f.unsupported(mode)
		}
		kind := model.ConfidenceInterval
		if mode == PredictPredInt {
			kind = model.PredictionInterval
		}
		fit, lower, upper, err := ip.PredictInterval(X, cfg.level, kind)
		if err != nil {
			return nil, err
		}
		out.Numeric = mat.Col(nil, 0, fit)
		out.Lower = mat.Col(nil, 0, lower)
		out.Upper = mat.Col(nil, 0, upper)

	case PredictClass:
		yhat, err := f.estimator.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Levels = f.Levels()
		out.ClassIndex = make([]int, frame.NRows())
		out.Class = make([]string, frame.NRows())
		for i := range out.ClassIndex {
			k := int(yhat.At(i, 0))
			out.ClassIndex[i] = k
			out.Class[i] = f.levels[k]
		}

	case PredictProb:
		clf, ok := f.estimator.(model.Classifier)
		if !ok {
			return nil, f.unsupported(mode)
		}
		proba, err := clf.PredictProba(X)
		if err != nil {
			return nil, err
		}
		out.Levels = f.Levels()
		out.Prob = f.padProba(proba)
	}
	return out, nil
}

// padProba widens an n×K' probability matrix to one column per level.
// Levels after K' were absent from the training rows and get 0.
func (f *FittedWorkflow) padProba(proba mat.Matrix) *mat.Dense {
	r, c := proba.Dims()
	out := mat.NewDense(r, len(f.levels), nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(proba)
	return out
}

// encodeOutcome maps the categorical outcome to level indices.
func (f *FittedWorkflow) encodeOutcome(frame *data.Frame) ([]int, error) {
	outcome := f.workflow.Outcome()
	col, err := frame.Categorical(outcome)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(f.levels))
	for k, l := range f.levels {
		index[l] = k
	}
	out := make([]int, len(col))
	for i, v := range col {
		k, ok := index[v]
		if !ok {
			return nil, errors.NewUnseenLevelError(outcome, v)
		}
		out[i] = k
	}
	return out, nil
}

// Sample predicts frame and pairs the predictions with its outcome column,
// computing only what ms need.
func (f *FittedWorkflow) Sample(frame *data.Frame, ms ...metrics.Metric) (metrics.Sample, *Predictions, error) {
	var s metrics.Sample
	if err := f.CheckMetrics(ms...); err != nil {
		return s, nil, err
	}

	if f.workflow.spec.mode == Regression {
		truth, err := frame.Numeric(f.workflow.Outcome())
		if err != nil {
			return s, nil, err
		}
		pred, err := f.Predict(frame, PredictNumeric)
		if err != nil {
			return s, nil, err
		}
		s.Truth, s.Estimate = truth, pred.Numeric
		return s, pred, nil
	}

	truth, err := f.encodeOutcome(frame)
	if err != nil {
		return s, nil, err
	}
	pred, err := f.Predict(frame, PredictClass)
	if err != nil {
		return s, nil, err
	}
	s.TruthClass, s.EstimateClass, s.Levels = truth, pred.ClassIndex, pred.Levels
	if slices.ContainsFunc(ms, func(m metrics.Metric) bool { return m.Kind() == metrics.ProbKind }) {
		prob, err := f.Predict(frame, PredictProb)
		if err != nil {
			return s, nil, err
		}
		s.Prob = prob.Prob
		pred.Prob = prob.Prob
	}
	return s, pred, nil
}

// CheckMetrics rejects metrics whose kind does not match the model mode.
func (f *FittedWorkflow) CheckMetrics(ms ...metrics.Metric) error {
	return f.workflow.CheckMetrics(ms...)
}

// CheckMetrics rejects metrics whose kind does not match the model mode.
func (w *Workflow) CheckMetrics(ms ...metrics.Metric) error {
	for _, m := range ms {
		numeric := m.Kind() == metrics.NumericKind
		if numeric != (w.spec.mode == Regression) {
			return errors.NewValidationError("metric",
				m.Kind().String()+" metric cannot score a "+w.spec.mode.String()+" model", m.Name())
		}
	}
	return nil
}

// Evaluate computes every metric on frame, in order.
func (f *FittedWorkflow) Evaluate(frame *data.Frame, ms ...metrics.Metric) ([]float64, error) {
	s, _, err := f.Sample(frame, ms...)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ms))
	for i, m := range ms {
		if out[i], err = m.Compute(s); err != nil {
			return nil, errors.Wrapf(err, "metric %s", m.Name())
		}
	}
	return out, nil
}

// Coefficients returns the coefficient table of a linear model, intercept
// first. Elastic net rows carry estimates only.
func (f *FittedWorkflow) Coefficients() ([]model.Coefficient, error) {
	s, ok := f.estimator.(model.Summarizer)
	if !ok {
		return nil, errors.NewUnsupportedPredictionModeError(f.workflow.spec.String(), "coefficients")
	}
	return s.Summary(f.predictors)
}

type weightExporter interface {
	ExportWeights(features []string) (*model.ModelWeights, error)
}

// ExportWeights serialises the fitted coefficients of a linear family.
func (f *FittedWorkflow) ExportWeights() (*model.ModelWeights, error) {
	e, ok := f.estimator.(weightExporter)
	if !ok {
		return nil, errors.NewUnsupportedPredictionModeError(f.workflow.spec.String(), "weights")
	}
	return e.ExportWeights(f.predictors)
}

// CoefficientPath refits the elastic net of f at each penalty on the baked
// rows of frame, largest penalty first, with the fitted mixture.
func (f *FittedWorkflow) CoefficientPath(frame *data.Frame, penalties []float64) ([]linear.PathPoint, error) {
	en, ok := f.estimator.(*linear.ElasticNet)
	if !ok {
		return nil, errors.NewUnsupportedPredictionModeError(f.workflow.spec.String(), "path")
	}
	X, _, err := f.recipe.Design(frame)
	if err != nil {
		return nil, err
	}
	y, err := frame.Numeric(f.workflow.Outcome())
	if err != nil {
		return nil, err
	}
	return en.Path(X, mat.NewDense(len(y), 1, y), penalties)
}
