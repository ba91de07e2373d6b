// Package workflow bundles a preprocessing Recipe with a ModelSpec so that
// the pair is finalized, fit and used for prediction as one unit.
//
//	wf := workflow.New(rec, workflow.ElasticNetSpec(model.Tune(), model.Fixed(1)))
//	final, _ := wf.Finalize(model.Values{"penalty": 0.01})
//	fitted, _ := final.Fit(split.Training())
//	pred, _ := fitted.Predict(newData, workflow.PredictNumeric)
package workflow

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
	"github.com/YuminosukeSato/modelflow/preprocessing"
)

// Workflow is a recipe plus a model spec. It is immutable; Finalize and
// Fit return new values.
type Workflow struct {
	id     string
	recipe *preprocessing.Recipe
	spec   *ModelSpec
}

// New creates a workflow with a fresh id.
func New(recipe *preprocessing.Recipe, spec *ModelSpec) *Workflow {
	return &Workflow{id: uuid.NewString(), recipe: recipe, spec: spec}
}

// ID identifies the workflow in logs. Finalized copies keep the id.
func (w *Workflow) ID() string { return w.id }

// Recipe returns the preprocessing recipe.
func (w *Workflow) Recipe() *preprocessing.Recipe { return w.recipe }

// Spec returns the model spec.
func (w *Workflow) Spec() *ModelSpec { return w.spec }

// Outcome returns the outcome column name.
func (w *Workflow) Outcome() string { return w.recipe.Roles().Outcome }

// TunableParams lists every tuning marker id of the recipe and the model spec.
func (w *Workflow) TunableParams() []string {
	ids := slices.Concat(w.recipe.TunableParams(), w.spec.TunableParams())
	slices.Sort(ids)
	return lo.Uniq(ids)
}

// Finalize substitutes tuned values. Every tuning marker needs a value and
// every value must name a tuning marker.
func (w *Workflow) Finalize(values model.Values) (*Workflow, error) {
	tunable := w.TunableParams()
	for _, id := range tunable {
		if _, ok := values[id]; !ok {
			return nil, errors.NewValidationError(id, "no value supplied for tuning parameter", nil)
		}
	}
	for _, name := range values.Names() {
		if !slices.Contains(tunable, name) {
			return nil, errors.NewValidationError(name, "not a tuning parameter of this workflow", values[name])
		}
	}

	rec, err := w.recipe.Finalize(values)
	if err != nil {
		return nil, err
	}
	spec, err := w.spec.Finalize(values)
	if err != nil {
		return nil, err
	}
	return &Workflow{id: w.id, recipe: rec, spec: spec}, nil
}

// FitOption configures Fit.
type FitOption func(*fitConfig)

type fitConfig struct {
	levels []string
}

// WithOutcomeLevels fixes the class levels of a categorical outcome. It
// is used when train is a resample that may lack some levels of the full
// data; without it the levels are those present in train.
func WithOutcomeLevels(levels []string) FitOption {
	return func(c *fitConfig) { c.levels = slices.Clone(levels) }
}

// Fit preps the recipe on train and fits the model on the baked rows.
// Nothing but train is read.
func (w *Workflow) Fit(train *data.Frame, opts ...FitOption) (fw *FittedWorkflow, err error) {
	defer errors.Recover(&err, "Workflow.Fit")
	start := time.Now()
	logger := log.GetLoggerWithName("workflow").With(log.WorkflowIDKey, w.id)

	cfg := fitConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if ids := w.TunableParams(); len(ids) > 0 {
		return nil, errors.NewValidationError("workflow", "unresolved tuning parameters; finalize first", ids)
	}
	if err := w.checkOutcome(train.Schema()); err != nil {
		return nil, err
	}

	fr, err := w.recipe.Fit(train)
	if err != nil {
		return nil, err
	}
	X, names, err := fr.Design(train)
	if err != nil {
		return nil, err
	}

	fw = &FittedWorkflow{workflow: w, recipe: fr, predictors: names}
	var y *mat.Dense
	if w.spec.mode == Classification {
		fw.levels = cfg.levels
		if fw.levels == nil {
			if fw.levels, err = train.Levels(w.Outcome()); err != nil {
				return nil, err
			}
		}
		if w.spec.family == Logistic && len(fw.levels) > 2 {
			return nil, errors.NewValidationError(w.Outcome(), "logistic regression needs a two-level outcome", fw.levels)
		}
		idx, err := fw.encodeOutcome(train)
		if err != nil {
			return nil, err
		}
		y = mat.NewDense(len(idx), 1, lo.Map(idx, func(v int, _ int) float64 { return float64(v) }))
	} else {
		col, err := train.Numeric(w.Outcome())
		if err != nil {
			return nil, err
		}
		y = mat.NewDense(len(col), 1, col)
	}

	est, err := w.spec.build()
	if err != nil {
		return nil, err
	}
	if err := est.Fit(X, y); err != nil {
		logger.Debug("model fit failed", log.ModelNameKey, w.spec.family.String(), log.ErrAttrKey, err.Error())
		return nil, errors.Wrapf(err, "fit %s", w.spec.family)
	}
	fw.estimator = est

	logger.Debug("workflow fitted",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, w.spec.String(),
		log.SamplesKey, train.NRows(),
		log.FeaturesKey, len(names),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fw, nil
}

// checkOutcome matches the outcome column kind with the model mode.
func (w *Workflow) checkOutcome(schema *data.Schema) error {
	if err := w.recipe.Roles().Validate(schema); err != nil {
		return err
	}
	kind, _ := schema.KindOf(w.Outcome())
	want := data.Numeric
	if w.spec.mode == Classification {
		want = data.Categorical
	}
	if kind != want {
		return errors.NewModelTargetTypeMismatchError(w.spec.family.String(), w.Outcome(), want.String(), kind.String())
	}
	return nil
}

// CheckOutcome reports the error Fit would raise for a mismatched outcome
// kind, without fitting anything.
func (w *Workflow) CheckOutcome(schema *data.Schema) error { return w.checkOutcome(schema) }
