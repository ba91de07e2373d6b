// Package preprocessing implements the feature transformer: a declarative
// Recipe of Steps that is fit on training rows only, producing an immutable
// FittedRecipe that is applied identically to any later data.
package preprocessing

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
)

// Step is one declarative operation of a Recipe.
type Step interface {
	// Name identifies the step kind, e.g. "dummy" or "poly".
	Name() string
	prep(st *prepState, train *data.Frame) (fittedStep, error)
}

// tunableStep is a Step with hyperparameters that may be tuning markers.
type tunableStep interface {
	Step
	params() map[string]model.Param
	finalize(values model.Values) (Step, error)
}

type fittedStep interface {
	bake(f *data.Frame) (*data.Frame, error)
}

// prepState carries the evolving roles while a recipe is prepped.
type prepState struct {
	roles data.Roles
	// expanded maps a categorical column to the indicator columns Dummy
	// produced for it.
	expanded map[string][]string
}

func (st *prepState) replacePredictor(old string, with []string) {
	i := slices.Index(st.roles.Predictors, old)
	if i < 0 {
		st.roles.Predictors = append(st.roles.Predictors, with...)
		return
	}
	st.roles.Predictors = slices.Concat(st.roles.Predictors[:i], with, st.roles.Predictors[i+1:])
}

// Recipe is a role assignment plus an ordered list of steps. It owns no
// data and is safe to share.
type Recipe struct {
	roles data.Roles
	steps []Step
}

// NewRecipe creates a recipe.
//
//	rec := preprocessing.NewRecipe(data.NewRoles("mpg", "hp", "cyl"),
//	    preprocessing.Dummy(preprocessing.AllNominalPredictors()),
//	    preprocessing.Normalize(preprocessing.AllNumericPredictors()),
//	)
func NewRecipe(roles data.Roles, steps ...Step) *Recipe {
	return &Recipe{roles: roles, steps: slices.Clone(steps)}
}

// Roles returns the role assignment.
func (r *Recipe) Roles() data.Roles { return r.roles }

// Steps returns the steps in order.
func (r *Recipe) Steps() []Step { return slices.Clone(r.steps) }

// AddStep returns a new recipe with s appended.
func (r *Recipe) AddStep(s Step) *Recipe {
	return &Recipe{roles: r.roles, steps: append(slices.Clone(r.steps), s)}
}

// TunableParams lists the ids of every tuning marker in the steps.
func (r *Recipe) TunableParams() []string {
	var ids []string
	for _, s := range r.steps {
		ts, ok := s.(tunableStep)
		if !ok {
			continue
		}
		for name, p := range ts.params() {
			if p.IsTunable() {
				ids = append(ids, p.ID(name))
			}
		}
	}
	slices.Sort(ids)
	return lo.Uniq(ids)
}

// Finalize substitutes tuning markers with values.
func (r *Recipe) Finalize(values model.Values) (*Recipe, error) {
	out := &Recipe{roles: r.roles, steps: make([]Step, len(r.steps))}
	for i, s := range r.steps {
		ts, ok := s.(tunableStep)
		if !ok {
			out.steps[i] = s
			continue
		}
		fs, err := ts.finalize(values)
		if err != nil {
			return nil, err
		}
		out.steps[i] = fs
	}
	return out, nil
}

// Fit preps every step in order on train. Each step is fit on the output
// of the previous steps applied to train and never sees any other rows.
// When the roles declare interactions and the recipe has no Interact step,
// one is appended.
func (r *Recipe) Fit(train *data.Frame) (*FittedRecipe, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("recipe")

	if train.NRows() == 0 {
		return nil, errors.NewModelError("Recipe.Fit", "empty training data", errors.ErrEmptyData)
	}
	if err := r.roles.Validate(train.Schema()); err != nil {
		return nil, err
	}
	if ids := r.TunableParams(); len(ids) > 0 {
		return nil, errors.NewValidationError("recipe", "unresolved tuning parameters; finalize first", ids)
	}

	steps := r.steps
	if len(r.roles.Interactions) > 0 && !lo.ContainsBy(steps, func(s Step) bool { return s.Name() == "interact" }) {
		steps = append(slices.Clone(steps), Interact())
	}

	st := &prepState{roles: r.roles, expanded: map[string][]string{}}
	st.roles.Predictors = slices.Clone(r.roles.Predictors)
	fitted := &FittedRecipe{roles: r.roles, steps: make([]fittedStep, 0, len(steps))}

	current := train
	for _, s := range steps {
		fs, err := s.prep(st, current)
		if err != nil {
			logger.Error("step prep failed", err, log.StepKey, s.Name())
			return nil, err
		}
		current, err = fs.bake(current)
		if err != nil {
			return nil, err
		}
		fitted.steps = append(fitted.steps, fs)
		fitted.names = append(fitted.names, s.Name())
	}
	fitted.predictors = st.roles.Predictors
	for _, p := range fitted.predictors {
		if !current.Schema().IsNumeric(p) {
			fitted.nonNumeric = append(fitted.nonNumeric, p)
		}
	}

	logger.Debug("recipe prepped",
		log.OperationKey, log.OperationPrep,
		log.SamplesKey, train.NRows(),
		log.FeaturesKey, len(fitted.predictors),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fitted, nil
}

// FittedRecipe holds the parameters every step learned from the training
// rows. It is immutable; Apply may be called concurrently.
type FittedRecipe struct {
	roles      data.Roles
	steps      []fittedStep
	names      []string
	predictors []string
	nonNumeric []string
}

// Outcome returns the outcome column name.
func (f *FittedRecipe) Outcome() string { return f.roles.Outcome }

// Predictors returns the predictor columns produced by the recipe.
func (f *FittedRecipe) Predictors() []string { return slices.Clone(f.predictors) }

// StepNames returns the names of the prepped steps, in order.
func (f *FittedRecipe) StepNames() []string { return slices.Clone(f.names) }

// Apply runs every fitted step on frame. Apply never modifies frame and
// gives identical output for identical input. The outcome column is passed
// through when present and may be absent.
func (f *FittedRecipe) Apply(frame *data.Frame) (*data.Frame, error) {
	current := frame
	for i, s := range f.steps {
		var err error
		current, err = s.bake(current)
		if err != nil {
			return nil, errors.Wrapf(err, "bake step %d (%s)", i+1, f.names[i])
		}
	}
	return current, nil
}

// Design applies the recipe and assembles the numeric predictor matrix,
// columns in Predictors order.
func (f *FittedRecipe) Design(frame *data.Frame) (*mat.Dense, []string, error) {
	if len(f.nonNumeric) > 0 {
		return nil, nil, errors.NewValidationError("predictors",
			"categorical predictors must be encoded (add a Dummy step)", f.nonNumeric)
	}
	baked, err := f.Apply(frame)
	if err != nil {
		return nil, nil, err
	}
	n, p := baked.NRows(), len(f.predictors)
	if n == 0 || p == 0 {
		return nil, nil, errors.NewModelError("Recipe.Design", "empty design matrix", errors.ErrEmptyData)
	}
	X := mat.NewDense(n, p, nil)
	for j, name := range f.predictors {
		col, err := baked.Numeric(name)
		if err != nil {
			return nil, nil, err
		}
		X.SetCol(j, col)
	}
	return X, f.Predictors(), nil
}
