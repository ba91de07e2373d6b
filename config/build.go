package config

import (
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/preprocessing"
	"github.com/YuminosukeSato/modelflow/tune"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// ParseParam reads a hyperparameter value: a number, "tune" or
// "tune(id)". Numeric strings are accepted for formats without numbers
// in maps.
func ParseParam(name string, v any) (model.Param, error) {
	switch x := v.(type) {
	case int:
		return model.Fixed(float64(x)), nil
	case int64:
		return model.Fixed(float64(x)), nil
	case uint64:
		return model.Fixed(float64(x)), nil
	case float64:
		return model.Fixed(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "tune" || s == "tune()" {
			return model.Tune(), nil
		}
		if id, ok := strings.CutPrefix(s, "tune("); ok && strings.HasSuffix(id, ")") {
			return model.Tune(strings.TrimSuffix(id, ")")), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return model.Fixed(f), nil
		}
	}
	return model.Param{}, errors.NewValidationError(name, `must be a number, "tune" or "tune(id)"`, v)
}

// ReadData loads the CSV named by data.path with the declared kinds.
func (c *Config) ReadData() (*data.Frame, error) {
	kinds := make(map[string]data.Kind, len(c.Data.Columns))
	for _, col := range c.Data.Columns {
		k, err := data.ParseKind(col.Kind)
		if err != nil {
			return nil, err
		}
		kinds[col.Name] = k
	}
	opts := []data.CSVOption{data.WithKinds(kinds)}
	if len(c.Data.Missing) > 0 {
		opts = append(opts, data.WithMissing(c.Data.Missing...))
	}
	return data.ReadCSVFile(c.Data.Path, opts...)
}

// InitialSplit partitions frame per the split section.
func (c *Config) InitialSplit(frame *data.Frame) (*data.Split, error) {
	opts := []data.Option{data.WithSeed(c.Split.Seed), data.WithBreaks(c.Split.Breaks)}
	if c.Split.Strata != "" {
		opts = append(opts, data.WithStrata(c.Split.Strata))
	}
	return data.InitialSplit(frame, c.Split.Proportion, opts...)
}

// BuildRoles resolves the roles against schema. Without explicit
// predictors every other column except roles.exclude is a predictor.
func (c *Config) BuildRoles(schema *data.Schema) (data.Roles, error) {
	var roles data.Roles
	if len(c.Roles.Predictors) > 0 {
		roles = data.NewRoles(c.Roles.Outcome, c.Roles.Predictors...)
	} else {
		roles = data.AllPredictorsExcept(schema, c.Roles.Outcome, c.Roles.Exclude...)
	}
	for _, pair := range c.Roles.Interactions {
		roles = roles.WithInteraction(pair[0], pair[1])
	}
	if err := roles.Validate(schema); err != nil {
		return data.Roles{}, err
	}
	return roles, nil
}

type logParams struct {
	Base   float64 `mapstructure:"base"`
	Offset float64 `mapstructure:"offset"`
}

type rangeParams struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type dummyParams struct {
	OneHot bool   `mapstructure:"one_hot"`
	Novel  string `mapstructure:"novel"`
}

type basisParams struct {
	Degree   any    `mapstructure:"degree"`
	DegFree  any    `mapstructure:"deg_free"`
	Emission string `mapstructure:"emission"`
}

type interactParams struct {
	Pairs [][]string `mapstructure:"pairs"`
}

// decodeParams decodes the step specific keys into out, rejecting keys
// the step does not know.
func decodeParams(step string, in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "step decoder")
	}
	if err := dec.Decode(in); err != nil {
		return errors.NewValidationError("steps."+step, err.Error(), in)
	}
	return nil
}

func (s StepConfig) selector() (preprocessing.Selector, error) {
	var sel preprocessing.Selector
	switch {
	case len(s.Columns) > 0 && s.Select != "":
		return nil, errors.NewValidationError("steps."+s.Type, "set columns or select, not both", s.Select)
	case len(s.Columns) > 0:
		sel = preprocessing.Columns(s.Columns...)
	case s.Select == "all_predictors":
		sel = preprocessing.AllPredictors()
	case s.Select == "all_numeric_predictors":
		sel = preprocessing.AllNumericPredictors()
	case s.Select == "all_nominal_predictors":
		sel = preprocessing.AllNominalPredictors()
	default:
		return nil, errors.NewValidationError("steps."+s.Type, "columns or select is required", nil)
	}
	if len(s.Except) > 0 {
		sel = preprocessing.Except(sel, s.Except...)
	}
	return sel, nil
}

func (s StepConfig) build() (preprocessing.Step, error) {
	if s.Type == "interact" {
		var p interactParams
		if err := decodeParams(s.Type, s.Params, &p); err != nil {
			return nil, err
		}
		pairs := make([][2]string, 0, len(p.Pairs))
		for _, pair := range p.Pairs {
			if len(pair) != 2 {
				return nil, errors.NewValidationError("steps.interact.pairs", "each pair needs two columns", pair)
			}
			pairs = append(pairs, [2]string{pair[0], pair[1]})
		}
		return preprocessing.Interact(pairs...), nil
	}

	sel, err := s.selector()
	if err != nil {
		return nil, err
	}
	switch s.Type {
	case "normalize":
		return preprocessing.Normalize(sel), decodeParams(s.Type, s.Params, &struct{}{})
	case "impute_mean":
		return preprocessing.ImputeMean(sel), decodeParams(s.Type, s.Params, &struct{}{})
	case "zero_variance":
		return preprocessing.ZeroVariance(sel), decodeParams(s.Type, s.Params, &struct{}{})
	case "range":
		p := rangeParams{Min: 0, Max: 1}
		if err := decodeParams(s.Type, s.Params, &p); err != nil {
			return nil, err
		}
		return preprocessing.Range(sel, p.Min, p.Max), nil
	case "log":
		var p logParams
		if err := decodeParams(s.Type, s.Params, &p); err != nil {
			return nil, err
		}
		return preprocessing.Log(sel, p.Base, p.Offset), nil
	case "dummy":
		var p dummyParams
		if err := decodeParams(s.Type, s.Params, &p); err != nil {
			return nil, err
		}
		var opts []preprocessing.DummyOption
		if p.OneHot {
			opts = append(opts, preprocessing.WithOneHot())
		}
		if p.Novel != "" {
			opts = append(opts, preprocessing.WithNovel(p.Novel))
		}
		return preprocessing.Dummy(sel, opts...), nil
	case "poly", "spline":
		var p basisParams
		if err := decodeParams(s.Type, s.Params, &p); err != nil {
			return nil, err
		}
		emission, err := preprocessing.ParseEmission(p.Emission)
		if err != nil {
			return nil, err
		}
		if s.Type == "poly" {
			degree, err := ParseParam("degree", p.Degree)
			if err != nil {
				return nil, err
			}
			return preprocessing.Poly(sel, degree, emission), nil
		}
		df, err := ParseParam("deg_free", p.DegFree)
		if err != nil {
			return nil, err
		}
		return preprocessing.Spline(sel, df, emission), nil
	}
	return nil, errors.NewValidationError("steps.type", "unknown step", s.Type)
}

// BuildRecipe assembles the roles and steps in file order.
func (c *Config) BuildRecipe(schema *data.Schema) (*preprocessing.Recipe, error) {
	roles, err := c.BuildRoles(schema)
	if err != nil {
		return nil, err
	}
	steps := make([]preprocessing.Step, 0, len(c.Steps))
	for _, sc := range c.Steps {
		step, err := sc.build()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return preprocessing.NewRecipe(roles, steps...), nil
}

// BuildModelSpec parses the model section.
func (c *Config) BuildModelSpec() (*workflow.ModelSpec, error) {
	family, err := workflow.ParseFamily(c.Model.Family)
	if err != nil {
		return nil, err
	}
	mode := family.Modes()[0]
	if c.Model.Mode != "" {
		if mode, err = workflow.ParseMode(c.Model.Mode); err != nil {
			return nil, err
		}
	}
	params := make(map[string]model.Param, len(c.Model.Params))
	for name, v := range c.Model.Params {
		p, err := ParseParam(name, v)
		if err != nil {
			return nil, err
		}
		params[name] = p
	}
	return workflow.NewModelSpec(family, mode, params)
}

// BuildWorkflow combines BuildRecipe and BuildModelSpec.
func (c *Config) BuildWorkflow(schema *data.Schema) (*workflow.Workflow, error) {
	rec, err := c.BuildRecipe(schema)
	if err != nil {
		return nil, err
	}
	spec, err := c.BuildModelSpec()
	if err != nil {
		return nil, err
	}
	return workflow.New(rec, spec), nil
}

// BuildMetrics looks up the metric names. An empty list returns nil so
// the mode defaults apply.
func (c *Config) BuildMetrics() ([]metrics.Metric, error) {
	if len(c.Metrics) == 0 {
		return nil, nil
	}
	ms := make([]metrics.Metric, 0, len(c.Metrics))
	for _, name := range c.Metrics {
		m, err := metrics.Lookup(name)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func (r RangeConfig) toRange() tune.Range {
	scale := tune.Linear
	if r.Scale == "log10" {
		scale = tune.Log10
	}
	return tune.Range{Name: r.Name, Min: r.Min, Max: r.Max, Levels: r.Levels, Scale: scale, Integer: r.Integer}
}

// BuildGrid crosses the explicit grid values with the regular ranges. It
// returns nil when neither is given.
func (c *Config) BuildGrid() (*tune.Grid, error) {
	var grids []*tune.Grid
	for _, g := range c.Tuning.Grid {
		grids = append(grids, tune.GridOf(g.Name, g.Values...))
	}
	if len(c.Tuning.Ranges) > 0 {
		ranges := make([]tune.Range, len(c.Tuning.Ranges))
		for i, r := range c.Tuning.Ranges {
			ranges[i] = r.toRange()
		}
		g, err := tune.RegularGrid(ranges...)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	if len(grids) == 0 {
		return nil, nil
	}
	return tune.Cross(grids...), nil
}

// BuildSpace returns the ranges as a search space for TuneBayes.
func (c *Config) BuildSpace() ([]tune.Range, error) {
	if len(c.Tuning.Grid) > 0 {
		return nil, errors.NewValidationError("tuning.grid", "bayes tuning searches ranges only", len(c.Tuning.Grid))
	}
	space := make([]tune.Range, len(c.Tuning.Ranges))
	for i, r := range c.Tuning.Ranges {
		space[i] = r.toRange()
	}
	return space, nil
}

// TuneOptions maps the tuning section onto tune options.
func (c *Config) TuneOptions(ms []metrics.Metric) []tune.Option {
	opts := []tune.Option{
		tune.WithFolds(c.Tuning.Folds),
		tune.WithSeed(c.Tuning.Seed),
		tune.WithBreaks(c.Split.Breaks),
	}
	if c.Tuning.Strata != "" {
		opts = append(opts, tune.WithStrata(c.Tuning.Strata))
	}
	if c.Tuning.Workers > 0 {
		opts = append(opts, tune.WithWorkers(c.Tuning.Workers))
	}
	if len(ms) > 0 {
		opts = append(opts, tune.WithMetrics(ms...))
	}
	return opts
}

// Select applies the selection rule to res.
func (c *Config) Select(res *tune.Result) (model.Values, tune.Summary, error) {
	if c.Selection.Rule == "one_se" {
		order := make([]tune.Ordering, len(c.Selection.Order))
		for i, o := range c.Selection.Order {
			order[i] = tune.Ordering{Param: o.Param, Desc: o.Desc}
		}
		return tune.SelectByOneStdErr(res, c.Selection.Metric, order...)
	}
	return tune.SelectBest(res, c.Selection.Metric)
}
