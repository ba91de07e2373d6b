package preprocessing

import (
	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/data"
)

// Selector picks the columns a step operates on. It receives the schema of
// the frame as it stands when the step is prepped and the current roles,
// whose Predictors reflect columns added or removed by earlier steps.
type Selector func(schema *data.Schema, roles data.Roles) []string

// AllPredictors selects every predictor.
func AllPredictors() Selector {
	return func(_ *data.Schema, roles data.Roles) []string {
		return append([]string(nil), roles.Predictors...)
	}
}

// AllNumericPredictors selects predictors declared Numeric.
func AllNumericPredictors() Selector {
	return func(schema *data.Schema, roles data.Roles) []string {
		return lo.Filter(roles.Predictors, func(name string, _ int) bool { return schema.IsNumeric(name) })
	}
}

// AllNominalPredictors selects predictors declared Categorical.
func AllNominalPredictors() Selector {
	return func(schema *data.Schema, roles data.Roles) []string {
		return lo.Filter(roles.Predictors, func(name string, _ int) bool { return schema.IsCategorical(name) })
	}
}

// Columns selects the named columns, in the given order.
func Columns(names ...string) Selector {
	return func(_ *data.Schema, _ data.Roles) []string {
		return append([]string(nil), names...)
	}
}

// Except removes names from the selection of sel.
func Except(sel Selector, names ...string) Selector {
	return func(schema *data.Schema, roles data.Roles) []string {
		return lo.Without(sel(schema, roles), names...)
	}
}
