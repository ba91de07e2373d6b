package data

import (
	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Roles assigns columns to the outcome and predictor roles and lists
// pairwise interaction terms. It replaces "y ~ a + b + a:b" formula strings.
type Roles struct {
	Outcome      string
	Predictors   []string
	Interactions [][2]string
}

// NewRoles is shorthand for Roles{Outcome: outcome, Predictors: predictors}.
func NewRoles(outcome string, predictors ...string) Roles {
	return Roles{Outcome: outcome, Predictors: predictors}
}

// WithInteraction returns a copy of r with the a×b term added.
func (r Roles) WithInteraction(a, b string) Roles {
	out := r.clone()
	out.Interactions = append(out.Interactions, [2]string{a, b})
	return out
}

// AllPredictorsExcept returns roles using every schema column other than
// outcome and exclude as a predictor, in schema order.
func AllPredictorsExcept(schema *Schema, outcome string, exclude ...string) Roles {
	r := Roles{Outcome: outcome}
	for _, name := range schema.Names() {
		if name == outcome || lo.Contains(exclude, name) {
			continue
		}
		r.Predictors = append(r.Predictors, name)
	}
	return r
}

// Validate checks the roles against a schema.
func (r Roles) Validate(schema *Schema) error {
	if r.Outcome == "" {
		return errors.NewValidationError("roles.outcome", "outcome column is required", r.Outcome)
	}
	if !schema.Has(r.Outcome) {
		return errors.NewValidationError("roles.outcome", "column not found", r.Outcome)
	}
	if len(r.Predictors) == 0 {
		return errors.NewValidationError("roles.predictors", "at least one predictor is required", r.Predictors)
	}
	seen := make(map[string]bool, len(r.Predictors))
	for _, p := range r.Predictors {
		if p == r.Outcome {
			return errors.NewValidationError("roles.predictors", "outcome cannot also be a predictor", p)
		}
		if seen[p] {
			return errors.NewValidationError("roles.predictors", "duplicate predictor", p)
		}
		if !schema.Has(p) {
			return errors.NewValidationError("roles.predictors", "column not found", p)
		}
		seen[p] = true
	}
	for _, pair := range r.Interactions {
		for _, side := range pair {
			if !seen[side] {
				return errors.NewValidationError("roles.interactions", "interaction term must be a predictor", side)
			}
		}
		if pair[0] == pair[1] {
			return errors.NewValidationError("roles.interactions", "interaction of a column with itself", pair[0])
		}
	}
	return nil
}

// IsPredictor reports whether name has the predictor role.
func (r Roles) IsPredictor(name string) bool {
	return lo.Contains(r.Predictors, name)
}

func (r Roles) clone() Roles {
	return Roles{
		Outcome:      r.Outcome,
		Predictors:   append([]string(nil), r.Predictors...),
		Interactions: append([][2]string(nil), r.Interactions...),
	}
}
