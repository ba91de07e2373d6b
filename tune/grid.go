package tune

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Scale is the spacing of RegularGrid levels.
type Scale int

const (
	Linear Scale = iota
	// Log10 spaces levels evenly in log10 between Min and Max, both > 0.
	Log10
)

func (s Scale) String() string {
	if s == Log10 {
		return "log10"
	}
	return "linear"
}

// Range is the domain of one tuning parameter. Min and Max are in the
// parameter's own units on either scale.
type Range struct {
	Name     string
	Min, Max float64
	Levels   int
	Scale    Scale
	// Integer rounds every level to the nearest integer (e.g. neighbors).
	Integer bool
}

func (r Range) validate() error {
	switch {
	case r.Name == "":
		return errors.NewGridError("", "range has no parameter name")
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0):
		return errors.NewGridError(r.Name, "range bounds must be finite")
	case r.Min > r.Max:
		return errors.NewGridError(r.Name, fmt.Sprintf("min %g exceeds max %g", r.Min, r.Max))
	case r.Scale == Log10 && r.Min <= 0:
		return errors.NewGridError(r.Name, "log10 range needs positive bounds")
	}
	return nil
}

// values returns the levels of r. With Levels < 2 only Min is used.
func (r Range) values() []float64 {
	n := max(r.Levels, 1)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		var v float64
		if r.Scale == Log10 {
			a, b := math.Log10(r.Min), math.Log10(r.Max)
			v = math.Pow(10, a+t*(b-a))
		} else {
			v = r.Min + t*(r.Max-r.Min)
		}
		if r.Integer {
			v = math.Round(v)
		}
		out = append(out, v)
	}
	return lo.Uniq(out)
}

// Grid is an ordered list of candidate parameter values.
type Grid struct {
	candidates []model.Values
}

// NewGrid creates a grid from explicit candidates.
func NewGrid(candidates ...model.Values) *Grid {
	g := &Grid{}
	for _, c := range candidates {
		g.candidates = append(g.candidates, c.Clone())
	}
	return g
}

// GridOf is a one-parameter grid.
//
//	grid := tune.Cross(tune.GridOf("penalty", 0.01, 0.1, 1), tune.GridOf("mixture", 0, 0.5, 1))
func GridOf(name string, values ...float64) *Grid {
	g := &Grid{}
	for _, v := range values {
		g.candidates = append(g.candidates, model.Values{name: v})
	}
	return g
}

// RegularGrid crosses Levels values of every range. The last range varies
// fastest.
func RegularGrid(ranges ...Range) (*Grid, error) {
	grids := make([]*Grid, 0, len(ranges))
	for _, r := range ranges {
		if err := r.validate(); err != nil {
			return nil, err
		}
		grids = append(grids, GridOf(r.Name, r.values()...))
	}
	return Cross(grids...), nil
}

// Cross is the Cartesian product of grids; the last grid varies fastest.
// Crossing no grids gives a grid with one empty candidate.
func Cross(grids ...*Grid) *Grid {
	out := []model.Values{{}}
	for _, g := range grids {
		next := make([]model.Values, 0, len(out)*len(g.candidates))
		for _, a := range out {
			for _, b := range g.candidates {
				c := a.Clone()
				for k, v := range b {
					c[k] = v
				}
				next = append(next, c)
			}
		}
		out = next
	}
	return &Grid{candidates: out}
}

// Len returns the number of candidates.
func (g *Grid) Len() int { return len(g.candidates) }

// Candidates returns copies of the candidates in order.
func (g *Grid) Candidates() []model.Values {
	return lo.Map(g.candidates, func(c model.Values, _ int) model.Values { return c.Clone() })
}

// Params returns the union of parameter names, sorted.
func (g *Grid) Params() []string {
	var names []string
	for _, c := range g.candidates {
		names = append(names, c.Names()...)
	}
	slices.Sort(names)
	return lo.Uniq(names)
}

// Validate checks the grid against the tuning parameter ids of a
// workflow: every candidate sets exactly those ids to finite values and
// no candidate repeats.
func (g *Grid) Validate(tunable []string) error {
	if g == nil || len(g.candidates) == 0 {
		return errors.NewGridError("", "grid has no candidates")
	}
	seen := make(map[string]int, len(g.candidates))
	for i, c := range g.candidates {
		for _, id := range tunable {
			if _, ok := c[id]; !ok {
				return errors.NewGridError(id, fmt.Sprintf("missing from candidate %d", i+1))
			}
		}
		for _, name := range c.Names() {
			if !slices.Contains(tunable, name) {
				return errors.NewGridError(name, "not a tuning parameter of the workflow")
			}
			if v := c[name]; math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewGridError(name, fmt.Sprintf("non-finite value in candidate %d", i+1))
			}
		}
		key := c.String()
		if j, dup := seen[key]; dup {
			return errors.NewGridError("", fmt.Sprintf("candidates %d and %d are identical (%s)", j+1, i+1, key))
		}
		seen[key] = i
	}
	return nil
}
