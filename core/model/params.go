package model

import (
	"fmt"
	"sort"
)

// Param is a hyperparameter slot: either a fixed value or a marker that
// the value will be chosen by tuning.
type Param struct {
	value float64
	id    string
	tune  bool
}

// Fixed returns a Param holding v.
func Fixed(v float64) Param {
	return Param{value: v}
}

// Tune returns a tuning marker. The id names the column of the tuning grid
// that supplies the value; an empty id uses the parameter's own name.
func Tune(id ...string) Param {
	p := Param{tune: true}
	if len(id) > 0 {
		p.id = id[0]
	}
	return p
}

// IsTunable reports whether p is still a tuning marker.
func (p Param) IsTunable() bool {
	return p.tune
}

// Value returns the fixed value. It is meaningless for a tuning marker.
func (p Param) Value() float64 {
	return p.value
}

// ID returns the grid column name for a tuning marker, falling back to name.
func (p Param) ID(name string) string {
	if p.id != "" {
		return p.id
	}
	return name
}

// Resolve substitutes a tuning marker with the value from values. Fixed
// params are returned unchanged.
func (p Param) Resolve(name string, values Values) (Param, error) {
	if !p.tune {
		return p, nil
	}
	v, ok := values[p.ID(name)]
	if !ok {
		return p, fmt.Errorf("no value supplied for tuning parameter %q", p.ID(name))
	}
	return Fixed(v), nil
}

func (p Param) String() string {
	if p.tune {
		return fmt.Sprintf("tune(%q)", p.id)
	}
	return fmt.Sprintf("%g", p.value)
}

// Values maps tuning parameter ids to concrete values.
type Values map[string]float64

// Names returns the ids in sorted order.
func (v Values) Names() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// String formats v deterministically, e.g. "mixture=1 penalty=0.1".
func (v Values) String() string {
	s := ""
	for i, k := range v.Names() {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", k, v[k])
	}
	return s
}
