package data

import (
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// DefaultBreaks is the number of quantile bins used when a numeric column
// is used as strata.
const DefaultBreaks = 4

// Option configures InitialSplit and VFold.
type Option func(*resampleConfig)

type resampleConfig struct {
	strata string
	breaks int
	seed   uint64
}

func newResampleConfig(opts []Option) resampleConfig {
	cfg := resampleConfig{breaks: DefaultBreaks}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithStrata stratifies sampling by column. Numeric columns are binned into
// quantile intervals first (see WithBreaks).
func WithStrata(column string) Option {
	return func(c *resampleConfig) { c.strata = column }
}

// WithBreaks sets the number of quantile bins for a numeric strata column.
func WithBreaks(n int) Option {
	return func(c *resampleConfig) { c.breaks = n }
}

// WithSeed fixes the random stream. The same seed always yields the same
// partition of the same frame.
func WithSeed(seed uint64) Option {
	return func(c *resampleConfig) { c.seed = seed }
}

func (c resampleConfig) rng() *rand.Rand {
	return rand.New(rand.NewPCG(c.seed, c.seed^0x9e3779b97f4a7c15))
}

// groups returns row indices grouped by stratum, in a deterministic stratum
// order. Without strata there is a single group holding every row.
func (c resampleConfig) groups(f *Frame) ([][]int, error) {
	if c.strata == "" {
		all := make([]int, f.NRows())
		for i := range all {
			all[i] = i
		}
		return [][]int{all}, nil
	}
	keys, err := strataKeys(f, c.strata, c.breaks)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string][]int)
	for i, k := range keys {
		byKey[k] = append(byKey[k], i)
	}
	names := make([]string, 0, len(byKey))
	for k := range byKey {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([][]int, len(names))
	for i, k := range names {
		out[i] = byKey[k]
	}
	return out, nil
}

// strataKeys labels every row with its stratum. Categorical columns use the
// level itself; numeric columns use the index of the quantile bin.
func strataKeys(f *Frame, name string, breaks int) ([]string, error) {
	kind, ok := f.Schema().KindOf(name)
	if !ok {
		return nil, errors.NewValidationError("strata", "column not found", name)
	}
	if kind == Categorical {
		return f.Categorical(name)
	}
	if breaks < 2 {
		return nil, errors.NewValidationError("breaks", "must be at least 2", breaks)
	}
	x, err := f.Numeric(name)
	if err != nil {
		return nil, err
	}
	cuts := quantileCuts(x, breaks)
	keys := make([]string, len(x))
	for i, v := range x {
		bin := sort.SearchFloat64s(cuts, v)
		keys[i] = "q" + strconv.Itoa(bin)
	}
	return keys, nil
}

// quantileCuts returns the distinct interior cut points splitting x into
// breaks bins of roughly equal count.
func quantileCuts(x []float64, breaks int) []float64 {
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	var cuts []float64
	for b := 1; b < breaks; b++ {
		q := stat.Quantile(float64(b)/float64(breaks), stat.Empirical, sorted, nil)
		if len(cuts) == 0 || q > cuts[len(cuts)-1] {
			cuts = append(cuts, q)
		}
	}
	return cuts
}
