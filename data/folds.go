package data

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Fold is one resample of a FoldSet: the model is fit on the analysis rows
// and assessed on the held-out assessment rows.
type Fold struct {
	ID            string
	AnalysisIdx   []int
	AssessmentIdx []int

	source *Frame
}

// Analysis returns the rows the model is fit on.
func (f Fold) Analysis() *Frame { return f.source.Subset(f.AnalysisIdx) }

// Assessment returns the held-out rows.
func (f Fold) Assessment() *Frame { return f.source.Subset(f.AssessmentIdx) }

// FoldSet is a V-fold partition of a training frame.
type FoldSet struct {
	Folds []Fold
	nrows int
}

// Len returns the number of folds.
func (s *FoldSet) Len() int { return len(s.Folds) }

// NRows returns the number of rows of the partitioned frame.
func (s *FoldSet) NRows() int { return s.nrows }

// VFold deals the rows of f into k folds of near-equal size after a seeded
// shuffle. With WithStrata each stratum is dealt in turn, continuing the
// round-robin so that fold sizes stay balanced. Every row appears in
// exactly one assessment set.
func VFold(f *Frame, k int, opts ...Option) (*FoldSet, error) {
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if f.NRows() < k {
		return nil, errors.NewInsufficientDataError("VFold", f.NRows(), k)
	}
	cfg := newResampleConfig(opts)
	groups, err := cfg.groups(f)
	if err != nil {
		return nil, err
	}

	rng := cfg.rng()
	assignment := make([]int, f.NRows())
	next := 0
	for _, g := range groups {
		g = slices.Clone(g)
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		for _, row := range g {
			assignment[row] = next
			next = (next + 1) % k
		}
	}

	width := max(2, len(strconv.Itoa(k)))
	set := &FoldSet{Folds: make([]Fold, k), nrows: f.NRows()}
	for i := range set.Folds {
		set.Folds[i] = Fold{ID: fmt.Sprintf("Fold%0*d", width, i+1), source: f}
	}
	for row, fold := range assignment {
		for i := range set.Folds {
			if i == fold {
				set.Folds[i].AssessmentIdx = append(set.Folds[i].AssessmentIdx, row)
			} else {
				set.Folds[i].AnalysisIdx = append(set.Folds[i].AnalysisIdx, row)
			}
		}
	}
	return set, nil
}
