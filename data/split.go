package data

import (
	"math"
	"slices"
	"sync"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Split is a partition of a frame into disjoint training and evaluation
// rows. The evaluation rows can be taken exactly once (see TakeTesting).
type Split struct {
	source     *Frame
	proportion float64
	trainIdx   []int
	testIdx    []int

	mu       sync.Mutex
	consumed bool
}

// InitialSplit draws proportion of the rows of f into the training
// partition and leaves the rest for evaluation. With WithStrata each
// stratum contributes round(proportion * size) rows to training, so the
// strata distribution is preserved on both sides.
func InitialSplit(f *Frame, proportion float64, opts ...Option) (*Split, error) {
	if math.IsNaN(proportion) || proportion <= 0 || proportion >= 1 {
		return nil, errors.NewInvalidProportionError(proportion)
	}
	cfg := newResampleConfig(opts)
	groups, err := cfg.groups(f)
	if err != nil {
		return nil, err
	}

	rng := cfg.rng()
	var train, test []int
	for _, g := range groups {
		g = slices.Clone(g)
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		nTrain := int(math.Round(proportion * float64(len(g))))
		train = append(train, g[:nTrain]...)
		test = append(test, g[nTrain:]...)
	}
	if len(train) == 0 {
		return nil, errors.NewEmptyPartitionError("training", f.NRows())
	}
	if len(test) == 0 {
		return nil, errors.NewEmptyPartitionError("testing", f.NRows())
	}
	slices.Sort(train)
	slices.Sort(test)

	return &Split{
		source:     f,
		proportion: proportion,
		trainIdx:   train,
		testIdx:    test,
	}, nil
}

// Proportion returns the requested training proportion.
func (s *Split) Proportion() float64 { return s.proportion }

// NTraining returns the number of training rows.
func (s *Split) NTraining() int { return len(s.trainIdx) }

// NTesting returns the number of evaluation rows without exposing them.
func (s *Split) NTesting() int { return len(s.testIdx) }

// Training returns the training partition.
func (s *Split) Training() *Frame {
	return s.source.Subset(s.trainIdx)
}

// TakeTesting returns the evaluation partition. It succeeds once; every
// later call returns ErrEvaluationConsumed so that the held-out rows
// cannot feed further modeling decisions.
func (s *Split) TakeTesting() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return nil, errors.WithStack(errors.ErrEvaluationConsumed)
	}
	s.consumed = true
	return s.source.Subset(s.testIdx), nil
}

// Consumed reports whether TakeTesting has been called.
func (s *Split) Consumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}
