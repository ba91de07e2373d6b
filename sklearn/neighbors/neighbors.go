// Package neighbors は k 近傍法による分類器と回帰器を提供する
package neighbors

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/core/parallel"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/preprocessing"
)

// 並列処理の閾値（この値以下の予測行数では逐次処理を使用）
const parallelThreshold = 256

// Option configures both neighbor models.
type Option func(*base)

// WithMinkowskiP sets the order p of the Minkowski distance. Default 2.
func WithMinkowskiP(p float64) Option {
	return func(b *base) { b.p = p }
}

// WithStandardize scales every feature by its training mean and standard
// deviation before distances are computed.
func WithStandardize(on bool) Option {
	return func(b *base) { b.standardize = on }
}

// WithWorkers bounds the goroutines used by Predict. 0 splits across all
// CPUs once the batch is large enough.
func WithWorkers(n int) Option {
	return func(b *base) { b.workers = n }
}

// base holds the training points and the neighbor search shared by the
// classifier and the regressor.
type base struct {
	state *model.StateManager

	k           int
	p           float64
	standardize bool
	workers     int

	scaler *preprocessing.StandardScaler
	train  *mat.Dense
}

func newBase(k int, opts []Option) (*base, error) {
	b := &base{state: model.NewStateManager(), k: k, p: 2}
	for _, opt := range opts {
		opt(b)
	}
	if k < 1 {
		return nil, errors.NewValidationError("neighbors", "must be >= 1", k)
	}
	if !(b.p >= 1) {
		return nil, errors.NewValidationError("p", "Minkowski order must be >= 1", b.p)
	}
	if b.workers < 0 {
		return nil, errors.NewValidationError("workers", "must be >= 0", b.workers)
	}
	return b, nil
}

func (b *base) fit(op string, X mat.Matrix) error {
	r, c := X.Dims()
	if r < b.k {
		return errors.NewInsufficientDataError(op, r, b.k)
	}
	b.scaler = nil
	b.train = mat.DenseCopyOf(X)
	if b.standardize {
		b.scaler = preprocessing.NewStandardScaler(preprocessing.WithDDOF(1))
		scaled, err := b.scaler.FitTransform(X)
		if err != nil {
			return err
		}
		b.train = mat.DenseCopyOf(scaled)
	}
	b.state.SetFitted(c, r)
	return nil
}

func (b *base) distance(a, c []float64) float64 {
	if b.p == 2 {
		s := 0.0
		for i := range a {
			d := a[i] - c[i]
			s += d * d
		}
		return math.Sqrt(s)
	}
	s := 0.0
	for i := range a {
		s += math.Pow(math.Abs(a[i]-c[i]), b.p)
	}
	return math.Pow(s, 1/b.p)
}

type neighbor struct {
	index int
	dist  float64
}

// kNearest returns the k nearest training rows, closest first. Equal
// distances keep training row order.
func (b *base) kNearest(query []float64) []neighbor {
	n, _ := b.train.Dims()
	all := make([]neighbor, n)
	for i := 0; i < n; i++ {
		all[i] = neighbor{index: i, dist: b.distance(query, b.train.RawRowView(i))}
	}
	slices.SortStableFunc(all, func(x, y neighbor) int {
		switch {
		case x.dist < y.dist:
			return -1
		case x.dist > y.dist:
			return 1
		default:
			return 0
		}
	})
	return all[:b.k]
}

// each runs fn on every query row, in parallel for large batches.
func (b *base) each(method string, X mat.Matrix, fn func(i int, nbrs []neighbor)) error {
	r, c := X.Dims()
	if err := b.state.RequireFeatures("KNeighbors", method, c); err != nil {
		return err
	}
	query := mat.DenseCopyOf(X)
	if b.scaler != nil {
		scaled, err := b.scaler.Transform(X)
		if err != nil {
			return err
		}
		query = mat.DenseCopyOf(scaled)
	}
	work := func(start, end int) {
		for i := start; i < end; i++ {
			fn(i, b.kNearest(query.RawRowView(i)))
		}
	}
	if b.workers > 0 {
		parallel.ParallelizeWorkers(r, b.workers, work)
	} else {
		parallel.ParallelizeWithThreshold(r, parallelThreshold, work)
	}
	return nil
}

// IsFitted reports whether Fit has succeeded.
func (b *base) IsFitted() bool { return b.state.IsFitted() }

// K returns the number of neighbors.
func (b *base) K() int { return b.k }
