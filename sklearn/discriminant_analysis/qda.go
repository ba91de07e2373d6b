package discriminant_analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// QuadraticDiscriminantAnalysis はクラスごとの共分散行列による二次判別分析
type QuadraticDiscriminantAnalysis struct {
	state *model.StateManager

	stats *classStats
	chols []*mat.Cholesky // nil for classes without rows
	// bias[k] = -½log|Σ_k| + log π_k
	bias []float64
}

// NewQDA creates an unfitted QDA model.
func NewQDA() *QuadraticDiscriminantAnalysis {
	return &QuadraticDiscriminantAnalysis{state: model.NewStateManager()}
}

// Fit estimates a mean and a covariance (divisor n_k-1) per class. Every
// class with rows needs more rows than predictors.
func (qda *QuadraticDiscriminantAnalysis) Fit(X, y mat.Matrix) error {
	const op = "QDA.Fit"
	stats, err := fitClassStats(op, X, y)
	if err != nil {
		return err
	}
	r, c := X.Dims()
	if k := stats.present(); k < 2 {
		return errors.NewInsufficientDataError(op+": classes", k, 2)
	}

	qda.chols = make([]*mat.Cholesky, len(stats.counts))
	qda.bias = make([]float64, len(stats.counts))
	for cls, n := range stats.counts {
		if n == 0 {
			qda.bias[cls] = math.Inf(-1)
			continue
		}
		if n <= c {
			return errors.NewInsufficientDataError(op+": rows in a class", n, c+1)
		}
		cov := stats.scatter(X, func(k int) bool { return k == cls })
		cov.ScaleSym(1/float64(n-1), cov)
		chol := &mat.Cholesky{}
		if ok := chol.Factorize(cov); !ok {
			return errors.NewModelError(op, "class covariance is singular", errors.ErrSingularMatrix)
		}
		qda.chols[cls] = chol
		qda.bias[cls] = -0.5*chol.LogDet() + logPrior(stats.priors[cls])
	}
	qda.stats = stats
	qda.state.SetFitted(c, r)
	return nil
}

// PredictProba returns posterior class probabilities, one column per class.
func (qda *QuadraticDiscriminantAnalysis) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := qda.state.RequireFeatures("QDA", "PredictProba", c); err != nil {
		return nil, err
	}
	K := len(qda.bias)
	proba := mat.NewDense(r, K, nil)
	row := make([]float64, c)
	diff := make([]float64, c)
	scores := make([]float64, K)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for k := range scores {
			scores[k] = qda.bias[k]
			if qda.chols[k] == nil {
				continue
			}
			floats.SubTo(diff, row, qda.stats.means[k])
			d := mat.NewVecDense(c, diff)
			var sol mat.VecDense
			if err := qda.chols[k].SolveVecTo(&sol, d); err != nil {
				return nil, errors.NewModelError("QDA.PredictProba", "solve", errors.ErrSingularMatrix)
			}
			scores[k] -= 0.5 * mat.Dot(d, &sol)
		}
		proba.SetRow(i, posterior(scores))
	}
	return proba, nil
}

// Predict returns the class index with the highest posterior.
func (qda *QuadraticDiscriminantAnalysis) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := qda.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}

// NClasses returns K.
func (qda *QuadraticDiscriminantAnalysis) NClasses() int { return len(qda.bias) }

// Priors returns the training class frequencies.
func (qda *QuadraticDiscriminantAnalysis) Priors() []float64 {
	return append([]float64(nil), qda.stats.priors...)
}

// IsFitted reports whether Fit has succeeded.
func (qda *QuadraticDiscriminantAnalysis) IsFitted() bool { return qda.state.IsFitted() }

var _ model.Classifier = (*QuadraticDiscriminantAnalysis)(nil)
