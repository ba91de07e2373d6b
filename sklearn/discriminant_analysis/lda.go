package discriminant_analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// LinearDiscriminantAnalysis は共有共分散行列による線形判別分析
type LinearDiscriminantAnalysis struct {
	state *model.StateManager

	stats *classStats
	cov   *mat.SymDense
	// coef[k] = Σ⁻¹μ_k, bias[k] = -½μ_kᵀΣ⁻¹μ_k + log π_k
	coef [][]float64
	bias []float64
}

// NewLDA creates an unfitted LDA model.
func NewLDA() *LinearDiscriminantAnalysis {
	return &LinearDiscriminantAnalysis{state: model.NewStateManager()}
}

// Fit estimates class means, priors and the pooled covariance
// Σ = Σ_k Σ_{i∈k} (x_i-μ_k)(x_i-μ_k)ᵀ / (n-K).
func (lda *LinearDiscriminantAnalysis) Fit(X, y mat.Matrix) error {
	const op = "LDA.Fit"
	stats, err := fitClassStats(op, X, y)
	if err != nil {
		return err
	}
	r, c := X.Dims()
	k := stats.present()
	if k < 2 {
		return errors.NewInsufficientDataError(op+": classes", k, 2)
	}
	if r-k < c {
		return errors.NewInsufficientDataError(op, r, c+k)
	}

	cov := stats.scatter(X, func(int) bool { return true })
	cov.ScaleSym(1/float64(r-k), cov)

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return errors.NewModelError(op, "pooled covariance is singular (collinear predictors?)", errors.ErrSingularMatrix)
	}

	lda.coef = make([][]float64, len(stats.counts))
	lda.bias = make([]float64, len(stats.counts))
	for cls, mu := range stats.means {
		if mu == nil {
			lda.bias[cls] = math.Inf(-1)
			continue
		}
		var w mat.VecDense
		if err := chol.SolveVecTo(&w, mat.NewVecDense(c, mu)); err != nil {
			return errors.NewModelError(op, "solve", errors.ErrSingularMatrix)
		}
		lda.coef[cls] = mat.Col(nil, 0, &w)
		lda.bias[cls] = -0.5*floats.Dot(mu, lda.coef[cls]) + logPrior(stats.priors[cls])
	}
	lda.stats = stats
	lda.cov = cov
	lda.state.SetFitted(c, r)
	return nil
}

// PredictProba returns posterior class probabilities, one column per class.
func (lda *LinearDiscriminantAnalysis) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lda.state.RequireFeatures("LDA", "PredictProba", c); err != nil {
		return nil, err
	}
	K := len(lda.bias)
	proba := mat.NewDense(r, K, nil)
	row := make([]float64, c)
	scores := make([]float64, K)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for k := range scores {
			scores[k] = lda.bias[k]
			if lda.coef[k] != nil {
				scores[k] += floats.Dot(row, lda.coef[k])
			}
		}
		proba.SetRow(i, posterior(scores))
	}
	return proba, nil
}

// Predict returns the class index with the highest posterior.
func (lda *LinearDiscriminantAnalysis) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lda.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}

// NClasses returns K.
func (lda *LinearDiscriminantAnalysis) NClasses() int { return len(lda.bias) }

// Priors returns the training class frequencies.
func (lda *LinearDiscriminantAnalysis) Priors() []float64 {
	return append([]float64(nil), lda.stats.priors...)
}

// Means returns the class means; nil for classes without training rows.
func (lda *LinearDiscriminantAnalysis) Means() [][]float64 { return lda.stats.means }

// Covariance returns the pooled covariance matrix.
func (lda *LinearDiscriminantAnalysis) Covariance() mat.Symmetric { return lda.cov }

// IsFitted reports whether Fit has succeeded.
func (lda *LinearDiscriminantAnalysis) IsFitted() bool { return lda.state.IsFitted() }

var _ model.Classifier = (*LinearDiscriminantAnalysis)(nil)
