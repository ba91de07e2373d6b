// Package naive_bayes はガウシアン・ナイーブベイズ分類器を提供する
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// GaussianNB はクラスごとに各特徴量を独立な正規分布でモデル化する
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64

	classCount []float64
	classPrior []float64
	theta      [][]float64 // クラス別平均
	variance   [][]float64 // クラス別分散 (平滑化込み)
	epsilon    float64
}

// Option configures GaussianNB.
type Option func(*GaussianNB)

// WithVarSmoothing sets the portion of the largest feature variance added
// to every variance for stability. Default 1e-9.
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) {
		nb.varSmoothing = v
	}
}

// NewGaussianNB creates a new GaussianNB
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{state: model.NewStateManager(), varSmoothing: 1e-9}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit estimates per-class means and (population) variances.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	const op = "GaussianNB.Fit"
	if !(nb.varSmoothing >= 0) {
		return errors.NewValidationError("var_smoothing", "must be >= 0", nb.varSmoothing)
	}
	labels, counts, err := model.ClassTargets(op, X, y)
	if err != nil {
		return err
	}
	r, c := X.Dims()
	K := len(counts)

	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	if present < 2 {
		return errors.NewInsufficientDataError(op+": classes", present, 2)
	}

	// epsilon = var_smoothing * 全データでの最大分散
	maxVar := 0.0
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		mean := floats.Sum(col) / float64(r)
		ss := 0.0
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		maxVar = math.Max(maxVar, ss/float64(r))
	}
	nb.epsilon = nb.varSmoothing * maxVar

	nb.classCount = make([]float64, K)
	nb.classPrior = make([]float64, K)
	nb.theta = make([][]float64, K)
	nb.variance = make([][]float64, K)
	for k, n := range counts {
		nb.classCount[k] = float64(n)
		nb.classPrior[k] = float64(n) / float64(r)
		if n > 0 {
			nb.theta[k] = make([]float64, c)
			nb.variance[k] = make([]float64, c)
		}
	}

	row := make([]float64, c)
	for i, k := range labels {
		mat.Row(row, i, X)
		floats.Add(nb.theta[k], row)
	}
	for k := range nb.theta {
		if nb.theta[k] != nil {
			floats.Scale(1/nb.classCount[k], nb.theta[k])
		}
	}
	for i, k := range labels {
		for j := 0; j < c; j++ {
			d := X.At(i, j) - nb.theta[k][j]
			nb.variance[k][j] += d * d
		}
	}
	for k := range nb.variance {
		if nb.variance[k] == nil {
			continue
		}
		for j := range nb.variance[k] {
			nb.variance[k][j] = nb.variance[k][j]/nb.classCount[k] + nb.epsilon
			if nb.variance[k][j] == 0 {
				return errors.NewValueError(op, "zero variance feature; set WithVarSmoothing above 0")
			}
		}
	}

	nb.state.SetFitted(c, r)
	return nil
}

// jointLogLikelihood returns log π_k + Σ_j log N(x_j; θ_kj, σ²_kj).
func (nb *GaussianNB) jointLogLikelihood(row []float64, out []float64) {
	for k := range out {
		if nb.theta[k] == nil {
			out[k] = math.Inf(-1)
			continue
		}
		jll := math.Log(nb.classPrior[k])
		for j, x := range row {
			v := nb.variance[k][j]
			d := x - nb.theta[k][j]
			jll -= 0.5 * (math.Log(2*math.Pi*v) + d*d/v)
		}
		out[k] = jll
	}
}

// PredictLogProba returns log posterior probabilities.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := nb.state.RequireFeatures("GaussianNB", "PredictLogProba", c); err != nil {
		return nil, err
	}
	K := len(nb.classPrior)
	out := mat.NewDense(r, K, nil)
	row := make([]float64, c)
	jll := make([]float64, K)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		nb.jointLogLikelihood(row, jll)
		lse := errors.LogSumExp(jll)
		for k := range jll {
			out.Set(i, k, jll[k]-lse)
		}
	}
	return out, nil
}

// PredictProba returns posterior probabilities, one column per class.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	var proba mat.Dense
	proba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, logProba)
	return &proba, nil
}

// Predict returns the class index with the highest posterior.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	r, K := logProba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, K)
	for i := 0; i < r; i++ {
		mat.Row(row, i, logProba)
		out.Set(i, 0, float64(model.Argmax(row)))
	}
	return out, nil
}

// Score returns the accuracy on (X, y).
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	r, _ := y.Dims()
	hits := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			hits++
		}
	}
	return float64(hits) / float64(r), nil
}

// NClasses returns K.
func (nb *GaussianNB) NClasses() int { return len(nb.classPrior) }

// ClassPrior returns the training class frequencies.
func (nb *GaussianNB) ClassPrior() []float64 { return append([]float64(nil), nb.classPrior...) }

// Theta returns the per-class feature means.
func (nb *GaussianNB) Theta() [][]float64 { return nb.theta }

// Var returns the per-class feature variances including smoothing.
func (nb *GaussianNB) Var() [][]float64 { return nb.variance }

// IsFitted reports whether Fit has succeeded.
func (nb *GaussianNB) IsFitted() bool { return nb.state.IsFitted() }

var _ model.Classifier = (*GaussianNB)(nil)
