// Package discriminant_analysis は線形判別分析 (LDA) と二次判別分析 (QDA) を提供する
//
// どちらもクラスごとに多変量正規分布を仮定し、学習データのクラス頻度を事前確率とする。
// LDA は全クラスで共分散行列を共有し、QDA はクラスごとに推定する。
package discriminant_analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// classStats holds what both models learn before the covariance step.
type classStats struct {
	labels []int
	counts []int
	priors []float64
	means  [][]float64 // nil for classes without rows
}

func fitClassStats(op string, X, y mat.Matrix) (*classStats, error) {
	labels, counts, err := model.ClassTargets(op, X, y)
	if err != nil {
		return nil, err
	}
	r, c := X.Dims()
	cs := &classStats{
		labels: labels,
		counts: counts,
		priors: make([]float64, len(counts)),
		means:  make([][]float64, len(counts)),
	}
	for k, n := range counts {
		cs.priors[k] = float64(n) / float64(r)
		if n > 0 {
			cs.means[k] = make([]float64, c)
		}
	}
	row := make([]float64, c)
	for i, k := range labels {
		mat.Row(row, i, X)
		floats.Add(cs.means[k], row)
	}
	for k, n := range counts {
		if n > 0 {
			floats.Scale(1/float64(n), cs.means[k])
		}
	}
	return cs, nil
}

func (cs *classStats) present() int {
	n := 0
	for _, c := range cs.counts {
		if c > 0 {
			n++
		}
	}
	return n
}

// scatter accumulates Σ(x-μ_k)(x-μ_k)ᵀ over rows where include(k) holds.
func (cs *classStats) scatter(X mat.Matrix, include func(k int) bool) *mat.SymDense {
	_, c := X.Dims()
	S := mat.NewSymDense(c, nil)
	row := make([]float64, c)
	for i, k := range cs.labels {
		if !include(k) {
			continue
		}
		mat.Row(row, i, X)
		floats.Sub(row, cs.means[k])
		S.SymRankOne(S, 1, mat.NewVecDense(c, row))
	}
	return S
}

// posterior turns per-class log scores into probabilities. Classes without
// training rows have score -Inf and probability 0.
func posterior(scores []float64) []float64 {
	errors.Softmax(scores)
	return scores
}

func predictFromProba(proba mat.Matrix) mat.Matrix {
	r, k := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, k)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(model.Argmax(row)))
	}
	return out
}

func logPrior(p float64) float64 {
	if p == 0 {
		return math.Inf(-1)
	}
	return math.Log(p)
}
