package neighbors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
)

// KNeighborsClassifier は k 近傍の多数決で分類する
//
// 票が同数の場合は、同数のクラスのうち最も近い近傍を持つクラスを選ぶ。
type KNeighborsClassifier struct {
	*base
	labels   []int
	nClasses int
}

// NewKNeighborsClassifier creates a classifier voting over k neighbors.
func NewKNeighborsClassifier(k int, opts ...Option) (*KNeighborsClassifier, error) {
	b, err := newBase(k, opts)
	if err != nil {
		return nil, err
	}
	return &KNeighborsClassifier{base: b}, nil
}

// Fit stores the training points; y holds class indices.
func (kc *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	labels, counts, err := model.ClassTargets("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := kc.fit("KNeighborsClassifier.Fit", X); err != nil {
		return err
	}
	kc.labels = labels
	kc.nClasses = len(counts)
	return nil
}

// PredictProba returns the vote share of every class.
func (kc *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	proba := mat.NewDense(r, kc.nClasses, nil)
	err := kc.each("PredictProba", X, func(i int, nbrs []neighbor) {
		for _, nb := range nbrs {
			cls := kc.labels[nb.index]
			proba.Set(i, cls, proba.At(i, cls)+1/float64(len(nbrs)))
		}
	})
	if err != nil {
		return nil, err
	}
	return proba, nil
}

// Predict returns the majority class of the k nearest neighbors.
func (kc *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	err := kc.each("Predict", X, func(i int, nbrs []neighbor) {
		out.Set(i, 0, float64(kc.vote(nbrs)))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (kc *KNeighborsClassifier) vote(nbrs []neighbor) int {
	votes := make([]int, kc.nClasses)
	top := 0
	for _, nb := range nbrs {
		votes[kc.labels[nb.index]]++
		top = max(top, votes[kc.labels[nb.index]])
	}
	// 近い順に走査し、最多票のクラスを最初に見つけたものを返す
	for _, nb := range nbrs {
		if votes[kc.labels[nb.index]] == top {
			return kc.labels[nb.index]
		}
	}
	return 0
}

// NClasses returns K.
func (kc *KNeighborsClassifier) NClasses() int { return kc.nClasses }

var _ model.Classifier = (*KNeighborsClassifier)(nil)
