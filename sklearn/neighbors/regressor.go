package neighbors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// KNeighborsRegressor は k 近傍の目的変数の平均で予測する
type KNeighborsRegressor struct {
	*base
	target []float64
}

// NewKNeighborsRegressor creates a regressor averaging k neighbors.
func NewKNeighborsRegressor(k int, opts ...Option) (*KNeighborsRegressor, error) {
	b, err := newBase(k, opts)
	if err != nil {
		return nil, err
	}
	return &KNeighborsRegressor{base: b}, nil
}

// Fit stores the training points.
func (kr *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	const op = "KNeighborsRegressor.Fit"
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return err
	}
	if err := kr.fit(op, X); err != nil {
		return err
	}
	kr.target = mat.Col(nil, 0, y)
	return nil
}

// Predict returns the mean target of the k nearest neighbors.
func (kr *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	err := kr.each("Predict", X, func(i int, nbrs []neighbor) {
		s := 0.0
		for _, nb := range nbrs {
			s += kr.target[nb.index]
		}
		out.Set(i, 0, s/float64(len(nbrs)))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ model.Estimator = (*KNeighborsRegressor)(nil)
