package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// ClassTargets validates a column of class indices and returns them as
// ints together with the row count of every class 0..K-1, where K is the
// largest index plus one. A class may have zero rows when the caller's
// level set is larger than what this sample contains.
func ClassTargets(op string, X, y mat.Matrix) (labels []int, counts []int, err error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return nil, nil, err
	}
	labels = make([]int, r)
	maxLabel := 0
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return nil, nil, errors.NewValidationError("y", "class targets must be non-negative integer indices", v)
		}
		labels[i] = int(v)
		maxLabel = max(maxLabel, labels[i])
	}
	counts = make([]int, maxLabel+1)
	for _, l := range labels {
		counts[l]++
	}
	return labels, counts, nil
}

// Argmax returns the index of the largest value; ties go to the lower index.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
