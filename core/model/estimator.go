package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit は X (n×p) と y (n×1) でモデルを学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は n×1 の予測値 (分類ではクラス番号) を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer is a matrix-level transform learned from training rows.
// Normalize / Range steps and kNN scaling hold one per fitted column set.
type Transformer interface {
	Fit(X mat.Matrix) error
	// Transform は学習済みパラメータで変換する (X は変更しない)
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is what the workflow layer fits and predicts with.
type Estimator interface {
	Fitter
	Predictor
}

// Classifier は確率を返せる分類器
//
// Targets passed to Fit are class indices 0..K-1 encoded as float64.
type Classifier interface {
	Estimator
	// PredictProba は n×K のクラス確率を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	// NClasses は学習時のクラス数
	NClasses() int
}

// IntervalKind selects the interval PredictInterval computes.
type IntervalKind int

const (
	// ConfidenceInterval bounds the mean response.
	ConfidenceInterval IntervalKind = iota
	// PredictionInterval bounds a new observation.
	PredictionInterval
)

// IntervalPredictor is implemented by estimators with Gaussian error
// assumptions.
type IntervalPredictor interface {
	PredictInterval(X mat.Matrix, level float64, kind IntervalKind) (fit, lower, upper *mat.VecDense, err error)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coef は切片を除く係数
	Coef() []float64
	Intercept() float64
}

// Coefficient is one row of a coefficient table. Statistic and PValue are
// NaN when the estimator does not provide inference.
type Coefficient struct {
	Term      string
	Estimate  float64
	StdError  float64
	Statistic float64
	PValue    float64
}

// Summarizer returns a coefficient table, intercept first. names label
// the non-intercept terms.
type Summarizer interface {
	Summary(names []string) ([]Coefficient, error)
}
