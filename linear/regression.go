// Package linear は線形回帰モデル (最小二乗法と Elastic Net) を提供する
package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/core/parallel"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// InterceptTerm is the term name of the intercept in coefficient tables.
const InterceptTerm = "(Intercept)"

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は最小二乗法による線形回帰モデル
//
// QR 分解で解き、係数の標準誤差と区間推定のために (XᵀX)⁻¹ を保持する。
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	coef      []float64
	intercept float64

	// 推測統計 (Import した重みには無い)
	sigma2  float64
	dfResid int
	xtxInv  *mat.Dense // (XᵀX)⁻¹, 切片があれば先頭
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{state: model.NewStateManager(), fitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// designMatrix は切片列を先頭に付けた計画行列を作る
func designMatrix(X mat.Matrix, intercept bool) *mat.Dense {
	r, c := X.Dims()
	offset := 0
	if intercept {
		offset = 1
	}
	D := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if intercept {
				D.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				D.Set(i, j+offset, X.At(i, j))
			}
		}
	})
	return D
}

func checkXY(op string, X, y mat.Matrix) (int, int, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y, 0); err != nil {
		return 0, 0, err
	}
	return r, c, nil
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	const op = "LinearRegression.Fit"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return err
	}
	D := designMatrix(X, lr.fitIntercept)
	_, p := D.Dims()
	// 残差の自由度が 1 以上必要
	if r <= p {
		return errors.NewInsufficientDataError(op, r, p+1)
	}

	var qr mat.QR
	qr.Factorize(D)
	var full mat.Dense
	qr.RTo(&full)
	R := mat.DenseCopyOf(full.Slice(0, p, 0, p))

	maxDiag := 0.0
	for j := 0; j < p; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(R.At(j, j)))
	}
	for j := 0; j < p; j++ {
		if math.Abs(R.At(j, j)) <= 1e-10*maxDiag {
			return errors.NewModelError(op, "rank deficient design matrix", errors.ErrSingularMatrix)
		}
	}

	beta := mat.NewDense(p, 1, nil)
	if err := qr.SolveTo(beta, false, y); err != nil {
		return errors.NewModelError(op, "solve", errors.ErrSingularMatrix)
	}

	// (XᵀX)⁻¹ = R⁻¹R⁻ᵀ
	var rInv mat.Dense
	if err := rInv.Inverse(R); err != nil {
		return errors.NewModelError(op, "invert R", errors.ErrSingularMatrix)
	}
	xtxInv := mat.NewDense(p, p, nil)
	xtxInv.Mul(&rInv, rInv.T())

	var fitted mat.Dense
	fitted.Mul(D, beta)
	rss := 0.0
	for i := 0; i < r; i++ {
		d := y.At(i, 0) - fitted.At(i, 0)
		rss += d * d
	}

	lr.intercept = 0
	offset := 0
	if lr.fitIntercept {
		lr.intercept = beta.At(0, 0)
		offset = 1
	}
	lr.coef = make([]float64, c)
	for j := range lr.coef {
		lr.coef[j] = beta.At(j+offset, 0)
	}
	lr.dfResid = r - p
	lr.sigma2 = rss / float64(lr.dfResid)
	lr.xtxInv = xtxInv

	lr.state.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression", "Predict", c); err != nil {
		return nil, err
	}
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

func (lr *LinearRegression) requireInference(method string) error {
	if err := lr.state.RequireFitted("LinearRegression", method); err != nil {
		return err
	}
	if lr.xtxInv == nil {
		return errors.NewValueError("LinearRegression."+method, "no inference state; the model was imported from weights")
	}
	return nil
}

// PredictInterval は点予測と両側 level の区間を返す
//
// 信頼区間は平均応答、予測区間は新しい観測値に対するもので、残差分散の分だけ広い。
func (lr *LinearRegression) PredictInterval(X mat.Matrix, level float64, kind model.IntervalKind) (fit, lower, upper *mat.VecDense, err error) {
	if err := lr.requireInference("PredictInterval"); err != nil {
		return nil, nil, nil, err
	}
	if !(level > 0 && level < 1) {
		return nil, nil, nil, errors.NewValidationError("level", "must be in (0, 1)", level)
	}
	r, c := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression", "PredictInterval", c); err != nil {
		return nil, nil, nil, err
	}

	tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(lr.dfResid)}.Quantile((1 + level) / 2)
	D := designMatrix(X, lr.fitIntercept)
	fit = mat.NewVecDense(r, nil)
	lower = mat.NewVecDense(r, nil)
	upper = mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		x0 := D.RowView(i)
		v := lr.sigma2 * mat.Inner(x0, lr.xtxInv, x0)
		if kind == model.PredictionInterval {
			v += lr.sigma2
		}
		yhat := lr.intercept + mat.Dot(mat.NewVecDense(c, lr.coef), mat.NewVecDense(c, mat.Row(nil, i, X)))
		half := tq * math.Sqrt(v)
		fit.SetVec(i, yhat)
		lower.SetVec(i, yhat-half)
		upper.SetVec(i, yhat+half)
	}
	return fit, lower, upper, nil
}

// Summary は係数表 (推定値, 標準誤差, t 値, p 値) を返す。切片が先頭。
func (lr *LinearRegression) Summary(names []string) ([]model.Coefficient, error) {
	if err := lr.requireInference("Summary"); err != nil {
		return nil, err
	}
	if len(names) != len(lr.coef) {
		return nil, errors.NewDimensionError("LinearRegression.Summary", len(lr.coef), len(names), 1)
	}
	terms := names
	estimates := lr.coef
	if lr.fitIntercept {
		terms = append([]string{InterceptTerm}, names...)
		estimates = append([]float64{lr.intercept}, lr.coef...)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(lr.dfResid)}
	out := make([]model.Coefficient, len(terms))
	for j, term := range terms {
		se := math.Sqrt(lr.sigma2 * lr.xtxInv.At(j, j))
		stat := errors.SafeDivide(estimates[j], se)
		out[j] = model.Coefficient{
			Term:      term,
			Estimate:  estimates[j],
			StdError:  se,
			Statistic: stat,
			PValue:    2 * dist.Survival(math.Abs(stat)),
		}
	}
	return out, nil
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 { return lr.intercept }

// Sigma は残差標準誤差を返す
func (lr *LinearRegression) Sigma() float64 { return math.Sqrt(lr.sigma2) }

// DFResidual は残差の自由度
func (lr *LinearRegression) DFResidual() int { return lr.dfResid }

// IsFitted reports whether the model has been fit or imported.
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return rSquared(y, yPred)
}

func rSquared(y, yPred mat.Matrix) (float64, error) {
	r, _ := y.Dims()
	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)

	// 全変動 (TSS) と残差変動 (RSS)
	var tss, rss float64
	for i := 0; i < r; i++ {
		yTrue := y.At(i, 0)
		tss += (yTrue - yMean) * (yTrue - yMean)
		rss += (yTrue - yPred.At(i, 0)) * (yTrue - yPred.At(i, 0))
	}
	if tss == 0 {
		return 0, errors.NewValueError("Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// ExportWeights はモデルの重みをエクスポート
func (lr *LinearRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType:    "LinearRegression",
		Version:      model.WeightsVersion,
		Coefficients: lr.Coef(),
		Intercept:    lr.intercept,
		Features:     features,
		Hyperparameters: map[string]float64{
			"fit_intercept": boolFloat(lr.fitIntercept),
		},
		IsFitted: true,
	}, nil
}

// ImportWeights は重みをインポートする。推測統計は復元されない。
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if err := importable(w, "LinearRegression"); err != nil {
		return err
	}
	lr.coef = append([]float64(nil), w.Coefficients...)
	lr.intercept = w.Intercept
	lr.fitIntercept = w.Hyperparameters["fit_intercept"] != 0 || w.Intercept != 0
	lr.xtxInv, lr.sigma2, lr.dfResid = nil, 0, 0
	lr.state.SetFitted(len(lr.coef), 0)
	return nil
}

func importable(w *model.ModelWeights, modelType string) error {
	if w == nil {
		return errors.NewValueError("ImportWeights", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "ImportWeights")
	}
	if w.ModelType != modelType {
		return errors.NewValueError("ImportWeights", fmt.Sprintf("expected %s weights, got %s", modelType, w.ModelType))
	}
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var (
	_ model.Estimator         = (*LinearRegression)(nil)
	_ model.LinearModel       = (*LinearRegression)(nil)
	_ model.IntervalPredictor = (*LinearRegression)(nil)
	_ model.Summarizer        = (*LinearRegression)(nil)
)
