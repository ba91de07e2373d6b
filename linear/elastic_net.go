package linear

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// ElasticNet は座標降下法で
//
//	RSS(β) + λ·[(1-α)·Σβ_j² + α·Σ|β_j|]
//
// を最小化する。切片は罰則の対象外 (X と y を中心化して推定)。
// α=0 で Ridge、α=1 で Lasso。
type ElasticNet struct {
	state *model.StateManager

	lambda  float64
	alpha   float64
	maxIter int
	tol     float64

	coef      []float64
	intercept float64
	nIter     int
}

// NewElasticNet は新しい ElasticNet を作成する
//
//	en, err := linear.NewElasticNet(0.1, 1.0) // lasso
func NewElasticNet(lambda, alpha float64, opts ...ElasticNetOption) (*ElasticNet, error) {
	if err := validatePenalty(lambda, alpha); err != nil {
		return nil, err
	}
	en := &ElasticNet{
		state:   model.NewStateManager(),
		lambda:  lambda,
		alpha:   alpha,
		maxIter: 10000,
		tol:     1e-8,
	}
	for _, opt := range opts {
		opt(en)
	}
	if en.maxIter <= 0 {
		return nil, errors.NewValidationError("max_iter", "must be positive", en.maxIter)
	}
	if !(en.tol > 0) {
		return nil, errors.NewValidationError("tol", "must be positive", en.tol)
	}
	return en, nil
}

func validatePenalty(lambda, alpha float64) error {
	if !(lambda >= 0) || math.IsInf(lambda, 1) {
		return errors.NewValidationError("penalty", "must be a finite value >= 0", lambda)
	}
	if !(alpha >= 0 && alpha <= 1) {
		return errors.NewValidationError("mixture", "must be in [0, 1]", alpha)
	}
	return nil
}

// centered holds column-major centered training data.
type centered struct {
	cols  [][]float64
	colSq []float64
	xMean []float64
	y     []float64
	yMean float64
}

func center(X, y mat.Matrix) *centered {
	r, c := X.Dims()
	cd := &centered{
		cols:  make([][]float64, c),
		colSq: make([]float64, c),
		xMean: make([]float64, c),
		y:     mat.Col(nil, 0, y),
	}
	cd.yMean = floats.Sum(cd.y) / float64(r)
	floats.AddConst(-cd.yMean, cd.y)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		cd.xMean[j] = floats.Sum(col) / float64(r)
		floats.AddConst(-cd.xMean[j], col)
		cd.cols[j] = col
		cd.colSq[j] = floats.Dot(col, col)
	}
	return cd
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// descend runs coordinate descent sweeps from beta, updating beta and
// resid (= y - Xβ) in place.
func (en *ElasticNet) descend(cd *centered, beta, resid []float64, lambda float64) (int, bool) {
	l1 := lambda * en.alpha / 2
	l2 := lambda * (1 - en.alpha)
	for iter := 1; iter <= en.maxIter; iter++ {
		maxDelta, maxBeta := 0.0, 0.0
		for j, col := range cd.cols {
			if cd.colSq[j] == 0 {
				continue
			}
			rho := floats.Dot(col, resid) + cd.colSq[j]*beta[j]
			next := softThreshold(rho, l1) / (cd.colSq[j] + l2)
			if d := next - beta[j]; d != 0 {
				floats.AddScaled(resid, -d, col)
				beta[j] = next
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxBeta = math.Max(maxBeta, math.Abs(next))
		}
		if maxDelta <= en.tol*math.Max(maxBeta, 1) {
			return iter, true
		}
	}
	return en.maxIter, false
}

func (en *ElasticNet) residuals(cd *centered, beta []float64) []float64 {
	resid := slices.Clone(cd.y)
	for j, b := range beta {
		if b != 0 {
			floats.AddScaled(resid, -b, cd.cols[j])
		}
	}
	return resid
}

func (cd *centered) intercept(beta []float64) float64 {
	return cd.yMean - floats.Dot(cd.xMean, beta)
}

// Fit はモデルを訓練データで学習させる
func (en *ElasticNet) Fit(X, y mat.Matrix) error {
	const op = "ElasticNet.Fit"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return err
	}
	if r < 2 {
		return errors.NewInsufficientDataError(op, r, 2)
	}
	cd := center(X, y)
	beta := make([]float64, c)
	iters, converged := en.descend(cd, beta, slices.Clone(cd.y), en.lambda)
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", iters,
			fmt.Sprintf("penalty=%g mixture=%g; consider increasing max_iter or scaling the predictors", en.lambda, en.alpha)))
	}
	if err := errors.CheckNumericalStability(op, beta, iters); err != nil {
		return err
	}
	en.coef = beta
	en.intercept = cd.intercept(beta)
	en.nIter = iters
	en.state.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := en.state.RequireFeatures("ElasticNet", "Predict", c); err != nil {
		return nil, err
	}
	predictions := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		predictions.Set(i, 0, en.intercept+floats.Dot(row, en.coef))
	}
	return predictions, nil
}

// PathPoint is the solution at one penalty value.
type PathPoint struct {
	Lambda    float64
	Coef      []float64
	Intercept float64
}

// Path fits the model at each lambda, largest first, starting each fit
// from the previous solution. The points are returned in decreasing
// lambda order. The receiver's own penalty and fitted state are unchanged.
func (en *ElasticNet) Path(X, y mat.Matrix, lambdas []float64) ([]PathPoint, error) {
	const op = "ElasticNet.Path"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return nil, err
	}
	if r < 2 {
		return nil, errors.NewInsufficientDataError(op, r, 2)
	}
	if len(lambdas) == 0 {
		return nil, errors.NewValidationError("lambdas", "at least one penalty value is required", lambdas)
	}
	sorted := slices.Clone(lambdas)
	slices.SortFunc(sorted, func(a, b float64) int { return -cmpFloat(a, b) })
	for _, l := range sorted {
		if err := validatePenalty(l, en.alpha); err != nil {
			return nil, err
		}
	}

	cd := center(X, y)
	beta := make([]float64, c)
	resid := slices.Clone(cd.y)
	points := make([]PathPoint, 0, len(sorted))
	for _, l := range sorted {
		iters, converged := en.descend(cd, beta, resid, l)
		if !converged {
			errors.Warn(errors.NewConvergenceWarning("ElasticNet", iters, fmt.Sprintf("path at penalty=%g", l)))
		}
		// 数値誤差の蓄積を避けるため残差を再計算
		resid = en.residuals(cd, beta)
		points = append(points, PathPoint{Lambda: l, Coef: slices.Clone(beta), Intercept: cd.intercept(beta)})
	}
	return points, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// LambdaMax は全係数が 0 になる最小の λ を返す (alpha > 0)
func LambdaMax(X, y mat.Matrix, alpha float64) (float64, error) {
	if _, _, err := checkXY("LambdaMax", X, y); err != nil {
		return 0, err
	}
	if !(alpha > 0 && alpha <= 1) {
		return 0, errors.NewValidationError("mixture", "must be in (0, 1] for a finite lambda max", alpha)
	}
	cd := center(X, y)
	m := 0.0
	for _, col := range cd.cols {
		m = math.Max(m, math.Abs(floats.Dot(col, cd.y)))
	}
	return 2 * m / alpha, nil
}

// Coef は学習された重み係数を返す
func (en *ElasticNet) Coef() []float64 { return slices.Clone(en.coef) }

// Intercept は学習された切片を返す
func (en *ElasticNet) Intercept() float64 { return en.intercept }

// Penalty returns λ.
func (en *ElasticNet) Penalty() float64 { return en.lambda }

// Mixture returns α.
func (en *ElasticNet) Mixture() float64 { return en.alpha }

// NIter は最後の Fit で使った反復回数
func (en *ElasticNet) NIter() int { return en.nIter }

// IsFitted reports whether the model has been fit or imported.
func (en *ElasticNet) IsFitted() bool { return en.state.IsFitted() }

// Summary returns estimates only; penalized fits carry no standard errors.
func (en *ElasticNet) Summary(names []string) ([]model.Coefficient, error) {
	if err := en.state.RequireFitted("ElasticNet", "Summary"); err != nil {
		return nil, err
	}
	if len(names) != len(en.coef) {
		return nil, errors.NewDimensionError("ElasticNet.Summary", len(en.coef), len(names), 1)
	}
	nan := math.NaN()
	out := []model.Coefficient{{Term: InterceptTerm, Estimate: en.intercept, StdError: nan, Statistic: nan, PValue: nan}}
	for j, name := range names {
		out = append(out, model.Coefficient{Term: name, Estimate: en.coef[j], StdError: nan, Statistic: nan, PValue: nan})
	}
	return out, nil
}

// ExportWeights はモデルの重みをエクスポート
func (en *ElasticNet) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := en.state.RequireFitted("ElasticNet", "ExportWeights"); err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType:    "ElasticNet",
		Version:      model.WeightsVersion,
		Coefficients: en.Coef(),
		Intercept:    en.intercept,
		Features:     features,
		Hyperparameters: map[string]float64{
			"penalty": en.lambda,
			"mixture": en.alpha,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights は重みをインポートする
func (en *ElasticNet) ImportWeights(w *model.ModelWeights) error {
	if err := importable(w, "ElasticNet"); err != nil {
		return err
	}
	lambda, alpha := w.Hyperparameters["penalty"], w.Hyperparameters["mixture"]
	if err := validatePenalty(lambda, alpha); err != nil {
		return err
	}
	en.lambda, en.alpha = lambda, alpha
	en.coef = slices.Clone(w.Coefficients)
	en.intercept = w.Intercept
	en.state.SetFitted(len(en.coef), 0)
	return nil
}

var (
	_ model.Estimator   = (*ElasticNet)(nil)
	_ model.LinearModel = (*ElasticNet)(nil)
	_ model.Summarizer  = (*ElasticNet)(nil)
)
