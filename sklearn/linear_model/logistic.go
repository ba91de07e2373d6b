// Package linear_model は二値ロジスティック回帰を提供する
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// InterceptTerm is the term name of the intercept in coefficient tables.
const InterceptTerm = "(Intercept)"

// LogisticRegression implements binomial logistic regression fit by
// iteratively reweighted least squares (Newton's method on the
// log-likelihood). Targets are class indices 0 and 1; the probability
// reported is P(y = 1).
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      float64 // L2 strength λ on the non-intercept coefficients
	fitIntercept bool
	maxIter      int
	tol          float64

	// Model parameters
	coef      []float64
	intercept float64
	cov       *mat.SymDense // inverse of the penalized Hessian, intercept first
	nIter     int
	deviance  float64
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-8,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty adds λ·Σβ_j² to the negative log-likelihood.
func WithLRPenalty(lambda float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = lambda
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of Newton steps
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance on the largest coefficient step
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

func (lr *LogisticRegression) design(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	D := mat.NewDense(r, c+offset, nil)
	for i := 0; i < r; i++ {
		if lr.fitIntercept {
			D.Set(i, 0, 1)
		}
		for j := 0; j < c; j++ {
			D.Set(i, j+offset, X.At(i, j))
		}
	}
	return D
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	const op = "LogisticRegression.Fit"
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if !(lr.penalty >= 0) {
		return errors.NewValidationError("penalty", "must be >= 0", lr.penalty)
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return err
	}

	target := mat.Col(nil, 0, y)
	var seen [2]bool
	for _, v := range target {
		if v != 0 && v != 1 {
			return errors.NewValidationError("y", "logistic regression needs two classes encoded as 0 and 1", v)
		}
		seen[int(v)] = true
	}
	if !seen[0] || !seen[1] {
		return errors.NewInsufficientDataError(op+": classes", 1, 2)
	}

	D := lr.design(X)
	_, p := D.Dims()
	if nSamples < p {
		return errors.NewInsufficientDataError(op, nSamples, p)
	}

	beta := make([]float64, p)
	eta := make([]float64, nSamples)
	mu := make([]float64, nSamples)
	converged := false
	var chol mat.Cholesky
	iter := 0
	for iter = 1; iter <= lr.maxIter; iter++ {
		lr.linkInverse(D, beta, eta, mu)

		// 勾配 g = Dᵀ(y-μ) - 2λPβ, ヘッセ行列 H = DᵀWD + 2λP
		grad := make([]float64, p)
		H := mat.NewSymDense(p, nil)
		row := make([]float64, p)
		for i := 0; i < nSamples; i++ {
			mat.Row(row, i, D)
			w := mu[i] * (1 - mu[i])
			floats.AddScaled(grad, target[i]-mu[i], row)
			for a := 0; a < p; a++ {
				for b := a; b < p; b++ {
					H.SetSym(a, b, H.At(a, b)+w*row[a]*row[b])
				}
			}
		}
		lr.addPenalty(H, grad, beta)

		if ok := chol.Factorize(H); !ok {
			return errors.NewModelError(op, "Hessian is not positive definite", errors.ErrSingularMatrix)
		}
		var step mat.VecDense
		if err := chol.SolveVecTo(&step, mat.NewVecDense(p, grad)); err != nil {
			return errors.NewModelError(op, "Newton step", errors.ErrSingularMatrix)
		}
		maxStep := 0.0
		for j := range beta {
			beta[j] += step.AtVec(j)
			maxStep = math.Max(maxStep, math.Abs(step.AtVec(j)))
		}
		if err := errors.CheckNumericalStability(op, beta, iter); err != nil {
			return err
		}
		if maxStep < lr.tol*math.Max(1, floats.Norm(beta, math.Inf(1))) {
			converged = true
			break
		}
	}
	if !converged {
		iter = lr.maxIter
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", iter,
			"the classes may be (quasi-)separable; estimates are unreliable"))
	}

	// 最終推定値でのヘッセ行列から共分散を求める
	lr.linkInverse(D, beta, eta, mu)
	H := mat.NewSymDense(p, nil)
	row := make([]float64, p)
	dev := 0.0
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, D)
		w := mu[i] * (1 - mu[i])
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				H.SetSym(a, b, H.At(a, b)+w*row[a]*row[b])
			}
		}
		if target[i] == 1 {
			dev -= 2 * errors.StabilizeLog(mu[i])
		} else {
			dev -= 2 * errors.StabilizeLog(1-mu[i])
		}
	}
	lr.addPenalty(H, nil, beta)
	cov := mat.NewSymDense(p, nil)
	if ok := chol.Factorize(H); ok {
		if err := chol.InverseTo(cov); err != nil {
			cov = nil
		}
	} else {
		cov = nil
	}

	offset := 0
	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = beta[0]
		offset = 1
	}
	lr.coef = append([]float64(nil), beta[offset:]...)
	lr.cov = cov
	lr.nIter = iter
	lr.deviance = dev
	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

// linkInverse computes η = Dβ and μ = σ(η), clipped away from 0 and 1.
func (lr *LogisticRegression) linkInverse(D *mat.Dense, beta, eta, mu []float64) {
	var e mat.VecDense
	e.MulVec(D, mat.NewVecDense(len(beta), beta))
	for i := range eta {
		eta[i] = e.AtVec(i)
		mu[i] = errors.ClipValue(sigmoid(eta[i]), 1e-10, 1-1e-10)
	}
}

func (lr *LogisticRegression) addPenalty(H *mat.SymDense, grad, beta []float64) {
	if lr.penalty == 0 {
		return
	}
	start := 0
	if lr.fitIntercept {
		start = 1
	}
	for j := start; j < len(beta); j++ {
		H.SetSym(j, j, H.At(j, j)+2*lr.penalty)
		if grad != nil {
			grad[j] -= 2 * lr.penalty * beta[j]
		}
	}
}

// Predict returns the class index (0 or 1) with the larger probability.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if proba.At(i, 1) > 0.5 {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}

// PredictProba returns an n×2 matrix of [P(y=0), P(y=1)].
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression", "PredictProba", c); err != nil {
		return nil, err
	}
	proba := mat.NewDense(r, 2, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		p1 := sigmoid(lr.intercept + floats.Dot(row, lr.coef))
		proba.Set(i, 0, 1-p1)
		proba.Set(i, 1, p1)
	}
	return proba, nil
}

// NClasses は常に 2
func (lr *LogisticRegression) NClasses() int { return 2 }

// Summary は係数表 (推定値, 標準誤差, z 値, p 値) を返す。切片が先頭。
func (lr *LogisticRegression) Summary(names []string) ([]model.Coefficient, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "Summary"); err != nil {
		return nil, err
	}
	if lr.cov == nil {
		return nil, errors.NewValueError("LogisticRegression.Summary", "no covariance available; the model was imported from weights or the Hessian was singular")
	}
	if len(names) != len(lr.coef) {
		return nil, errors.NewDimensionError("LogisticRegression.Summary", len(lr.coef), len(names), 1)
	}
	terms := names
	estimates := lr.coef
	if lr.fitIntercept {
		terms = append([]string{InterceptTerm}, names...)
		estimates = append([]float64{lr.intercept}, lr.coef...)
	}
	out := make([]model.Coefficient, len(terms))
	for j, term := range terms {
		se := math.Sqrt(lr.cov.At(j, j))
		z := errors.SafeDivide(estimates[j], se)
		out[j] = model.Coefficient{
			Term:      term,
			Estimate:  estimates[j],
			StdError:  se,
			Statistic: z,
			PValue:    2 * distuv.UnitNormal.Survival(math.Abs(z)),
		}
	}
	return out, nil
}

// Coef returns the non-intercept coefficients on the log-odds scale.
func (lr *LogisticRegression) Coef() []float64 { return append([]float64(nil), lr.coef...) }

// Intercept returns the intercept on the log-odds scale.
func (lr *LogisticRegression) Intercept() float64 { return lr.intercept }

// NIter returns the number of Newton steps of the last Fit.
func (lr *LogisticRegression) NIter() int { return lr.nIter }

// Deviance returns -2·log-likelihood at the fitted coefficients.
func (lr *LogisticRegression) Deviance() float64 { return lr.deviance }

// IsFitted reports whether the model has been fit or imported.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// Score returns the accuracy on (X, y).
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	r, _ := y.Dims()
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r), nil
}

// ExportWeights はモデルの重みをエクスポート
func (lr *LogisticRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	fitIntercept := 0.0
	if lr.fitIntercept {
		fitIntercept = 1
	}
	return &model.ModelWeights{
		ModelType:    "LogisticRegression",
		Version:      model.WeightsVersion,
		Coefficients: lr.Coef(),
		Intercept:    lr.intercept,
		Features:     features,
		Hyperparameters: map[string]float64{
			"penalty":       lr.penalty,
			"fit_intercept": fitIntercept,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights は重みをインポートする。共分散は復元されない。
func (lr *LogisticRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("ImportWeights", "weights are nil")
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "ImportWeights")
	}
	if w.ModelType != "LogisticRegression" {
		return errors.NewValueError("ImportWeights", fmt.Sprintf("expected LogisticRegression weights, got %s", w.ModelType))
	}
	lr.coef = append([]float64(nil), w.Coefficients...)
	lr.intercept = w.Intercept
	lr.penalty = w.Hyperparameters["penalty"]
	lr.fitIntercept = w.Hyperparameters["fit_intercept"] != 0
	lr.cov = nil
	lr.state.SetFitted(len(lr.coef), 0)
	return nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

var (
	_ model.Classifier  = (*LogisticRegression)(nil)
	_ model.LinearModel = (*LogisticRegression)(nil)
	_ model.Summarizer  = (*LogisticRegression)(nil)
)
