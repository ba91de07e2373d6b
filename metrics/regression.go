package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

func checkPair(op string, truth, estimate []float64) error {
	if len(truth) == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(estimate) != len(truth) {
		return errors.NewDimensionError(op, len(truth), len(estimate), 0)
	}
	return nil
}

// MSE は平均二乗誤差を計算する
func MSE(truth, estimate []float64) (float64, error) {
	if err := checkPair("MSE", truth, estimate); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(truth - estimate)^2
	var sum float64
	for i, t := range truth {
		d := t - estimate[i]
		sum += d * d
	}
	return sum / float64(len(truth)), nil
}

// RMSE は二乗平均平方根誤差を計算する
func RMSE(truth, estimate []float64) (float64, error) {
	mse, err := MSE(truth, estimate)
	if err != nil {
		return 0, errors.Wrap(err, "RMSE")
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(truth, estimate []float64) (float64, error) {
	if err := checkPair("MAE", truth, estimate); err != nil {
		return 0, err
	}
	var sum float64
	for i, t := range truth {
		sum += math.Abs(t - estimate[i])
	}
	return sum / float64(len(truth)), nil
}

// RSquared は決定係数 1 - RSS/TSS を計算する。
// truth が定数のときは UndefinedMetricWarning を出して NaN を返す。
func RSquared(truth, estimate []float64) (float64, error) {
	if err := checkPair("RSquared", truth, estimate); err != nil {
		return 0, err
	}
	mean := stat.Mean(truth, nil)
	var rss, tss float64
	for i, t := range truth {
		d := t - estimate[i]
		rss += d * d
		tss += (t - mean) * (t - mean)
	}
	if tss == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("rsq", "constant truth", math.NaN()))
		return math.NaN(), nil
	}
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセント誤差を計算する (単位: %)。
// truth が 0 の行は除外する。
func MAPE(truth, estimate []float64) (float64, error) {
	if err := checkPair("MAPE", truth, estimate); err != nil {
		return 0, err
	}
	// MAPE = (100/n) * Σ|truth - estimate|/|truth|
	var sum float64
	valid := 0
	for i, t := range truth {
		if t != 0 { // ゼロ除算を避ける
			sum += math.Abs(t-estimate[i]) / math.Abs(t)
			valid++
		}
	}
	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all truth values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVariance は説明分散スコア 1 - Var(truth-estimate)/Var(truth) を計算する
func ExplainedVariance(truth, estimate []float64) (float64, error) {
	if err := checkPair("ExplainedVariance", truth, estimate); err != nil {
		return 0, err
	}
	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, estimate)

	_, varTruth := stat.PopMeanVariance(truth, nil)
	_, varDiff := stat.PopMeanVariance(diff, nil)
	if varTruth == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("explained_variance", "constant truth", math.NaN()))
		return math.NaN(), nil
	}
	return 1 - varDiff/varTruth, nil
}
