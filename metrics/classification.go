package metrics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Confusion は混同行列。Counts[truth][estimate] の件数を持つ。
type Confusion struct {
	Levels []string
	Counts [][]int
}

// ConfusionMatrix はクラス番号の真値と予測から混同行列を作る。
// クラス番号は levels の添字。
func ConfusionMatrix(truth, estimate []int, levels []string) (*Confusion, error) {
	if err := checkClasses("ConfusionMatrix", truth, estimate, len(levels)); err != nil {
		return nil, err
	}
	counts := make([][]int, len(levels))
	for k := range counts {
		counts[k] = make([]int, len(levels))
	}
	for i, t := range truth {
		counts[t][estimate[i]]++
	}
	return &Confusion{Levels: slices.Clone(levels), Counts: counts}, nil
}

// Total returns the number of rows tallied.
func (c *Confusion) Total() int {
	n := 0
	for _, row := range c.Counts {
		for _, v := range row {
			n += v
		}
	}
	return n
}

func (c *Confusion) rowSum(k int) int {
	s := 0
	for _, v := range c.Counts[k] {
		s += v
	}
	return s
}

func (c *Confusion) colSum(k int) int {
	s := 0
	for _, row := range c.Counts {
		s += row[k]
	}
	return s
}

// Accuracy は対角成分の割合
func (c *Confusion) Accuracy() float64 {
	diag := 0
	for k := range c.Counts {
		diag += c.Counts[k][k]
	}
	return float64(diag) / float64(c.Total())
}

// oneVsRest returns TP, FN, FP, TN with level k as the event.
func (c *Confusion) oneVsRest(k int) (tp, fn, fp, tn int) {
	n := c.Total()
	tp = c.Counts[k][k]
	fn = c.rowSum(k) - tp
	fp = c.colSum(k) - tp
	tn = n - tp - fn - fp
	return
}

// Sensitivity は TP/(TP+FN)。二値ではイベントが最初の水準、多値では
// 定義可能な水準のマクロ平均。
func (c *Confusion) Sensitivity() float64 {
	return c.macro("sensitivity", func(k int) (float64, bool) {
		tp, fn, _, _ := c.oneVsRest(k)
		if tp+fn == 0 {
			return 0, false
		}
		return float64(tp) / float64(tp+fn), true
	})
}

// Specificity は TN/(TN+FP)。平均の取り方は Sensitivity と同じ。
func (c *Confusion) Specificity() float64 {
	return c.macro("specificity", func(k int) (float64, bool) {
		_, _, fp, tn := c.oneVsRest(k)
		if tn+fp == 0 {
			return 0, false
		}
		return float64(tn) / float64(tn+fp), true
	})
}

func (c *Confusion) macro(name string, one func(k int) (float64, bool)) float64 {
	if len(c.Counts) == 2 {
		v, ok := one(0)
		if !ok {
			errors.Warn(errors.NewUndefinedMetricWarning(name, "no rows on the relevant side of the event level", math.NaN()))
			return math.NaN()
		}
		return v
	}
	var sum float64
	defined := 0
	for k := range c.Counts {
		if v, ok := one(k); ok {
			sum += v
			defined++
		}
	}
	if defined == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(name, "no level has rows on the relevant side", math.NaN()))
		return math.NaN()
	}
	return sum / float64(defined)
}

// Kappa は Cohen の κ = (po - pe) / (1 - pe)
func (c *Confusion) Kappa() float64 {
	n := float64(c.Total())
	po := c.Accuracy()
	var pe float64
	for k := range c.Counts {
		pe += float64(c.rowSum(k)) * float64(c.colSum(k))
	}
	pe /= n * n
	if pe == 1 {
		errors.Warn(errors.NewUndefinedMetricWarning("kap", "chance agreement is 1", math.NaN()))
		return math.NaN()
	}
	return (po - pe) / (1 - pe)
}

func checkClasses(op string, truth, estimate []int, nLevels int) error {
	if len(truth) == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(estimate) != len(truth) {
		return errors.NewDimensionError(op, len(truth), len(estimate), 0)
	}
	if nLevels < 2 {
		return errors.NewValidationError("levels", "at least two levels are required", nLevels)
	}
	for i := range truth {
		if truth[i] < 0 || truth[i] >= nLevels {
			return errors.NewValidationError("truth", "class index out of range", truth[i])
		}
		if estimate[i] < 0 || estimate[i] >= nLevels {
			return errors.NewValidationError("estimate", "class index out of range", estimate[i])
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(truth, estimate []int) (float64, error) {
	if len(truth) == 0 {
		return 0, errors.NewModelError("Accuracy", "empty data", errors.ErrEmptyData)
	}
	if len(estimate) != len(truth) {
		return 0, errors.NewDimensionError("Accuracy", len(truth), len(estimate), 0)
	}
	correct := 0
	for i, t := range truth {
		if t == estimate[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth)), nil
}

// Sensitivity は感度 (再現率) を計算する。二値ではイベントは levels[0]。
func Sensitivity(truth, estimate []int, levels []string) (float64, error) {
	cm, err := ConfusionMatrix(truth, estimate, levels)
	if err != nil {
		return 0, err
	}
	return cm.Sensitivity(), nil
}

// Specificity は特異度を計算する。二値ではイベントは levels[0]。
func Specificity(truth, estimate []int, levels []string) (float64, error) {
	cm, err := ConfusionMatrix(truth, estimate, levels)
	if err != nil {
		return 0, err
	}
	return cm.Specificity(), nil
}

// Kappa は Cohen の κ を計算する
func Kappa(truth, estimate []int, levels []string) (float64, error) {
	cm, err := ConfusionMatrix(truth, estimate, levels)
	if err != nil {
		return 0, err
	}
	return cm.Kappa(), nil
}

// AUC は ROC 曲線下面積を台形則で計算する。同順位のスコアは平均順位として扱う
// (Mann-Whitney の U 統計量と一致)。
func AUC(positive []bool, score []float64) (float64, error) {
	if len(positive) == 0 {
		return 0, errors.NewModelError("AUC", "empty data", errors.ErrEmptyData)
	}
	if len(score) != len(positive) {
		return 0, errors.NewDimensionError("AUC", len(positive), len(score), 0)
	}
	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmpScore(score[a], score[b]) })

	var rankSum float64
	nPos := 0
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && score[idx[j]] == score[idx[i]] {
			j++
		}
		// ranks i+1..j share the average rank
		avg := float64(i+1+j) / 2
		for _, r := range idx[i:j] {
			if positive[r] {
				rankSum += avg
				nPos++
			}
		}
		i = j
	}
	nNeg := len(positive) - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in truth", math.NaN()))
		return math.NaN(), nil
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

func cmpScore(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ROCAUC computes the area under the ROC curve from class probabilities
// (one column per level). Two levels use levels[0] as the event; more use
// the Hand-Till average of all pairwise AUCs among the levels present.
func ROCAUC(truth []int, prob mat.Matrix, levels []string) (float64, error) {
	r, c := prob.Dims()
	if r != len(truth) {
		return 0, errors.NewDimensionError("ROCAUC", len(truth), r, 0)
	}
	if c != len(levels) {
		return 0, errors.NewDimensionError("ROCAUC", len(levels), c, 1)
	}
	if err := checkClasses("ROCAUC", truth, truth, len(levels)); err != nil {
		return 0, err
	}

	if c == 2 {
		positive := make([]bool, r)
		score := make([]float64, r)
		for i, t := range truth {
			positive[i] = t == 0
			score[i] = prob.At(i, 0)
		}
		return AUC(positive, score)
	}

	present := make([]bool, c)
	for _, t := range truth {
		present[t] = true
	}
	pairAUC := func(j, k int) float64 {
		var positive []bool
		var score []float64
		for i, t := range truth {
			if t == j || t == k {
				positive = append(positive, t == j)
				score = append(score, prob.At(i, j))
			}
		}
		a, _ := AUC(positive, score)
		return a
	}
	var sum float64
	pairs := 0
	for j := 0; j < c; j++ {
		for k := j + 1; k < c; k++ {
			if !present[j] || !present[k] {
				continue
			}
			sum += (pairAUC(j, k) + pairAUC(k, j)) / 2
			pairs++
		}
	}
	if pairs == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in truth", math.NaN()))
		return math.NaN(), nil
	}
	return sum / float64(pairs), nil
}

// MeanLogLoss は多クラス対数損失の平均。確率は [1e-15, 1-1e-15] にクリップする。
func MeanLogLoss(truth []int, prob mat.Matrix) (float64, error) {
	r, c := prob.Dims()
	if len(truth) == 0 {
		return 0, errors.NewModelError("MeanLogLoss", "empty data", errors.ErrEmptyData)
	}
	if r != len(truth) {
		return 0, errors.NewDimensionError("MeanLogLoss", len(truth), r, 0)
	}
	const eps = 1e-15
	var sum float64
	for i, t := range truth {
		if t < 0 || t >= c {
			return 0, errors.NewValidationError("truth", "class index out of range", t)
		}
		p := errors.ClipValue(prob.At(i, t), eps, 1-eps)
		sum -= math.Log(p)
	}
	return sum / float64(r), nil
}
