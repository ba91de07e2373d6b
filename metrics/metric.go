// Package metrics は回帰・分類の評価指標と、チューニングで使う Metric 抽象を提供する。
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// Direction tells whether smaller or larger values of a metric are better.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether a is strictly better than b. NaN is never better
// and anything finite beats NaN.
func (d Direction) Better(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	case d == Maximize:
		return a > b
	}
	return a < b
}

// Kind is the prediction type a metric consumes.
type Kind int

const (
	NumericKind Kind = iota
	ClassKind
	ProbKind
)

func (k Kind) String() string {
	switch k {
	case ClassKind:
		return "class"
	case ProbKind:
		return "prob"
	}
	return "numeric"
}

// Sample は評価に必要な真値と予測をまとめたもの。
// 数値指標は Truth/Estimate、クラス指標は TruthClass/EstimateClass、
// 確率指標は TruthClass/Prob を使う。
type Sample struct {
	Truth    []float64
	Estimate []float64

	TruthClass    []int
	EstimateClass []int
	Prob          mat.Matrix
	Levels        []string
}

// Metric is a named evaluation function with an optimisation direction.
type Metric interface {
	Name() string
	Direction() Direction
	Kind() Kind
	Compute(s Sample) (float64, error)
}

type metric struct {
	name string
	dir  Direction
	kind Kind
	fn   func(s Sample) (float64, error)
}

func (m metric) Name() string         { return m.name }
func (m metric) Direction() Direction { return m.dir }
func (m metric) Kind() Kind           { return m.kind }

func (m metric) Compute(s Sample) (float64, error) {
	switch m.kind {
	case NumericKind:
		if s.Truth == nil || s.Estimate == nil {
			return 0, errors.NewValueError(m.name, "numeric truth and estimate are required")
		}
	case ClassKind:
		if s.TruthClass == nil || s.EstimateClass == nil {
			return 0, errors.NewValueError(m.name, "class truth and estimate are required")
		}
	case ProbKind:
		if s.TruthClass == nil || s.Prob == nil {
			return 0, errors.NewValueError(m.name, "class truth and probabilities are required")
		}
	}
	return m.fn(s)
}

func numeric(name string, dir Direction, fn func(truth, estimate []float64) (float64, error)) Metric {
	return metric{name: name, dir: dir, kind: NumericKind, fn: func(s Sample) (float64, error) {
		return fn(s.Truth, s.Estimate)
	}}
}

func class(name string, fn func(*Confusion) float64) Metric {
	return metric{name: name, dir: Maximize, kind: ClassKind, fn: func(s Sample) (float64, error) {
		cm, err := ConfusionMatrix(s.TruthClass, s.EstimateClass, s.Levels)
		if err != nil {
			return 0, err
		}
		return fn(cm), nil
	}}
}

// 組み込み指標
var (
	RMSEMetric              = numeric("rmse", Minimize, RMSE)
	MSEMetric               = numeric("mse", Minimize, MSE)
	MAEMetric               = numeric("mae", Minimize, MAE)
	RSquaredMetric          = numeric("rsq", Maximize, RSquared)
	MAPEMetric              = numeric("mape", Minimize, MAPE)
	ExplainedVarianceMetric = numeric("explained_variance", Maximize, ExplainedVariance)

	AccuracyMetric    = class("accuracy", (*Confusion).Accuracy)
	SensitivityMetric = class("sensitivity", (*Confusion).Sensitivity)
	SpecificityMetric = class("specificity", (*Confusion).Specificity)
	KappaMetric       = class("kap", (*Confusion).Kappa)

	ROCAUCMetric Metric = metric{name: "roc_auc", dir: Maximize, kind: ProbKind, fn: func(s Sample) (float64, error) {
		return ROCAUC(s.TruthClass, s.Prob, s.Levels)
	}}
	LogLossMetric Metric = metric{name: "mn_log_loss", dir: Minimize, kind: ProbKind, fn: func(s Sample) (float64, error) {
		return MeanLogLoss(s.TruthClass, s.Prob)
	}}
)

func builtins() map[string]Metric {
	all := []Metric{
		RMSEMetric, MSEMetric, MAEMetric, RSquaredMetric, MAPEMetric, ExplainedVarianceMetric,
		AccuracyMetric, SensitivityMetric, SpecificityMetric, KappaMetric,
		ROCAUCMetric, LogLossMetric,
	}
	m := make(map[string]Metric, len(all)+2)
	for _, metric := range all {
		m[metric.Name()] = metric
	}
	m["sens"] = SensitivityMetric
	m["spec"] = SpecificityMetric
	return m
}

// Lookup resolves a metric by name, e.g. "rmse" or "roc_auc".
func Lookup(name string) (Metric, error) {
	m, ok := builtins()[name]
	if !ok {
		return nil, errors.NewValidationError("metric", "unknown metric name", name)
	}
	return m, nil
}

// Names lists every name Lookup accepts, sorted.
func Names() []string {
	all := builtins()
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
