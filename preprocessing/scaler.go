package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// StandardScaler はデータを平均0、標準偏差1に変換するスケーラー
//
// DDOF は分散の自由度補正 (0: 母分散, 1: 不偏分散)。レシピの Normalize は 1 を使う。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差 (ほぼ0の場合は1)
	Scale []float64

	WithMean bool
	WithStd  bool
	DDOF     int
}

// ScalerOption configures a StandardScaler.
type ScalerOption func(*StandardScaler)

// WithoutMean disables centering.
func WithoutMean() ScalerOption { return func(s *StandardScaler) { s.WithMean = false } }

// WithoutStd disables scaling.
func WithoutStd() ScalerOption { return func(s *StandardScaler) { s.WithStd = false } }

// WithDDOF sets the delta degrees of freedom of the variance.
func WithDDOF(ddof int) ScalerOption { return func(s *StandardScaler) { s.DDOF = ddof } }

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(preprocessing.WithDDOF(1))
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(opts ...ScalerOption) *StandardScaler {
	s := &StandardScaler{state: model.NewStateManager(), WithMean: true, WithStd: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if r <= s.DDOF {
		return errors.NewInsufficientDataError("StandardScaler.Fit", r, s.DDOF+1)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		s.Scale[j] = 1
		if !s.WithMean && !s.WithStd {
			continue
		}
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(r)
		if s.WithMean {
			s.Mean[j] = mean
		}
		if s.WithStd {
			ss := 0.0
			for i := 0; i < r; i++ {
				d := X.At(i, j) - mean
				ss += d * d
			}
			sd := math.Sqrt(ss / float64(r-s.DDOF))
			// 定数列はスケールせず中心化のみ
			if sd >= 1e-8 {
				s.Scale[j] = sd
			}
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みの統計情報で標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler", "Transform", c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler", "InverseTransform", c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// IsFitted reports whether Fit has succeeded.
func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, ddof=%d)", s.WithMean, s.WithStd, s.DDOF)
}

// MinMaxScaler はデータを FeatureRange の範囲にスケーリングする
type MinMaxScaler struct {
	state *model.StateManager

	DataMin      []float64
	DataMax      []float64
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{state: model.NewStateManager(), FeatureRange: featureRange}
}

// Fit は各列の最小値と最大値を記録する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "min must be less than max", m.FeatureRange)
	}
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j], m.DataMax[j] = lo, hi
	}
	m.state.SetFitted(c, r)
	return nil
}

// Transform maps training min/max onto FeatureRange. Values outside the
// training range are clipped to FeatureRange.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler", "Transform", c); err != nil {
		return nil, err
	}
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		span := m.DataMax[j] - m.DataMin[j]
		if span == 0 {
			return lo
		}
		return errors.ClipValue(lo+(v-m.DataMin[j])/span*(hi-lo), lo, hi)
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

var (
	_ model.Transformer = (*StandardScaler)(nil)
	_ model.Transformer = (*MinMaxScaler)(nil)
)
