package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// scaleEpsilon 以下のスケールは1に置き換える（定数列でのゼロ除算を避ける）
const scaleEpsilon = 10 * 2.220446049250313e-16

func handleZeroScale(scale float64) float64 {
	if math.Abs(scale) < scaleEpsilon {
		return 1.0
	}
	return scale
}

// applyAffine は (x - center[j]) / scale[j] を全要素に適用する
func applyAffine(X mat.Matrix, center, scale []float64) *mat.Dense {
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - center[j]) / scale[j]
	}, X)
	return result
}

func checkFitInput(op string, X mat.Matrix) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return r, c, nil
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	State *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted implements model.Estimator.
func (s *StandardScaler) IsFitted() bool { return s.State.IsFitted() }

// Clone implements model.Transformer.
func (s *StandardScaler) Clone() model.Transformer {
	return NewStandardScaler(s.WithMean, s.WithStd)
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c, err := checkFitInput("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		if s.WithStd {
			s.Scale[j] = handleZeroScale(std)
		}
	}

	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := s.State.RequireFeatures("StandardScaler.Transform", c); err != nil {
		return nil, err
	}
	return applyAffine(X, s.Mean, s.Scale), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	State *model.StateManager

	DataMin []float64
	DataMax []float64
	// Scale は各特徴量のデータ範囲 (max - min)。定数列は1
	Scale []float64

	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// IsFitted implements model.Estimator.
func (m *MinMaxScaler) IsFitted() bool { return m.State.IsFitted() }

// Clone implements model.Transformer.
func (m *MinMaxScaler) Clone() model.Transformer {
	return NewMinMaxScaler(m.FeatureRange)
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c, err := checkFitInput("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}

	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
		m.Scale[j] = handleZeroScale(hi - lo)
	}

	m.State.SetDimensions(c, r)
	m.State.SetFitted()
	return nil
}

// Transform は学習済みの最小値・最大値を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.State.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := m.State.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, err
	}

	width := m.FeatureRange[1] - m.FeatureRange[0]
	result := applyAffine(X, m.DataMin, m.Scale)
	result.Apply(func(_, _ int, v float64) float64 {
		return v*width + m.FeatureRange[0]
	}, result)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])", m.FeatureRange[0], m.FeatureRange[1])
}

// RobustScaler は中央値を引き、四分位範囲（IQR）で割るスケーラー。
// 外れ値の影響を受けにくい。
type RobustScaler struct {
	State *model.StateManager

	// Center は各特徴量の中央値
	Center []float64
	// Scale は各特徴量の四分位範囲。IQRが0の列は1
	Scale []float64

	WithCentering bool
	WithScaling   bool
	// QuantileRange はIQRの計算に使うパーセンタイル (デフォルト: 25, 75)
	QuantileRange [2]float64
}

// NewRobustScaler は新しいRobustScalerを作成する
func NewRobustScaler(withCentering, withScaling bool, quantileRange [2]float64) *RobustScaler {
	return &RobustScaler{
		State:         model.NewStateManager(),
		WithCentering: withCentering,
		WithScaling:   withScaling,
		QuantileRange: quantileRange,
	}
}

// NewRobustScalerDefault はscikit-learnと同じデフォルト設定でRobustScalerを作成する
func NewRobustScalerDefault() *RobustScaler {
	return NewRobustScaler(true, true, [2]float64{25, 75})
}

// IsFitted implements model.Estimator.
func (s *RobustScaler) IsFitted() bool { return s.State.IsFitted() }

// Clone implements model.Transformer.
func (s *RobustScaler) Clone() model.Transformer {
	return NewRobustScaler(s.WithCentering, s.WithScaling, s.QuantileRange)
}

// Fit は各列の中央値と四分位範囲を計算する。NaNは無視される。
func (s *RobustScaler) Fit(X mat.Matrix) error {
	r, c, err := checkFitInput("RobustScaler.Fit", X)
	if err != nil {
		return err
	}
	qMin, qMax := s.QuantileRange[0], s.QuantileRange[1]
	if qMin < 0 || qMax > 100 || qMin > qMax {
		return errors.NewValidationError("quantile_range", "must satisfy 0 <= q_min <= q_max <= 100", s.QuantileRange)
	}

	s.Center = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		sorted := sortedFinite(col)
		if s.WithCentering {
			s.Center[j] = percentileSorted(sorted, 50)
		}
		s.Scale[j] = 1.0
		if s.WithScaling {
			iqr := percentileSorted(sorted, qMax) - percentileSorted(sorted, qMin)
			if math.IsNaN(iqr) {
				iqr = 0
			}
			s.Scale[j] = handleZeroScale(iqr)
		}
		if math.IsNaN(s.Center[j]) {
			s.Center[j] = 0
		}
	}

	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform は (X - Center) / Scale を計算する
func (s *RobustScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("RobustScaler", "Transform"); err != nil {
		return nil, err
	}
	_, c := X.Dims()
	if err := s.State.RequireFeatures("RobustScaler.Transform", c); err != nil {
		return nil, err
	}
	return applyAffine(X, s.Center, s.Scale), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *RobustScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetParams はスケーラーのパラメータを取得する
func (s *RobustScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_centering": s.WithCentering,
		"with_scaling":   s.WithScaling,
		"quantile_range": s.QuantileRange,
	}
}

func (s *RobustScaler) String() string {
	return fmt.Sprintf("RobustScaler(with_centering=%t, with_scaling=%t, quantile_range=(%.0f, %.0f))",
		s.WithCentering, s.WithScaling, s.QuantileRange[0], s.QuantileRange[1])
}
