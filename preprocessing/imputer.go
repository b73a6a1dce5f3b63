package preprocessing

import (
	"fmt"
	"math"
	"slices"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// SimpleImputer は数値列の欠損値（NaN）を列ごとの統計量で補完する。
// 学習時に全て欠損だった列は 0（または FillValue）で補完し、警告を出す。
type SimpleImputer struct {
	State *model.StateManager

	Strategy  string
	FillValue float64
	// Statistics は各列の補完値
	Statistics []float64
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

// IsFitted implements model.Estimator.
func (im *SimpleImputer) IsFitted() bool { return im.State.IsFitted() }

// Clone implements model.Transformer.
func (im *SimpleImputer) Clone() model.Transformer {
	c := NewSimpleImputer(im.Strategy)
	c.FillValue = im.FillValue
	return c
}

// Fit は各列の補完値を計算する
func (im *SimpleImputer) Fit(X mat.Matrix) error {
	r, c, err := checkFitInput("SimpleImputer.Fit", X)
	if err != nil {
		return err
	}
	switch im.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent, StrategyConstant:
	default:
		return errors.NewValidationError("strategy", "must be one of mean, median, most_frequent, constant", im.Strategy)
	}

	im.Statistics = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		values := sortedFinite(col)
		if im.Strategy == StrategyConstant {
			im.Statistics[j] = im.FillValue
			continue
		}
		if len(values) == 0 {
			errors.Warn(errors.NewDataConversionWarning("missing", "constant",
				fmt.Sprintf("column %d has no observed values, imputing %g", j, im.FillValue)))
			im.Statistics[j] = im.FillValue
			continue
		}
		switch im.Strategy {
		case StrategyMean:
			im.Statistics[j] = stat.Mean(values, nil)
		case StrategyMedian:
			im.Statistics[j] = percentileSorted(values, 50)
		case StrategyMostFrequent:
			im.Statistics[j] = modeSorted(values)
		}
	}

	im.State.SetDimensions(c, r)
	im.State.SetFitted()
	return nil
}

// Transform はNaNを補完値で置き換える
func (im *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := im.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := im.State.RequireFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		if math.IsNaN(v) {
			return im.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (im *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := im.Fit(X); err != nil {
		return nil, err
	}
	return im.Transform(X)
}

// GetParams は補完器のパラメータを取得する
func (im *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{"strategy": im.Strategy, "fill_value": im.FillValue}
}

// modeSorted は昇順データの最頻値を返す。同数の場合は最小値。
func modeSorted(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

// StringColumn はカテゴリ列の値と欠損フラグを保持する
type StringColumn struct {
	Values  []string
	Missing []bool
}

// CategoricalImputer はカテゴリ列の欠損値を補完する。
// 戦略は most_frequent（同数なら辞書順で最小）または constant。
type CategoricalImputer struct {
	State *model.StateManager

	Strategy  string
	FillValue string
	// Statistics は各列の補完値
	Statistics []string
}

// NewCategoricalImputer は新しいCategoricalImputerを作成する
func NewCategoricalImputer(strategy string) *CategoricalImputer {
	return &CategoricalImputer{State: model.NewStateManager(), Strategy: strategy, FillValue: "missing_value"}
}

// IsFitted implements model.Estimator.
func (im *CategoricalImputer) IsFitted() bool { return im.State.IsFitted() }

// Clone は同じ設定を持つ未学習のコピーを返す
func (im *CategoricalImputer) Clone() *CategoricalImputer {
	c := NewCategoricalImputer(im.Strategy)
	c.FillValue = im.FillValue
	return c
}

// Fit は各列の補完値を計算する
func (im *CategoricalImputer) Fit(cols []StringColumn) error {
	if len(cols) == 0 {
		return errors.NewModelError("CategoricalImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	if im.Strategy != StrategyMostFrequent && im.Strategy != StrategyConstant {
		return errors.NewValidationError("strategy", "must be most_frequent or constant for categorical data", im.Strategy)
	}

	im.Statistics = make([]string, len(cols))
	for j, col := range cols {
		im.Statistics[j] = im.FillValue
		if im.Strategy == StrategyConstant {
			continue
		}
		counts := make(map[string]int)
		for i, v := range col.Values {
			if !col.Missing[i] {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			continue
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		best := keys[0]
		for _, k := range keys[1:] {
			if counts[k] > counts[best] {
				best = k
			}
		}
		im.Statistics[j] = best
	}

	im.State.SetDimensions(len(cols), len(cols[0].Values))
	im.State.SetFitted()
	return nil
}

// Transform は欠損値を補完した列を返す。入力は変更しない。
func (im *CategoricalImputer) Transform(cols []StringColumn) ([][]string, error) {
	if err := im.State.RequireFitted("CategoricalImputer", "Transform"); err != nil {
		return nil, err
	}
	if err := im.State.RequireFeatures("CategoricalImputer.Transform", len(cols)); err != nil {
		return nil, err
	}
	out := make([][]string, len(cols))
	for j, col := range cols {
		out[j] = make([]string, len(col.Values))
		for i, v := range col.Values {
			if col.Missing[i] {
				v = im.Statistics[j]
			}
			out[j][i] = v
		}
	}
	return out, nil
}
