// Package model defines the estimator contracts shared by every learner in
// co2stack, together with fitted-state bookkeeping and gob persistence.
package model

import (
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"
)

// Estimator は学習状態を持つ全てのモデルの基本インターフェース
type Estimator interface {
	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool
}

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の行列（*mat.VecDense など）
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデルのインターフェース。
// Clone は同じハイパーパラメータを持つ未学習のコピーを返す。
type Regressor interface {
	Estimator
	Fitter
	Predictor
	Clone() Regressor
}

// Transformer は数値行列を変換するインターフェース
type Transformer interface {
	Estimator
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error
	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)
	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	// Clone は同じ設定を持つ未学習のコピーを返す
	Clone() Transformer
}

// FrameTransformer は型付きの列を持つデータフレームを数値行列に変換する
// インターフェース。前処理パイプラインの最初のステップが実装する。
type FrameTransformer interface {
	Estimator
	Fit(df dataframe.DataFrame) error
	Transform(df dataframe.DataFrame) (*mat.Dense, error)
	FitTransform(df dataframe.DataFrame) (*mat.Dense, error)
	// FeatureNamesOut は出力列の名前を "<group>__<feature>" 形式で返す
	FeatureNamesOut() ([]string, error)
	CloneTransformer() FrameTransformer
}

// ParamsGetter はハイパーパラメータを公開するモデルのインターフェース
type ParamsGetter interface {
	GetParams() map[string]interface{}
}
