package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression is ordinary least squares solved through a QR
// factorization. It can serve as the final estimator of a stacking ensemble.
type LinearRegression struct {
	State *model.StateManager

	FitIntercept bool
	Positive     bool

	LinearParams
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) { lr.FitIntercept = fit }
}

// WithPositive は係数の正制約を設定。負の係数は0に切り詰められる。
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) { lr.Positive = positive }
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	yv, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows < cols {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("need at least as many samples as features, got %d samples and %d features", rows, cols))
	}
	lr.State.Reset()

	Xc, yc, xMean, yMean := center(X, yv, lr.FitIntercept)

	var qr mat.QR
	qr.Factorize(Xc)
	var w mat.VecDense
	if err := qr.SolveVecTo(&w, false, yc); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "failed to solve linear system", errors.ErrSingularMatrix)
	}

	lr.Coef = mat.Col(nil, 0, &w)
	if lr.Positive {
		for i := range lr.Coef {
			if lr.Coef[i] < 0 {
				lr.Coef[i] = 0
			}
		}
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.Coef, 0); err != nil {
		return err
	}
	lr.setIntercept(xMean, yMean)

	lr.State.SetDimensions(cols, rows)
	lr.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lr.predict(lr.State, "LinearRegression", X)
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool { return lr.State.IsFitted() }

// Clone はモデルの新しいインスタンスを作成（同じハイパーパラメータ）
func (lr *LinearRegression) Clone() model.Regressor {
	return NewLinearRegression(WithLRFitIntercept(lr.FitIntercept), WithPositive(lr.Positive))
}

// GetParams returns the model's hyperparameters
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
		"positive":      lr.Positive,
	}
}
