package linear_model

import (
	"encoding/gob"
	"fmt"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&Ridge{})
	gob.Register(&ElasticNet{})
	gob.Register(&LinearRegression{})
}

// Ridge はL2正則化付きの線形回帰
//
//	minimize ||y - Xw||² + alpha * ||w||²
//
// 切片は正則化しない（X と y を中心化して解く）。
type Ridge struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool

	LinearParams
}

// RidgeOption は Ridge の設定オプション
type RidgeOption func(*Ridge)

// WithRidgeAlpha は正則化の強さを設定する (デフォルト: 1.0)
func WithRidgeAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.Alpha = alpha }
}

// WithRidgeFitIntercept は切片の学習有無を設定する (デフォルト: true)
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.FitIntercept = fit }
}

// NewRidge は新しいRidgeモデルを作成する
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Fit は正規方程式 (XcᵀXc + αI)w = Xcᵀyc をCholesky分解で解く。
// 行列が正定値でない場合（alpha=0かつランク落ち）はSVDによる最小二乗解にフォールバックする。
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	yv, err := checkXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	r.State.Reset()

	Xc, yc, xMean, yMean := center(X, yv, r.FitIntercept)

	var gram mat.SymDense
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), yc)

	w := mat.NewVecDense(cols, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); ok {
		if err := chol.SolveVecTo(w, &rhs); err != nil {
			return errors.NewModelError("Ridge.Fit", "cholesky solve failed", err)
		}
	} else {
		// alpha = 0 でランク落ちの場合は最小ノルム最小二乗解
		var svd mat.SVD
		if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
			return errors.NewModelError("Ridge.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
		}
		// ランク0（中心化後の X が全てゼロ）なら係数はゼロのまま、切片のみのモデルになる
		if rank := svd.Rank(1e-12); rank > 0 {
			svd.SolveVecTo(w, yc, rank)
		}
	}

	r.Coef = mat.Col(nil, 0, w)
	if err := errors.CheckNumericalStability("Ridge.Fit", r.Coef, 0); err != nil {
		return err
	}
	r.setIntercept(xMean, yMean)

	r.State.SetDimensions(cols, rows)
	r.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict(r.State, "Ridge", X)
}

// IsFitted returns whether the model has been fitted
func (r *Ridge) IsFitted() bool { return r.State.IsFitted() }

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (r *Ridge) Clone() model.Regressor {
	return NewRidge(WithRidgeAlpha(r.Alpha), WithRidgeFitIntercept(r.FitIntercept))
}

// GetParams returns the model's hyperparameters
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
	}
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g)", r.Alpha)
}
