package linear_model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ElasticNet はL1とL2の正則化を組み合わせた線形回帰。座標降下法で
//
//	1/(2n) * ||y - Xw||² + alpha * l1_ratio * ||w||₁ + 0.5 * alpha * (1 - l1_ratio) * ||w||²
//
// を最小化する。収束判定には双対ギャップを使う。
type ElasticNet struct {
	State *model.StateManager

	Alpha        float64
	L1Ratio      float64
	FitIntercept bool
	MaxIter      int
	Tol          float64

	LinearParams
	// NIter は実際に実行した反復回数
	NIter int
	// DualGap は最終的な双対ギャップ
	DualGap float64
}

// ElasticNetOption は ElasticNet の設定オプション
type ElasticNetOption func(*ElasticNet)

// WithENAlpha は正則化の強さを設定する (デフォルト: 1.0)
func WithENAlpha(alpha float64) ElasticNetOption {
	return func(e *ElasticNet) { e.Alpha = alpha }
}

// WithL1Ratio はL1とL2の混合比を設定する (デフォルト: 0.5)
func WithL1Ratio(ratio float64) ElasticNetOption {
	return func(e *ElasticNet) { e.L1Ratio = ratio }
}

// WithMaxIter は最大反復回数を設定する (デフォルト: 1000)
func WithMaxIter(n int) ElasticNetOption {
	return func(e *ElasticNet) { e.MaxIter = n }
}

// WithTol は収束判定の許容誤差を設定する (デフォルト: 1e-4)
func WithTol(tol float64) ElasticNetOption {
	return func(e *ElasticNet) { e.Tol = tol }
}

// WithENFitIntercept は切片の学習有無を設定する (デフォルト: true)
func WithENFitIntercept(fit bool) ElasticNetOption {
	return func(e *ElasticNet) { e.FitIntercept = fit }
}

// NewElasticNet は新しいElasticNetモデルを作成する
func NewElasticNet(options ...ElasticNetOption) *ElasticNet {
	e := &ElasticNet{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		L1Ratio:      0.5,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-4,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *ElasticNet) validate() error {
	switch {
	case e.Alpha < 0:
		return errors.NewValidationError("alpha", "must be non-negative", e.Alpha)
	case e.L1Ratio < 0 || e.L1Ratio > 1:
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", e.L1Ratio)
	case e.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", e.MaxIter)
	case e.Tol < 0:
		return errors.NewValidationError("tol", "must be non-negative", e.Tol)
	}
	return nil
}

// Fit は巡回座標降下法でモデルを学習する。
// MaxIter 回で双対ギャップが許容誤差を下回らなかった場合は
// ConvergenceWarning を発生させ、その時点の係数を採用する。
func (e *ElasticNet) Fit(X, y mat.Matrix) error {
	if err := e.validate(); err != nil {
		return err
	}
	yv, err := checkXY("ElasticNet.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	e.State.Reset()

	Xc, yc, xMean, yMean := center(X, yv, e.FitIntercept)

	cols := make([][]float64, nFeatures)
	normCols := make([]float64, nFeatures)
	for j := range cols {
		cols[j] = mat.Col(nil, j, Xc)
		normCols[j] = floats.Dot(cols[j], cols[j])
	}
	yData := yc.RawVector().Data
	if yc.RawVector().Inc != 1 {
		yData = mat.Col(nil, 0, yc)
	}

	n := float64(nSamples)
	l1Reg := e.Alpha * e.L1Ratio * n
	l2Reg := e.Alpha * (1 - e.L1Ratio) * n

	w := make([]float64, nFeatures)
	R := append([]float64(nil), yData...) // residual y - Xw with w = 0
	tol := e.Tol * floats.Dot(yData, yData)
	dwTol := e.Tol

	gap := tol + 1
	converged := false
	iter := 0
	for iter = 0; iter < e.MaxIter; iter++ {
		wMax, dwMax := 0.0, 0.0
		for j := 0; j < nFeatures; j++ {
			if normCols[j] == 0 {
				continue
			}
			wj := w[j]
			if wj != 0 {
				floats.AddScaled(R, wj, cols[j])
			}
			tmp := floats.Dot(cols[j], R)
			w[j] = math.Copysign(math.Max(math.Abs(tmp)-l1Reg, 0), tmp) / (normCols[j] + l2Reg)
			if w[j] != 0 {
				floats.AddScaled(R, -w[j], cols[j])
			}
			dwMax = math.Max(dwMax, math.Abs(w[j]-wj))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < dwTol || iter == e.MaxIter-1 {
			gap = dualGap(cols, R, yData, w, l1Reg, l2Reg)
			if gap < tol {
				converged = true
				break
			}
		}
	}

	e.Coef = w
	if err := errors.CheckNumericalStability("ElasticNet.Fit", e.Coef, iter); err != nil {
		return err
	}
	e.setIntercept(xMean, yMean)
	e.DualGap = gap
	if converged {
		e.NIter = iter + 1
	} else {
		e.NIter = e.MaxIter
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", e.MaxIter,
			fmt.Sprintf("objective did not converge, duality gap: %.3e, tolerance: %.3e", gap, tol)))
	}

	e.State.SetDimensions(nFeatures, nSamples)
	e.State.SetFitted()
	return nil
}

// dualGap は現在の解の双対ギャップを計算する
func dualGap(cols [][]float64, R, y, w []float64, l1Reg, l2Reg float64) float64 {
	dualNorm := 0.0
	for j, c := range cols {
		xtA := floats.Dot(c, R) - l2Reg*w[j]
		dualNorm = math.Max(dualNorm, math.Abs(xtA))
	}
	rNorm2 := floats.Dot(R, R)
	wNorm2 := floats.Dot(w, w)

	var gap, cst float64
	if dualNorm > l1Reg {
		cst = l1Reg / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*cst*cst)
	} else {
		cst = 1.0
		gap = rNorm2
	}
	l1Norm := floats.Norm(w, 1)
	gap += l1Reg*l1Norm - cst*floats.Dot(R, y) + 0.5*l2Reg*(1+cst*cst)*wNorm2
	return gap
}

// Predict は入力データに対する予測を行う
func (e *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	return e.predict(e.State, "ElasticNet", X)
}

// IsFitted returns whether the model has been fitted
func (e *ElasticNet) IsFitted() bool { return e.State.IsFitted() }

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (e *ElasticNet) Clone() model.Regressor {
	return NewElasticNet(
		WithENAlpha(e.Alpha),
		WithL1Ratio(e.L1Ratio),
		WithMaxIter(e.MaxIter),
		WithTol(e.Tol),
		WithENFitIntercept(e.FitIntercept),
	)
}

// GetParams returns the model's hyperparameters
func (e *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         e.Alpha,
		"l1_ratio":      e.L1Ratio,
		"fit_intercept": e.FitIntercept,
		"max_iter":      e.MaxIter,
		"tol":           e.Tol,
	}
}

func (e *ElasticNet) String() string {
	return fmt.Sprintf("ElasticNet(alpha=%g, l1_ratio=%g, max_iter=%d)", e.Alpha, e.L1Ratio, e.MaxIter)
}
