// Package linear_model provides regularized linear regressors: Ridge and
// ElasticNet, together with ordinary least squares LinearRegression.
package linear_model

import (
	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearParams は学習済みの係数と切片
type LinearParams struct {
	Coef      []float64
	Intercept float64
}

// checkXY は X と y の形状を検証し、y を列ベクトルとして返す
func checkXY(op string, X, y mat.Matrix) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if rows != yRows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return nil, err
	}
	return mat.NewVecDense(yRows, mat.Col(nil, 0, y)), nil
}

// center は列平均を引いた X と平均を引いた y を返す。
// fitIntercept が false の場合はコピーのみ。
func center(X mat.Matrix, y *mat.VecDense, fitIntercept bool) (*mat.Dense, *mat.VecDense, []float64, float64) {
	rows, cols := X.Dims()
	Xc := mat.DenseCopyOf(X)
	yc := mat.VecDenseCopyOf(y)
	xMean := make([]float64, cols)
	yMean := 0.0
	if !fitIntercept {
		return Xc, yc, xMean, yMean
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, Xc)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean = stat.Mean(yc.RawVector().Data, nil)

	Xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, Xc)
	for i := 0; i < rows; i++ {
		yc.SetVec(i, yc.AtVec(i)-yMean)
	}
	return Xc, yc, xMean, yMean
}

// setIntercept は中心化した問題の解から切片を復元する
func (p *LinearParams) setIntercept(xMean []float64, yMean float64) {
	p.Intercept = yMean
	for j, m := range xMean {
		p.Intercept -= m * p.Coef[j]
	}
}

func (p *LinearParams) predict(state *model.StateManager, name string, X mat.Matrix) (mat.Matrix, error) {
	if err := state.RequireFitted(name, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := state.RequireFeatures(name+".Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(rows, nil)
	out.MulVec(X, mat.NewVecDense(cols, p.Coef))
	for i := 0; i < rows; i++ {
		out.SetVec(i, out.AtVec(i)+p.Intercept)
	}
	return out, nil
}
