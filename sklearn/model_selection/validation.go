package model_selection

import (
	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/core/parallel"
	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FoldPredictor fits a fresh estimator on fold.TrainIndices and returns its
// predictions for fold.TestIndices, in the same order.
type FoldPredictor func(i int, fold Fold) (*mat.VecDense, error)

// PredictFolds runs predict for every fold concurrently. Each call owns its
// fold, so the result is identical to a sequential run.
func PredictFolds(folds []Fold, predict FoldPredictor) ([]*mat.VecDense, error) {
	preds := make([]*mat.VecDense, len(folds))
	err := parallel.ForEach(len(folds), func(i int) error {
		p, err := predict(i, folds[i])
		if err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		if p.Len() != len(folds[i].TestIndices) {
			return errors.NewDimensionError("PredictFolds", len(folds[i].TestIndices), p.Len(), 0)
		}
		preds[i] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preds, nil
}

// ScoreFolds scores the per-fold predictions of predict against y with the
// named scorer and returns one score per fold.
func ScoreFolds(y *mat.VecDense, folds []Fold, scoring string, predict FoldPredictor) ([]float64, error) {
	scorer, err := metrics.GetScorer(scoring)
	if err != nil {
		return nil, err
	}
	preds, err := PredictFolds(folds, predict)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		yTest := mat.NewVecDense(len(fold.TestIndices), nil)
		for k, idx := range fold.TestIndices {
			yTest.SetVec(k, y.AtVec(idx))
		}
		if scores[i], err = scorer(yTest, preds[i]); err != nil {
			return nil, errors.Wrapf(err, "scoring fold %d", i)
		}
	}
	return scores, nil
}

// CrossValScore evaluates a clone of est on every fold of cv.
func CrossValScore(est model.Regressor, X mat.Matrix, y *mat.VecDense, cv *KFold, scoring string) ([]float64, error) {
	rows, _ := X.Dims()
	if y.Len() != rows {
		return nil, errors.NewDimensionError("CrossValScore", rows, y.Len(), 0)
	}
	folds, err := cv.Split(rows)
	if err != nil {
		return nil, err
	}
	return ScoreFolds(y, folds, scoring, matrixFoldPredictor(est, X, y))
}

// CrossValPredict returns, for every sample, the prediction of a clone of
// est fitted on the folds that do not contain it. folds must partition the
// rows of X.
func CrossValPredict(est model.Regressor, X mat.Matrix, y *mat.VecDense, folds []Fold) (*mat.VecDense, error) {
	rows, _ := X.Dims()
	if y.Len() != rows {
		return nil, errors.NewDimensionError("CrossValPredict", rows, y.Len(), 0)
	}
	preds, err := PredictFolds(folds, matrixFoldPredictor(est, X, y))
	if err != nil {
		return nil, err
	}

	out := mat.NewVecDense(rows, nil)
	seen := make([]bool, rows)
	for i, fold := range folds {
		for k, idx := range fold.TestIndices {
			out.SetVec(idx, preds[i].AtVec(k))
			seen[idx] = true
		}
	}
	for _, ok := range seen {
		if !ok {
			return nil, errors.NewValueError("CrossValPredict", "folds do not partition the samples")
		}
	}
	return out, nil
}

func matrixFoldPredictor(est model.Regressor, X mat.Matrix, y *mat.VecDense) FoldPredictor {
	return func(_ int, fold Fold) (*mat.VecDense, error) {
		Xtr, ytr := TakeRows(X, y, fold.TrainIndices)
		Xte, _ := TakeRows(X, nil, fold.TestIndices)

		m := est.Clone()
		if err := m.Fit(Xtr, ytr); err != nil {
			return nil, err
		}
		pred, err := m.Predict(Xte)
		if err != nil {
			return nil, err
		}
		return metrics.AsVec(pred)
	}
}
