package training

import (
	"time"

	"github.com/YuminosukeSato/co2stack/dataset"
	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/YuminosukeSato/co2stack/sklearn/model_selection"
	"github.com/YuminosukeSato/co2stack/sklearn/pipeline"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MetricsRecord holds train and test scores of one fitted pipeline.
type MetricsRecord struct {
	R2Train   float64 `json:"r2_train"`
	R2Test    float64 `json:"r2_test"`
	MAETrain  float64 `json:"mae_train"`
	MAETest   float64 `json:"mae_test"`
	RMSETrain float64 `json:"rmse_train"`
	RMSETest  float64 `json:"rmse_test"`
}

// Metric returns the field whose JSON name is name.
func (m MetricsRecord) Metric(name string) (float64, bool) {
	switch name {
	case "r2_train":
		return m.R2Train, true
	case "r2_test":
		return m.R2Test, true
	case "mae_train":
		return m.MAETrain, true
	case "mae_test":
		return m.MAETest, true
	case "rmse_train":
		return m.RMSETrain, true
	case "rmse_test":
		return m.RMSETest, true
	}
	return 0, false
}

// CVReport summarizes per-fold scores. Std is the population standard
// deviation.
type CVReport struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

// Metric answers "mean" and "std" only.
func (r CVReport) Metric(name string) (float64, bool) {
	switch name {
	case "mean":
		return r.Mean, true
	case "std":
		return r.Std, true
	}
	return 0, false
}

func splitScores(yTrue, yPred *mat.VecDense) (r2, mae, rmse float64, err error) {
	if r2, err = metrics.R2Score(yTrue, yPred); err != nil {
		return
	}
	if mae, err = metrics.MAE(yTrue, yPred); err != nil {
		return
	}
	rmse, err = metrics.RMSE(yTrue, yPred)
	return
}

// Evaluate fits p on the training split, then scores its predictions on
// both splits. p is left fitted on the training split.
func Evaluate(p *pipeline.Pipeline, Xtr dataframe.DataFrame, ytr *mat.VecDense,
	Xte dataframe.DataFrame, yte *mat.VecDense) (MetricsRecord, error) {
	var rec MetricsRecord
	if err := p.Fit(Xtr, ytr); err != nil {
		return rec, errors.Wrap(err, "fit")
	}
	predTr, err := p.Predict(Xtr)
	if err != nil {
		return rec, errors.Wrap(err, "predict train")
	}
	predTe, err := p.Predict(Xte)
	if err != nil {
		return rec, errors.Wrap(err, "predict test")
	}
	if rec.R2Train, rec.MAETrain, rec.RMSETrain, err = splitScores(ytr, predTr); err != nil {
		return rec, errors.Wrap(err, "score train")
	}
	if rec.R2Test, rec.MAETest, rec.RMSETest, err = splitScores(yte, predTe); err != nil {
		return rec, errors.Wrap(err, "score test")
	}
	return rec, nil
}

// FitForExport refits p on the training split before it is persisted.
func FitForExport(p *pipeline.Pipeline, Xtr dataframe.DataFrame, ytr *mat.VecDense) error {
	return errors.Wrap(p.Fit(Xtr, ytr), "fit for export")
}

// CrossValReport scores clones of p over a shuffled KFold (seed
// randomState). Folds are fitted concurrently; p itself is not modified.
func CrossValReport(p *pipeline.Pipeline, X dataframe.DataFrame, y *mat.VecDense,
	nSplits int, scoring string, randomState uint64) (CVReport, error) {
	logger := log.GetLoggerWithName("training")
	start := time.Now()

	folds, err := model_selection.NewKFold(nSplits, true, randomState).Split(y.Len())
	if err != nil {
		return CVReport{}, err
	}
	if X.Nrow() != y.Len() {
		return CVReport{}, errors.NewDimensionError("CrossValReport", y.Len(), X.Nrow(), 0)
	}

	scores, err := model_selection.ScoreFolds(y, folds, scoring, func(i int, fold model_selection.Fold) (*mat.VecDense, error) {
		Xtr, ytr, err := dataset.Take(X, y, fold.TrainIndices)
		if err != nil {
			return nil, err
		}
		Xte, _, err := dataset.Take(X, y, fold.TestIndices)
		if err != nil {
			return nil, err
		}
		est := p.Clone()
		if err := est.Fit(Xtr, ytr); err != nil {
			return nil, err
		}
		return est.Predict(Xte)
	})
	if err != nil {
		return CVReport{}, errors.Wrap(err, "cross-validation")
	}

	mean, std := stat.PopMeanStdDev(scores, nil)
	logger.Info("cross-validation finished",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		"cv.splits", nSplits,
		"cv.mean", mean,
		"cv.std", std,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return CVReport{Scores: scores, Mean: mean, Std: std}, nil
}
