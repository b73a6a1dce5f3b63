package training

import (
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/dataset"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/YuminosukeSato/co2stack/pkg/ordered"
	"github.com/YuminosukeSato/co2stack/report"
	"github.com/YuminosukeSato/co2stack/sklearn/model_selection"
	"gonum.org/v1/gonum/mat"
)

// Run executes a full training run and returns the results summary that
// was written to ResultsFile. Any failing stage aborts the run; artifacts
// written before the failure are left in place.
func Run(cfg Config) (*ordered.Map[report.Record], error) {
	logger := log.GetLoggerWithName("training")
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", cfg.OutputDir)
	}

	df, err := dataset.LoadCSV(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	if err := report.SaveJSON(dataset.BasicChecks(df), filepath.Join(cfg.OutputDir, DataChecksFile)); err != nil {
		return nil, err
	}
	logger.Info("data checks saved", log.PhaseKey, log.PhaseLoading, log.SamplesKey, df.Nrow())

	df, err = dataset.DropMissingTarget(df, cfg.Target)
	if err != nil {
		return nil, err
	}
	X, y, err := dataset.SplitXY(df, cfg.Target)
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplitIndices(y.Len(), cfg.TestSize, cfg.RandomState)
	if err != nil {
		return nil, err
	}
	Xtr, ytr, err := dataset.Take(X, y, trainIdx)
	if err != nil {
		return nil, err
	}
	Xte, yte, err := dataset.Take(X, y, testIdx)
	if err != nil {
		return nil, err
	}
	logger.Info("train/test split",
		log.PhaseKey, log.PhasePreprocessing,
		"data.train_samples", len(trainIdx),
		"data.test_samples", len(testIdx),
		log.RandomSeedKey, cfg.RandomState,
	)

	pre, err := cfg.Features.Preprocessor()
	if err != nil {
		return nil, err
	}
	baselines := BuildBaselines(pre)
	stack := BuildStack(pre, nil, nil)

	results := ordered.New[report.Record]()
	for name, p := range baselines.All() {
		logger.Info("training baseline", log.ModelNameKey, name, log.PhaseKey, log.PhaseTraining)
		rec, err := Evaluate(p, Xtr, ytr, Xte, yte)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %s", name)
		}
		logMetrics(logger, name, rec)
		results.Set(name, rec)
	}

	logger.Info("training stacking", log.ModelNameKey, StackingName, log.PhaseKey, log.PhaseTraining)
	rec, err := Evaluate(stack, Xtr, ytr, Xte, yte)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %s", StackingName)
	}
	logMetrics(logger, StackingName, rec)
	results.Set(StackingName, rec)

	cv, err := CrossValReport(stack, X, y, cfg.CVSplits, cfg.Scoring, cfg.RandomState)
	if err != nil {
		return nil, err
	}
	results.Set(StackingCVName, cv)

	if err := FitForExport(stack, Xtr, ytr); err != nil {
		return nil, err
	}
	// model_dir is not created here; a missing directory fails the run
	modelPath := filepath.Join(cfg.ModelDir, ModelFile)
	if err := model.SaveModel(stack, modelPath); err != nil {
		return nil, err
	}
	logger.Info("model saved", log.ModelNameKey, StackingName, log.PathKey, modelPath)

	figDir := filepath.Join(cfg.OutputDir, FiguresDir)
	if _, err := report.PlotModelComparison(results, "r2_test",
		report.WithSavePath(filepath.Join(figDir, ComparisonFigure))); err != nil {
		return nil, err
	}

	pred, err := stack.Predict(Xte)
	if err != nil {
		return nil, err
	}
	if _, err := report.PlotActualVsPred(mat.Col(nil, 0, yte), mat.Col(nil, 0, pred),
		report.WithTitle("Stacking: Actual vs Pred"),
		report.WithSavePath(filepath.Join(figDir, ActualVsPredFigure))); err != nil {
		return nil, err
	}

	if err := report.SaveJSON(results, filepath.Join(cfg.OutputDir, ResultsFile)); err != nil {
		return nil, err
	}
	logger.Info("training finished",
		log.PathKey, cfg.OutputDir,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return results, nil
}

func logMetrics(logger log.Logger, name string, rec MetricsRecord) {
	logger.Info("evaluated",
		log.ModelNameKey, name,
		log.PhaseKey, log.PhaseValidation,
		log.R2ScoreKey, rec.R2Test,
		log.MAEKey, rec.MAETest,
		log.RMSEKey, rec.RMSETest,
	)
}
