// Package co2stack trains and evaluates regression models that estimate CO2
// emissions from production and energy-use data.
//
// The module ships a small scikit-learn style estimator library built on
// gonum, and a training application on top of it:
//
//   - dataset: CSV loading with gota and the data_checks.json diagnostics
//   - preprocessing: imputers, scalers, one-hot encoding and the
//     ColumnTransformer that turns a DataFrame into a feature matrix
//   - sklearn/linear_model: Ridge, ElasticNet and LinearRegression
//   - sklearn/ensemble: HistGradientBoostingRegressor and StackingRegressor
//   - sklearn/pipeline: preprocessor + regressor pipelines
//   - sklearn/model_selection: KFold, train/test split, cross-validation
//   - metrics: R2, MAE, MSE, RMSE and named scorers
//   - report: JSON, gob model files and gonum/plot figures
//   - training: model builders, evaluation and the orchestrated run
//
// # Quick Start
//
// The command-line entry point is cmd/co2train:
//
//	go run ./cmd/co2train --data_path data/emissions.csv
//
// The same run from Go:
//
//	cfg := training.DefaultConfig()
//	cfg.DataPath = "data/emissions.csv"
//	results, err := training.Run(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A run writes outputs/data_checks.json, outputs/results_summary.json, two
// figures under outputs/figures and models/best_stacking_model.gob. The
// model directory must already exist.
//
// BuildStack accepts other base estimators and another final estimator;
// for example an unregularized linear blend of the default bases:
//
//	pre, _ := training.DefaultFeatures().Preprocessor()
//	p := training.BuildStack(pre, nil, linear_model.NewLinearRegression())
//
// # Persistence
//
// Fitted estimators and pipelines are encoded with encoding/gob:
//
//	var p pipeline.Pipeline
//	err := model.LoadModel(&p, "models/best_stacking_model.gob")
//	pred, err := p.Predict(df)
//
// # Errors and logging
//
// Errors are created through pkg/errors (cockroachdb/errors with stack
// traces); structured logs go through pkg/log, backed by zerolog.
package co2stack
