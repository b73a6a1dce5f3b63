// Package training wires the estimator library into the CO2 emission
// training run: model construction, evaluation, cross-validation and the
// orchestration that writes every artifact.
package training

import (
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/preprocessing"
)

// Artifact file names, relative to OutputDir or ModelDir.
const (
	DataChecksFile     = "data_checks.json"
	ResultsFile        = "results_summary.json"
	FiguresDir         = "figures"
	ComparisonFigure   = "model_comparison_r2_test.png"
	ActualVsPredFigure = "stacking_actual_vs_pred.png"
	ModelFile          = "best_stacking_model.gob"
)

// FeatureConfig selects the feature columns and the numeric scaler.
type FeatureConfig struct {
	Numeric     []string
	Categorical []string
	Scaler      string
}

// DefaultFeatures returns the production, diesel and electricity columns
// with no categorical features.
func DefaultFeatures() FeatureConfig {
	return FeatureConfig{
		Numeric:     []string{"produksi_ton", "solar_liter", "listrik_kWh"},
		Categorical: []string{},
		Scaler:      preprocessing.ScalerRobust,
	}
}

// Config holds everything a training run needs.
type Config struct {
	DataPath  string
	Target    string
	OutputDir string
	ModelDir  string

	Features FeatureConfig

	TestSize    float64
	RandomState uint64
	CVSplits    int
	Scoring     string
}

// DefaultConfig returns the standard run configuration. DataPath is left
// empty and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Target:      "emisi_CO2e",
		OutputDir:   "outputs",
		ModelDir:    "models",
		Features:    DefaultFeatures(),
		TestSize:    0.2,
		RandomState: 42,
		CVSplits:    5,
		Scoring:     "r2",
	}
}

// Validate checks the configuration before any work is done.
func (c Config) Validate() error {
	switch {
	case c.DataPath == "":
		return errors.NewValidationError("data_path", "is required", c.DataPath)
	case c.Target == "":
		return errors.NewValidationError("target", "must not be empty", c.Target)
	case c.TestSize <= 0 || c.TestSize >= 1:
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	case c.CVSplits < 2:
		return errors.NewValidationError("cv_splits", "must be at least 2", c.CVSplits)
	}
	seen := make(map[string]bool)
	for _, col := range append(append([]string(nil), c.Features.Numeric...), c.Features.Categorical...) {
		if seen[col] {
			return errors.NewValidationError("features", "numeric and categorical columns must be disjoint", col)
		}
		seen[col] = true
	}
	if seen[c.Target] {
		return errors.NewValidationError("features", "target must not be a feature", c.Target)
	}
	if _, err := preprocessing.ScalerByName(c.Features.Scaler); err != nil {
		return err
	}
	return nil
}

// Preprocessor builds the unfitted column transformer for the feature
// configuration.
func (f FeatureConfig) Preprocessor() (*preprocessing.ColumnTransformer, error) {
	scaler, err := preprocessing.ScalerByName(f.Scaler)
	if err != nil {
		return nil, err
	}
	return preprocessing.BuildPreprocessor(f.Numeric, f.Categorical, preprocessing.WithScaler(scaler)), nil
}
