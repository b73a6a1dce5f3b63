package training

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/dataset"
	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/YuminosukeSato/co2stack/sklearn/ensemble"
	"github.com/YuminosukeSato/co2stack/sklearn/linear_model"
	"github.com/YuminosukeSato/co2stack/sklearn/model_selection"
	"github.com/YuminosukeSato/co2stack/sklearn/pipeline"
	"gonum.org/v1/gonum/mat"
)

// emissionsCSV builds n rows of synthetic plant data. Every 17th row has a
// missing diesel value and row 5 has a missing target.
func emissionsCSV(n int) string {
	var b strings.Builder
	b.WriteString("plant,produksi_ton,solar_liter,listrik_kWh,emisi_CO2e\n")
	for i := 0; i < n; i++ {
		prod := 50 + float64((i*37)%100)
		solar := 200 + float64((i*53)%300)
		kwh := 1000 + float64((i*71)%900)
		noise := float64((i*13)%7) - 3
		y := 1.8*prod + 2.68*solar/10 + 0.05*kwh + noise

		solarCell := fmt.Sprintf("%g", solar)
		if i%17 == 3 {
			solarCell = ""
		}
		yCell := fmt.Sprintf("%g", y)
		if i == 5 {
			yCell = "NA"
		}
		fmt.Fprintf(&b, "P%d,%g,%s,%g,%s\n", i%4, prod, solarCell, kwh, yCell)
	}
	return b.String()
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emissions.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.DataPath = "data.csv"
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing data path", func(c *Config) { c.DataPath = "" }},
		{"empty target", func(c *Config) { c.Target = "" }},
		{"test size zero", func(c *Config) { c.TestSize = 0 }},
		{"test size one", func(c *Config) { c.TestSize = 1 }},
		{"one cv split", func(c *Config) { c.CVSplits = 1 }},
		{"overlapping features", func(c *Config) { c.Features.Categorical = []string{"produksi_ton"} }},
		{"target as feature", func(c *Config) { c.Features.Numeric = append(c.Features.Numeric, c.Target) }},
		{"unknown scaler", func(c *Config) { c.Features.Scaler = "quantile" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataPath = "data.csv"
			cfg.Features = DefaultFeatures()
			tt.modify(&cfg)
			var verr *errors.ValidationError
			if err := cfg.Validate(); !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestBuildBaselines(t *testing.T) {
	pre, err := DefaultFeatures().Preprocessor()
	if err != nil {
		t.Fatal(err)
	}
	baselines := BuildBaselines(pre)
	if got := strings.Join(baselines.Keys(), ","); got != "Ridge,ElasticNet,HGB" {
		t.Fatalf("keys = %s", got)
	}

	seen := map[model.FrameTransformer]bool{}
	for name, p := range baselines.All() {
		if p.IsFitted() {
			t.Errorf("%s should be unfitted", name)
		}
		if p.Preproc == model.FrameTransformer(pre) || seen[p.Preproc] {
			t.Errorf("%s shares its preprocessor", name)
		}
		seen[p.Preproc] = true
	}

	ridge, _ := baselines.Get(RidgeName)
	if r := ridge.Model.(*linear_model.Ridge); r.Alpha != 1 {
		t.Errorf("Ridge alpha = %v", r.Alpha)
	}
	en, _ := baselines.Get(ElasticNetName)
	if e := en.Model.(*linear_model.ElasticNet); e.MaxIter != 5000 || e.Alpha != 1 || e.L1Ratio != 0.5 {
		t.Errorf("ElasticNet = %+v", e)
	}
	hgb, _ := baselines.Get(HGBName)
	if h := hgb.Model.(*ensemble.HistGradientBoostingRegressor); h.RandomState != 42 || h.MaxIter != 100 {
		t.Errorf("HGB random_state=%d max_iter=%d", h.RandomState, h.MaxIter)
	}
}

func TestBuildStack(t *testing.T) {
	pre, err := DefaultFeatures().Preprocessor()
	if err != nil {
		t.Fatal(err)
	}
	p := BuildStack(pre, nil, nil)
	stack, ok := p.Model.(*ensemble.StackingRegressor)
	if !ok {
		t.Fatalf("model is %T", p.Model)
	}
	var names []string
	for _, e := range stack.Estimators {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "ridge,elastic,hgb" {
		t.Errorf("estimators = %v", names)
	}
	if stack.Passthrough || stack.CV != 5 {
		t.Errorf("passthrough=%v cv=%d", stack.Passthrough, stack.CV)
	}
	if _, ok := stack.FinalEstimator.(*linear_model.Ridge); !ok {
		t.Errorf("final estimator is %T", stack.FinalEstimator)
	}
	if h := stack.Estimators[2].Estimator.(*ensemble.HistGradientBoostingRegressor); h.MaxIter != 200 || h.RandomState != 42 {
		t.Errorf("hgb max_iter=%d random_state=%d", h.MaxIter, h.RandomState)
	}

	custom := BuildStack(pre, []ensemble.NamedEstimator{{Name: "lr", Estimator: linear_model.NewLinearRegression()}},
		linear_model.NewRidge(linear_model.WithRidgeAlpha(10)))
	if s := custom.Model.(*ensemble.StackingRegressor); len(s.Estimators) != 1 || s.FinalEstimator.(*linear_model.Ridge).Alpha != 10 {
		t.Error("custom estimators were not used")
	}
}

func TestEvaluateAndCrossValReport(t *testing.T) {
	df, err := dataset.ReadCSV(strings.NewReader(emissionsCSV(60)))
	if err != nil {
		t.Fatal(err)
	}
	df, _ = dataset.DropMissingTarget(df, "emisi_CO2e")
	X, y, err := dataset.SplitXY(df, "emisi_CO2e")
	if err != nil {
		t.Fatal(err)
	}
	idxTr, idxTe := make([]int, 0), make([]int, 0)
	for i := 0; i < y.Len(); i++ {
		if i%5 == 0 {
			idxTe = append(idxTe, i)
		} else {
			idxTr = append(idxTr, i)
		}
	}
	Xtr, ytr, _ := dataset.Take(X, y, idxTr)
	Xte, yte, _ := dataset.Take(X, y, idxTe)

	pre, _ := DefaultFeatures().Preprocessor()
	p := pipeline.New(pre, linear_model.NewRidge(linear_model.WithRidgeAlpha(1e-3)))
	rec, err := Evaluate(p, Xtr, ytr, Xte, yte)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsFitted() {
		t.Error("Evaluate should leave the pipeline fitted")
	}
	if rec.R2Train < 0.85 || rec.R2Test < 0.85 {
		t.Errorf("r2 train=%v test=%v", rec.R2Train, rec.R2Test)
	}
	if rec.MAETrain <= 0 || rec.RMSETrain < rec.MAETrain || rec.RMSETest < rec.MAETest {
		t.Errorf("inconsistent errors: %+v", rec)
	}
	if v, ok := rec.Metric("rmse_test"); !ok || v != rec.RMSETest {
		t.Error("Metric(rmse_test) mismatch")
	}
	if _, ok := rec.Metric("mean"); ok {
		t.Error("MetricsRecord should not answer mean")
	}

	before, _ := p.Predict(Xte)
	cv, err := CrossValReport(p, X, y, 5, "r2", 42)
	if err != nil {
		t.Fatal(err)
	}
	after, _ := p.Predict(Xte)
	if !mat.Equal(before, after) {
		t.Error("CrossValReport modified the pipeline")
	}
	if len(cv.Scores) != 5 {
		t.Fatalf("got %d scores", len(cv.Scores))
	}
	mean := 0.0
	for _, s := range cv.Scores {
		mean += s
	}
	mean /= 5
	variance := 0.0
	for _, s := range cv.Scores {
		variance += (s - mean) * (s - mean)
	}
	std := math.Sqrt(variance / 5)
	if math.Abs(cv.Mean-mean) > 1e-12 || math.Abs(cv.Std-std) > 1e-12 {
		t.Errorf("mean/std = %v/%v, want %v/%v", cv.Mean, cv.Std, mean, std)
	}

	again, err := CrossValReport(p, X, y, 5, "r2", 42)
	if err != nil {
		t.Fatal(err)
	}
	for i := range cv.Scores {
		if cv.Scores[i] != again.Scores[i] {
			t.Errorf("fold %d not deterministic: %v vs %v", i, cv.Scores[i], again.Scores[i])
		}
	}

	if _, err := CrossValReport(p, X, y, 5, "accuracy", 42); err == nil {
		t.Error("expected error for unknown scorer")
	}
}

func TestEvaluateStackingIsDeterministic(t *testing.T) {
	df, err := dataset.ReadCSV(strings.NewReader(emissionsCSV(100)))
	if err != nil {
		t.Fatal(err)
	}
	df, _ = dataset.DropMissingTarget(df, "emisi_CO2e")
	X, y, err := dataset.SplitXY(df, "emisi_CO2e")
	if err != nil {
		t.Fatal(err)
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplitIndices(y.Len(), 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	Xtr, ytr, _ := dataset.Take(X, y, trainIdx)
	Xte, yte, _ := dataset.Take(X, y, testIdx)

	var first MetricsRecord
	for run := 0; run < 3; run++ {
		pre, _ := DefaultFeatures().Preprocessor()
		p := BuildStack(pre, nil, nil)
		rec, err := Evaluate(p, Xtr, ytr, Xte, yte)
		if err != nil {
			t.Fatal(err)
		}
		if run == 0 {
			first = rec
		} else if rec != first {
			t.Errorf("run %d: %+v, want %+v", run, rec, first)
		}

		pred, err := p.Predict(Xte)
		if err != nil {
			t.Fatal(err)
		}
		mse, err := metrics.MSE(yte, pred)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(rec.RMSETest*rec.RMSETest-mse) > 1e-9*math.Max(1, mse) {
			t.Errorf("rmse_test^2 = %v, mse = %v", rec.RMSETest*rec.RMSETest, mse)
		}
	}
}

func TestRun(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	defer log.SetProvider(nil)

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataPath = writeCSV(t, emissionsCSV(100))
	cfg.OutputDir = filepath.Join(dir, "outputs")
	cfg.ModelDir = filepath.Join(dir, "models")
	if err := os.Mkdir(cfg.ModelDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results, err := Run(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(results.Keys(), ","); got != "Ridge,ElasticNet,HGB,Stacking,Stacking_CV" {
		t.Errorf("result keys = %s", got)
	}

	for _, path := range []string{
		filepath.Join(cfg.OutputDir, DataChecksFile),
		filepath.Join(cfg.OutputDir, ResultsFile),
		filepath.Join(cfg.OutputDir, FiguresDir, ComparisonFigure),
		filepath.Join(cfg.OutputDir, FiguresDir, ActualVsPredFigure),
		filepath.Join(cfg.ModelDir, ModelFile),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact %s: %v", path, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(cfg.OutputDir, ResultsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  \"Ridge\": {\n    \"r2_train\":") {
		t.Errorf("unexpected results layout:\n%s", raw)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded[StackingCVName]["scores"].([]any)) != 5 {
		t.Error("Stacking_CV should carry 5 scores")
	}

	checks, err := os.ReadFile(filepath.Join(cfg.OutputDir, DataChecksFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(checks), "\"shape\": [\n    100,\n    5\n  ]") {
		t.Errorf("data checks:\n%s", checks)
	}

	var loaded pipeline.Pipeline
	if err := model.LoadModel(&loaded, filepath.Join(cfg.ModelDir, ModelFile)); err != nil {
		t.Fatal(err)
	}
	if !loaded.IsFitted() {
		t.Error("saved pipeline should be fitted")
	}

	if !logger.ContainsMessage("training finished") {
		t.Error("missing completion log")
	}
	if !logger.ContainsField(log.ModelNameKey, HGBName) {
		t.Error("missing per-model log")
	}
}

func TestRunFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing data file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataPath = filepath.Join(dir, "nope.csv")
		cfg.OutputDir = filepath.Join(dir, "out1")
		cfg.ModelDir = dir
		_, err := Run(cfg)
		if !errors.Is(err, errors.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := os.Stat(cfg.OutputDir); err != nil {
			t.Error("output directory should be created before loading")
		}
	})

	t.Run("missing model dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataPath = writeCSV(t, emissionsCSV(60))
		cfg.OutputDir = filepath.Join(dir, "out2")
		cfg.ModelDir = filepath.Join(dir, "absent")
		if _, err := Run(cfg); err == nil {
			t.Fatal("expected error when model_dir does not exist")
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, DataChecksFile)); err != nil {
			t.Error("data checks should already be written")
		}
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, ResultsFile)); !os.IsNotExist(err) {
			t.Error("results should not be written after a failed save")
		}
	})

	t.Run("missing target column", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DataPath = writeCSV(t, emissionsCSV(20))
		cfg.Target = "co2"
		cfg.OutputDir = filepath.Join(dir, "out3")
		cfg.ModelDir = dir
		var col *errors.ColumnNotFoundError
		if _, err := Run(cfg); !errors.As(err, &col) {
			t.Fatalf("expected ColumnNotFoundError, got %v", err)
		}
	})
}
