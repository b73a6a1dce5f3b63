package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/co2stack/pkg/ordered"
	"gonum.org/v1/plot/vg"
)

type fakeRecord map[string]float64

func (r fakeRecord) Metric(name string) (float64, bool) {
	v, ok := r[name]
	return v, ok
}

func fileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("%s is empty", path)
	}
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	m := ordered.New[float64]()
	m.Set("b", 2)
	m.Set("a", 1)
	if err := SaveJSON(m, path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"b\": 2,\n  \"a\": 1\n}"
	if string(raw) != want {
		t.Errorf("content = %q, want %q", raw, want)
	}

	// overwrite
	if err := SaveJSON(map[string]int{"x": 1}, path); err != nil {
		t.Fatal(err)
	}
	var back map[string]int
	raw, _ = os.ReadFile(path)
	if err := json.Unmarshal(raw, &back); err != nil || back["x"] != 1 {
		t.Errorf("overwrite failed: %s, %v", raw, err)
	}
}

func TestSaveJSONRejectsNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nan.json")
	if err := SaveJSON(map[string]float64{"r2": math.NaN()}, path); err == nil {
		t.Fatal("expected encode error for NaN")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written on encode failure")
	}
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "m.gob")
	in := map[string]float64{"alpha": 1}
	if err := SaveModel(in, path); err != nil {
		t.Fatal(err)
	}
	var out map[string]float64
	if err := LoadModel(path, &out); err != nil {
		t.Fatal(err)
	}
	if out["alpha"] != 1 {
		t.Errorf("loaded %v", out)
	}
}

func TestPlotActualVsPred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures", "avp.png")
	yTrue := []float64{1, 2, 3, 4}
	yPred := []float64{1, 2, 3, 4}
	fig, err := PlotActualVsPred(yTrue, yPred, WithTitle("Stacking: Actual vs Pred"), WithSavePath(path))
	if err != nil {
		t.Fatal(err)
	}
	fileExists(t, path)
	if fig.Path != path {
		t.Errorf("Path = %q", fig.Path)
	}
	want := "Stacking: Actual vs Pred\nR2=1.000  MAE=0.0  RMSE=0.0"
	if fig.Plot.Title.Text != want {
		t.Errorf("title = %q, want %q", fig.Plot.Title.Text, want)
	}
	if fig.Width != fig.Height {
		t.Errorf("figure should be square, got %v x %v", fig.Width, fig.Height)
	}
}

func TestPlotActualVsPredErrors(t *testing.T) {
	tests := []struct {
		name        string
		yTrue, yPre []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", []float64{1, 2}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PlotActualVsPred(tt.yTrue, tt.yPre); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPlotModelComparison(t *testing.T) {
	results := ordered.New[Record]()
	results.Set("Ridge", fakeRecord{"r2_test": 0.7})
	results.Set("HGB", fakeRecord{"r2_test": 0.9})
	results.Set("Stacking", fakeRecord{"r2_test": 0.8})
	results.Set("Stacking_CV", fakeRecord{"mean": 0.85, "std": 0.01})

	path := filepath.Join(t.TempDir(), "cmp.png")
	fig, err := PlotModelComparison(results, "r2_test", WithSavePath(path))
	if err != nil {
		t.Fatal(err)
	}
	fileExists(t, path)
	if fig.Plot.Title.Text != "Model comparison" {
		t.Errorf("title = %q", fig.Plot.Title.Text)
	}
	// three bars need 1.8in, below the 2in minimum
	if fig.Height != 2*vg.Inch {
		t.Errorf("height = %v, want %v", fig.Height, 2*vg.Inch)
	}
}

func TestPlotModelComparisonNoData(t *testing.T) {
	results := ordered.New[Record]()
	results.Set("Stacking_CV", fakeRecord{"mean": 0.85})
	path := filepath.Join(t.TempDir(), "none.png")
	fig, err := PlotModelComparison(results, "r2_test", WithSavePath(path))
	if err != nil {
		t.Fatal(err)
	}
	if fig != nil {
		t.Error("expected nil figure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written without data")
	}
}

func TestPlotCVScores(t *testing.T) {
	fig, err := PlotCVScores([]float64{0.9, 1.2, -0.3, 0.5, 0.7})
	if err != nil {
		t.Fatal(err)
	}
	if fig.Plot.Y.Min != 0 || fig.Plot.Y.Max != 1 {
		t.Errorf("y range = [%v, %v]", fig.Plot.Y.Min, fig.Plot.Y.Max)
	}
	var buf bytes.Buffer
	if err := fig.Encode(&buf, "png"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "\x89PNG") {
		t.Error("output is not a PNG")
	}

	if _, err := PlotCVScores(nil); err == nil {
		t.Error("expected error for empty scores")
	}
}
