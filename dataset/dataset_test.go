package dataset

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

const sampleCSV = `produksi_ton,solar_liter,listrik_kWh,emisi_CO2e
10,100,1000,50
20,,2000,100
30,300,NA,
40,400,4000,200
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	df, err := LoadCSV(writeFile(t, sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if r, c := df.Dims(); r != 4 || c != 4 {
		t.Errorf("Dims = (%d, %d), want (4, 4)", r, c)
	}
	if got := df.Col("solar_liter").Float()[1]; !math.IsNaN(got) {
		t.Errorf("empty cell = %v, want NaN", got)
	}
}

func TestLoadCSVNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	_, err := LoadCSV(path)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Dataset not found: "+path) {
		t.Errorf("message = %q", err.Error())
	}
}

func TestLoadCSVMalformed(t *testing.T) {
	_, err := LoadCSV(writeFile(t, "a,b\n1,2,3\n4\n"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, errors.ErrNotFound) {
		t.Error("parse error should not match ErrNotFound")
	}
}

func TestBasicChecks(t *testing.T) {
	df, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	d := BasicChecks(df)
	if d.Shape != [2]int{4, 4} {
		t.Errorf("Shape = %v", d.Shape)
	}
	wantCols := []string{"produksi_ton", "solar_liter", "listrik_kWh", "emisi_CO2e"}
	if strings.Join(d.Columns, ",") != strings.Join(wantCols, ",") {
		t.Errorf("Columns = %v", d.Columns)
	}
	if strings.Join(d.NAPercent.Keys(), ",") != strings.Join(wantCols, ",") {
		t.Errorf("na_percent keys = %v", d.NAPercent.Keys())
	}
	for col, want := range map[string]float64{"produksi_ton": 0, "solar_liter": 25, "listrik_kWh": 25, "emisi_CO2e": 25} {
		if got, _ := d.NAPercent.Get(col); got != want {
			t.Errorf("na_percent[%s] = %v, want %v", col, got, want)
		}
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"shape":[4,4],"columns":["produksi_ton","solar_liter","listrik_kWh","emisi_CO2e"],` +
		`"na_percent":{"produksi_ton":0,"solar_liter":25,"listrik_kWh":25,"emisi_CO2e":25}}`
	if string(raw) != want {
		t.Errorf("json = %s\nwant %s", raw, want)
	}
}

func TestBasicChecksRounding(t *testing.T) {
	df, err := ReadCSV(strings.NewReader("a,b\n1,x\nNA,y\n3,z\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := BasicChecks(df).NAPercent.Get("a"); got != 33.333 {
		t.Errorf("na_percent = %v, want 33.333", got)
	}
}

func TestDropMissingTargetAndSplit(t *testing.T) {
	df, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	df, err = DropMissingTarget(df, "emisi_CO2e")
	if err != nil {
		t.Fatal(err)
	}
	if df.Nrow() != 3 {
		t.Fatalf("Nrow = %d, want 3", df.Nrow())
	}

	X, y, err := SplitXY(df, "emisi_CO2e")
	if err != nil {
		t.Fatal(err)
	}
	if X.Ncol() != 3 {
		t.Errorf("X has %d columns, want 3", X.Ncol())
	}
	for _, n := range X.Names() {
		if n == "emisi_CO2e" {
			t.Error("target still present in X")
		}
	}
	want := []float64{50, 100, 200}
	for i, w := range want {
		if y.AtVec(i) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.AtVec(i), w)
		}
	}

	Xs, ys, err := Take(X, y, []int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if Xs.Col("produksi_ton").Float()[0] != 40 || ys.AtVec(0) != 200 || ys.AtVec(1) != 50 {
		t.Error("Take returned misaligned rows")
	}
}

func TestTargetErrors(t *testing.T) {
	df, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	var col *errors.ColumnNotFoundError
	if _, err := DropMissingTarget(df, "nope"); !errors.As(err, &col) {
		t.Errorf("DropMissingTarget: expected ColumnNotFoundError, got %v", err)
	}
	if _, _, err := SplitXY(df, "nope"); !errors.As(err, &col) {
		t.Errorf("SplitXY: expected ColumnNotFoundError, got %v", err)
	}
	// the target still contains a missing value
	if _, _, err := SplitXY(df, "emisi_CO2e"); err == nil {
		t.Error("SplitXY: expected error for missing target values")
	}

	allMissing, _ := ReadCSV(strings.NewReader("x,y\n1,NA\n2,NA\n"))
	if _, err := DropMissingTarget(allMissing, "y"); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
}
