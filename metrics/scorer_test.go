package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestGetScorer(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5})

	tests := []struct {
		name string
		want float64
	}{
		{"r2", 1 - 1.0/5.0},
		{"neg_mean_absolute_error", -0.5},
		{"neg_mean_squared_error", -0.25},
		{"neg_root_mean_squared_error", -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetScorer(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			got, err := s(yTrue, yPred)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	_, err := GetScorer("accuracy")
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("GetScorer(accuracy) = %v, want ValidationError", err)
	}
}

func TestR2ScoreWarnsOnConstantTarget(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(func(error) {})

	got, err := R2Score(mat.NewVecDense(3, []float64{2, 2, 2}), mat.NewVecDense(3, []float64{2, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("R2Score = %v, want 0", got)
	}
	if len(warned) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warned))
	}
	var um *errors.UndefinedMetricWarning
	if !errors.As(warned[0], &um) {
		t.Errorf("warning %T, want UndefinedMetricWarning", warned[0])
	}
}

func TestAsVec(t *testing.T) {
	v, err := AsVec(mat.NewDense(3, 1, []float64{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 3 || v.AtVec(2) != 3 {
		t.Errorf("unexpected vector %v", mat.Formatted(v))
	}
	if _, err := AsVec(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for multi-column matrix")
	}
}
