package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NumericalInstabilityError は計算中にNaNやInfが検出された場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("co2stack: numerical instability detected in %s at iteration %d (values: %v)", e.Operation, e.Iteration, e.Values)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成し、スタックトレースを付与します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// CheckNumericalStability checks if values contain NaN or Inf.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckMatrix checks all values in a matrix for NaN or Inf.
// At most ten offending values are reported.
func CheckMatrix(operation string, m interface{ Dims() (int, int); At(int, int) float64 }) error {
	rows, cols := m.Dims()
	var bad []float64
	for i := 0; i < rows && len(bad) < 10; i++ {
		for j := 0; j < cols && len(bad) < 10; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, 0)
	}
	return nil
}
