package metrics

import (
	"sort"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scorer computes a score where greater is better.
type Scorer func(yTrue, yPred *mat.VecDense) (float64, error)

func negate(f Scorer) Scorer {
	return func(yTrue, yPred *mat.VecDense) (float64, error) {
		v, err := f(yTrue, yPred)
		return -v, err
	}
}

var scorers = map[string]Scorer{
	"r2":                          R2Score,
	"explained_variance":          ExplainedVarianceScore,
	"neg_mean_absolute_error":     negate(MAE),
	"neg_mean_squared_error":      negate(MSE),
	"neg_root_mean_squared_error": negate(RMSE),
}

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer, valid options are "+joinNames(), name)
	}
	return s, nil
}

// ScorerNames returns the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for k := range scorers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func joinNames() string {
	out := ""
	for i, n := range ScorerNames() {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
