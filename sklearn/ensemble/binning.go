package ensemble

import (
	"math"
	"slices"
	"sort"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BinMapper discretizes continuous features into at most MaxBins bins per
// feature. Bin MaxBins is reserved for missing (NaN) values.
//
// A value x falls into the first bin b with x <= Thresholds[f][b]; values
// above the last threshold fall into bin len(Thresholds[f]).
type BinMapper struct {
	MaxBins    int
	Thresholds [][]float64
}

// NewBinMapper creates a bin mapper. maxBins must be in [2, 255].
func NewBinMapper(maxBins int) *BinMapper {
	return &BinMapper{MaxBins: maxBins}
}

// MissingBin returns the bin index used for NaN values.
func (b *BinMapper) MissingBin() uint8 {
	return uint8(b.MaxBins)
}

// NBins returns the number of non-missing bins for feature f.
func (b *BinMapper) NBins(f int) int {
	return len(b.Thresholds[f]) + 1
}

// Fit computes the bin thresholds of every column of X. When a column has
// no more than MaxBins distinct values the thresholds are the midpoints
// between consecutive values; otherwise they are evenly spaced percentiles.
func (b *BinMapper) Fit(X mat.Matrix) error {
	if b.MaxBins < 2 || b.MaxBins > 255 {
		return errors.NewValidationError("max_bins", "must be in [2, 255]", b.MaxBins)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("BinMapper.Fit", "empty data", errors.ErrEmptyData)
	}

	b.Thresholds = make([][]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		b.Thresholds[j] = findBinThresholds(col, b.MaxBins)
	}
	return nil
}

func findBinThresholds(values []float64, maxBins int) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)
	distinct := slices.Compact(slices.Clone(sorted))

	if len(distinct) <= maxBins {
		thresholds := make([]float64, len(distinct)-1)
		for i := range thresholds {
			thresholds[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return thresholds
	}

	// maxBins-1 interior percentiles; duplicates collapse on heavy ties
	thresholds := make([]float64, 0, maxBins-1)
	for i := 1; i < maxBins; i++ {
		q := stat.Quantile(float64(i)/float64(maxBins), stat.LinInterp, sorted, nil)
		if len(thresholds) == 0 || q > thresholds[len(thresholds)-1] {
			thresholds = append(thresholds, q)
		}
	}
	return thresholds
}

// binValue returns the bin of a single value of feature f.
func (b *BinMapper) binValue(f int, v float64) uint8 {
	if math.IsNaN(v) {
		return b.MissingBin()
	}
	return uint8(sort.SearchFloat64s(b.Thresholds[f], v))
}

// Transform bins X into a feature-major matrix: out[f][i] is the bin of
// sample i for feature f.
func (b *BinMapper) Transform(X mat.Matrix) ([][]uint8, error) {
	rows, cols := X.Dims()
	if cols != len(b.Thresholds) {
		return nil, errors.NewDimensionError("BinMapper.Transform", len(b.Thresholds), cols, 1)
	}
	out := make([][]uint8, cols)
	for j := 0; j < cols; j++ {
		out[j] = make([]uint8, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = b.binValue(j, X.At(i, j))
		}
	}
	return out, nil
}
