// Package dataset loads the training CSV into a gota DataFrame and computes
// the basic data diagnostics written to data_checks.json.
package dataset

import (
	"io"
	"math"
	"os"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/ordered"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"
)

// MissingValues are the cell contents read as missing.
var MissingValues = []string{"", "NA", "NaN", "nan", "null", "<nil>"}

// LoadCSV reads a header-row CSV file with column type detection. A missing
// file returns an error matching errors.ErrNotFound with the message
// "Dataset not found: <path>".
func LoadCSV(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dataframe.DataFrame{}, errors.NewFileNotFoundError("Dataset", path)
		}
		return dataframe.DataFrame{}, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()

	df, err := ReadCSV(f)
	if err != nil {
		return df, errors.Wrapf(err, "failed to parse dataset %s", path)
	}
	return df, nil
}

// ReadCSV parses CSV content from r.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(MissingValues),
	)
	if df.Err != nil {
		return df, errors.WithStack(df.Err)
	}
	return df, nil
}

// Diagnostics is the data_checks.json document.
type Diagnostics struct {
	Shape     [2]int                `json:"shape"`
	Columns   []string              `json:"columns"`
	NAPercent *ordered.Map[float64] `json:"na_percent"`
}

// BasicChecks reports the shape, the column names in file order and the
// percentage of missing values per column rounded to three decimals.
func BasicChecks(df dataframe.DataFrame) Diagnostics {
	rows, cols := df.Dims()
	names := df.Names()
	na := ordered.New[float64]()
	for _, name := range names {
		pct := 0.0
		if rows > 0 {
			missing := 0
			for _, isNaN := range df.Col(name).IsNaN() {
				if isNaN {
					missing++
				}
			}
			pct = roundTo(100*float64(missing)/float64(rows), 3)
		}
		na.Set(name, pct)
	}
	return Diagnostics{
		Shape:     [2]int{rows, cols},
		Columns:   names,
		NAPercent: na,
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func targetColumn(op string, df dataframe.DataFrame, target string) ([]float64, error) {
	s := df.Col(target)
	if s.Err != nil {
		return nil, errors.NewColumnNotFoundError(op, target)
	}
	return s.Float(), nil
}

// DropMissingTarget removes the rows whose target value is missing.
func DropMissingTarget(df dataframe.DataFrame, target string) (dataframe.DataFrame, error) {
	s := df.Col(target)
	if s.Err != nil {
		return df, errors.NewColumnNotFoundError("DropMissingTarget", target)
	}
	keep := make([]int, 0, df.Nrow())
	for i, isNaN := range s.IsNaN() {
		if !isNaN {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return df, errors.NewModelError("DropMissingTarget", "every target value is missing", errors.ErrEmptyData)
	}
	if len(keep) == df.Nrow() {
		return df, nil
	}
	out := df.Subset(keep)
	if out.Err != nil {
		return df, errors.WithStack(out.Err)
	}
	return out, nil
}

// SplitXY separates the target column from the features. The target must
// be numeric and complete.
func SplitXY(df dataframe.DataFrame, target string) (dataframe.DataFrame, *mat.VecDense, error) {
	values, err := targetColumn("SplitXY", df, target)
	if err != nil {
		return df, nil, err
	}
	if len(values) == 0 {
		return df, nil, errors.NewModelError("SplitXY", "empty data", errors.ErrEmptyData)
	}
	for _, v := range values {
		if math.IsNaN(v) {
			return df, nil, errors.NewValueError("SplitXY",
				"target column "+target+" must be numeric without missing values")
		}
	}
	X := df.Drop(target)
	if X.Err != nil {
		return df, nil, errors.WithStack(X.Err)
	}
	return X, mat.NewVecDense(len(values), values), nil
}

// Take returns the given rows of X and y, in index order.
func Take(X dataframe.DataFrame, y *mat.VecDense, idx []int) (dataframe.DataFrame, *mat.VecDense, error) {
	if len(idx) == 0 {
		return X, nil, errors.NewValueError("Take", "no rows selected")
	}
	sub := X.Subset(idx)
	if sub.Err != nil {
		return X, nil, errors.WithStack(sub.Err)
	}
	ys := mat.NewVecDense(len(idx), nil)
	for k, i := range idx {
		ys.SetVec(k, y.AtVec(i))
	}
	return sub, ys, nil
}
