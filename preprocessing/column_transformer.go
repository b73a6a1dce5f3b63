package preprocessing

import (
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&ColumnTransformer{})
	gob.Register(&SimpleImputer{})
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
	gob.Register(&RobustScaler{})
}

// Group prefixes used in FeatureNamesOut.
const (
	NumericPrefix     = "num"
	CategoricalPrefix = "cat"
)

// ColumnTransformer selects named columns of a DataFrame and applies a
// numeric and a categorical transformation group to them, concatenating the
// results column-wise (numeric first). Columns in neither group are dropped.
type ColumnTransformer struct {
	State *model.StateManager

	NumericColumns     []string
	CategoricalColumns []string

	// NumericSteps are applied in order to the numeric block.
	NumericSteps []model.Transformer
	// CategoricalImputer and Encoder are applied in order to the categorical block.
	CategoricalImputer *CategoricalImputer
	Encoder            *OneHotEncoder

	NOutputFeatures int
}

// IsFitted implements model.Estimator.
func (ct *ColumnTransformer) IsFitted() bool { return ct.State.IsFitted() }

// CloneTransformer implements model.FrameTransformer.
func (ct *ColumnTransformer) CloneTransformer() model.FrameTransformer {
	steps := make([]model.Transformer, len(ct.NumericSteps))
	for i, s := range ct.NumericSteps {
		steps[i] = s.Clone()
	}
	return &ColumnTransformer{
		State:              model.NewStateManager(),
		NumericColumns:     append([]string(nil), ct.NumericColumns...),
		CategoricalColumns: append([]string(nil), ct.CategoricalColumns...),
		NumericSteps:       steps,
		CategoricalImputer: ct.CategoricalImputer.Clone(),
		Encoder:            ct.Encoder.Clone(),
	}
}

func (ct *ColumnTransformer) numericBlock(op string, df dataframe.DataFrame) (*mat.Dense, error) {
	if len(ct.NumericColumns) == 0 {
		return nil, nil
	}
	rows := df.Nrow()
	X := mat.NewDense(rows, len(ct.NumericColumns), nil)
	for j, name := range ct.NumericColumns {
		s := df.Col(name)
		if s.Err != nil {
			return nil, errors.NewColumnNotFoundError(op, name)
		}
		X.SetCol(j, s.Float())
	}
	return X, nil
}

func (ct *ColumnTransformer) categoricalBlock(op string, df dataframe.DataFrame) ([]StringColumn, error) {
	cols := make([]StringColumn, len(ct.CategoricalColumns))
	for j, name := range ct.CategoricalColumns {
		s := df.Col(name)
		if s.Err != nil {
			return nil, errors.NewColumnNotFoundError(op, name)
		}
		cols[j] = StringColumn{Values: s.Records(), Missing: s.IsNaN()}
	}
	return cols, nil
}

func (ct *ColumnTransformer) run(op string, df dataframe.DataFrame, fit bool) (*mat.Dense, error) {
	if len(ct.NumericColumns)+len(ct.CategoricalColumns) == 0 {
		return nil, errors.NewValidationError("columns", "at least one numeric or categorical column is required", 0)
	}
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, op)
	}
	if df.Nrow() == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	var blocks []mat.Matrix

	num, err := ct.numericBlock(op, df)
	if err != nil {
		return nil, err
	}
	if num != nil {
		var cur mat.Matrix = num
		for _, step := range ct.NumericSteps {
			if fit {
				cur, err = step.FitTransform(cur)
			} else {
				cur, err = step.Transform(cur)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "%s: numeric group", op)
			}
		}
		blocks = append(blocks, cur)
	}

	if len(ct.CategoricalColumns) > 0 {
		raw, err := ct.categoricalBlock(op, df)
		if err != nil {
			return nil, err
		}
		if fit {
			if err := ct.CategoricalImputer.Fit(raw); err != nil {
				return nil, errors.Wrapf(err, "%s: categorical group", op)
			}
		}
		filled, err := ct.CategoricalImputer.Transform(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: categorical group", op)
		}
		if fit {
			if err := ct.Encoder.Fit(filled); err != nil {
				return nil, errors.Wrapf(err, "%s: categorical group", op)
			}
		}
		enc, err := ct.Encoder.Transform(filled)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: categorical group", op)
		}
		if enc != nil {
			blocks = append(blocks, enc)
		}
	}

	if len(blocks) == 0 {
		return nil, errors.NewValueError(op, "transformation produced no output features")
	}
	return hstack(df.Nrow(), blocks), nil
}

func hstack(rows int, blocks []mat.Matrix) *mat.Dense {
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out
}

// Fit implements model.FrameTransformer.
func (ct *ColumnTransformer) Fit(df dataframe.DataFrame) error {
	_, err := ct.FitTransform(df)
	return err
}

// FitTransform implements model.FrameTransformer.
func (ct *ColumnTransformer) FitTransform(df dataframe.DataFrame) (*mat.Dense, error) {
	ct.State.Reset()
	out, err := ct.run("ColumnTransformer.Fit", df, true)
	if err != nil {
		return nil, err
	}
	_, ct.NOutputFeatures = out.Dims()
	ct.State.SetDimensions(len(ct.NumericColumns)+len(ct.CategoricalColumns), df.Nrow())
	ct.State.SetFitted()
	return out, nil
}

// Transform implements model.FrameTransformer.
func (ct *ColumnTransformer) Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	return ct.run("ColumnTransformer.Transform", df, false)
}

// FeatureNamesOut implements model.FrameTransformer. Names are
// "num__<column>" for numeric outputs and "cat__<column>_<category>" for
// one-hot outputs.
func (ct *ColumnTransformer) FeatureNamesOut() ([]string, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "FeatureNamesOut"); err != nil {
		return nil, err
	}
	names := make([]string, 0, ct.NOutputFeatures)
	for _, c := range ct.NumericColumns {
		names = append(names, NumericPrefix+"__"+c)
	}
	if len(ct.CategoricalColumns) > 0 {
		cat, err := ct.Encoder.FeatureNamesOut(ct.CategoricalColumns)
		if err != nil {
			return nil, err
		}
		for _, c := range cat {
			names = append(names, CategoricalPrefix+"__"+c)
		}
	}
	return names, nil
}

func (ct *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer(num=%v, cat=%v)", ct.NumericColumns, ct.CategoricalColumns)
}

// FeatureNames returns the output feature names of a fitted transformer with
// the group prefix (everything up to and including the first "__") removed.
func FeatureNames(t model.FrameTransformer) ([]string, error) {
	names, err := t.FeatureNamesOut()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		if _, after, ok := strings.Cut(n, "__"); ok {
			n = after
		}
		out[i] = n
	}
	return out, nil
}
