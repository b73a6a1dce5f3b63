package preprocessing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Drop policies for OneHotEncoder.
const (
	DropNone  = ""
	DropFirst = "first"
)

// Unknown-category policies for OneHotEncoder.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// OneHotEncoder encodes string columns as dense indicator columns.
//
// Categories are learned per column in sorted order. With Drop = "first"
// the first category of every column is not emitted. With HandleUnknown =
// "ignore" a category not seen during Fit encodes as all zeros and a
// DataConversionWarning is raised once per Transform call.
type OneHotEncoder struct {
	State *model.StateManager

	Drop          string
	HandleUnknown string

	// Categories holds the sorted categories seen per input column.
	Categories [][]string
}

// NewOneHotEncoder creates an encoder with the given drop and unknown policies.
func NewOneHotEncoder(drop, handleUnknown string) *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager(), Drop: drop, HandleUnknown: handleUnknown}
}

// IsFitted implements model.Estimator.
func (e *OneHotEncoder) IsFitted() bool { return e.State.IsFitted() }

// Clone returns an unfitted encoder with the same settings.
func (e *OneHotEncoder) Clone() *OneHotEncoder {
	return NewOneHotEncoder(e.Drop, e.HandleUnknown)
}

func (e *OneHotEncoder) dropOffset() int {
	if e.Drop == DropFirst {
		return 1
	}
	return 0
}

// Fit learns the categories of each column.
func (e *OneHotEncoder) Fit(cols [][]string) error {
	if len(cols) == 0 || len(cols[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.Drop != DropNone && e.Drop != DropFirst {
		return errors.NewValidationError("drop", "must be empty or 'first'", e.Drop)
	}
	if e.HandleUnknown != HandleUnknownError && e.HandleUnknown != HandleUnknownIgnore {
		return errors.NewValidationError("handle_unknown", "must be 'error' or 'ignore'", e.HandleUnknown)
	}

	e.Categories = make([][]string, len(cols))
	for j, col := range cols {
		cats := slices.Clone(col)
		slices.Sort(cats)
		e.Categories[j] = slices.Compact(cats)
	}

	e.State.SetDimensions(len(cols), len(cols[0]))
	e.State.SetFitted()
	return nil
}

// NOutputs returns the number of encoded columns.
func (e *OneHotEncoder) NOutputs() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats) - e.dropOffset()
	}
	return n
}

// Transform encodes cols into a dense len(rows) × NOutputs() matrix.
func (e *OneHotEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.State.RequireFeatures("OneHotEncoder.Transform", len(cols)); err != nil {
		return nil, err
	}
	rows := len(cols[0])
	width := e.NOutputs()
	if width == 0 {
		return nil, nil
	}
	out := mat.NewDense(rows, width, nil)

	offset := 0
	var unknown []string
	for j, col := range cols {
		cats := e.Categories[j]
		for i, v := range col {
			k, found := slices.BinarySearch(cats, v)
			if !found {
				if e.HandleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OneHotEncoder.Transform",
						fmt.Sprintf("found unknown category %q in column %d during transform", v, j))
				}
				unknown = append(unknown, v)
				continue
			}
			if k -= e.dropOffset(); k >= 0 {
				out.Set(i, offset+k, 1)
			}
		}
		offset += len(cats) - e.dropOffset()
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)
		errors.Warn(errors.NewDataConversionWarning("category", "zeros",
			fmt.Sprintf("found unknown categories [%s] during transform, encoded as all zeros", strings.Join(slices.Compact(unknown), ", "))))
	}
	return out, nil
}

// FeatureNamesOut returns "<input>_<category>" for every emitted column.
func (e *OneHotEncoder) FeatureNamesOut(inputNames []string) ([]string, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "FeatureNamesOut"); err != nil {
		return nil, err
	}
	if len(inputNames) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.FeatureNamesOut", len(e.Categories), len(inputNames), 1)
	}
	names := make([]string, 0, e.NOutputs())
	for j, cats := range e.Categories {
		for _, c := range cats[e.dropOffset():] {
			names = append(names, inputNames[j]+"_"+c)
		}
	}
	return names, nil
}
