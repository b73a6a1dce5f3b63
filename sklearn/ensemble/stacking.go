package ensemble

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/core/parallel"
	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/sklearn/model_selection"
	"gonum.org/v1/gonum/mat"
)

// NamedEstimator pairs a base estimator with its name.
type NamedEstimator struct {
	Name      string
	Estimator model.Regressor
}

// StackingRegressor combines base regressors with a final regressor trained
// on their out-of-fold predictions.
//
// Fit computes, for every base estimator, cross-validated predictions over
// CV unshuffled folds; the final estimator is fitted on those columns (plus
// the raw features when Passthrough is set). The base estimators are then
// refitted on the full data and used at prediction time.
type StackingRegressor struct {
	State *model.StateManager

	Estimators     []NamedEstimator
	FinalEstimator model.Regressor
	CV             int
	Passthrough    bool

	// Fitted state
	FittedEstimators []NamedEstimator
	FittedFinal      model.Regressor
}

// StackingOption configures a StackingRegressor.
type StackingOption func(*StackingRegressor)

// WithStackingCV sets the number of folds for out-of-fold predictions (default 5).
func WithStackingCV(cv int) StackingOption {
	return func(s *StackingRegressor) { s.CV = cv }
}

// WithPassthrough appends the raw features to the final estimator's input.
func WithPassthrough(passthrough bool) StackingOption {
	return func(s *StackingRegressor) { s.Passthrough = passthrough }
}

// NewStackingRegressor creates an unfitted stacking regressor.
func NewStackingRegressor(estimators []NamedEstimator, final model.Regressor, options ...StackingOption) *StackingRegressor {
	s := &StackingRegressor{
		State:          model.NewStateManager(),
		Estimators:     estimators,
		FinalEstimator: final,
		CV:             5,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *StackingRegressor) validate() error {
	if len(s.Estimators) == 0 {
		return errors.NewValidationError("estimators", "at least one base estimator is required", len(s.Estimators))
	}
	if s.FinalEstimator == nil {
		return errors.NewValidationError("final_estimator", "must not be nil", nil)
	}
	if s.CV < 2 {
		return errors.NewValidationError("cv", "must be at least 2", s.CV)
	}
	seen := make(map[string]bool, len(s.Estimators))
	for _, e := range s.Estimators {
		if e.Estimator == nil {
			return errors.NewValidationError("estimators", "estimator must not be nil", e.Name)
		}
		if e.Name == "" || seen[e.Name] {
			return errors.NewValidationError("estimators", "names must be unique and non-empty", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Fit trains the stack. Base estimators are processed concurrently; each
// goroutine works on its own clones.
func (s *StackingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "StackingRegressor.Fit")

	if err := s.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("StackingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := metrics.AsVec(y)
	if err != nil {
		return err
	}
	if yv.Len() != rows {
		return errors.NewDimensionError("StackingRegressor.Fit", rows, yv.Len(), 0)
	}

	s.State.Reset()
	folds, err := model_selection.NewKFold(s.CV, false, 0).Split(rows)
	if err != nil {
		return err
	}

	oof := make([]*mat.VecDense, len(s.Estimators))
	fitted := make([]NamedEstimator, len(s.Estimators))
	err = parallel.ForEach(len(s.Estimators), func(i int) error {
		base := s.Estimators[i]
		p, err := model_selection.CrossValPredict(base.Estimator, X, yv, folds)
		if err != nil {
			return errors.Wrapf(err, "out-of-fold predictions for %q", base.Name)
		}
		oof[i] = p

		m := base.Estimator.Clone()
		if err := m.Fit(X, yv); err != nil {
			return errors.Wrapf(err, "fitting base estimator %q", base.Name)
		}
		fitted[i] = NamedEstimator{Name: base.Name, Estimator: m}
		return nil
	})
	if err != nil {
		return err
	}

	final := s.FinalEstimator.Clone()
	if err := final.Fit(s.metaFeatures(X, oof), yv); err != nil {
		return errors.Wrap(err, "fitting final estimator")
	}

	s.FittedEstimators = fitted
	s.FittedFinal = final
	s.State.SetDimensions(cols, rows)
	s.State.SetFitted()
	return nil
}

// metaFeatures stacks the base predictions column-wise, followed by X when
// Passthrough is set.
func (s *StackingRegressor) metaFeatures(X mat.Matrix, preds []*mat.VecDense) *mat.Dense {
	rows, cols := X.Dims()
	width := len(preds)
	if s.Passthrough {
		width += cols
	}
	Z := mat.NewDense(rows, width, nil)
	for j, p := range preds {
		Z.SetCol(j, mat.Col(nil, 0, p))
	}
	if s.Passthrough {
		Z.Slice(0, rows, len(preds), width).(*mat.Dense).Copy(X)
	}
	return Z
}

// Transform returns the final estimator's input for X: one column per base
// estimator (fitted on the full training data) and, with Passthrough, X.
func (s *StackingRegressor) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.State.RequireFitted("StackingRegressor", "Transform"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := s.State.RequireFeatures("StackingRegressor.Transform", cols); err != nil {
		return nil, err
	}

	preds := make([]*mat.VecDense, len(s.FittedEstimators))
	for i, e := range s.FittedEstimators {
		p, err := e.Estimator.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "predicting with base estimator %q", e.Name)
		}
		if preds[i], err = metrics.AsVec(p); err != nil {
			return nil, err
		}
	}
	return s.metaFeatures(X, preds), nil
}

// Predict runs the base estimators and feeds their predictions to the
// final estimator.
func (s *StackingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	Z, err := s.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.FittedFinal.Predict(Z)
}

// IsFitted returns whether the model has been fitted.
func (s *StackingRegressor) IsFitted() bool { return s.State.IsFitted() }

// Clone returns an unfitted stack built from clones of the base and final
// estimators.
func (s *StackingRegressor) Clone() model.Regressor {
	bases := make([]NamedEstimator, len(s.Estimators))
	for i, e := range s.Estimators {
		bases[i] = NamedEstimator{Name: e.Name, Estimator: e.Estimator.Clone()}
	}
	var final model.Regressor
	if s.FinalEstimator != nil {
		final = s.FinalEstimator.Clone()
	}
	return NewStackingRegressor(bases, final, WithStackingCV(s.CV), WithPassthrough(s.Passthrough))
}

// GetParams returns the stack's hyperparameters.
func (s *StackingRegressor) GetParams() map[string]interface{} {
	names := make([]string, len(s.Estimators))
	for i, e := range s.Estimators {
		names[i] = e.Name
	}
	return map[string]interface{}{
		"estimators":      names,
		"final_estimator": fmt.Sprint(s.FinalEstimator),
		"cv":              s.CV,
		"passthrough":     s.Passthrough,
	}
}

func (s *StackingRegressor) String() string {
	names := make([]string, len(s.Estimators))
	for i, e := range s.Estimators {
		names[i] = e.Name
	}
	return fmt.Sprintf("StackingRegressor(estimators=[%s], final_estimator=%v, cv=%d, passthrough=%t)",
		strings.Join(names, ", "), s.FinalEstimator, s.CV, s.Passthrough)
}
