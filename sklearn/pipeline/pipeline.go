// Package pipeline chains a DataFrame preprocessor with a regressor, in the
// manner of sklearn.pipeline.Pipeline with a ("preproc", "model") step list.
package pipeline

import (
	"encoding/gob"
	"fmt"
	"time"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/metrics"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&Pipeline{})
}

// Step names.
const (
	PreprocStep = "preproc"
	ModelStep   = "model"
)

// Step represents a single named step in the pipeline.
type Step struct {
	Name      string
	Estimator model.Estimator
}

// Pipeline applies Preproc to a DataFrame and feeds the resulting matrix to
// Model. It is constructed unfitted; Fit mutates it in place and may be
// called again, which refits both steps from scratch.
type Pipeline struct {
	State *model.StateManager

	Preproc model.FrameTransformer
	Model   model.Regressor
}

// New creates an unfitted pipeline.
func New(preproc model.FrameTransformer, reg model.Regressor) *Pipeline {
	return &Pipeline{
		State:   model.NewStateManager(),
		Preproc: preproc,
		Model:   reg,
	}
}

func (p *Pipeline) logger() log.Logger {
	return log.GetLoggerWithName("Pipeline")
}

// Steps returns the ordered (name, estimator) steps.
func (p *Pipeline) Steps() []Step {
	return []Step{
		{Name: PreprocStep, Estimator: p.Preproc},
		{Name: ModelStep, Estimator: p.Model},
	}
}

// NamedSteps returns the steps keyed by name.
func (p *Pipeline) NamedSteps() map[string]model.Estimator {
	named := make(map[string]model.Estimator, 2)
	for _, s := range p.Steps() {
		named[s.Name] = s.Estimator
	}
	return named
}

func (p *Pipeline) validate() error {
	if p.Preproc == nil {
		return errors.NewValidationError("pipeline step", "preprocessor must not be nil", PreprocStep)
	}
	if p.Model == nil {
		return errors.NewValidationError("pipeline step", "model must not be nil", ModelStep)
	}
	return nil
}

// Fit fits the preprocessor on X, transforms X and fits the model on the
// result.
func (p *Pipeline) Fit(X dataframe.DataFrame, y *mat.VecDense) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if err := p.validate(); err != nil {
		return err
	}
	if y == nil || y.Len() != X.Nrow() {
		got := 0
		if y != nil {
			got = y.Len()
		}
		return errors.NewDimensionError("Pipeline.Fit", X.Nrow(), got, 0)
	}
	p.State.Reset()
	start := time.Now()

	Xt, err := p.Preproc.FitTransform(X)
	if err != nil {
		return errors.Wrapf(err, "failed to fit step '%s'", PreprocStep)
	}
	if err := p.Model.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "failed to fit final step '%s'", ModelStep)
	}

	rows, cols := Xt.Dims()
	p.State.SetDimensions(cols, rows)
	p.State.SetFitted()
	p.logger().Debug("pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, fmt.Sprint(p.Model),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Transform applies the fitted preprocessor only.
func (p *Pipeline) Transform(X dataframe.DataFrame) (*mat.Dense, error) {
	if err := p.State.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}
	Xt, err := p.Preproc.Transform(X)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform at step '%s'", PreprocStep)
	}
	return Xt, nil
}

// Predict transforms X and predicts with the fitted model.
func (p *Pipeline) Predict(X dataframe.DataFrame) (*mat.VecDense, error) {
	if err := p.State.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt, err := p.Transform(X)
	if err != nil {
		return nil, err
	}
	pred, err := p.Model.Predict(Xt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to predict at step '%s'", ModelStep)
	}
	return metrics.AsVec(pred)
}

// Score returns the R² of the predictions on X.
func (p *Pipeline) Score(X dataframe.DataFrame, y *mat.VecDense) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// IsFitted returns whether the pipeline has been fitted.
func (p *Pipeline) IsFitted() bool { return p.State.IsFitted() }

// Clone returns an unfitted pipeline with cloned steps.
func (p *Pipeline) Clone() *Pipeline {
	var pre model.FrameTransformer
	if p.Preproc != nil {
		pre = p.Preproc.CloneTransformer()
	}
	var reg model.Regressor
	if p.Model != nil {
		reg = p.Model.Clone()
	}
	return New(pre, reg)
}

// FeatureNamesOut returns the preprocessor's output feature names.
func (p *Pipeline) FeatureNamesOut() ([]string, error) {
	if err := p.State.RequireFitted("Pipeline", "FeatureNamesOut"); err != nil {
		return nil, err
	}
	return p.Preproc.FeatureNamesOut()
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(steps=[('%s', %v), ('%s', %v)])", PreprocStep, p.Preproc, ModelStep, p.Model)
}
