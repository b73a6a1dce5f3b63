package training

import (
	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/ordered"
	"github.com/YuminosukeSato/co2stack/sklearn/ensemble"
	"github.com/YuminosukeSato/co2stack/sklearn/linear_model"
	"github.com/YuminosukeSato/co2stack/sklearn/pipeline"
)

// Model names in the results summary.
const (
	RidgeName      = "Ridge"
	ElasticNetName = "ElasticNet"
	HGBName        = "HGB"
	StackingName   = "Stacking"
	StackingCVName = "Stacking_CV"
)

// BuildBaselines returns the baseline pipelines in reporting order. Every
// pipeline owns its own unfitted clone of pre.
func BuildBaselines(pre model.FrameTransformer) *ordered.Map[*pipeline.Pipeline] {
	baselines := ordered.New[*pipeline.Pipeline]()
	baselines.Set(RidgeName, pipeline.New(pre.CloneTransformer(), linear_model.NewRidge()))
	baselines.Set(ElasticNetName, pipeline.New(pre.CloneTransformer(),
		linear_model.NewElasticNet(linear_model.WithMaxIter(5000))))
	baselines.Set(HGBName, pipeline.New(pre.CloneTransformer(),
		ensemble.NewHistGradientBoostingRegressor(ensemble.WithHGBRandomState(42))))
	return baselines
}

// DefaultStackEstimators returns the base estimators of the stacking
// ensemble.
func DefaultStackEstimators() []ensemble.NamedEstimator {
	return []ensemble.NamedEstimator{
		{Name: "ridge", Estimator: linear_model.NewRidge()},
		{Name: "elastic", Estimator: linear_model.NewElasticNet(linear_model.WithMaxIter(5000))},
		{Name: "hgb", Estimator: ensemble.NewHistGradientBoostingRegressor(
			ensemble.WithHGBRandomState(42),
			ensemble.WithHGBMaxIter(200),
		)},
	}
}

// BuildStack returns the stacking pipeline. A nil base or final selects the
// defaults: DefaultStackEstimators and a Ridge final estimator.
func BuildStack(pre model.FrameTransformer, base []ensemble.NamedEstimator, final model.Regressor) *pipeline.Pipeline {
	if base == nil {
		base = DefaultStackEstimators()
	}
	if final == nil {
		final = linear_model.NewRidge()
	}
	stack := ensemble.NewStackingRegressor(base, final, ensemble.WithPassthrough(false))
	return pipeline.New(pre.CloneTransformer(), stack)
}
