package preprocessing

import (
	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

// Scaler names accepted by ScalerByName.
const (
	ScalerRobust   = "robust"
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// ScalerByName returns an unfitted numeric scaler with default settings.
func ScalerByName(name string) (model.Transformer, error) {
	switch name {
	case "", ScalerRobust:
		return NewRobustScalerDefault(), nil
	case ScalerStandard:
		return NewStandardScalerDefault(), nil
	case ScalerMinMax:
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be one of robust, standard, minmax", name)
	}
}

type buildConfig struct {
	scaler model.Transformer
}

// Option customizes BuildPreprocessor.
type Option func(*buildConfig)

// WithScaler replaces the numeric scaler (RobustScaler by default).
func WithScaler(t model.Transformer) Option {
	return func(c *buildConfig) { c.scaler = t }
}

// BuildPreprocessor returns an unfitted ColumnTransformer:
//
//	numeric:     SimpleImputer(median) -> RobustScaler
//	categorical: CategoricalImputer(most_frequent) -> OneHotEncoder(drop=first, handle_unknown=ignore)
//
// Columns in neither list are dropped.
func BuildPreprocessor(numeric, categorical []string, opts ...Option) *ColumnTransformer {
	cfg := buildConfig{scaler: NewRobustScalerDefault()}
	for _, o := range opts {
		o(&cfg)
	}
	return &ColumnTransformer{
		State:              model.NewStateManager(),
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
		NumericSteps: []model.Transformer{
			NewSimpleImputer(StrategyMedian),
			cfg.scaler,
		},
		CategoricalImputer: NewCategoricalImputer(StrategyMostFrequent),
		Encoder:            NewOneHotEncoder(DropFirst, HandleUnknownIgnore),
	}
}

// SavePreprocessor writes a fitted transformer to path in gob format.
func SavePreprocessor(ct *ColumnTransformer, path string) error {
	if err := ct.State.RequireFitted("ColumnTransformer", "SavePreprocessor"); err != nil {
		return err
	}
	return model.SaveModel(ct, path)
}

// LoadPreprocessor reads a transformer written by SavePreprocessor.
func LoadPreprocessor(path string) (*ColumnTransformer, error) {
	ct := &ColumnTransformer{}
	if err := model.LoadModel(ct, path); err != nil {
		return nil, err
	}
	if ct.State == nil {
		ct.State = model.NewStateManager()
	}
	return ct, nil
}
