package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or pipeline, e.g. "Ridge", "Stacking".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation: "fit", "predict", "transform", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of a training run.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	FoldKey     = "data.fold"
	ColumnKey   = "data.column"
	PathKey     = "io.path"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"
	MAEKey        = "metrics.mae"
	RMSEKey       = "metrics.rmse"
	LossKey       = "metrics.loss"
	IterationKey  = "training.iteration"
)

// Error context.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters.
const (
	RegularizationKey = "hyperparams.regularization"
	RandomSeedKey     = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseLoading       = "loading"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseReporting     = "reporting"
	PhasePreprocessing = "preprocessing"
)
