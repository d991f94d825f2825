package log

// Model and operation context.
const (
	// ModelNameKey is the estimator type, e.g. "MLPModel" or "Regressor".
	ModelNameKey = "model.name"

	// OperationKey is the estimator method being run.
	OperationKey = "ml.operation"

	// ComponentKey is the package emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	BatchSizeKey = "data.batch_size"
	PathKey      = "data.path"
)

// Training progress and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	EpochKey      = "training.epoch"
	EpochsKey     = "training.epochs"
	LossKey       = "metrics.loss"
	ValLossKey    = "metrics.val_loss"
	GradNormKey   = "training.grad_norm"
	MAEKey        = "metrics.mae"
	RMSEKey       = "metrics.rmse"

	// CoverageKey is the fraction of targets inside their interval.
	CoverageKey = "metrics.coverage"

	// PIWidthKey is the mean prediction interval width.
	PIWidthKey = "metrics.pi_width"
)

// Predictions.
const (
	PredsKey = "preds.count"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	SuggestionKey = "error.suggestion"
)

// Hyperparameters.
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	LambdaKey       = "hyperparams.lambda"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSave    = "save"
	OperationLoad    = "load"
	OperationLog     = "log"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorNumerical         = "NUMERICAL_INSTABILITY"
)
