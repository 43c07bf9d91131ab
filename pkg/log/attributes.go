// Package log defines standard attribute keys for machine learning operations.
//
// These keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") so that training and inference logs can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model. Examples: "LinearRegression", "OneHotEncoder"
	ModelNameKey = "model.name"

	// ArtifactIDKey identifies a persisted model artifact.
	ArtifactIDKey = "model.artifact_id"

	// ArtifactPathKey is the filesystem location of a persisted model artifact.
	ArtifactPathKey = "model.artifact_path"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "generate", "split", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	SamplesKey      = "data.samples"
	FeaturesKey     = "data.features"
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
	CategoriesKey   = "data.categories"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"
	MSEKey        = "metrics.mse"
	RMSEKey       = "metrics.rmse"
	MAEKey        = "metrics.mae"
	R2ScoreKey    = "metrics.r2_score"
	RankKey       = "metrics.rank"
)

// Error Context
const (
	ErrAttrKey    = "error"
	StacktraceKey = "error.stacktrace"
	ErrorTypeKey  = "error.type"
)

// Configuration
const (
	RandomSeedKey = "config.random_seed"
	TestSizeKey   = "config.test_size"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationGenerate  = "generate"
	OperationSplit     = "split"
	OperationSave      = "save"
	OperationLoad      = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
