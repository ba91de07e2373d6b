package log

// Attribute keys shared by every component so log lines can be filtered
// uniformly.
const (
	// Model and operation context
	ModelNameKey  = "model.name"
	WorkflowIDKey = "workflow.id"
	OperationKey  = "ml.operation"
	ComponentKey  = "ml.component"
	PhaseKey      = "ml.phase"

	// Data shape
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	OutcomeKey  = "data.outcome"
	DataPathKey = "data.path"
	FileKey     = "output.file"

	// Resampling and tuning
	ProportionKey  = "split.proportion"
	StrataKey      = "split.strata"
	FoldKey        = "cv.fold"
	FoldCountKey   = "cv.folds"
	CandidateKey   = "tune.candidate"
	CandidatesKey  = "tune.candidates"
	HyperParamsKey = "tune.params"
	TrialKey       = "tune.trial"

	// Metrics
	MetricNameKey  = "metric.name"
	MetricValueKey = "metric.value"
	MetricSEKey    = "metric.std_err"

	// Recipe
	StepKey = "recipe.step"

	// Performance
	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
	WorkerIDKey   = "infra.worker_id"
	WorkersKey    = "infra.workers"

	// Reproducibility
	RandomSeedKey = "config.random_seed"
	RunIDKey      = "run.id"

	// Errors
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	ErrorTypeKey      = "error.type"
)

// Operation values for OperationKey.
const (
	OperationSplit    = "split"
	OperationFolds    = "vfold"
	OperationPrep     = "prep"
	OperationBake     = "bake"
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationTune     = "tune"
	OperationSelect   = "select"
	OperationLastFit  = "last_fit"
	OperationEvaluate = "evaluate"
)

// Phase values for PhaseKey.
const (
	PhaseResample = "resample"
	PhaseFinal    = "final"
)
