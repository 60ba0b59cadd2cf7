// Package log defines standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention (e.g. "pipeline.stage",
// "data.rows") so logs from every stage can be filtered the same way.

package log

// Pipeline context
const (
	// StageKey identifies the pipeline stage emitting the record.
	StageKey = "pipeline.stage"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "pipeline.component"

	// SourceKey is the input file being read.
	SourceKey = "io.source"

	// OutputKey is an artefact being written.
	OutputKey = "io.output"
)

// Data shape
const (
	// RowsKey is the number of rows produced by a stage.
	RowsKey = "data.rows"

	// SkippedRowsKey is the number of input rows a stage skipped.
	SkippedRowsKey = "data.skipped_rows"

	// DroppedRowsKey is the number of rows removed by a join.
	DroppedRowsKey = "data.dropped_rows"

	// UnlabeledRowsKey is the number of rows without a demand class.
	UnlabeledRowsKey = "data.unlabeled_rows"

	// StationsKey is the number of distinct stations.
	StationsKey = "data.stations"

	// WardsKey is the number of distinct wards.
	WardsKey = "data.wards"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// SamplesKey is the number of samples handed to the model.
	SamplesKey = "data.samples"

	// TrainRowsKey and TestRowsKey are the sizes of the stratified split.
	TrainRowsKey = "data.train_rows"
	TestRowsKey  = "data.test_rows"

	// SplitKey names the split a metric was computed on.
	SplitKey = "data.split"
)

// Model and evaluation
const (
	// ModelNameKey identifies the regressor.
	ModelNameKey = "model.name"

	// TreesKey records the number of boosted trees.
	TreesKey = "model.trees"

	// RMSEKey records root mean squared error of the continuous score.
	RMSEKey = "metrics.rmse"

	// ThresholdsKey records the optimized cut-points.
	ThresholdsKey = "preds.thresholds"

	// QWKKey records quadratic-weighted kappa.
	QWKKey = "metrics.qwk"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// MAEKey records mean absolute error of the continuous score.
	MAEKey = "metrics.mae"

	// IterationKey records the number of optimizer iterations.
	IterationKey = "optimizer.iterations"

	// EvaluationsKey records the number of objective evaluations.
	EvaluationsKey = "optimizer.evaluations"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Performance and errors
const (
	// DurationMsKey records the execution time of a stage in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "stacktrace"
)

// Standard stage names.
const (
	StageLoad       = "load"
	StageStations   = "stations"
	StageMerge      = "merge"
	StageFeatures   = "features"
	StageDataset    = "dataset"
	StageTrain      = "train"
	StageThresholds = "thresholds"
	StageEvaluate   = "evaluate"
	StageExport     = "export"
)
