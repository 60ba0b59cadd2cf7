// Package pipeline runs the demand-imbalance pipeline end to end: ingest,
// station preprocessing, merge, feature and label engineering, a
// sample-weighted regressor (boosted trees by default, ridge on request),
// threshold optimization and evaluation.
//
// Each stage runs under errors.SafeExecute and logs its row counts and
// duration. The pipeline is single-threaded; the context is only checked
// between stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/bikedemand/category"
	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/evaluation"
	"github.com/YuminosukeSato/bikedemand/features"
	"github.com/YuminosukeSato/bikedemand/ingest"
	"github.com/YuminosukeSato/bikedemand/lightgbm"
	"github.com/YuminosukeSato/bikedemand/merge"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/pkg/log"
	"github.com/YuminosukeSato/bikedemand/preprocessing"
	"github.com/YuminosukeSato/bikedemand/station"
	"github.com/YuminosukeSato/bikedemand/thresholds"
)

// Output file names under Paths.OutputDir.
const (
	FeaturesFile     = "features.csv"
	EvaluationFile   = "evaluation.xlsx"
	ScoresPlotFile   = "scores.png"
	CoefficientsFile = "coefficients.png"
	ImportanceFile   = "feature_importance.png"
	LossCurveFile    = "loss_curve.png"
	ModelFile        = "model.json"
)

// coefficientsShown limits the feature weight chart.
const coefficientsShown = 20

// IngestStats groups the reader statistics.
type IngestStats struct {
	Stations  ingest.Stats
	Snapshots ingest.Stats
	Weather   ingest.Stats
}

// Result collects everything a run produced.
type Result struct {
	Ingest   IngestStats
	Stations station.Summary
	Merge    merge.Stats
	Features features.Summary
	Frame    *features.Frame

	FeatureNames []string
	TrainRows    int
	TestRows     int
	ClassWeights map[features.Class]float64

	Model     Regressor
	ModelName string
	// Coefficients ranks ridge coefficients or boosted split importance;
	// WeightMeasure says which.
	Coefficients  []evaluation.Coefficient
	WeightMeasure string
	// History is the per-round RMSE of the boosted model, nil for ridge.
	History    *lightgbm.EvalHistory
	Thresholds *thresholds.Fit
	Train      *evaluation.Report
	Test       *evaluation.Report

	Outputs []string

	weights *featureWeights
}

// Pipeline holds the configuration for one run.
type Pipeline struct {
	cfg      *config.Config
	logger   log.Logger
	strategy thresholds.Strategy
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrategy replaces the Nelder–Mead threshold search.
func WithStrategy(s thresholds.Strategy) Option {
	return func(p *Pipeline) { p.strategy = s }
}

// New returns a pipeline for cfg. A nil logger uses the process-wide one.
func New(cfg *config.Config, logger log.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		strategy: &thresholds.NelderMead{
			MaxIterations:  cfg.Optimizer.MaxIterations,
			MaxEvaluations: cfg.Optimizer.MaxEvaluations,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage and writes the artefacts to Paths.OutputDir.
func Run(ctx context.Context, cfg *config.Config, logger log.Logger) (*Result, error) {
	return New(cfg, logger).Run(ctx)
}

// stage runs fn with a stage-scoped logger, converting panics into errors.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(logger log.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "before stage %s", name)
	}
	logger := p.logger.With(log.StageKey, name)
	start := time.Now()
	err := errors.SafeExecute(name, func() error { return fn(logger) })
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.Error("Stage failed", err,
			log.DurationMsKey, elapsed,
			log.ErrorTypeKey, fmt.Sprintf("%T", errors.Cause(err)),
		)
		return errors.Wrapf(err, "stage %s", name)
	}
	logger.Debug("Stage finished", log.DurationMsKey, elapsed)
	return nil
}

// BuildFeatures runs ingest, station preprocessing, merge and the feature
// engine. It does not write anything.
func (p *Pipeline) BuildFeatures(ctx context.Context) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	var (
		raw       []ingest.RawStation
		snapshots []ingest.Snapshot
		weather   []ingest.Weather
		stations  []station.Station
		obs       []merge.Observation
	)

	err := p.stage(ctx, log.StageLoad, func(logger log.Logger) error {
		loc, err := p.cfg.Features.Location()
		if err != nil {
			return err
		}
		winds := category.NewWindDirections(p.cfg.Tables.WindDirections)

		if raw, res.Ingest.Stations, err = ingest.ReadStationsFile(p.cfg.Paths.Static); err != nil {
			return err
		}
		logger.Info("Stations loaded", log.SourceKey, p.cfg.Paths.Static,
			log.RowsKey, res.Ingest.Stations.Kept(), log.SkippedRowsKey, res.Ingest.Stations.Skipped)

		if snapshots, res.Ingest.Snapshots, err = ingest.ReadSnapshotsFile(p.cfg.Paths.Dynamic, loc); err != nil {
			return err
		}
		logger.Info("Snapshots loaded", log.SourceKey, p.cfg.Paths.Dynamic,
			log.RowsKey, res.Ingest.Snapshots.Kept(), log.SkippedRowsKey, res.Ingest.Snapshots.Skipped)

		if weather, res.Ingest.Weather, err = ingest.ReadWeatherFile(p.cfg.Paths.Weather, p.cfg.Weather, winds); err != nil {
			return err
		}
		logger.Info("Weather loaded", log.SourceKey, p.cfg.Paths.Weather,
			log.RowsKey, res.Ingest.Weather.Kept(), log.SkippedRowsKey, res.Ingest.Weather.Skipped)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageStations, func(logger log.Logger) error {
		var err error
		stations, res.Stations, err = station.Preprocess(raw, p.cfg.Tables)
		if err != nil {
			return err
		}
		logger.Info("Stations preprocessed",
			log.StationsKey, len(stations),
			log.WardsKey, len(res.Stations.Density.Wards),
			log.DroppedRowsKey, res.Stations.OutsideWards+res.Stations.Duplicates,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageMerge, func(logger log.Logger) error {
		obs, res.Merge = merge.Merge(stations, snapshots, weather)
		if len(obs) == 0 {
			return errors.Wrap(errors.ErrEmptyData, "no snapshot matched a station and a weather hour")
		}
		logger.Info("Inputs merged", log.RowsKey, len(obs), log.DroppedRowsKey, res.Merge.Dropped())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageFeatures, func(logger log.Logger) error {
		frame, err := features.NewEngine(p.cfg.Features).Transform(obs)
		if err != nil {
			return err
		}
		res.Frame = frame
		res.Features = frame.Summary()
		logger.Info("Feature table built",
			log.RowsKey, res.Features.Rows,
			log.UnlabeledRowsKey, res.Features.Unlabeled,
			log.FeaturesKey, len(frame.Columns),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run executes every stage and writes the artefacts.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res, err := p.BuildFeatures(ctx)
	if err != nil {
		return nil, err
	}

	var (
		ds                      *features.Dataset
		trainIdx, testIdx       []int
		yTrain, yTest           []int
		trainScores, testScores []float64
	)

	err = p.stage(ctx, log.StageDataset, func(logger log.Logger) error {
		var err error
		if ds, err = res.Frame.Dataset(features.LeakageColumns); err != nil {
			return err
		}
		labels := classInts(ds.Y)
		if trainIdx, testIdx, err = StratifiedSplit(labels, p.cfg.Split.TestSize, p.cfg.Split.Seed); err != nil {
			return err
		}
		yTrain, yTest = pick(labels, trainIdx), pick(labels, testIdx)
		res.FeatureNames = ds.Names
		res.TrainRows, res.TestRows = len(trainIdx), len(testIdx)
		logger.Info("Dataset split",
			log.SamplesKey, len(labels),
			log.FeaturesKey, len(ds.Names),
			log.TrainRowsKey, res.TrainRows,
			log.TestRowsKey, res.TestRows,
			log.RandomSeedKey, p.cfg.Split.Seed,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageTrain, func(logger log.Logger) error {
		scaler := preprocessing.NewStandardScaler()
		xTrain, err := scaler.FitTransform(selectRows(ds.X, trainIdx))
		if err != nil {
			return err
		}
		xTest, err := scaler.Transform(selectRows(ds.X, testIdx))
		if err != nil {
			return err
		}

		weights := ClassWeights(yTrain)
		res.ClassWeights = make(map[features.Class]float64, 3)
		for i, c := range yTrain {
			res.ClassWeights[features.Class(c)] = weights[i]
		}

		model := newRegressor(p.cfg, ds.Names, xTest, intsToFloats(yTest))
		if err := model.Fit(xTrain, intsToFloats(yTrain), weights); err != nil {
			return err
		}
		if trainScores, err = model.Predict(xTrain); err != nil {
			return err
		}
		if testScores, err = model.Predict(xTest); err != nil {
			return err
		}
		res.Model = model
		res.ModelName = p.cfg.Model.Kind
		if res.weights, err = rankFeatures(ds.Names, model); err != nil {
			return err
		}
		res.Coefficients, res.WeightMeasure = res.weights.ranked, res.weights.measure

		fields := []any{log.ModelNameKey, res.ModelName, log.SamplesKey, len(yTrain)}
		if gb, ok := model.(*lightgbm.LGBMRegressor); ok {
			h := gb.EvalHistory()
			res.History = &h
			fields = append(fields, log.TreesKey, len(gb.Model.Trees), log.RandomSeedKey, gb.RandomState)
			if n := len(h.Valid); n > 0 {
				fields = append(fields, log.RMSEKey, h.Valid[n-1])
			}
		}
		logger.Info("Regressor fitted", fields...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageThresholds, func(logger log.Logger) error {
		fit, err := thresholds.Optimize(yTrain, trainScores, p.strategy, p.cfg.Optimizer.Initial)
		if err != nil {
			return err
		}
		res.Thresholds = fit
		logger.Info("Thresholds optimized",
			log.ThresholdsKey, fit.Cuts,
			log.QWKKey, fit.QWK,
			log.IterationKey, fit.Search.Iterations,
			log.EvaluationsKey, fit.Search.Evaluations,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageEvaluate, func(logger log.Logger) error {
		var err error
		if res.Train, err = evaluation.Evaluate("train", yTrain, trainScores, res.Thresholds.Cuts); err != nil {
			return err
		}
		if res.Test, err = evaluation.Evaluate("test", yTest, testScores, res.Thresholds.Cuts); err != nil {
			return err
		}
		for _, r := range []*evaluation.Report{res.Train, res.Test} {
			logger.Info("Split evaluated",
				log.SplitKey, r.Name,
				log.QWKKey, r.QWK,
				log.AccuracyKey, r.Accuracy,
				log.MAEKey, r.MAE,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log.StageExport, func(logger log.Logger) error {
		return p.export(res, yTest, testScores, logger)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) export(res *Result, yTest []int, testScores []float64, logger log.Logger) error {
	dir := p.cfg.Paths.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	type artefact struct {
		name  string
		write func(w io.Writer) error
	}
	writers := []artefact{
		{FeaturesFile, res.Frame.WriteCSV},
		{EvaluationFile, func(w io.Writer) error {
			return evaluation.WriteXLSX(w, []*evaluation.Report{res.Train, res.Test}, res.Coefficients, res.WeightMeasure)
		}},
		{ScoresPlotFile, func(w io.Writer) error {
			return evaluation.PlotScores(w, yTest, testScores, res.Thresholds.Cuts)
		}},
		{res.weights.file, func(w io.Writer) error {
			return evaluation.PlotCoefficients(w, res.Coefficients, coefficientsShown, res.weights.title, res.WeightMeasure)
		}},
	}
	if h := res.History; h != nil {
		writers = append(writers, artefact{LossCurveFile, func(w io.Writer) error {
			return evaluation.PlotLossCurve(w, h.Train, h.Valid, "rmse")
		}})
	}
	writers = append(writers, artefact{ModelFile, res.Model.WriteJSON})

	for _, out := range writers {
		path := filepath.Join(dir, out.name)
		if err := evaluation.WriteFile(path, out.write); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, path)
		logger.Info("Artefact written", log.OutputKey, path)
	}
	return nil
}

// WriteFeatures writes the feature table of res to path.
func WriteFeatures(res *Result, path string) error {
	if res == nil || res.Frame == nil {
		return errors.Wrap(errors.ErrEmptyData, "write features")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return evaluation.WriteFile(path, res.Frame.WriteCSV)
}

func classInts(y []features.Class) []int {
	out := make([]int, len(y))
	for i, c := range y {
		out[i] = int(c)
	}
	return out
}

func intsToFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
