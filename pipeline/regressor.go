package pipeline

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/core/model"
	"github.com/YuminosukeSato/bikedemand/evaluation"
	"github.com/YuminosukeSato/bikedemand/lightgbm"
	"github.com/YuminosukeSato/bikedemand/linear"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Regressor is the fitted model kept in a Result and written to ModelFile.
type Regressor interface {
	model.Regressor
	WriteJSON(w io.Writer) error
}

// newRegressor builds the configured model. The boosted model scores the
// test split after every round so the loss curve can be drawn.
func newRegressor(cfg *config.Config, names []string, xTest mat.Matrix, yTest []float64) Regressor {
	m := cfg.Model
	if m.Kind == config.ModelRidge {
		return linear.NewRidge(linear.WithAlpha(m.L2), linear.WithFeatureNames(names))
	}
	return lightgbm.NewLGBMRegressor().
		WithLearningRate(m.LearningRate).
		WithNumIterations(m.NEstimators).
		WithNumLeaves(m.NumLeaves).
		WithMinChildSamples(m.MinChildSamples).
		WithSubsample(m.Subsample, m.SubsampleFreq).
		WithColsampleBytree(m.ColsampleBytree).
		WithRegLambda(m.RegLambda).
		WithRandomState(cfg.Split.Seed).
		WithFeatureNames(names).
		WithEvalSet(xTest, yTest)
}

// featureWeights holds what a fitted model reports per feature.
type featureWeights struct {
	measure string
	title   string
	file    string
	ranked  []evaluation.Coefficient
}

// rankFeatures ranks split importance for the boosted model and
// coefficients for ridge.
func rankFeatures(names []string, r Regressor) (*featureWeights, error) {
	var (
		fw     featureWeights
		values []float64
	)
	switch m := r.(type) {
	case *lightgbm.LGBMRegressor:
		fw = featureWeights{measure: "split_importance", title: "LightGBM feature importance", file: ImportanceFile}
		values = m.FeatureImportance(lightgbm.ImportanceSplit)
	case *linear.Ridge:
		fw = featureWeights{measure: "coefficient", title: "Ridge coefficients (standardized features)", file: CoefficientsFile}
		values = m.Coefficients()
	default:
		return nil, errors.NewValueError("pipeline.rankFeatures", fmt.Sprintf("unsupported regressor %T", r))
	}
	ranked, err := evaluation.RankCoefficients(names, values)
	if err != nil {
		return nil, err
	}
	fw.ranked = ranked
	return &fw, nil
}
