// Package lightgbm is a pure-Go gradient boosted decision tree regressor
// with the LGBMRegressor parameter names.
//
// Trees are grown leaf-wise on per-feature histograms (at most max_bin bins)
// against squared error. Sample weights scale the gradients and hessians,
// bagging and column sampling draw from random_state, and each boosting
// round records the RMSE on the training set and an optional eval set.
//
//	reg := lightgbm.NewLGBMRegressor().
//		WithLearningRate(0.05).
//		WithNumIterations(100).
//		WithRandomState(42)
//	if err := reg.Fit(X, y, weights); err != nil {
//		return err
//	}
//	scores, err := reg.Predict(XTest)
package lightgbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/core/model"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// LGBMRegressor implements a LightGBM-style regressor
type LGBMRegressor struct {
	model.BaseEstimator

	Model *Model

	// Hyperparameters (matching Python LightGBM)
	NumLeaves       int     // Number of leaves in one tree
	MaxDepth        int     // Maximum tree depth, <= 0 for no limit
	LearningRate    float64 // Boosting learning rate
	NumIterations   int     // Number of boosting iterations (n_estimators)
	MinChildSamples int     // Minimum number of data in one leaf
	MinChildWeight  float64 // Minimum sum of hessians in one leaf
	Subsample       float64 // Subsample ratio of training data
	SubsampleFreq   int     // Frequency of subsample, 0 disables bagging
	ColsampleBytree float64 // Subsample ratio of columns when constructing tree
	RegAlpha        float64 // L1 regularization
	RegLambda       float64 // L2 regularization
	RandomState     int64   // Random seed
	Objective       string  // Objective function

	FeatureNames []string

	evalX   mat.Matrix
	evalY   []float64
	history EvalHistory
}

var _ model.Regressor = (*LGBMRegressor)(nil)

// NewLGBMRegressor creates a new regressor with the LightGBM defaults
func NewLGBMRegressor() *LGBMRegressor {
	d := DefaultParams()
	return &LGBMRegressor{
		NumLeaves:       d.NumLeaves,
		MaxDepth:        d.MaxDepth,
		LearningRate:    d.LearningRate,
		NumIterations:   d.NumIterations,
		MinChildSamples: d.MinDataInLeaf,
		MinChildWeight:  d.MinSumHessian,
		Subsample:       d.BaggingFraction,
		ColsampleBytree: d.FeatureFraction,
		RandomState:     42,
		Objective:       "regression",
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of rows per leaf
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithSubsample enables bagging of fraction rows every freq iterations
func (lgb *LGBMRegressor) WithSubsample(fraction float64, freq int) *LGBMRegressor {
	lgb.Subsample = fraction
	lgb.SubsampleFreq = freq
	return lgb
}

// WithColsampleBytree sets the fraction of columns each tree sees
func (lgb *LGBMRegressor) WithColsampleBytree(fraction float64) *LGBMRegressor {
	lgb.ColsampleBytree = fraction
	return lgb
}

// WithRegLambda sets the L2 regularization
func (lgb *LGBMRegressor) WithRegLambda(lambda float64) *LGBMRegressor {
	lgb.RegLambda = lambda
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMRegressor) WithRandomState(seed int64) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// WithFeatureNames attaches column names, written to the model card
func (lgb *LGBMRegressor) WithFeatureNames(names []string) *LGBMRegressor {
	lgb.FeatureNames = append([]string(nil), names...)
	return lgb
}

// WithEvalSet scores X after every round (eval_set)
func (lgb *LGBMRegressor) WithEvalSet(X mat.Matrix, y []float64) *LGBMRegressor {
	lgb.evalX = X
	lgb.evalY = y
	return lgb
}

// params converts the sklearn-style fields to trainer parameters
func (lgb *LGBMRegressor) params() TrainingParams {
	return TrainingParams{
		NumIterations:   lgb.NumIterations,
		LearningRate:    lgb.LearningRate,
		NumLeaves:       lgb.NumLeaves,
		MaxDepth:        lgb.MaxDepth,
		MinDataInLeaf:   lgb.MinChildSamples,
		MinSumHessian:   lgb.MinChildWeight,
		Lambda:          lgb.RegLambda,
		Alpha:           lgb.RegAlpha,
		BaggingFraction: lgb.Subsample,
		BaggingFreq:     lgb.SubsampleFreq,
		FeatureFraction: lgb.ColsampleBytree,
		MaxBin:          DefaultParams().MaxBin,
		Seed:            lgb.RandomState,
	}
}

// Fit trains the regressor
func (lgb *LGBMRegressor) Fit(X mat.Matrix, y []float64, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	_, cols := X.Dims()
	if lgb.FeatureNames != nil && len(lgb.FeatureNames) != cols {
		return errors.NewDimensionError("LGBMRegressor.Fit", len(lgb.FeatureNames), cols, 1)
	}
	objective, err := NewObjective(lgb.Objective)
	if err != nil {
		return err
	}

	trainer := NewTrainer(lgb.params(), objective)
	if lgb.evalX != nil {
		trainer.WithValidation(lgb.evalX, lgb.evalY)
	}
	if err := trainer.Fit(X, y, sampleWeight); err != nil {
		return err
	}

	lgb.Model = trainer.Model()
	lgb.history = trainer.History()
	lgb.SetFitted()
	return nil
}

// Predict makes predictions for input samples
func (lgb *LGBMRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if err := lgb.RequireFitted("LGBMRegressor", "Predict"); err != nil {
		return nil, err
	}
	return lgb.Model.Predict(X)
}

// FeatureImportance returns split counts or gains per feature
func (lgb *LGBMRegressor) FeatureImportance(kind ImportanceType) []float64 {
	if !lgb.IsFitted() || lgb.Model == nil {
		return nil
	}
	return lgb.Model.FeatureImportance(kind)
}

// EvalHistory returns the per-round RMSE recorded by Fit
func (lgb *LGBMRegressor) EvalHistory() EvalHistory {
	return lgb.history
}

// GetParams returns the parameters of the regressor
func (lgb *LGBMRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_leaves":        lgb.NumLeaves,
		"max_depth":         lgb.MaxDepth,
		"learning_rate":     lgb.LearningRate,
		"n_estimators":      lgb.NumIterations,
		"min_child_samples": lgb.MinChildSamples,
		"min_child_weight":  lgb.MinChildWeight,
		"subsample":         lgb.Subsample,
		"subsample_freq":    lgb.SubsampleFreq,
		"colsample_bytree":  lgb.ColsampleBytree,
		"reg_alpha":         lgb.RegAlpha,
		"reg_lambda":        lgb.RegLambda,
		"random_state":      lgb.RandomState,
		"objective":         lgb.Objective,
	}
}
