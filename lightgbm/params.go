package lightgbm

import (
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

const kEpsilon = 1e-10

// TrainingParams contains the boosting hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"` // <= 0 means no limit
	MinDataInLeaf int     `json:"min_data_in_leaf"`
	MinSumHessian float64 `json:"min_sum_hessian_in_leaf"`

	// Regularization
	Lambda         float64 `json:"lambda_l2"`
	Alpha          float64 `json:"lambda_l1"`
	MinGainToSplit float64 `json:"min_gain_to_split"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction"`

	// Histogram
	MaxBin int `json:"max_bin"`

	Seed int64 `json:"seed"`
}

// DefaultParams returns the LightGBM defaults
func DefaultParams() TrainingParams {
	return TrainingParams{
		NumIterations:   100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinDataInLeaf:   20,
		MinSumHessian:   1e-3,
		BaggingFraction: 1.0,
		FeatureFraction: 1.0,
		MaxBin:          255,
	}
}

// Validate rejects parameters the trainer cannot run with
func (p TrainingParams) Validate() error {
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be at least 1", p.NumIterations)
	case !(p.LearningRate > 0) || math.IsInf(p.LearningRate, 0):
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.MinSumHessian < 0:
		return errors.NewValidationError("min_sum_hessian_in_leaf", "must not be negative", p.MinSumHessian)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must not be negative", p.Lambda)
	case p.Alpha < 0:
		return errors.NewValidationError("lambda_l1", "must not be negative", p.Alpha)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return errors.NewValidationError("bagging_freq", "must not be negative", p.BaggingFreq)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	}
	return nil
}

// leafOutput is the regularized Newton step -G/(H+λ), with L1 soft thresholding
func (p TrainingParams) leafOutput(sumGrad, sumHess float64) float64 {
	return -thresholdL1(sumGrad, p.Alpha) / (sumHess + p.Lambda + kEpsilon)
}

// leafGain is the loss reduction a leaf contributes
func (p TrainingParams) leafGain(sumGrad, sumHess float64) float64 {
	g := thresholdL1(sumGrad, p.Alpha)
	return g * g / (sumHess + p.Lambda + kEpsilon)
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	}
	return 0
}

// samplingStrategy draws the bagged rows and the sampled columns.
// All randomness comes from the seed, so equal seeds give equal models.
type samplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
	baggingFraction float64
	baggingFreq     int
	bag             []int
}

func newSamplingStrategy(params TrainingParams) *samplingStrategy {
	return &samplingStrategy{
		rng:             rand.New(rand.NewSource(params.Seed)),
		featureFraction: params.FeatureFraction,
		baggingFraction: params.BaggingFraction,
		baggingFreq:     params.BaggingFreq,
	}
}

// sampleFeatures returns the sorted columns one tree may split on
func (s *samplingStrategy) sampleFeatures(numFeatures int) []int {
	if s.featureFraction >= 1 {
		return sequence(numFeatures)
	}
	return s.draw(numFeatures, s.featureFraction)
}

// sampleInstances redraws the bag every baggingFreq iterations and keeps it
// in between.
func (s *samplingStrategy) sampleInstances(numInstances, iteration int) []int {
	if s.baggingFreq <= 0 || s.baggingFraction >= 1 {
		if len(s.bag) != numInstances {
			s.bag = sequence(numInstances)
		}
		return s.bag
	}
	if s.bag == nil || iteration%s.baggingFreq == 0 {
		s.bag = s.draw(numInstances, s.baggingFraction)
	}
	return s.bag
}

func (s *samplingStrategy) draw(n int, fraction float64) []int {
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	picked := s.rng.Perm(n)[:k]
	sort.Ints(picked)
	return picked
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
