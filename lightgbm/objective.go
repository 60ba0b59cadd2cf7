package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// ObjectiveFunction defines the loss the trees are boosted against
type ObjectiveFunction interface {
	// Gradient calculates the first derivative for a single sample
	Gradient(prediction, target float64) float64

	// Hessian calculates the second derivative for a single sample
	Hessian(prediction, target float64) float64

	// Loss calculates the loss for a single sample
	Loss(prediction, target float64) float64

	// InitScore returns the constant the ensemble starts from
	InitScore(targets, weights []float64) float64

	// Name returns the objective name
	Name() string
}

// L2Objective implements squared error ("regression")
type L2Objective struct{}

func (L2Objective) Gradient(prediction, target float64) float64 {
	return prediction - target
}

func (L2Objective) Hessian(prediction, target float64) float64 {
	return 1.0
}

func (L2Objective) Loss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

// InitScore is the weighted mean of the targets (boost_from_average)
func (L2Objective) InitScore(targets, weights []float64) float64 {
	var sum, total float64
	for i, t := range targets {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += w * t
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (L2Objective) Name() string {
	return "regression"
}

// NewObjective resolves an objective by its LightGBM name
func NewObjective(name string) (ObjectiveFunction, error) {
	switch name {
	case "", "regression", "regression_l2", "l2", "mse":
		return L2Objective{}, nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", name)
}

// rmse is the (weighted) root mean squared error used for the eval history
func rmse(targets, predictions, weights []float64) float64 {
	var sum, total float64
	for i, t := range targets {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		d := predictions[i] - t
		sum += w * d * d
		total += w
	}
	if total == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / total)
}
