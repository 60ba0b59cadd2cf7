package lightgbm

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const cardName = "LGBMRegressor"

// modelCard is the JSON form of a fitted LGBMRegressor
type modelCard struct {
	Model        string                 `json:"model"`
	Params       map[string]interface{} `json:"params"`
	FeatureNames []string               `json:"feature_names,omitempty"`
	Importance   []float64              `json:"feature_importance"`
	History      EvalHistory            `json:"history"`
	Booster      *Model                 `json:"booster"`
}

// WriteJSON writes the fitted model, its split importance and eval history
func (lgb *LGBMRegressor) WriteJSON(w io.Writer) error {
	if err := lgb.RequireFitted("LGBMRegressor", "WriteJSON"); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(modelCard{
		Model:        cardName,
		Params:       lgb.GetParams(),
		FeatureNames: lgb.FeatureNames,
		Importance:   lgb.FeatureImportance(ImportanceSplit),
		History:      lgb.history,
		Booster:      lgb.Model,
	}), "encode lightgbm model")
}

// ReadJSON restores a regressor from WriteJSON output. Only the booster,
// feature names and eval history are needed for prediction.
func ReadJSON(r io.Reader) (*LGBMRegressor, error) {
	var card modelCard
	if err := json.NewDecoder(r).Decode(&card); err != nil {
		return nil, errors.NewParseError("lightgbm model", 0, 0, err)
	}
	if card.Model != cardName {
		return nil, errors.NewValueError("lightgbm.ReadJSON", "unexpected model "+card.Model)
	}
	if card.Booster == nil || card.Booster.NumFeatures < 1 {
		return nil, errors.NewValueError("lightgbm.ReadJSON", "no booster")
	}
	if card.FeatureNames != nil && len(card.FeatureNames) != card.Booster.NumFeatures {
		return nil, errors.NewDimensionError("lightgbm.ReadJSON", card.Booster.NumFeatures, len(card.FeatureNames), 0)
	}
	for _, tree := range card.Booster.Trees {
		for _, node := range tree.Nodes {
			if !node.IsLeaf() && (node.SplitFeature < 0 || node.SplitFeature >= card.Booster.NumFeatures) {
				return nil, errors.NewValueError("lightgbm.ReadJSON", "split feature out of range")
			}
		}
	}

	lgb := NewLGBMRegressor().
		WithLearningRate(card.Booster.LearningRate).
		WithNumIterations(len(card.Booster.Trees)).
		WithFeatureNames(card.FeatureNames)
	lgb.Objective = card.Booster.Objective
	lgb.Model = card.Booster
	lgb.history = card.History
	lgb.SetFitted()
	return lgb, nil
}
