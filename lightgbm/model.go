package lightgbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with numerical split
	NumericalNode
)

// Node represents a single node in a decision tree
type Node struct {
	NodeType   NodeType `json:"type"`
	LeftChild  int      `json:"left"`  // -1 for leaves
	RightChild int      `json:"right"` // -1 for leaves

	// Split information (for non-leaf nodes)
	SplitFeature int     `json:"feature"`
	Threshold    float64 `json:"threshold"` // value <= Threshold goes left
	Gain         float64 `json:"gain"`

	// Leaf information
	LeafValue float64 `json:"value"`
	Count     int     `json:"count"`
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.NodeType == LeafNode
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	NumLeaves     int     `json:"num_leaves"`
	ShrinkageRate float64 `json:"shrinkage"`
	Nodes         []Node  `json:"nodes"` // Nodes[0] is the root
}

// Predict returns the shrunken leaf value row falls into
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for i >= 0 && i < len(t.Nodes) {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if row[node.SplitFeature] <= node.Threshold {
			i = node.LeftChild
		} else {
			i = node.RightChild
		}
	}
	return 0
}

// ImportanceType selects how FeatureImportance aggregates splits
type ImportanceType string

const (
	// ImportanceSplit counts the splits that use a feature
	ImportanceSplit ImportanceType = "split"
	// ImportanceGain sums the gain of those splits
	ImportanceGain ImportanceType = "gain"
)

// Model is a trained ensemble
type Model struct {
	Objective    string  `json:"objective"`
	NumFeatures  int     `json:"num_features"`
	LearningRate float64 `json:"learning_rate"`
	InitScore    float64 `json:"init_score"`
	Trees        []Tree  `json:"trees"`
}

// PredictRow sums the init score and every tree
func (m *Model) PredictRow(row []float64) float64 {
	pred := m.InitScore
	for i := range m.Trees {
		pred += m.Trees[i].Predict(row)
	}
	return pred
}

// Predict makes predictions for input samples
func (m *Model) Predict(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("lightgbm.Predict", m.NumFeatures, cols, 1)
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = m.PredictRow(row)
	}
	return out, nil
}

// FeatureImportance returns raw split counts or summed gains per feature,
// like Booster.feature_importance.
func (m *Model) FeatureImportance(kind ImportanceType) []float64 {
	importance := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch kind {
			case ImportanceGain:
				importance[node.SplitFeature] += node.Gain
			default:
				importance[node.SplitFeature]++
			}
		}
	}
	return importance
}

// numSplits counts the internal nodes of the ensemble
func (m *Model) numSplits() int {
	n := 0
	for _, tree := range m.Trees {
		n += tree.NumLeaves - 1
	}
	return n
}
